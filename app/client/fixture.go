package client

import (
	"bytes"
	"io"
	"net/http"
)

// Fixture is a canned HTTP response body, served by FixtureTransport.
type Fixture struct {
	ContentType string
	Body        []byte
}

// FixtureTransport serves fixtures by exact URL match instead of going
// to the network. Install with SetTransport in tests.
type FixtureTransport struct {
	Fixtures map[string]Fixture
}

func (t *FixtureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	fixture, ok := t.Fixtures[req.URL.String()]
	if !ok {
		return &http.Response{
			StatusCode: http.StatusNotFound,
			Header:     http.Header{},
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Request:    req,
		}, nil
	}

	header := http.Header{}
	if fixture.ContentType != "" {
		header.Set("Content-Type", fixture.ContentType)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(fixture.Body)),
		Request:    req,
	}, nil
}
