package client

import (
	"bytes"
	"io"
	"mime"
	"net/http"

	"golang.org/x/net/html/charset"
)

// Response is an immutable snapshot of an HTTP response, safe to share
// between the cache and concurrent readers.
type Response struct {
	URL         string
	StatusCode  int
	Header      http.Header
	Body        []byte
	contentType string
}

func newResponse(url string, statusCode int, header http.Header, body []byte) *Response {
	return &Response{
		URL:        url,
		StatusCode: statusCode,
		Header:     header,
		Body:       body,
	}
}

// ContentType returns the media type without parameters, e.g.
// "text/html" for "text/html; charset=utf-8". Empty when the header is
// missing or malformed.
func (r *Response) ContentType() string {
	raw := r.contentType
	if raw == "" {
		raw = r.Header.Get("Content-Type")
	}
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return ""
	}
	return mediaType
}

// Text decodes the body to UTF-8, honoring the charset advertised in
// the Content-Type header.
func (r *Response) Text() (string, error) {
	contentType := r.contentType
	if contentType == "" {
		contentType = r.Header.Get("Content-Type")
	}
	reader, err := charset.NewReader(bytes.NewReader(r.Body), contentType)
	if err != nil {
		return "", err
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// withContentType returns a copy with an overridden content type. The
// body and headers are shared; both are treated as read-only.
func (r *Response) withContentType(contentType string) *Response {
	out := *r
	out.contentType = contentType
	return &out
}
