package imageproxy

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSignatureIsStable(t *testing.T) {
	config := Config{Referer: "image_url", UserAgent: "rss_funnel"}

	first := Signature(config, "http://example.com/pic.png")
	second := Signature(config, "http://example.com/pic.png")
	if first != second {
		t.Errorf("same input should produce the same signature: %q vs %q", first, second)
	}
	if len(first) != 16 {
		t.Errorf("expected a 16 character signature, got %q", first)
	}
}

func TestSignatureCoversConfigAndURL(t *testing.T) {
	base := Config{Referer: "image_url"}
	sig := Signature(base, "http://example.com/pic.png")

	cases := []struct {
		name   string
		config Config
		url    string
	}{
		{"url", base, "http://example.com/other.png"},
		{"referer", Config{Referer: "none"}, "http://example.com/pic.png"},
		{"user_agent", Config{Referer: "image_url", UserAgent: "bot"}, "http://example.com/pic.png"},
		{"proxy", Config{Referer: "image_url", Proxy: "http://proxy:8080"}, "http://example.com/pic.png"},
	}
	for _, tc := range cases {
		if got := Signature(tc.config, tc.url); got == sig {
			t.Errorf("changing %s should invalidate the signature", tc.name)
		}
	}
}

func proxyRequest(t *testing.T, query url.Values) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/_image?"+query.Encode(), nil)
	Handler(c)
	return w
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	cases := []struct {
		name   string
		query  url.Values
		status int
	}{
		{"missing url", url.Values{}, http.StatusBadRequest},
		{"missing signature", url.Values{"url": {"http://example.com/pic.png"}}, http.StatusUnauthorized},
		{"bad signature", url.Values{
			"url": {"http://example.com/pic.png"},
			"sig": {"0000000000000000"},
		}, http.StatusForbidden},
		{"signature for different config", url.Values{
			"url":     {"http://example.com/pic.png"},
			"referer": {"image_url"},
			"sig":     {Signature(Config{}, "http://example.com/pic.png")},
		}, http.StatusForbidden},
	}
	for _, tc := range cases {
		if w := proxyRequest(t, tc.query); w.Code != tc.status {
			t.Errorf("%s: expected status %d, got %d", tc.name, tc.status, w.Code)
		}
	}
}

func TestHandlerServesSignedRequest(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png bytes"))
	}))
	defer upstream.Close()

	imageURL := upstream.URL + "/pic.png"
	query := url.Values{
		"url":     {imageURL},
		"referer": {"none"},
		"sig":     {Signature(Config{Referer: "none"}, imageURL)},
	}

	w := proxyRequest(t, query)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("expected upstream content type, got %q", got)
	}
	if got := w.Body.String(); got != "png bytes" {
		t.Errorf("expected upstream body, got %q", got)
	}
}

func TestRefererValue(t *testing.T) {
	cases := []struct {
		policy string
		want   string
	}{
		{"", ""},
		{"none", ""},
		{"image_url", "http://img.example.com/a/pic.png"},
		{"image_url_domain", "http://img.example.com"},
		{"http://literal.example.com/", "http://literal.example.com/"},
	}
	for _, tc := range cases {
		got, err := refererValue(tc.policy, "http://img.example.com/a/pic.png")
		if err != nil {
			t.Errorf("policy %q: unexpected error: %v", tc.policy, err)
			continue
		}
		if got != tc.want {
			t.Errorf("policy %q: expected %q, got %q", tc.policy, tc.want, got)
		}
	}
}

func TestUserAgentValue(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("User-Agent", "reader/1.0")

	if got := userAgentValue("none", req); got != "" {
		t.Errorf("none: expected empty, got %q", got)
	}
	if got := userAgentValue("", req); got != "reader/1.0" {
		t.Errorf("default: expected the client's user agent, got %q", got)
	}
	if got := userAgentValue("transparent", req); got != "reader/1.0" {
		t.Errorf("transparent: expected the client's user agent, got %q", got)
	}
	if got := userAgentValue("my-bot/2", req); got != "my-bot/2" {
		t.Errorf("literal: expected %q, got %q", "my-bot/2", got)
	}
}
