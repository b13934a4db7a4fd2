package imageproxy

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/rss-funnel/app/cfg"
)

const fetchTimeout = 10 * time.Second

// Handler serves the /_image route: it verifies the request signature
// and streams the upstream image back to the client.
func Handler(c *gin.Context) {
	imageURL := c.Query("url")
	if imageURL == "" {
		c.String(http.StatusBadRequest, "missing url parameter")
		return
	}

	sig := c.Query("sig")
	if sig == "" {
		c.String(http.StatusUnauthorized, "missing signature")
		return
	}

	config := Config{
		Referer:   c.Query("referer"),
		UserAgent: c.Query("user_agent"),
		Proxy:     c.Query("proxy"),
	}

	expected := Signature(config, imageURL)
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		c.String(http.StatusForbidden, "invalid signature")
		return
	}

	resp, err := fetchImage(c, config, imageURL)
	if err != nil {
		c.String(http.StatusInternalServerError, "failed fetching image: %s", err)
		return
	}
	defer resp.Body.Close()

	c.DataFromReader(resp.StatusCode, resp.ContentLength,
		resp.Header.Get("Content-Type"), resp.Body, nil)
}

func fetchImage(c *gin.Context, config Config, imageURL string) (*http.Response, error) {
	transport := &http.Transport{}
	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	httpClient := &http.Client{Transport: transport, Timeout: fetchTimeout}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}

	if referer, err := refererValue(config.Referer, imageURL); err != nil {
		return nil, err
	} else if referer != "" {
		req.Header.Set("Referer", referer)
	}
	if userAgent := userAgentValue(config.UserAgent, c.Request); userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	return httpClient.Do(req)
}

// refererValue resolves the referer policy: none (default), image_url,
// image_url_domain, or a literal value.
func refererValue(policy, imageURL string) (string, error) {
	switch policy {
	case "", "none":
		return "", nil
	case "image_url":
		return imageURL, nil
	case "image_url_domain":
		parsed, err := url.Parse(imageURL)
		if err != nil {
			return "", fmt.Errorf("invalid image url: %w", err)
		}
		if parsed.Host == "" {
			return "", fmt.Errorf("invalid referer domain: %s", imageURL)
		}
		return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), nil
	default:
		return policy, nil
	}
}

// userAgentValue resolves the user-agent policy: none, transparent
// (default, copies the client's header), rss_funnel, or a literal
// value.
func userAgentValue(policy string, req *http.Request) string {
	switch policy {
	case "none":
		return ""
	case "", "transparent":
		return req.Header.Get("User-Agent")
	case "rss_funnel":
		return cfg.DefaultUserAgent()
	default:
		return policy
	}
}
