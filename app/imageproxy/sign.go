// Package imageproxy implements the image proxying route and the
// signature scheme that keeps it from being an open proxy. Feed
// filters emit signed proxy URLs; the handler verifies them before
// fetching.
package imageproxy

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"sync"

	"lukechampine.com/blake3"
)

const signKeyEnv = "RSS_FUNNEL_IMAGE_PROXY_SIGN_KEY"

// Config carries the per-image proxying options, signed together with
// the image URL.
type Config struct {
	Referer   string `json:"referer,omitempty" yaml:"referer"`
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent"`
	Proxy     string `json:"proxy,omitempty" yaml:"proxy"`
}

var (
	signKeyOnce sync.Once
	signKey     []byte
)

// key returns the process-wide signing key: the value of
// RSS_FUNNEL_IMAGE_PROXY_SIGN_KEY when set, otherwise 32 random bytes
// generated on first use. Signed URLs from a random key do not survive
// a restart.
func key() []byte {
	signKeyOnce.Do(func() {
		if env := os.Getenv(signKeyEnv); env != "" {
			signKey = []byte(env)
			return
		}
		signKey = make([]byte, 32)
		if _, err := rand.Read(signKey); err != nil {
			panic(err)
		}
	})
	return signKey
}

// Signature computes the 16 hex character signature over the proxy
// config and image URL.
func Signature(config Config, imageURL string) string {
	rawConfig, err := json.Marshal(config)
	if err != nil {
		rawConfig = []byte("{}")
	}

	var payload []byte
	payload = append(payload, "=key="...)
	payload = append(payload, key()...)
	payload = append(payload, "=config="...)
	payload = append(payload, rawConfig...)
	payload = append(payload, "=url="...)
	payload = append(payload, imageURL...)

	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:])[:16]
}
