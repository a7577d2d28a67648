package pipeline

import (
	"net/http"
	"time"
)

// NewPooledHTTPClient returns a client keeping poolSize idle connections to
// the speech providers, so a synthesis round trip inside a live call turn
// reuses a warm connection instead of paying connection setup.
func NewPooledHTTPClient(poolSize int, timeout time.Duration) *http.Client {
	if poolSize <= 0 {
		poolSize = 10
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        poolSize,
			MaxIdleConnsPerHost: poolSize,
			IdleConnTimeout:     2 * time.Minute,
			ForceAttemptHTTP2:   true,
		},
	}
}
