package platform

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"
)

// SharedHTTPClient is the pooled client used by all adapters. Upstream hosts
// differ per platform, so pooling is configured per host.
var SharedHTTPClient = NewHTTPClient()

func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

const userAgent = "codetrack/1.0 (+https://github.com/codetrack)"

// decodeJSON reads a response body into out, converting malformed payloads to
// schema_mismatch instead of letting the parse error escape.
func decodeJSON(platform string, r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return Errf(KindSchemaMismatch, "%s: unexpected payload: %v", platform, err)
	}
	return nil
}

// statusError maps a non-2xx upstream status to the taxonomy.
func statusError(platform string, status int) *FetchError {
	switch {
	case status == http.StatusNotFound:
		return Errf(KindNotFound, "%s: user not found", platform)
	case status == http.StatusTooManyRequests:
		return Errf(KindRateLimited, "%s: upstream rate limit", platform)
	case status >= 500:
		return Errf(KindUpstreamUnavailable, "%s: upstream status %d", platform, status)
	default:
		return Errf(KindUpstreamUnavailable, "%s: unexpected status %d", platform, status)
	}
}
