package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies upstream fetch failures. Adapters never let a raw
// transport or parse error cross their boundary; everything becomes one of
// these kinds.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindTimeout             ErrorKind = "timeout"
	KindRateLimited         ErrorKind = "rate_limited"
	KindUnsupportedPlatform ErrorKind = "unsupported_platform"
	KindSchemaMismatch      ErrorKind = "schema_mismatch"
	KindSyncInProgress      ErrorKind = "sync_in_progress"

	// KindInternal is a local failure (persistence, marshalling), not an
	// upstream condition. It never feeds the circuit breaker.
	KindInternal ErrorKind = "internal"
)

type FetchError struct {
	Kind    ErrorKind
	Message string
}

func (e *FetchError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func Errf(kind ErrorKind, format string, args ...any) *FetchError {
	return &FetchError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind; unknown errors count as upstream failures.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindUpstreamUnavailable
}

// wrapTransport converts a failed http round trip into the taxonomy.
func wrapTransport(platform string, err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return Errf(KindTimeout, "%s request timed out", platform)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return Errf(KindTimeout, "%s request timed out", platform)
	}
	return Errf(KindUpstreamUnavailable, "%s request failed: %v", platform, err)
}
