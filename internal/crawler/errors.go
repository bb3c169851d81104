package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ConfigError reports a malformed piece of crawl configuration (a bad regex,
// an empty domain, an unparsable seed). It is fatal; the crawl never starts.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// BuildError reports a failed engine/backend construction. It aborts the
// whole crawl; it is never treated as a per-URL error.
type BuildError struct {
	Err error
}

func (e *BuildError) Error() string { return fmt.Sprintf("build engine: %v", e.Err) }

func (e *BuildError) Unwrap() error { return e.Err }

// FetchError reports a failed fetch of one URL. Timeout failures are
// retryable per the configured policy; everything else drops the URL
// permanently.
type FetchError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *FetchError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("fetch %s: timeout: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// isTimeout classifies an error as a page-load timeout. Context cancellation
// is deliberately not a timeout: a canceled crawl must not re-queue work.
func isTimeout(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
