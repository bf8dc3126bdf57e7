package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// UpstreamError is returned for any embedding/generation provider failure.
// The provider's own message is preserved so it is never swallowed upstream.
type UpstreamError struct {
	Provider string // "embedding" or "generation"
	Status   int    // HTTP status when the provider answered, 0 otherwise
	Message  string
	Timeout  bool // the bounded call deadline elapsed
	Network  bool // transport-level failure (reset, refused, DNS)
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s provider status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s provider: %s", e.Provider, e.Message)
}

// Transient reports whether a single retry is permitted for this failure.
// Only classified network-level causes qualify; provider-reported errors
// propagate immediately.
func (e *UpstreamError) Transient() bool {
	return e.Timeout || e.Network
}

// classifyCallError wraps a transport error from an in-flight provider call.
// A cancelled caller context is passed through unchanged so request
// cancellation is not mistaken for a provider failure.
func classifyCallError(provider string, ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}

	out := &UpstreamError{Provider: provider, Message: err.Error()}

	if errors.Is(err, context.DeadlineExceeded) {
		out.Timeout = true
		return out
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		out.Timeout = true
		return out
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		out.Network = true
		return out
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		out.Network = true
		return out
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		out.Network = true
		return out
	}
	return out
}
