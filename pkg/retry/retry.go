// Package retry wraps object store calls with bounded, classified retries.
//
// Every store access in the wiki goes through a [Policy]: errors are
// classified retryable vs terminal once, retryable ones are retried with
// exponential backoff and jitter up to a fixed attempt ceiling, and
// terminal ones propagate immediately. Document-level edit conflicts are
// terminal by definition; resolution belongs to the caller, never to this
// layer.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/aws/smithy-go"
	"github.com/googleapis/gax-go/v2"

	"github.com/inkstone-dev/inkstone/pkg/blob"
)

// Policy is a reusable retry policy: attempt ceiling, backoff schedule,
// and a classifier predicate. The zero value is not usable; start from
// [Default] and override as needed.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Backoff produces the pause before each retry. gax.Backoff applies
	// jitter internally and caps the delay at Backoff.Max.
	Backoff gax.Backoff

	// Retryable reports whether an error is worth retrying. Nil means
	// [Retryable].
	Retryable func(error) bool
}

// Default returns the policy used for store calls: 4 attempts, 100ms
// initial backoff doubling to a 2s cap.
func Default() Policy {
	return Policy{
		MaxAttempts: 4,
		Backoff: gax.Backoff{
			Initial:    100 * time.Millisecond,
			Max:        2 * time.Second,
			Multiplier: 2,
		},
	}
}

// Do runs fn until it succeeds, returns a terminal error, or the attempt
// ceiling is reached. The op name is included in the exhaustion error.
// Context cancellation is honored between attempts; an in-flight call
// cannot be interrupted beyond what fn itself does with ctx.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = Retryable
	}
	// Backoff is stateful (tracks the current delay); work on a copy so
	// the policy can be shared across call sites.
	bo := p.Backoff

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return fmt.Errorf("retry: %s: %d attempts exhausted: %w", op, p.MaxAttempts, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(bo.Pause()):
		}
	}
}

// Retryable is the default classifier.
//
// Terminal: context errors, NotFound, PreconditionFailed, AccessDenied;
// retrying cannot change those outcomes. Retryable: network timeouts and
// transient service errors (throttling, 5xx-class S3 codes).
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, blob.ErrNotFound),
		errors.Is(err, blob.ErrPreconditionFailed),
		errors.Is(err, blob.ErrAccessDenied):
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InternalError", "ServiceUnavailable", "SlowDown",
			"RequestTimeout", "Throttling", "ThrottlingException",
			"RequestLimitExceeded", "BadGateway":
			return true
		}
		// Server faults not matched above are still worth one more try.
		return apiErr.ErrorFault() == smithy.FaultServer
	}

	// Unclassified errors from the transport (connection resets, EOF on
	// response bodies) are treated as transient connectivity failures.
	return true
}
