// Package raceerr defines the error taxonomy shared across the ingestion
// pipeline, the cache, and the replay streaming engine.
package raceerr

import "errors"

// Sentinel categories. Wrap with fmt.Errorf("...: %w", Sentinel) to attach
// context while keeping errors.Is matching intact.
var (
	// NotFound covers unknown session_id or unknown year/round/kind.
	NotFound = errors.New("not found")

	// UpstreamUnavailable covers failures fetching from the raw-telemetry
	// adapter. A session transitioning to ERROR stores this class of error.
	UpstreamUnavailable = errors.New("upstream unavailable")

	// InvalidInput covers malformed commands on the streaming channel.
	InvalidInput = errors.New("invalid input")

	// CorruptTelemetry covers non-monotonic time or a missing required
	// column for one driver. The driver is skipped; the session proceeds.
	CorruptTelemetry = errors.New("corrupt telemetry")

	// CacheMiss is returned by the cache manager when no artifact exists,
	// or an existing artifact is partial/corrupt. Callers treat it as
	// absent and recompute.
	CacheMiss = errors.New("cache miss")

	// RetryableSendFailure covers a streaming send error that should be
	// logged and retried on the next tick.
	RetryableSendFailure = errors.New("retryable send failure")

	// FatalSendFailure covers a streaming send error that must close the
	// client connection.
	FatalSendFailure = errors.New("fatal send failure")
)
