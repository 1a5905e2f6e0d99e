// Package breaker implements the per-URL webhook circuit breaker described
// in the delivery pipeline's failure-handling design, held entirely in the
// KV store so it is shared across worker processes.
package breaker

import (
	"context"
	"strconv"
	"time"

	"github.com/ridgeline-io/ridgeline/internal/kv"
	"github.com/ridgeline-io/ridgeline/internal/metrics"
)

const (
	stateOpen     = "open"
	stateHalfOpen = "half_open"

	failuresTTL = 5 * time.Minute
	stateTTL    = time.Hour
)

// Breaker tracks per-URL failure state. The zero value is not usable; build
// one with New.
type Breaker struct {
	store            *kv.Store
	failureThreshold int
	recoveryTimeout  time.Duration
}

func New(store *kv.Store, failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	return &Breaker{store: store, failureThreshold: failureThreshold, recoveryTimeout: recoveryTimeout}
}

func keyState(url string) string    { return "circuit:state:" + url }
func keyFailures(url string) string { return "circuit:failures:" + url }
func keyOpenedAt(url string) string { return "circuit:opened_at:" + url }

// IsOpen reports whether requests to url should currently be blocked. A
// circuit past its recovery timeout transitions to half-open as a side
// effect and reports not-open. While half-open, every call reports
// not-open; the number of probe requests is not limited.
func (b *Breaker) IsOpen(ctx context.Context, url string) (bool, error) {
	state, err := b.store.Get(ctx, keyState(url))
	if err != nil {
		if err == kv.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	if state != stateOpen {
		return false, nil
	}

	openedAtStr, err := b.store.Get(ctx, keyOpenedAt(url))
	if err != nil && err != kv.ErrNotFound {
		return false, err
	}
	if openedAtStr != "" {
		openedAt, parseErr := time.Parse(time.RFC3339Nano, openedAtStr)
		if parseErr == nil && time.Since(openedAt) > b.recoveryTimeout {
			if setErr := b.store.Set(ctx, keyState(url), stateHalfOpen, stateTTL); setErr != nil {
				return false, setErr
			}
			return false, nil
		}
	}
	return true, nil
}

// RecordSuccess clears failure state. If the circuit was half-open (a probe
// just succeeded), it closes fully by deleting all three keys; otherwise it
// only resets the failure counter.
func (b *Breaker) RecordSuccess(ctx context.Context, url string) error {
	state, err := b.store.Get(ctx, keyState(url))
	if err != nil && err != kv.ErrNotFound {
		return err
	}
	if state == stateHalfOpen {
		return b.store.Delete(ctx, keyState(url), keyFailures(url), keyOpenedAt(url))
	}
	return b.store.Delete(ctx, keyFailures(url))
}

// RecordFailure increments the failure counter and, if it crosses the
// threshold, trips the circuit open. It returns true iff this call is what
// tripped it.
func (b *Breaker) RecordFailure(ctx context.Context, url string) (bool, error) {
	failures, err := b.store.Incr(ctx, keyFailures(url), failuresTTL)
	if err != nil {
		return false, err
	}
	if failures < int64(b.failureThreshold) {
		return false, nil
	}
	prevState, err := b.store.Get(ctx, keyState(url))
	if err != nil && err != kv.ErrNotFound {
		return false, err
	}
	if err := b.store.Set(ctx, keyState(url), stateOpen, stateTTL); err != nil {
		return false, err
	}
	if err := b.store.Set(ctx, keyOpenedAt(url), time.Now().UTC().Format(time.RFC3339Nano), stateTTL); err != nil {
		return false, err
	}
	if prevState == stateOpen {
		return false, nil
	}
	metrics.BreakerTripsTotal.Inc()
	return true, nil
}

// Stats reports the breaker's current state for the circuit-status API.
type Stats struct {
	State    string `json:"state"`
	Failures int    `json:"failures"`
	OpenedAt string `json:"opened_at"`
}

func (b *Breaker) Stats(ctx context.Context, url string) (Stats, error) {
	state, err := b.store.Get(ctx, keyState(url))
	if err != nil && err != kv.ErrNotFound {
		return Stats{}, err
	}
	if state == "" {
		state = "closed"
	}

	failuresStr, err := b.store.Get(ctx, keyFailures(url))
	if err != nil && err != kv.ErrNotFound {
		return Stats{}, err
	}
	failures, _ := strconv.Atoi(failuresStr)

	openedAt, err := b.store.Get(ctx, keyOpenedAt(url))
	if err != nil && err != kv.ErrNotFound {
		return Stats{}, err
	}

	return Stats{State: state, Failures: failures, OpenedAt: openedAt}, nil
}
