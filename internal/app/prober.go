package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"alquiler_floripa/internal/adapters/observability"
	"alquiler_floripa/internal/domain"
)

const DefaultProbeTimeout = 2 * time.Second

// ProbeResult is an advisory snapshot of remote store reachability.
type ProbeResult struct {
	Reachable bool      `json:"reachable"`
	Message   string    `json:"message"`
	CheckedAt time.Time `json:"checked_at"`
}

type Prober struct {
	p       domain.Pinger
	timeout time.Duration
	now     func() time.Time
}

func NewProber(p domain.Pinger, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{p: p, timeout: timeout, now: time.Now}
}

// Probe races the pinger against the timeout. The pinger's context is cancelled as soon as
// the race is decided.
func (pr *Prober) Probe(ctx context.Context) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, pr.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- pr.p.Probe(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	res := classifyProbe(err)
	res.CheckedAt = pr.now()
	observability.ObserveProbe(res.Reachable)
	return res
}

// answeredEmpty reports a backend reply for an empty single-row read or a missing object.
func answeredEmpty(err error) bool {
	var re *domain.RemoteError
	if !errors.As(err, &re) {
		return false
	}
	return re.Code == "PGRST116" || strings.Contains(strings.ToLower(re.Message), "does not exist")
}

func classifyProbe(err error) ProbeResult {
	switch {
	case err == nil:
		return ProbeResult{Reachable: true, Message: "remote store reachable"}
	case errors.Is(err, domain.ErrRelationMissing), answeredEmpty(err):
		// the backend answered; only the table or row is absent
		return ProbeResult{Reachable: true, Message: "remote store reachable: " + err.Error()}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, domain.ErrUnreachable):
		return ProbeResult{Message: "remote store unavailable"}
	}
	return ProbeResult{Message: err.Error()}
}
