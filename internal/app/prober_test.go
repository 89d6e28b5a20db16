package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"alquiler_floripa/internal/app"
	"alquiler_floripa/internal/domain"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Probe(ctx context.Context) error { return f(ctx) }

func TestProber_Classification(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		reachable bool
		msg       string
	}{
		{"ok", nil, true, "remote store reachable"},
		{"missing table", &domain.RemoteError{Op: "probe", Message: "relation missing", Kind: domain.ErrRelationMissing}, true, ""},
		{"no rows", &domain.RemoteError{Op: "probe", Code: "PGRST116", Message: "JSON object requested, multiple (or no) rows returned", Kind: domain.ErrNotFound}, true, ""},
		{"relation does not exist", &domain.RemoteError{Op: "probe", Code: "XX000", Message: `relation "public.banners" does not exist`}, true, ""},
		{"unreachable", &domain.RemoteError{Op: "probe", Message: "dial tcp", Kind: domain.ErrUnreachable}, false, "remote store unavailable"},
		{"other", errors.New("JWT expired"), false, "JWT expired"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := app.NewProber(pingFunc(func(context.Context) error { return tc.err }), time.Second)
			r := p.Probe(context.Background())
			if r.Reachable != tc.reachable {
				t.Fatalf("reachable=%v, want %v (%s)", r.Reachable, tc.reachable, r.Message)
			}
			if tc.msg != "" && r.Message != tc.msg {
				t.Fatalf("message %q, want %q", r.Message, tc.msg)
			}
			if r.CheckedAt.IsZero() {
				t.Fatalf("CheckedAt not set")
			}
		})
	}
}

func TestProber_TimeoutCancelsSlowProbe(t *testing.T) {
	cancelled := make(chan struct{})
	slow := pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	p := app.NewProber(slow, 50*time.Millisecond)

	start := time.Now()
	r := p.Probe(context.Background())
	if r.Reachable || r.Message != "remote store unavailable" {
		t.Fatalf("want degraded, got %+v", r)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("probe did not honor its timeout")
	}
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatalf("slow probe context was not cancelled")
	}
}

func TestProber_IgnoresPingerThatNeverReturns(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	p := app.NewProber(pingFunc(func(context.Context) error { <-block; return nil }), 30*time.Millisecond)
	if r := p.Probe(context.Background()); r.Reachable {
		t.Fatalf("want degraded")
	}
}

func TestMode_Transitions(t *testing.T) {
	m := &app.Mode{}
	if m.Degraded() {
		t.Fatalf("new mode should be reachable")
	}
	m.Degrade("insert failed")
	m.Degrade("second reason ignored")
	if st := m.State(); !st.Degraded || st.Reason != "insert failed" {
		t.Fatalf("state: %+v", st)
	}
	m.Apply(app.ProbeResult{Reachable: true, Message: "ok", CheckedAt: time.Now()})
	if m.Degraded() {
		t.Fatalf("fresh reachable probe should restore remote mode")
	}

	var nilMode *app.Mode
	if nilMode.Degraded() {
		t.Fatalf("nil mode reads as reachable")
	}
	nilMode.Degrade("no session") // must not panic

	modes := app.NewModes(time.Hour)
	if modes.For("a") != modes.For("a") || modes.For("a") == modes.For("b") {
		t.Fatalf("modes must be per session")
	}
	modes.For("a").Degrade("x")
	modes.Drop("a")
	if modes.For("a").Degraded() {
		t.Fatalf("dropped session should start fresh")
	}
}

func TestModes_PrunesExpiredSessions(t *testing.T) {
	modes := app.NewModes(time.Minute)
	modes.For("old").Degrade("remote down")
	modes.For("fresh")

	if n := modes.Prune(time.Now().Add(30 * time.Second)); n != 0 {
		t.Fatalf("pruned %d entries still within the session lifetime", n)
	}
	if n := modes.Prune(time.Now().Add(2 * time.Minute)); n != 2 || modes.Len() != 0 {
		t.Fatalf("pruned %d, %d left", n, modes.Len())
	}
	if modes.For("old").Degraded() {
		t.Fatalf("expired session mode should not be reused")
	}

	keep := app.NewModes(0)
	keep.For("a")
	if n := keep.Prune(time.Now().Add(time.Hour)); n != 0 || keep.Len() != 1 {
		t.Fatalf("zero lifetime should keep entries until Drop")
	}
}
