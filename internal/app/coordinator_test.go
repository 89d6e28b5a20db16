package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"alquiler_floripa/internal/app"
	"alquiler_floripa/internal/domain"
	"alquiler_floripa/internal/mirror"
	"alquiler_floripa/internal/storage/memkv"
)

var errDown = &domain.RemoteError{Op: "insert", Message: "connection refused", Kind: domain.ErrUnreachable}

func casaLinda() map[string]any {
	return map[string]any{
		"titulo":      "Casa Linda",
		"descripcion": "Frente al mar",
		"tipo":        "casa",
		"precio":      "1500",
		"direccion":   "Rua das Gaivotas 100",
		"ciudad":      "Florianópolis",
		"provincia":   "SC",
		"barrio":      "campeche",
	}
}

type propsFixture struct {
	remote *fakeTable[domain.Property]
	kv     *memkv.Store
	coord  *app.Coordinator[domain.Property]
	inv    *countingInvalidator
}

func newPropsFixture(fallback bool) propsFixture {
	remote := &fakeTable[domain.Property]{}
	kv := memkv.New()
	m := mirror.New[domain.Property](kv, domain.PropertySchema, mirror.WithPollInterval(10*time.Millisecond))
	inv := &countingInvalidator{}
	return propsFixture{remote: remote, kv: kv, coord: app.NewCoordinator[domain.Property](remote, m, fallback, inv), inv: inv}
}

func TestCreate_RemoteWhenReachable(t *testing.T) {
	fx := newPropsFixture(true)
	p, err := fx.coord.Create(context.Background(), &app.Mode{}, casaLinda())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if domain.IsLocalID(p.ID) || p.Price != 1500 || p.Currency != "USD" || !p.Available {
		t.Fatalf("unexpected record: %+v", p)
	}
	if fx.inv.Count() != 1 {
		t.Fatalf("want one invalidation, got %d", fx.inv.Count())
	}
}

func TestCreate_DegradedSessionSkipsRemote(t *testing.T) {
	fx := newPropsFixture(true)
	never := make(chan struct{})
	defer close(never)
	prober := app.NewProber(pingFunc(func(context.Context) error { <-never; return nil }), 20*time.Millisecond)

	mode := &app.Mode{}
	mode.Apply(prober.Probe(context.Background()))
	if !mode.Degraded() {
		t.Fatalf("probe timeout should degrade the session")
	}

	p, err := fx.coord.Create(context.Background(), mode, casaLinda())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !domain.IsLocalID(p.ID) {
		t.Fatalf("want local id, got %q", p.ID)
	}
	if fx.remote.Calls() != 0 {
		t.Fatalf("remote should not be contacted, got %d calls", fx.remote.Calls())
	}
	local, _ := fx.coord.Mirror().List(context.Background())
	if len(local) != 1 || local[0].Title != "Casa Linda" {
		t.Fatalf("mirror contents: %+v", local)
	}
}

func TestCreate_RemoteFailureFallsBackAndDegrades(t *testing.T) {
	fx := newPropsFixture(true)
	fx.remote.err = errDown
	mode := &app.Mode{}

	p, err := fx.coord.Create(context.Background(), mode, casaLinda())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !domain.IsLocalID(p.ID) {
		t.Fatalf("want local id, got %q", p.ID)
	}
	if !mode.Degraded() {
		t.Fatalf("session should be degraded after a failed remote write")
	}

	// later writes in the session go straight to the mirror
	calls := fx.remote.Calls()
	if _, err := fx.coord.Create(context.Background(), mode, casaLinda()); err != nil {
		t.Fatalf("second create: %v", err)
	}
	if fx.remote.Calls() != calls {
		t.Fatalf("degraded session contacted the remote store")
	}
}

func TestCreate_ProductionSurfacesRemoteError(t *testing.T) {
	fx := newPropsFixture(false)
	fx.remote.err = errDown
	mode := &app.Mode{}

	_, err := fx.coord.Create(context.Background(), mode, casaLinda())
	if !errors.Is(err, domain.ErrUnreachable) {
		t.Fatalf("want remote error, got %v", err)
	}
	if b, _, _ := fx.kv.Get(context.Background(), "aluguel_propriedades"); len(b) != 0 {
		t.Fatalf("mirror must stay untouched in production")
	}
}

func TestCreate_ValidationBlocksWrites(t *testing.T) {
	fx := newPropsFixture(true)
	in := casaLinda()
	delete(in, "titulo")
	in["precio"] = "-3"

	_, err := fx.coord.Create(context.Background(), &app.Mode{}, in)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want validation error, got %v", err)
	}
	if verr.Fields["titulo"] == "" || verr.Fields["precio"] == "" {
		t.Fatalf("fields: %+v", verr.Fields)
	}
	if fx.remote.Calls() != 0 {
		t.Fatalf("invalid input reached the remote store")
	}
}

func TestCreate_CapacityErrorIsReturned(t *testing.T) {
	remote := &fakeTable[domain.Banner]{err: errDown}
	m := mirror.New[domain.Banner](memkv.New(), domain.BannerSchema, mirror.WithMaxBytes(64))
	coord := app.NewCoordinator[domain.Banner](remote, m, true, nil)

	_, err := coord.Create(context.Background(), &app.Mode{}, map[string]any{
		"imagen_url": "data:image/png;base64," + strings.Repeat("A", 200),
	})
	var cerr *domain.CapacityError
	if !errors.As(err, &cerr) || cerr.Collection != domain.Banners {
		t.Fatalf("want capacity error, got %v", err)
	}
}

func TestUpdate_LocalRecord(t *testing.T) {
	fx := newPropsFixture(true)
	mode := &app.Mode{}
	mode.Degrade("offline")
	p, err := fx.coord.Create(context.Background(), mode, casaLinda())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// local ids are edited locally even once the session is reachable again
	mode.Apply(app.ProbeResult{Reachable: true, CheckedAt: time.Now()})
	up, err := fx.coord.Update(context.Background(), mode, p.ID, map[string]any{"precio": "1800,50", "id": "hijack"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if up.ID != p.ID || up.Price != 1800.5 || up.Title != "Casa Linda" {
		t.Fatalf("unexpected update: %+v", up)
	}
	if !up.UpdatedAt.After(p.UpdatedAt) {
		t.Fatalf("updated_at did not advance")
	}
	if fx.remote.Calls() != 0 {
		t.Fatalf("local update reached the remote store")
	}
}

func TestUpdate_MissingIDs(t *testing.T) {
	fx := newPropsFixture(true)
	mode := &app.Mode{}

	if _, err := fx.coord.Update(context.Background(), mode, "local-404", map[string]any{"titulo": "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("local: want not found, got %v", err)
	}
	if _, err := fx.coord.Update(context.Background(), mode, "r-404", map[string]any{"titulo": "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("remote: want not found, got %v", err)
	}
	if mode.Degraded() {
		t.Fatalf("a remote not-found must not degrade the session")
	}

	mode.Degrade("offline")
	_, err := fx.coord.Update(context.Background(), mode, "r-1", map[string]any{"titulo": "x"})
	if !errors.Is(err, domain.ErrNotFound) || !strings.Contains(err.Error(), "remote store is unavailable") {
		t.Fatalf("degraded remote edit: %v", err)
	}
}

func TestUpdate_RejectsBlankRequired(t *testing.T) {
	fx := newPropsFixture(true)
	_, err := fx.coord.Update(context.Background(), &app.Mode{}, "r-1", map[string]any{"titulo": "  "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestUpdate_RemoteFailureReturnsRemoteError(t *testing.T) {
	fx := newPropsFixture(true)
	created, err := fx.coord.Create(context.Background(), &app.Mode{}, casaLinda())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	fx.remote.err = errDown
	mode := &app.Mode{}
	_, err = fx.coord.Update(context.Background(), mode, created.ID, map[string]any{"titulo": "Nueva"})
	if !errors.Is(err, domain.ErrUnreachable) {
		t.Fatalf("want remote error, got %v", err)
	}
	if !mode.Degraded() {
		t.Fatalf("session should be degraded")
	}
}

func TestDelete_RoutedByPrefix(t *testing.T) {
	fx := newPropsFixture(true)
	ctx := context.Background()
	remoteRec, _ := fx.coord.Create(ctx, &app.Mode{}, casaLinda())
	degraded := &app.Mode{}
	degraded.Degrade("offline")
	localRec, _ := fx.coord.Create(ctx, degraded, casaLinda())

	if err := fx.coord.Delete(ctx, localRec.ID); err != nil {
		t.Fatalf("delete local: %v", err)
	}
	if err := fx.coord.Delete(ctx, localRec.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: want not found, got %v", err)
	}
	before := fx.remote.Calls()
	if err := fx.coord.Delete(ctx, remoteRec.ID); err != nil {
		t.Fatalf("delete remote: %v", err)
	}
	if fx.remote.Calls() != before+1 {
		t.Fatalf("remote delete not issued")
	}
}

func TestList_MergesMirror(t *testing.T) {
	fx := newPropsFixture(true)
	ctx := context.Background()
	if _, err := fx.coord.Create(ctx, &app.Mode{}, casaLinda()); err != nil {
		t.Fatalf("create: %v", err)
	}
	offline := &app.Mode{}
	offline.Degrade("offline")
	in := casaLinda()
	in["titulo"] = "Depto Centro"
	if _, err := fx.coord.Create(ctx, offline, in); err != nil {
		t.Fatalf("create local: %v", err)
	}

	q := domain.Query{}.Order("created_at", true)
	res := fx.coord.List(ctx, q)
	if len(res.Items) != 2 || res.Degraded || !res.Mirror {
		t.Fatalf("merged list: %+v", res)
	}

	fx.remote.err = errDown
	res = fx.coord.List(ctx, q)
	if !res.Degraded || res.RemoteError == "" || len(res.Items) != 1 || res.Items[0].Title != "Depto Centro" {
		t.Fatalf("degraded list: %+v", res)
	}
}

func TestList_ProductionIgnoresMirror(t *testing.T) {
	fx := newPropsFixture(false)
	f, err := domain.NormalizeProperty(casaLinda(), true)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if _, err := fx.coord.Mirror().Create(context.Background(), f); err != nil {
		t.Fatalf("seed mirror: %v", err)
	}
	res := fx.coord.List(context.Background(), domain.Query{})
	if len(res.Items) != 0 || res.Mirror {
		t.Fatalf("production list leaked mirror data: %+v", res)
	}
	if _, err := fx.coord.Watch(context.Background(), domain.Query{}); !errors.Is(err, app.ErrFallbackDisabled) {
		t.Fatalf("watch: want ErrFallbackDisabled, got %v", err)
	}
}

func TestWatch_EmitsAfterLocalWrite(t *testing.T) {
	fx := newPropsFixture(true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := fx.coord.Watch(ctx, domain.Query{})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	offline := &app.Mode{}
	offline.Degrade("offline")
	if _, err := fx.coord.Create(context.Background(), offline, casaLinda()); err != nil {
		t.Fatalf("create: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case res := <-ch:
			if len(res.Items) == 1 && res.Mirror {
				return
			}
		case <-deadline:
			t.Fatalf("no update observed")
		}
	}
}
