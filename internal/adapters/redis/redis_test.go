package redisad_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "alquiler_floripa/internal/adapters/redis"
	"alquiler_floripa/internal/domain"
	"alquiler_floripa/internal/mirror"
)

func newRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

func TestCache_GetSetDelPrefix(t *testing.T) {
	mr := newRedis(t)
	c := redisad.NewCache(redisad.NewClient(mr.Addr(), "", 0))
	ctx := context.Background()

	var out map[string]int
	if ok, err := c.Get(ctx, "view:a", &out); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
	_ = c.Set(ctx, "view:a", map[string]int{"n": 1}, 60)

	if ok, err := c.Get(ctx, "view:a", &out); !ok || err != nil || out["n"] != 1 {
		t.Fatalf("expected hit, got %v %v %+v", ok, err, out)
	}
	mr.FastForward(61 * time.Second)
	if ok, _ := c.Get(ctx, "view:a", &out); ok {
		t.Fatalf("ttl not applied")
	}

	// keys written after the fast-forward so only DelPrefix can remove them
	_ = c.Set(ctx, "view:a", 1, 60)
	_ = c.Set(ctx, "view:b", 2, 60)
	_ = c.Set(ctx, "session:x", map[string]int{"n": 3}, 60)
	if !mr.Exists("view:a") || !mr.Exists("view:b") {
		t.Fatalf("view keys not written")
	}
	if err := c.DelPrefix(ctx, "view:"); err != nil {
		t.Fatalf("DelPrefix: %v", err)
	}
	if mr.Exists("view:a") || mr.Exists("view:b") {
		t.Fatalf("view keys should be gone")
	}
	if !mr.Exists("session:x") {
		t.Fatalf("unrelated key removed")
	}
}

func TestKV_BacksMirrorAndPublishes(t *testing.T) {
	mr := newRedis(t)
	kv := redisad.NewKV(redisad.NewClient(mr.Addr(), "", 0), "floripa:")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := kv.Changes(ctx, "aluguel_banners")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	banners := mirror.New[domain.Banner](kv, domain.BannerSchema, mirror.WithNormalizer(domain.NormalizeBanner))
	b, err := banners.Create(context.Background(), map[string]any{"imagen_url": "x.jpg"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("floripa:aluguel_banners") {
		t.Fatalf("mirror key not written under prefix")
	}

	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatalf("no change notification")
	}

	got, err := banners.Get(context.Background(), b.ID)
	if err != nil || got.ImageURL != "x.jpg" {
		t.Fatalf("get: %+v %v", got, err)
	}

	cancel()
	select {
	case _, ok := <-changes:
		if ok {
			<-changes
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("change feed not closed")
	}
}

func TestKV_GetMissing(t *testing.T) {
	mr := newRedis(t)
	kv := redisad.NewKV(redisad.NewClient(mr.Addr(), "", 0), "")
	_, ok, err := kv.Get(context.Background(), "nope")
	if ok || err != nil {
		t.Fatalf("want clean miss, got %v %v", ok, err)
	}
}

func TestKV_UnreachableSurfaces(t *testing.T) {
	mr := newRedis(t)
	kv := redisad.NewKV(redisad.NewClient(mr.Addr(), "", 0), "")
	mr.Close()
	err := kv.Set(context.Background(), "k", []byte("v"))
	if err == nil || errors.Is(err, domain.ErrCapacity) {
		t.Fatalf("want connection error, got %v", err)
	}
}
