package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"alquiler_floripa/internal/domain"
	"alquiler_floripa/internal/mirror"
)

var ErrFallbackDisabled = errors.New("local fallback is disabled in production")

// Invalidator drops cached public views after a write.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// InvalidateFunc adapts a function to Invalidator. It lets writers be built before the
// view cache they invalidate.
type InvalidateFunc func(ctx context.Context)

func (f InvalidateFunc) Invalidate(ctx context.Context) { f(ctx) }

// ListResult is a merged listing plus the flags behind the admin's informational banner.
type ListResult[T domain.Record] struct {
	Items       []T    `json:"items"`
	Degraded    bool   `json:"degraded"` // remote read failed
	Mirror      bool   `json:"mirror"`   // items include local records
	RemoteError string `json:"remote_error,omitempty"`
}

// Coordinator routes one entity's reads and writes between the remote store and the local
// mirror. With fallback disabled it talks to the remote store only.
type Coordinator[T domain.Record] struct {
	schema   domain.Schema
	remote   domain.RemoteTable[T]
	mirror   *mirror.Collection[T]
	fallback bool
	inv      Invalidator
}

func NewCoordinator[T domain.Record](remote domain.RemoteTable[T], m *mirror.Collection[T], fallback bool, inv Invalidator) *Coordinator[T] {
	return &Coordinator[T]{schema: m.Schema(), remote: remote, mirror: m, fallback: fallback, inv: inv}
}

func (c *Coordinator[T]) Schema() domain.Schema { return c.schema }
func (c *Coordinator[T]) Fallback() bool        { return c.fallback }

// Mirror exposes the local collection for the storage utility endpoints.
func (c *Coordinator[T]) Mirror() *mirror.Collection[T] { return c.mirror }

// List never fails: remote errors yield an empty remote part.
func (c *Coordinator[T]) List(ctx context.Context, q domain.Query) ListResult[T] {
	var res ListResult[T]
	remote, err := c.remote.List(ctx, q)
	if err != nil {
		log.Warn().Err(err).Str("entity", string(c.schema.Collection)).Msg("remote list failed")
		res.Degraded = true
		res.RemoteError = err.Error()
		remote = nil
	}
	res.Items = remote
	if c.fallback {
		local, lerr := c.mirror.List(ctx)
		if lerr != nil {
			log.Warn().Err(lerr).Str("entity", string(c.schema.Collection)).Msg("mirror list failed")
		}
		if local = domain.Apply(local, q); len(local) > 0 {
			res.Items = domain.Apply(domain.MergeByID(remote, local), q)
			res.Mirror = domain.HasLocal(res.Items)
		}
	}
	if res.Items == nil {
		res.Items = []T{}
	}
	return res
}

// Get routes by id prefix.
func (c *Coordinator[T]) Get(ctx context.Context, id string) (T, error) {
	if domain.IsLocalID(id) {
		if !c.fallback {
			var zero T
			return zero, domain.ErrNotFound
		}
		return c.mirror.Get(ctx, id)
	}
	return c.remote.Get(ctx, id)
}

// Watch emits a merged listing initially and after every mirror change until ctx is done.
func (c *Coordinator[T]) Watch(ctx context.Context, q domain.Query) (<-chan ListResult[T], error) {
	if !c.fallback {
		return nil, ErrFallbackDisabled
	}
	changes := c.mirror.Watch(ctx)
	out := make(chan ListResult[T], 1)
	go func() {
		defer close(out)
		for range changes {
			res := c.List(ctx, q)
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Coordinator[T]) invalidate(ctx context.Context) {
	if c.inv != nil {
		c.inv.Invalidate(ctx)
	}
}
