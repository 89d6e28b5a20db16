package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"alquiler_floripa/internal/adapters/observability"
	"alquiler_floripa/internal/domain"
)

// Create validates in and writes it remotely, falling back to the mirror when the session is
// degraded or the remote write fails.
func (c *Coordinator[T]) Create(ctx context.Context, mode *Mode, in map[string]any) (T, error) {
	var zero T
	f, err := c.schema.Normalize(in, true)
	if err := domain.JoinValidation(err, domain.CheckRequired(f, c.schema.Required)); err != nil {
		return zero, err
	}

	if c.fallback && mode.Degraded() {
		return c.createLocal(ctx, f)
	}

	rec, rerr := c.remote.Insert(ctx, f)
	if rerr == nil {
		c.invalidate(ctx)
		return rec, nil
	}
	if !c.fallback || ctx.Err() != nil {
		return zero, rerr
	}

	log.Warn().Err(rerr).Str("entity", string(c.schema.Collection)).Msg("remote create failed, saving locally")
	mode.Degrade(rerr.Error())
	return c.createLocal(ctx, f)
}

func (c *Coordinator[T]) createLocal(ctx context.Context, f domain.Fields) (T, error) {
	rec, err := c.mirror.Create(ctx, f)
	if err != nil {
		return rec, err
	}
	observability.ObserveFallback(c.schema.Collection, "create")
	c.invalidate(ctx)
	return rec, nil
}

// Update applies a partial change. Immutable fields are dropped from the patch.
func (c *Coordinator[T]) Update(ctx context.Context, mode *Mode, id string, in map[string]any) (T, error) {
	var zero T
	patch, err := c.schema.Normalize(in, false)
	patch = patch.Without(c.schema.Immutable...)
	if err := domain.JoinValidation(err, checkPresent(patch, c.schema.Required)); err != nil {
		return zero, err
	}

	if domain.IsLocalID(id) || (c.fallback && mode.Degraded()) {
		if !c.fallback {
			return zero, domain.ErrNotFound
		}
		rec, err := c.mirror.Update(ctx, id, patch)
		if errors.Is(err, domain.ErrNotFound) && !domain.IsLocalID(id) {
			return zero, fmt.Errorf("%w: remote records cannot be edited while the remote store is unavailable", domain.ErrNotFound)
		}
		if err != nil {
			return zero, err
		}
		observability.ObserveFallback(c.schema.Collection, "update")
		c.invalidate(ctx)
		return rec, nil
	}

	rec, rerr := c.remote.Update(ctx, id, patch)
	if rerr == nil {
		c.invalidate(ctx)
		return rec, nil
	}
	if !c.fallback || ctx.Err() != nil || errors.Is(rerr, domain.ErrNotFound) {
		return zero, rerr
	}

	log.Warn().Err(rerr).Str("entity", string(c.schema.Collection)).Str("id", id).Msg("remote update failed, trying local copy")
	mode.Degrade(rerr.Error())
	rec, err = c.mirror.Update(ctx, id, patch)
	if errors.Is(err, domain.ErrNotFound) {
		return zero, rerr
	}
	if err != nil {
		return zero, err
	}
	observability.ObserveFallback(c.schema.Collection, "update")
	c.invalidate(ctx)
	return rec, nil
}

// Delete is routed by id prefix and never falls back.
func (c *Coordinator[T]) Delete(ctx context.Context, id string) error {
	if domain.IsLocalID(id) {
		if !c.fallback {
			return domain.ErrNotFound
		}
		removed, err := c.mirror.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !removed {
			return domain.ErrNotFound
		}
		c.invalidate(ctx)
		return nil
	}
	if err := c.remote.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// checkPresent rejects required keys submitted blank on update. Absent keys are left as is.
func checkPresent(f domain.Fields, required []string) error {
	var keys []string
	for _, k := range required {
		if _, ok := f[k]; ok {
			keys = append(keys, k)
		}
	}
	return domain.CheckRequired(f, keys)
}
