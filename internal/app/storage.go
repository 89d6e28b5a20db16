package app

import (
	"context"
	"fmt"

	"alquiler_floripa/internal/domain"
	"alquiler_floripa/internal/mirror"
)

// MirrorAdmin is the part of a mirror collection the storage utility needs.
type MirrorAdmin interface {
	Schema() domain.Schema
	MaxBytes() int
	Usage(ctx context.Context) (mirror.Usage, error)
	Delete(ctx context.Context, id string) (bool, error)
	Clear(ctx context.Context) error
}

type StorageReport struct {
	Collections []mirror.Usage `json:"collections"`
	TotalBytes  int            `json:"total_bytes"`
	TotalMB     float64        `json:"total_mb"`
	LimitBytes  int            `json:"limit_bytes"`
}

// StorageService inspects and cleans the local mirror.
type StorageService struct {
	cols     []MirrorAdmin
	fallback bool
	inv      Invalidator
}

func NewStorageService(fallback bool, inv Invalidator, cols ...MirrorAdmin) *StorageService {
	return &StorageService{cols: cols, fallback: fallback, inv: inv}
}

func (s *StorageService) Usage(ctx context.Context) (StorageReport, error) {
	if !s.fallback {
		return StorageReport{}, ErrFallbackDisabled
	}
	rep := StorageReport{Collections: make([]mirror.Usage, 0, len(s.cols))}
	for _, c := range s.cols {
		u, err := c.Usage(ctx)
		if err != nil {
			return StorageReport{}, err
		}
		rep.Collections = append(rep.Collections, u)
		rep.TotalBytes += u.Bytes
		if c.MaxBytes() > rep.LimitBytes {
			rep.LimitBytes = c.MaxBytes()
		}
	}
	rep.TotalMB = float64(rep.TotalBytes) / (1024 * 1024)
	return rep, nil
}

func (s *StorageService) ClearAll(ctx context.Context) error {
	if !s.fallback {
		return ErrFallbackDisabled
	}
	for _, c := range s.cols {
		if err := c.Clear(ctx); err != nil {
			return err
		}
	}
	s.invalidate(ctx)
	return nil
}

func (s *StorageService) DeleteRecord(ctx context.Context, coll domain.Collection, id string) error {
	if !s.fallback {
		return ErrFallbackDisabled
	}
	for _, c := range s.cols {
		if c.Schema().Collection != coll {
			continue
		}
		removed, err := c.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !removed {
			return domain.ErrNotFound
		}
		s.invalidate(ctx)
		return nil
	}
	return fmt.Errorf("%w: unknown collection %q", domain.ErrNotFound, coll)
}

func (s *StorageService) invalidate(ctx context.Context) {
	if s.inv != nil {
		s.inv.Invalidate(ctx)
	}
}
