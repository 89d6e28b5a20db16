// Package memtable is an in-process stand-in for the remote store, used by the "memory"
// remote driver and by tests.
package memtable

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"alquiler_floripa/internal/domain"
)

type Table[T domain.Record] struct {
	mu    sync.RWMutex
	items []T
	now   func() time.Time
}

func New[T domain.Record]() *Table[T] {
	return &Table[T]{now: func() time.Time { return time.Now().UTC() }}
}

func (t *Table[T]) List(ctx context.Context, q domain.Query) ([]T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return domain.Apply(t.items, q), nil
}

func (t *Table[T]) Get(ctx context.Context, id string) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, it := range t.items {
		if it.Key() == id {
			return it, nil
		}
	}
	var zero T
	return zero, domain.ErrNotFound
}

func (t *Table[T]) Insert(ctx context.Context, f domain.Fields) (T, error) {
	var zero T
	rec := f.Without("id", "created_at", "updated_at")
	now := t.now()
	rec["id"], rec["created_at"], rec["updated_at"] = uuid.NewString(), now, now
	v, err := domain.FromFields[T](rec)
	if err != nil {
		return zero, err
	}
	t.mu.Lock()
	t.items = append(t.items, v)
	t.mu.Unlock()
	return v, nil
}

func (t *Table[T]) Update(ctx context.Context, id string, f domain.Fields) (T, error) {
	var zero T
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, it := range t.items {
		if it.Key() != id {
			continue
		}
		cur, err := domain.ToFields(it)
		if err != nil {
			return zero, err
		}
		for k, v := range f.Without("id", "created_at") {
			cur[k] = v
		}
		cur["updated_at"] = t.now()
		v, err := domain.FromFields[T](cur)
		if err != nil {
			return zero, err
		}
		t.items[i] = v
		return v, nil
	}
	return zero, domain.ErrNotFound
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, it := range t.items {
		if it.Key() == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// Pinger always answers; the memory driver is never unreachable.
type Pinger struct{}

func (Pinger) Probe(ctx context.Context) error { return ctx.Err() }
