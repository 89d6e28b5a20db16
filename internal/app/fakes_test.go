package app_test

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"alquiler_floripa/internal/domain"
)

// ---- fakes ----

// fakeTable is an in-memory remote table. When err is set every call fails with it.
type fakeTable[T domain.Record] struct {
	mu    sync.Mutex
	items []T
	err   error
	calls int
	seq   int
}

func (f *fakeTable[T]) call() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeTable[T]) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTable[T]) List(ctx context.Context, q domain.Query) ([]T, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.Apply(f.items, q), nil
}

func (f *fakeTable[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := f.call(); err != nil {
		return zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.Key() == id {
			return it, nil
		}
	}
	return zero, domain.ErrNotFound
}

func (f *fakeTable[T]) Insert(ctx context.Context, in domain.Fields) (T, error) {
	var zero T
	if err := f.call(); err != nil {
		return zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	rec := in.Clone()
	now := time.Date(2025, 1, 1, 0, 0, f.seq, 0, time.UTC)
	rec["id"], rec["created_at"], rec["updated_at"] = "r-"+strconv.Itoa(f.seq), now, now
	v, err := domain.FromFields[T](rec)
	if err != nil {
		return zero, err
	}
	f.items = append(f.items, v)
	return v, nil
}

func (f *fakeTable[T]) Update(ctx context.Context, id string, in domain.Fields) (T, error) {
	var zero T
	if err := f.call(); err != nil {
		return zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		if it.Key() != id {
			continue
		}
		cur, _ := domain.ToFields(it)
		for k, v := range in {
			cur[k] = v
		}
		v, err := domain.FromFields[T](cur)
		if err != nil {
			return zero, err
		}
		f.items[i] = v
		return v, nil
	}
	return zero, domain.ErrNotFound
}

func (f *fakeTable[T]) Delete(ctx context.Context, id string) error {
	if err := f.call(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, it := range f.items {
		if it.Key() == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// fakeCache round-trips values through JSON like the Redis adapter does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *fakeCache) DelPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.store {
		if strings.HasPrefix(k, prefix) {
			delete(c.store, k)
		}
	}
	return nil
}

func (c *fakeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingInvalidator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
