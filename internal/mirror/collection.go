// Package mirror is the size-bounded local copy of admin writes that could not reach the
// remote store. Each collection lives under one KV key as a JSON array.
package mirror

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"alquiler_floripa/internal/adapters/observability"
	"alquiler_floripa/internal/domain"
)

const (
	DefaultMaxBytes     = 2 * 1024 * 1024
	DefaultPollInterval = time.Second

	// keepOnPrune is how many of the most recent records survive an automatic prune.
	keepOnPrune = 5
)

type options struct {
	maxBytes  int
	poll      time.Duration
	now       func() time.Time
	newID     func(time.Time) string
	normalize func(map[string]any, bool) (domain.Fields, error)
}

type Option func(*options)

func WithMaxBytes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBytes = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.poll = d
		}
	}
}

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func WithIDs(f func(time.Time) string) Option { return func(o *options) { o.newID = f } }

// WithNormalizer coerces raw input before it is stored.
func WithNormalizer(f func(map[string]any, bool) (domain.Fields, error)) Option {
	return func(o *options) { o.normalize = f }
}

// NewLocalID returns local-<unix ms>-<base36 random>.
func NewLocalID(now time.Time) string {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<40))
	if err != nil {
		n = big.NewInt(now.UnixNano())
	}
	return domain.LocalIDPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "-" + n.Text(36)
}

type Usage struct {
	Collection domain.Collection `json:"collection"`
	Key        string            `json:"key"`
	Bytes      int               `json:"bytes"`
	MB         float64           `json:"mb"`
	Records    int               `json:"records"`
}

// Collection stores records of one kind. Read-modify-write cycles are serialized within the
// process; concurrent writers in other processes sharing the KV overwrite each other.
type Collection[T domain.Record] struct {
	kv     domain.KV
	schema domain.Schema
	opts   options
	mu     sync.Mutex
}

func New[T domain.Record](kv domain.KV, schema domain.Schema, opts ...Option) *Collection[T] {
	o := options{
		maxBytes: DefaultMaxBytes,
		poll:     DefaultPollInterval,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    NewLocalID,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &Collection[T]{kv: kv, schema: schema, opts: o}
}

func (c *Collection[T]) Schema() domain.Schema { return c.schema }
func (c *Collection[T]) MaxBytes() int         { return c.opts.maxBytes }

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	items, _, err := c.load(ctx)
	return items, err
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	items, err := c.List(ctx)
	if err != nil {
		return zero, err
	}
	if i := indexOf(items, id); i >= 0 {
		return items[i], nil
	}
	return zero, domain.ErrNotFound
}

// Create assigns a local id and timestamps, then appends the record.
func (c *Collection[T]) Create(ctx context.Context, in map[string]any) (T, error) {
	var zero T
	f, err := c.prepare(in, true)
	if err != nil {
		return zero, err
	}
	now := c.opts.now()
	f["id"] = c.opts.newID(now)
	f["created_at"] = now
	f["updated_at"] = now
	rec, err := domain.FromFields[T](f)
	if err != nil {
		return zero, fmt.Errorf("mirror %s: decode: %w", c.schema.Collection, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, _, err := c.load(ctx)
	if err != nil {
		return zero, err
	}
	b, err := encode(append(clone(items), rec))
	if err != nil {
		return zero, err
	}
	if c.fits(b) {
		return rec, c.save(ctx, b)
	}
	if !c.schema.PruneOnCap || len(items) <= 1 {
		return zero, c.capacityErr(len(b), 0)
	}

	kept := newest(items, keepOnPrune)
	pruned := len(items) - len(kept)
	b, err = encode(append(clone(kept), rec))
	if err != nil {
		return zero, err
	}
	if c.fits(b) {
		log.Warn().Str("collection", string(c.schema.Collection)).Int("pruned", pruned).
			Msg("mirror over capacity, older records removed")
		return rec, c.save(ctx, b)
	}
	kb, err := encode(kept)
	if err != nil {
		return zero, err
	}
	if err := c.save(ctx, kb); err != nil {
		return zero, err
	}
	return zero, c.capacityErr(len(b), pruned)
}

// Update merges fields over the stored record. id, created_at and immutable keys are kept.
func (c *Collection[T]) Update(ctx context.Context, id string, in map[string]any) (T, error) {
	var zero T
	patch, err := c.prepare(in, false)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, _, err := c.load(ctx)
	if err != nil {
		return zero, err
	}
	i := indexOf(items, id)
	if i < 0 {
		return zero, domain.ErrNotFound
	}
	cur, err := domain.ToFields(items[i])
	if err != nil {
		return zero, err
	}
	prev := items[i]
	for k, v := range patch.Without(append([]string{"id", "created_at", "updated_at"}, c.schema.Immutable...)...) {
		cur[k] = v
	}
	cur["updated_at"] = c.nextUpdatedAt(prev, cur)
	rec, err := domain.FromFields[T](cur)
	if err != nil {
		return zero, fmt.Errorf("mirror %s: decode: %w", c.schema.Collection, err)
	}

	next := clone(items)
	next[i] = rec
	b, err := encode(next)
	if err != nil {
		return zero, err
	}
	if !c.fits(b) {
		return zero, c.capacityErr(len(b), 0)
	}
	return rec, c.save(ctx, b)
}

// Delete removes id. A miss writes nothing.
func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, _, err := c.load(ctx)
	if err != nil {
		return false, err
	}
	i := indexOf(items, id)
	if i < 0 {
		return false, nil
	}
	next := append(clone(items[:i]), items[i+1:]...)
	b, err := encode(next)
	if err != nil {
		return false, err
	}
	return true, c.save(ctx, b)
}

func (c *Collection[T]) Usage(ctx context.Context) (Usage, error) {
	items, raw, err := c.load(ctx)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		Collection: c.schema.Collection,
		Key:        c.schema.MirrorKey,
		Bytes:      len(raw),
		MB:         float64(len(raw)) / (1024 * 1024),
		Records:    len(items),
	}, nil
}

func (c *Collection[T]) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.kv.Del(ctx, c.schema.MirrorKey); err != nil {
		return fmt.Errorf("mirror %s: clear: %w", c.schema.Collection, err)
	}
	observability.SetMirrorBytes(c.schema.Collection, 0)
	return nil
}

// Watch emits the current list and then every change until ctx is done. Changes are found by
// polling; backends implementing domain.KVNotifier wake the poller early.
func (c *Collection[T]) Watch(ctx context.Context) <-chan []T {
	out := make(chan []T, 1)
	go func() {
		defer close(out)

		var wake <-chan struct{}
		if n, ok := c.kv.(domain.KVNotifier); ok {
			ch, err := n.Changes(ctx, c.schema.MirrorKey)
			if err != nil {
				log.Warn().Err(err).Str("collection", string(c.schema.Collection)).Msg("mirror change feed unavailable, polling only")
			} else {
				wake = ch
			}
		}

		t := time.NewTicker(c.opts.poll)
		defer t.Stop()

		var last []byte
		first := true
		for {
			items, raw, err := c.load(ctx)
			switch {
			case err != nil:
				if ctx.Err() == nil {
					log.Warn().Err(err).Str("collection", string(c.schema.Collection)).Msg("mirror watch load failed")
				}
			case first || !bytes.Equal(raw, last):
				first = false
				last = raw
				select {
				case out <- items:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-t.C:
			case _, ok := <-wake:
				if !ok {
					wake = nil
				}
			}
		}
	}()
	return out
}

func (c *Collection[T]) prepare(in map[string]any, create bool) (domain.Fields, error) {
	if c.opts.normalize != nil {
		return c.opts.normalize(in, create)
	}
	f := make(domain.Fields, len(in))
	for k, v := range in {
		f[k] = v
	}
	delete(f, "id")
	delete(f, "created_at")
	delete(f, "updated_at")
	return f, nil
}

// nextUpdatedAt returns now, or one nanosecond after the previous value when the clock has
// not advanced past it.
func (c *Collection[T]) nextUpdatedAt(prev T, cur domain.Fields) time.Time {
	now := c.opts.now()
	var last time.Time
	if s, ok := cur["updated_at"].(string); ok {
		last, _ = time.Parse(time.RFC3339Nano, s)
	}
	if last.IsZero() {
		last = prev.Created()
	}
	if !now.After(last) {
		return last.Add(time.Nanosecond)
	}
	return now
}

func (c *Collection[T]) fits(b []byte) bool { return len(b) <= c.opts.maxBytes }

func (c *Collection[T]) capacityErr(size, pruned int) error {
	return &domain.CapacityError{Collection: c.schema.Collection, Bytes: size, Limit: c.opts.maxBytes, Pruned: pruned}
}

func (c *Collection[T]) load(ctx context.Context) ([]T, []byte, error) {
	raw, ok, err := c.kv.Get(ctx, c.schema.MirrorKey)
	if err != nil {
		return nil, nil, fmt.Errorf("mirror %s: read: %w", c.schema.Collection, err)
	}
	if !ok || len(raw) == 0 {
		return []T{}, nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, nil, fmt.Errorf("mirror %s: corrupt data: %w", c.schema.Collection, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, raw, nil
}

func (c *Collection[T]) save(ctx context.Context, b []byte) error {
	if err := c.kv.Set(ctx, c.schema.MirrorKey, b); err != nil {
		if errors.Is(err, domain.ErrCapacity) {
			return c.capacityErr(len(b), 0)
		}
		return fmt.Errorf("mirror %s: write: %w", c.schema.Collection, err)
	}
	observability.SetMirrorBytes(c.schema.Collection, len(b))
	return nil
}

func encode[T any](items []T) ([]byte, error) {
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("mirror: encode: %w", err)
	}
	return b, nil
}

func clone[T any](items []T) []T {
	out := make([]T, len(items), len(items)+1)
	copy(out, items)
	return out
}

func indexOf[T domain.Record](items []T, id string) int {
	for i, it := range items {
		if it.Key() == id {
			return i
		}
	}
	return -1
}

// newest keeps the n most recently created items in their original order.
func newest[T domain.Record](items []T, n int) []T {
	if len(items) <= n {
		return clone(items)
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return items[idx[a]].Created().After(items[idx[b]].Created())
	})
	keep := idx[:n]
	sort.Ints(keep)
	out := make([]T, 0, n+1)
	for _, i := range keep {
		out = append(out, items[i])
	}
	return out
}
