// Package memkv is an in-process domain.KV with change notification.
package memkv

import (
	"context"
	"sync"
)

type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
	subs map[string][]chan struct{}
}

func New() *Store {
	return &Store{data: map[string][]byte{}, subs: map[string][]chan struct{}{}}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte) error {
	b := make([]byte, len(val))
	copy(b, val)
	s.mu.Lock()
	s.data[key] = b
	s.mu.Unlock()
	s.notify(key)
	return nil
}

func (s *Store) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	_, had := s.data[key]
	delete(s.data, key)
	s.mu.Unlock()
	if had {
		s.notify(key)
	}
	return nil
}

// Changes signals after every write to key until ctx is done. Signals coalesce.
func (s *Store) Changes(ctx context.Context, key string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[key] = append(s.subs[key], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		subs := s.subs[key]
		for i, c := range subs {
			if c == ch {
				s.subs[key] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

func (s *Store) notify(key string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs[key] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
