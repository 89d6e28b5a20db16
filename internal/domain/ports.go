package domain

import "context"

// RemoteTable is the hosted relational backend, one table per record kind.
type RemoteTable[T Record] interface {
	List(ctx context.Context, q Query) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Insert(ctx context.Context, f Fields) (T, error)
	Update(ctx context.Context, id string, f Fields) (T, error)
	Delete(ctx context.Context, id string) error
}

// Pinger runs the minimal read used to classify remote reachability.
type Pinger interface {
	Probe(ctx context.Context) error
}

// ObjectStore uploads images and returns their public URL.
type ObjectStore interface {
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// KV is the storage port behind the local mirror.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
	Del(ctx context.Context, key string) error
}

// KVNotifier is implemented by KV backends that can push change notifications.
type KVNotifier interface {
	Changes(ctx context.Context, key string) (<-chan struct{}, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	DelPrefix(ctx context.Context, prefix string) error
}
