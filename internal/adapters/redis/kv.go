package redisad

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"alquiler_floripa/internal/domain"
)

// KV backs the local mirror with Redis so several API instances share it. Writes publish on
// a per-key channel so watchers in any instance wake up.
type KV struct {
	c      *redis.Client
	prefix string
}

func NewKV(c *redis.Client, prefix string) *KV { return &KV{c: c, prefix: prefix} }

func (k *KV) key(key string) string     { return k.prefix + key }
func (k *KV) channel(key string) string { return k.prefix + key + ":changed" }

func (k *KV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := k.c.Get(ctx, k.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (k *KV) Set(ctx context.Context, key string, val []byte) error {
	if err := k.c.Set(ctx, k.key(key), val, 0).Err(); err != nil {
		return classify(err)
	}
	return k.c.Publish(ctx, k.channel(key), "set").Err()
}

func (k *KV) Del(ctx context.Context, key string) error {
	if err := k.c.Del(ctx, k.key(key)).Err(); err != nil {
		return err
	}
	return k.c.Publish(ctx, k.channel(key), "del").Err()
}

// Changes subscribes to writes of key. The channel closes when ctx is done or the
// subscription drops.
func (k *KV) Changes(ctx context.Context, key string) (<-chan struct{}, error) {
	sub := k.c.Subscribe(ctx, k.channel(key))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// classify maps a maxmemory rejection to domain.ErrCapacity.
func classify(err error) error {
	if strings.HasPrefix(err.Error(), "OOM") {
		return fmt.Errorf("%w: %v", domain.ErrCapacity, err)
	}
	return err
}
