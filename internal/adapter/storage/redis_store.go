package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/whiskey-cellar/internal/core/domain"
	"github.com/rl1809/whiskey-cellar/internal/port"
)

var _ port.KVStore = (*RedisStore)(nil)

const (
	redisVersionKey  = "meta:version"
	redisStoresKey   = "stores"
	redisStorePrefix = "store:"
)

// RedisStore keeps each object store in a hash under prefix. Write
// transactions WATCH the keys they read, buffer their writes and apply them
// with MULTI/EXEC, so a concurrent change aborts instead of being lost.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// OpenRedisStore connects to addr and checks the server answers.
func OpenRedisStore(ctx context.Context, addr, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: connect redis: %v", domain.ErrStoreUnavailable, err)
	}
	return NewRedisStore(client, prefix), nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

func (r *RedisStore) storeKey(name string) string {
	return r.prefix + redisStorePrefix + name
}

func (r *RedisStore) Upgrade(ctx context.Context, fn func(tx port.SchemaTx) error) error {
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		s := &redisSchemaTx{ctx: ctx, tx: tx, r: r, created: map[string]bool{}}
		if err := fn(s); err != nil {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if s.version != nil {
				p.Set(ctx, r.key(redisVersionKey), *s.version, 0)
			}
			for name := range s.created {
				p.SAdd(ctx, r.key(redisStoresKey), name)
			}
			return nil
		})
		return err
	}, r.key(redisVersionKey), r.key(redisStoresKey))
}

func (r *RedisStore) View(ctx context.Context, fn func(tx port.Tx) error) error {
	return fn(&redisTx{ctx: ctx, cmd: r.client, r: r})
}

func (r *RedisStore) Update(ctx context.Context, fn func(tx port.Tx) error) error {
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		t := &redisTx{ctx: ctx, cmd: tx, watch: tx, r: r, writable: true}
		if err := fn(t); err != nil {
			return err
		}
		if len(t.writes) == 0 {
			return nil
		}
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			for _, w := range t.writes {
				if w.del {
					p.HDel(ctx, w.hash, w.field)
				} else {
					p.HSet(ctx, w.hash, w.field, w.value)
				}
			}
			return nil
		})
		return err
	})
}

type redisSchemaTx struct {
	ctx     context.Context
	tx      *redis.Tx
	r       *RedisStore
	version *int
	created map[string]bool
}

func (s *redisSchemaTx) Version() (int, error) {
	if s.version != nil {
		return *s.version, nil
	}
	v, err := s.tx.Get(s.ctx, s.r.key(redisVersionKey)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	version, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("corrupt schema version %q: %w", v, err)
	}
	return version, nil
}

func (s *redisSchemaTx) SetVersion(version int) error {
	s.version = &version
	return nil
}

func (s *redisSchemaTx) HasObjectStore(name string) (bool, error) {
	if s.created[name] {
		return true, nil
	}
	return s.tx.SIsMember(s.ctx, s.r.key(redisStoresKey), name).Result()
}

func (s *redisSchemaTx) CreateObjectStore(name string) error {
	s.created[name] = true
	return nil
}

type redisWrite struct {
	hash  string
	field string
	value []byte
	del   bool
}

// redisReader is the read surface shared by *redis.Client and *redis.Tx.
type redisReader interface {
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

type redisTx struct {
	ctx      context.Context
	cmd      redisReader
	watch    *redis.Tx
	r        *RedisStore
	writable bool
	writes   []redisWrite
}

func (t *redisTx) Bucket(name string) (port.Bucket, error) {
	hash := t.r.storeKey(name)
	if t.watch != nil {
		if err := t.watch.Watch(t.ctx, hash).Err(); err != nil {
			return nil, err
		}
	}
	ok, err := t.cmd.SIsMember(t.ctx, t.r.key(redisStoresKey), name).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrObjectStoreNotFound, name)
	}
	return &redisBucket{tx: t, hash: hash, pending: map[string]redisWrite{}}, nil
}

type redisBucket struct {
	tx      *redisTx
	hash    string
	pending map[string]redisWrite
}

func (b *redisBucket) Get(key []byte) ([]byte, error) {
	if w, ok := b.pending[string(key)]; ok {
		if w.del {
			return nil, port.ErrKeyNotFound
		}
		return w.value, nil
	}
	v, err := b.tx.cmd.HGet(b.tx.ctx, b.hash, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, port.ErrKeyNotFound
	}
	return v, err
}

func (b *redisBucket) ForEach(fn func(key, value []byte) error) error {
	all, err := b.tx.cmd.HGetAll(b.tx.ctx, b.hash).Result()
	if err != nil {
		return err
	}
	for k, w := range b.pending {
		if w.del {
			delete(all, k)
		} else {
			all[k] = string(w.value)
		}
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := fn([]byte(k), []byte(all[k])); err != nil {
			return err
		}
	}
	return nil
}

func (b *redisBucket) Insert(key, value []byte) error {
	if !b.tx.writable {
		return port.ErrTxNotWritable
	}
	if _, err := b.Get(key); err == nil {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateKey, key)
	} else if !errors.Is(err, port.ErrKeyNotFound) {
		return err
	}
	return b.Put(key, value)
}

func (b *redisBucket) Put(key, value []byte) error {
	return b.write(redisWrite{hash: b.hash, field: string(key), value: append([]byte(nil), value...)})
}

func (b *redisBucket) Delete(key []byte) error {
	return b.write(redisWrite{hash: b.hash, field: string(key), del: true})
}

func (b *redisBucket) write(w redisWrite) error {
	if !b.tx.writable {
		return port.ErrTxNotWritable
	}
	b.tx.writes = append(b.tx.writes, w)
	b.pending[w.field] = w
	return nil
}
