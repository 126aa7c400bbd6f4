// Package cache — кеш сущностей по идентификатору (каналы, гильдии,
// пользователи) с догрузкой через REST при промахе.
package cache

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// ErrNotFound — Loader сообщает, что сущности нет (404). Наружу не выходит:
// Fetch вернёт (zero, false, nil).
var ErrNotFound = errors.New("entity not found")

// Loader — сетевой источник сущностей (обычно REST).
type Loader[K ~string, V any] interface {
	Load(ctx context.Context, id K) (V, error)
}

// LoaderFunc — адаптер функции к Loader.
type LoaderFunc[K ~string, V any] func(ctx context.Context, id K) (V, error)

func (f LoaderFunc[K, V]) Load(ctx context.Context, id K) (V, error) { return f(ctx, id) }

type Option func(*options)

type options struct {
	limit       int
	loadTimeout time.Duration
	logger      zerolog.Logger
}

const defaultLoadTimeout = 30 * time.Second

// WithLimit ограничивает кеш n записями с вытеснением по LRU.
func WithLimit(n int) Option {
	return func(o *options) { o.limit = n }
}

// WithLoadTimeout — сколько живёт общая загрузка, когда все её ждавшие
// уже ушли. По умолчанию 30s.
func WithLoadTimeout(d time.Duration) Option {
	return func(o *options) { o.loadTimeout = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Cache — потокобезопасная мапа id -> значение. Один id — одна запись.
type Cache[K ~string, V any] struct {
	mu     sync.RWMutex
	store  store[K, V]
	keyOf  func(V) K
	loader Loader[K, V]
	group  singleflight.Group
	log    zerolog.Logger

	loadTimeout time.Duration
}

// New создаёт кеш. keyOf достаёт id из значения (нужен для Create).
func New[K ~string, V any](keyOf func(V) K, opts ...Option) *Cache[K, V] {
	o := options{logger: zerolog.Nop(), loadTimeout: defaultLoadTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.loadTimeout <= 0 {
		o.loadTimeout = defaultLoadTimeout
	}
	c := &Cache[K, V]{keyOf: keyOf, log: o.logger, loadTimeout: o.loadTimeout}
	if o.limit > 0 {
		l, err := lru.New[K, V](o.limit)
		if err == nil {
			c.store = &lruStore[K, V]{l: l}
		}
	}
	if c.store == nil {
		c.store = &mapStore[K, V]{m: make(map[K]V)}
	}
	return c
}

// SetLoader подключает сетевой источник для Fetch.
func (c *Cache[K, V]) SetLoader(l Loader[K, V]) {
	c.mu.Lock()
	c.loader = l
	c.mu.Unlock()
}

func (c *Cache[K, V]) Get(id K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.get(id)
}

func (c *Cache[K, V]) Set(id K, v V) {
	c.mu.Lock()
	c.store.set(id, v)
	c.mu.Unlock()
}

func (c *Cache[K, V]) Delete(id K) {
	c.mu.Lock()
	c.store.delete(id)
	c.mu.Unlock()
}

func (c *Cache[K, V]) Has(id K) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.has(id)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.store.clear()
	c.mu.Unlock()
}

func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.len()
}

func (c *Cache[K, V]) Keys() []K {
	ks, _ := c.snapshot()
	return ks
}

func (c *Cache[K, V]) Values() []V {
	_, vs := c.snapshot()
	return vs
}

// All — перечисление пар id/значение по снимку (кеш можно менять в цикле).
func (c *Cache[K, V]) All() iter.Seq2[K, V] {
	ks, vs := c.snapshot()
	return func(yield func(K, V) bool) {
		for i := range ks {
			if !yield(ks[i], vs[i]) {
				return
			}
		}
	}
}

// Range — как forEach; fn=false прерывает обход.
func (c *Cache[K, V]) Range(fn func(id K, v V) bool) {
	for k, v := range c.All() {
		if !fn(k, v) {
			return
		}
	}
}

// Find возвращает первое значение, удовлетворяющее pred.
func (c *Cache[K, V]) Find(pred func(V) bool) (V, bool) {
	for _, v := range c.All() {
		if pred(v) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func (c *Cache[K, V]) Filter(pred func(V) bool) []V {
	var out []V
	for _, v := range c.All() {
		if pred(v) {
			out = append(out, v)
		}
	}
	return out
}

// Fetch — из кеша, иначе через Loader. Параллельные промахи по одному id
// склеиваются в один запрос. Нет сущности — (zero, false, nil).
// Запрос не зависит от отмены ctx конкретного вызова: ушедший по ctx
// получает ctx.Err(), остальные ждут результат.
func (c *Cache[K, V]) Fetch(ctx context.Context, id K) (V, bool, error) {
	if v, ok := c.Get(id); ok {
		return v, true, nil
	}

	c.mu.RLock()
	loader := c.loader
	c.mu.RUnlock()

	var zero V
	if loader == nil {
		return zero, false, errors.New("cache: no loader configured")
	}

	ch := c.group.DoChan(string(id), func() (any, error) {
		// мог успеть заполнить соседний вызов
		if v, ok := c.Get(id); ok {
			return v, nil
		}
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		v, err := loader.Load(lctx, id)
		if err != nil {
			return nil, err
		}
		c.Set(id, v)
		return v, nil
	})

	var r singleflight.Result
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case r = <-ch:
	}
	res, err, shared := r.Val, r.Err, r.Shared
	if errors.Is(err, ErrNotFound) {
		c.log.Debug().Str("id", string(id)).Msg("entity not found")
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	if shared {
		c.log.Trace().Str("id", string(id)).Msg("fetch coalesced")
	}
	return res.(V), true, nil
}

// Create выполняет запись (create) и кладёт результат под его собственным id.
func (c *Cache[K, V]) Create(ctx context.Context, create func(ctx context.Context) (V, error)) (V, error) {
	v, err := create(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(c.keyOf(v), v)
	return v, nil
}

func (c *Cache[K, V]) snapshot() ([]K, []V) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.entries()
}
