package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

type store[K comparable, V any] interface {
	get(K) (V, bool)
	set(K, V)
	delete(K)
	has(K) bool
	clear()
	len() int
	entries() ([]K, []V)
}

// mapStore — без ограничения размера, порядок обхода не определён.
type mapStore[K comparable, V any] struct {
	m map[K]V
}

func (s *mapStore[K, V]) get(k K) (V, bool) {
	v, ok := s.m[k]
	return v, ok
}

func (s *mapStore[K, V]) has(k K) bool {
	_, ok := s.m[k]
	return ok
}

func (s *mapStore[K, V]) set(k K, v V) {
	s.m[k] = v
}

func (s *mapStore[K, V]) delete(k K) {
	delete(s.m, k)
}

func (s *mapStore[K, V]) clear() {
	clear(s.m)
}

func (s *mapStore[K, V]) len() int {
	return len(s.m)
}

func (s *mapStore[K, V]) entries() ([]K, []V) {
	ks := make([]K, 0, len(s.m))
	vs := make([]V, 0, len(s.m))
	for k, v := range s.m {
		ks = append(ks, k)
		vs = append(vs, v)
	}
	return ks, vs
}

// lruStore — ограниченный кеш; обход от старых к новым.
type lruStore[K comparable, V any] struct {
	l *lru.Cache[K, V]
}

func (s *lruStore[K, V]) get(k K) (V, bool) {
	return s.l.Get(k)
}

func (s *lruStore[K, V]) set(k K, v V) {
	s.l.Add(k, v)
}

func (s *lruStore[K, V]) delete(k K) {
	s.l.Remove(k)
}

func (s *lruStore[K, V]) has(k K) bool {
	return s.l.Contains(k)
}

func (s *lruStore[K, V]) clear() {
	s.l.Purge()
}

func (s *lruStore[K, V]) len() int {
	return s.l.Len()
}

func (s *lruStore[K, V]) entries() ([]K, []V) {
	ks := s.l.Keys()
	vs := make([]V, 0, len(ks))
	out := ks[:0]
	for _, k := range ks {
		// Peek не двигает запись в списке LRU
		if v, ok := s.l.Peek(k); ok {
			out = append(out, k)
			vs = append(vs, v)
		}
	}
	return out, vs
}
