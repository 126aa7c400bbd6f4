// Package events — синхронный диспетчер событий по имени (аналог
// EventEmitter) и типизированный слой поверх него.
package events

import (
	"sync"
)

// Handler получает полезную нагрузку события как есть.
type Handler func(payload any)

// Subscription — ручка подписки, по ней снимается обработчик.
type Subscription struct {
	name string
	id   uint64
}

func (s Subscription) Name() string { return s.name }

type listener struct {
	id   uint64
	fn   Handler
	once bool
}

// Emitter — реестр name -> упорядоченный список обработчиков.
// Нулевое значение готово к работе.
type Emitter struct {
	mu        sync.Mutex
	seq       uint64
	listeners map[string][]listener
}

func (e *Emitter) On(name string, fn Handler) Subscription {
	return e.add(name, fn, false)
}

// Once — обработчик снимается перед первым вызовом.
func (e *Emitter) Once(name string, fn Handler) Subscription {
	return e.add(name, fn, true)
}

func (e *Emitter) add(name string, fn Handler, once bool) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[string][]listener)
	}
	e.seq++
	e.listeners[name] = append(e.listeners[name], listener{id: e.seq, fn: fn, once: once})
	return Subscription{name: name, id: e.seq}
}

// Off снимает обработчик. Повторный Off — no-op; возвращает, был ли он снят.
func (e *Emitter) Off(sub Subscription) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls := e.listeners[sub.name]
	for i, l := range ls {
		if l.id != sub.id {
			continue
		}
		e.setLocked(sub.name, append(ls[:i:i], ls[i+1:]...))
		return true
	}
	return false
}

// RemoveAllListeners без аргументов чистит всё, иначе только перечисленные события.
func (e *Emitter) RemoveAllListeners(names ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(names) == 0 {
		e.listeners = nil
		return
	}
	for _, n := range names {
		delete(e.listeners, n)
	}
}

// Emit вызывает обработчики синхронно, в порядке регистрации.
// Возвращает true, если был хотя бы один обработчик.
func (e *Emitter) Emit(name string, payload any) bool {
	e.mu.Lock()
	ls := e.listeners[name]
	if len(ls) == 0 {
		e.mu.Unlock()
		return false
	}
	// снимок: подписки/отписки из обработчиков не влияют на текущий Emit
	snapshot := make([]listener, len(ls))
	copy(snapshot, ls)
	kept := ls[:0:0]
	for _, l := range ls {
		if !l.once {
			kept = append(kept, l)
		}
	}
	e.setLocked(name, kept)
	e.mu.Unlock()

	for _, l := range snapshot {
		l.fn(payload)
	}
	return true
}

func (e *Emitter) ListenerCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[name])
}

func (e *Emitter) EventNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.listeners))
	for n := range e.listeners {
		names = append(names, n)
	}
	return names
}

func (e *Emitter) setLocked(name string, ls []listener) {
	if len(ls) == 0 {
		delete(e.listeners, name)
		return
	}
	e.listeners[name] = ls
}
