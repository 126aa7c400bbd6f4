package events

// Event[T] — имя события с типом полезной нагрузки.
type Event[T any] string

func (ev Event[T]) String() string { return string(ev) }

// On подписывает типизированный обработчик. Нагрузка другого типа
// (кто-то сделал Emit по имени в обход Event) молча пропускается.
func On[T any](e *Emitter, ev Event[T], fn func(T)) Subscription {
	return e.On(string(ev), typed(fn))
}

func Once[T any](e *Emitter, ev Event[T], fn func(T)) Subscription {
	return e.Once(string(ev), typed(fn))
}

func Emit[T any](e *Emitter, ev Event[T], payload T) bool {
	return e.Emit(string(ev), payload)
}

func typed[T any](fn func(T)) Handler {
	return func(p any) {
		if v, ok := p.(T); ok {
			fn(v)
		}
	}
}
