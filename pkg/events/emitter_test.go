package events

import (
	"reflect"
	"sort"
	"testing"
)

func TestOnceFiresOnce(t *testing.T) {
	t.Parallel()
	var e Emitter
	calls := 0
	e.Once("x", func(any) { calls++ })

	if !e.Emit("x", nil) {
		t.Fatal("first Emit must report a handler")
	}
	e.Emit("x", nil)
	e.Emit("x", nil)
	if calls != 1 {
		t.Fatalf("once handler called %d times, want 1", calls)
	}
	if e.ListenerCount("x") != 0 {
		t.Fatal("once handler must be removed")
	}
}

func TestEmitOrderAndPayload(t *testing.T) {
	t.Parallel()
	var e Emitter
	var got []string
	e.On("msg", func(p any) { got = append(got, "a:"+p.(string)) })
	e.Once("msg", func(p any) { got = append(got, "b:"+p.(string)) })
	e.On("msg", func(p any) { got = append(got, "c:"+p.(string)) })

	e.Emit("msg", "1")
	e.Emit("msg", "2")

	want := []string{"a:1", "b:1", "c:1", "a:2", "c:2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestEmitWithoutHandlers(t *testing.T) {
	t.Parallel()
	var e Emitter
	if e.Emit("nobody", 1) {
		t.Fatal("Emit without handlers must return false")
	}
}

func TestOff(t *testing.T) {
	t.Parallel()
	var e Emitter
	calls := 0
	sub := e.On("x", func(any) { calls++ })
	e.On("x", func(any) {})

	if !e.Off(sub) {
		t.Fatal("Off must report removal")
	}
	if e.Off(sub) {
		t.Fatal("second Off must be a no-op")
	}
	e.Emit("x", nil)
	if calls != 0 {
		t.Fatal("removed handler was called")
	}
	if e.ListenerCount("x") != 1 {
		t.Fatalf("ListenerCount = %d, want 1", e.ListenerCount("x"))
	}
}

func TestReentrantSubscribe(t *testing.T) {
	t.Parallel()
	var e Emitter
	inner := 0
	var self Subscription
	self = e.On("x", func(any) {
		e.On("x", func(any) { inner++ })
		e.Off(self)
	})

	e.Emit("x", nil) // новый обработчик не вызывается в текущем Emit
	if inner != 0 {
		t.Fatalf("handler added during emit ran %d times", inner)
	}
	e.Emit("x", nil)
	if inner != 1 {
		t.Fatalf("inner = %d, want 1", inner)
	}
}

func TestRemoveAllListeners(t *testing.T) {
	t.Parallel()
	var e Emitter
	e.On("a", func(any) {})
	e.On("b", func(any) {})
	e.On("c", func(any) {})

	e.RemoveAllListeners("a")
	names := e.EventNames()
	sort.Strings(names)
	if !reflect.DeepEqual(names, []string{"b", "c"}) {
		t.Fatalf("EventNames = %v", names)
	}
	e.RemoveAllListeners()
	if len(e.EventNames()) != 0 {
		t.Fatal("expected no events after RemoveAllListeners()")
	}
}

func TestTypedEvents(t *testing.T) {
	t.Parallel()
	type ready struct{ User string }
	evReady := Event[ready]("ready")

	var e Emitter
	var got []string
	On(&e, evReady, func(r ready) { got = append(got, r.User) })
	Once(&e, evReady, func(r ready) { got = append(got, "once:"+r.User) })

	Emit(&e, evReady, ready{User: "bot"})
	e.Emit("ready", "not a ready payload")
	Emit(&e, evReady, ready{User: "bot2"})

	want := []string{"bot", "once:bot", "bot2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
