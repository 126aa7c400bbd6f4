package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EgorLis/adaptgo/pkg/codec"
	"github.com/gorilla/websocket"
)

// fakeHarmony — httptest-сервер шлюза. script вызывается на каждое
// соединение (n с единицы) и ведёт диалог со стороны сервера.
type fakeHarmony struct {
	Server *httptest.Server
	up     websocket.Upgrader
	conns  atomic.Int32
	script func(n int, c *serverConn)
}

type serverConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func newFakeHarmony(t *testing.T, script func(n int, c *serverConn)) *fakeHarmony {
	t.Helper()
	f := &fakeHarmony{script: script}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := int(f.conns.Add(1))
		f.script(n, &serverConn{t: t, conn: conn})
	}))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *fakeHarmony) URL() string { return f.Server.URL }

func (c *serverConn) send(event string, data any) {
	if err := c.conn.WriteJSON(map[string]any{"event": event, "data": data}); err != nil {
		c.t.Errorf("server write %s: %v", event, err)
	}
}

// readOp читает кадры клиента, пока не встретит нужный op.
func (c *serverConn) readOp(op string) map[string]any {
	for {
		var m map[string]any
		if err := c.conn.ReadJSON(&m); err != nil {
			c.t.Errorf("server waiting for %s: %v", op, err)
			return nil
		}
		if m["op"] == op {
			return m
		}
	}
}

func (c *serverConn) closeWith(code int, text string) {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

// drain читает до ошибки и возвращает её (обычно *websocket.CloseError клиента).
func (c *serverConn) drain() error {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func handshake(c *serverConn) {
	c.readOp(OpIdentify)
	c.send(EventHello, map[string]any{})
	c.send(EventReady, map[string]any{"user": map[string]any{"id": 1}})
}

func fastConfig(url string) Config {
	return Config{
		URL:               url,
		Token:             "tok",
		HeartbeatInterval: 10 * time.Millisecond,
		ReconnectDelay:    20 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
		MaxMissedPongs:    -1,
	}
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func readySignal(g *Gateway) <-chan struct{} {
	ch := make(chan struct{}, 8)
	g.OnDispatch = func(env *codec.Envelope) {
		if env.Event != EventReady {
			return
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return ch
}

func TestIdentifyHelloHeartbeatReady(t *testing.T) {
	t.Parallel()
	identified := make(chan map[string]any, 1)
	pinged := make(chan struct{})
	srv := newFakeHarmony(t, func(n int, c *serverConn) {
		identified <- c.readOp(OpIdentify)
		c.send(EventHello, map[string]any{})
		c.readOp(OpPing)
		close(pinged)
		c.send(EventReady, map[string]any{"user": map[string]any{"id": 1}})
		c.drain()
	})

	cfg := fastConfig(srv.URL())
	cfg.Status = "dnd"
	g := New(cfg)
	var order []string
	var mu sync.Mutex
	g.OnReady = func(*codec.Envelope) {
		mu.Lock()
		order = append(order, "snapshot:"+g.State().String())
		mu.Unlock()
	}
	ready := make(chan struct{})
	g.OnDispatch = func(env *codec.Envelope) {
		mu.Lock()
		order = append(order, env.Event+":"+g.State().String())
		mu.Unlock()
		close(ready)
	}
	if err := g.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	var id map[string]any
	select {
	case id = <-identified:
	case <-time.After(5 * time.Second):
		t.Fatal("no identify")
	}
	if id["token"] != "tok" || id["status"] != "dnd" || id["device"] != "desktop" {
		t.Fatalf("identify = %v", id)
	}
	waitFor(t, pinged, "heartbeat ping")
	waitFor(t, ready, "ready")

	mu.Lock()
	defer mu.Unlock()
	want := []string{"snapshot:identified", "ready:dispatching"}
	if len(order) != 2 || order[0] != want[0] || order[1] != want[1] {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if g.Heartbeats() != 1 {
		t.Fatalf("heartbeats = %d, want 1", g.Heartbeats())
	}
}

func TestReconnectAfterAbnormalClose(t *testing.T) {
	t.Parallel()
	srv := newFakeHarmony(t, func(n int, c *serverConn) {
		handshake(c)
		if n == 1 {
			c.readOp(OpPing)
			c.closeWith(1011, "internal error")
		}
		c.drain()
	})

	g := New(fastConfig(srv.URL()))
	ready := readySignal(g)
	var closes []int
	var reconnectFlags []bool
	var mu sync.Mutex
	g.OnClose = func(err *CloseError, reconnect bool) {
		mu.Lock()
		closes = append(closes, err.Code)
		reconnectFlags = append(reconnectFlags, reconnect)
		mu.Unlock()
	}
	if err := g.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	waitFor(t, ready, "first ready")
	waitFor(t, ready, "ready after reconnect")

	if got := srv.conns.Load(); got != 2 {
		t.Fatalf("connections = %d, want 2", got)
	}
	if g.Heartbeats() != 1 {
		t.Fatalf("heartbeats = %d, want exactly 1", g.Heartbeats())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(closes) != 1 || closes[0] != 1011 || !reconnectFlags[0] {
		t.Fatalf("closes = %v, reconnect = %v", closes, reconnectFlags)
	}
}

func TestNoReconnectAfterAuthFailure(t *testing.T) {
	t.Parallel()
	srv := newFakeHarmony(t, func(n int, c *serverConn) {
		c.readOp(OpIdentify)
		c.closeWith(CloseAuthentication, "invalid token")
		c.drain()
	})

	g := New(fastConfig(srv.URL()))
	var gotErr error
	g.OnError = func(err error) { gotErr = err }
	var reconnect = true
	g.OnClose = func(_ *CloseError, r bool) { reconnect = r }
	if err := g.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, g.Done(), "run loop stop")
	if reconnect {
		t.Fatal("4004 must not schedule a reconnect")
	}
	var ce *CloseError
	if !errors.As(gotErr, &ce) || ce.Code != CloseAuthentication {
		t.Fatalf("OnError = %v", gotErr)
	}
	time.Sleep(100 * time.Millisecond)
	if got := srv.conns.Load(); got != 1 {
		t.Fatalf("connections = %d, want 1", got)
	}
	if g.State() != Idle {
		t.Fatalf("state = %v, want idle", g.State())
	}
}

func TestMalformedFrameClosesAndReconnects(t *testing.T) {
	t.Parallel()
	clientClose := make(chan int, 1)
	srv := newFakeHarmony(t, func(n int, c *serverConn) {
		if n == 1 {
			c.readOp(OpIdentify)
			_ = c.conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
			var ce *websocket.CloseError
			if errors.As(c.drain(), &ce) {
				clientClose <- ce.Code
			}
			return
		}
		handshake(c)
		c.drain()
	})

	g := New(fastConfig(srv.URL()))
	ready := readySignal(g)
	var decodeErr atomic.Bool
	g.OnError = func(err error) {
		var de *codec.DecodeError
		if errors.As(err, &de) {
			decodeErr.Store(true)
		}
	}
	if err := g.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	waitFor(t, ready, "ready after protocol error")
	select {
	case code := <-clientClose:
		if code != CloseProtocolError {
			t.Fatalf("client closed with %d, want %d", code, CloseProtocolError)
		}
	case <-time.After(time.Second):
		t.Fatal("server did not see the client close frame")
	}
	if !decodeErr.Load() {
		t.Fatal("OnError did not get a *codec.DecodeError")
	}
}

func TestMissedPongsForceReconnect(t *testing.T) {
	t.Parallel()
	clientClose := make(chan int, 1)
	srv := newFakeHarmony(t, func(n int, c *serverConn) {
		handshake(c)
		var ce *websocket.CloseError
		if errors.As(c.drain(), &ce) && n == 1 {
			clientClose <- ce.Code
		}
	})

	cfg := fastConfig(srv.URL())
	cfg.MaxMissedPongs = 2
	g := New(cfg)
	ready := readySignal(g)
	if err := g.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	waitFor(t, ready, "first ready")
	select {
	case code := <-clientClose:
		if code != CloseHeartbeatLost {
			t.Fatalf("close code = %d, want %d", code, CloseHeartbeatLost)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no close without pongs")
	}
	waitFor(t, ready, "ready after heartbeat loss")
}

func TestHelloTimeoutForcesReconnect(t *testing.T) {
	t.Parallel()
	clientClose := make(chan int, 1)
	srv := newFakeHarmony(t, func(n int, c *serverConn) {
		if n == 1 {
			// принимаем identify и молчим
			c.readOp(OpIdentify)
			var ce *websocket.CloseError
			if errors.As(c.drain(), &ce) {
				clientClose <- ce.Code
			}
			return
		}
		handshake(c)
		_ = c.drain()
	})

	cfg := fastConfig(srv.URL())
	cfg.HelloTimeout = 50 * time.Millisecond
	g := New(cfg)
	ready := readySignal(g)
	if err := g.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	select {
	case code := <-clientClose:
		if code != CloseHeartbeatLost {
			t.Fatalf("close code = %d, want %d", code, CloseHeartbeatLost)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("session stuck waiting for hello")
	}
	waitFor(t, ready, "ready after hello timeout")
}

func TestPongsKeepConnectionAlive(t *testing.T) {
	t.Parallel()
	srv := newFakeHarmony(t, func(n int, c *serverConn) {
		handshake(c)
		for {
			var m map[string]any
			if err := c.conn.ReadJSON(&m); err != nil {
				return
			}
			if m["op"] == OpPing {
				c.send(EventPong, nil)
			}
		}
	})

	cfg := fastConfig(srv.URL())
	cfg.HeartbeatInterval = 30 * time.Millisecond
	cfg.MaxMissedPongs = 2
	g := New(cfg)
	ready := readySignal(g)
	if err := g.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer g.Close()

	waitFor(t, ready, "ready")
	time.Sleep(200 * time.Millisecond)
	if got := srv.conns.Load(); got != 1 {
		t.Fatalf("connections = %d, want 1 while pongs arrive", got)
	}
}

func TestExplicitCloseIsTerminal(t *testing.T) {
	t.Parallel()
	srv := newFakeHarmony(t, func(n int, c *serverConn) {
		handshake(c)
		c.drain()
	})

	g := New(fastConfig(srv.URL()))
	ready := readySignal(g)
	var errs atomic.Int32
	g.OnError = func(error) { errs.Add(1) }
	var reconnect atomic.Bool
	g.OnClose = func(_ *CloseError, r bool) { reconnect.Store(r) }
	if err := g.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, ready, "ready")

	if err := g.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("second Connect = %v", err)
	}
	_ = g.Close()
	_ = g.Close()
	waitFor(t, g.Done(), "run loop stop")

	if reconnect.Load() || errs.Load() != 0 {
		t.Fatalf("explicit close: reconnect=%v errors=%d", reconnect.Load(), errs.Load())
	}
	if g.State() != Idle || g.Heartbeats() != 0 {
		t.Fatalf("state = %v heartbeats = %d", g.State(), g.Heartbeats())
	}
	if err := g.Send(OpUpdatePresence, map[string]string{"status": "idle"}); err != nil {
		t.Fatalf("Send after close = %v, want silent drop", err)
	}
}

func TestSendWithoutConnectionIsDropped(t *testing.T) {
	t.Parallel()
	g := New(Config{URL: "wss://example.invalid"})
	if err := g.Send(OpUpdatePresence, map[string]string{"status": "dnd"}); err != nil {
		t.Fatalf("Send = %v, want nil", err)
	}
	if g.State() != Idle {
		t.Fatalf("state = %v", g.State())
	}
}

func TestSendWritesEnvelope(t *testing.T) {
	t.Parallel()
	got := make(chan map[string]any, 1)
	srv := newFakeHarmony(t, func(n int, c *serverConn) {
		handshake(c)
		got <- c.readOp(OpUpdatePresence)
		c.drain()
	})

	g := New(fastConfig(srv.URL()))
	ready := readySignal(g)
	if err := g.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer g.Close()
	waitFor(t, ready, "ready")

	if err := g.Send(OpUpdatePresence, map[string]string{"status": "dnd"}); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-got:
		data, _ := m["data"].(map[string]any)
		if data["status"] != "dnd" {
			t.Fatalf("frame = %v", m)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("frame not received")
	}
}

type waitRecorder struct {
	nopObserver
	mu    sync.Mutex
	waits []time.Duration
}

func (r *waitRecorder) Reconnecting(d time.Duration) {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
}

func (r *waitRecorder) snapshot() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.waits...)
}

func TestDialFailureBacksOff(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := &waitRecorder{}
	cfg := fastConfig(srv.URL)
	cfg.Observer = rec
	g := New(cfg)
	var codes []int
	var mu sync.Mutex
	g.OnClose = func(err *CloseError, _ bool) {
		mu.Lock()
		codes = append(codes, err.Code)
		mu.Unlock()
	}
	if err := g.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(rec.snapshot()) < 4 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	_ = g.Close()
	waitFor(t, g.Done(), "run loop stop")

	waits := rec.snapshot()
	if len(waits) < 4 {
		t.Fatalf("waits = %v", waits)
	}
	want := []time.Duration{20 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond}
	for i, w := range want {
		if waits[i] != w {
			t.Fatalf("waits = %v, want prefix %v", waits, want)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if codes[0] != CloseAbnormal {
		t.Fatalf("dial failure closed with %d, want %d", codes[0], CloseAbnormal)
	}
}

func TestWsURL(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"https://harmony.adapt.chat": "wss://harmony.adapt.chat",
		"http://127.0.0.1:8080/ws":   "ws://127.0.0.1:8080/ws",
		"wss://harmony.adapt.chat":   "wss://harmony.adapt.chat",
	}
	for in, want := range cases {
		got, err := wsURL(in)
		if err != nil || got != want {
			t.Errorf("wsURL(%q) = %q, %v", in, got, err)
		}
	}
	for _, bad := range []string{"", "ftp://x"} {
		if _, err := wsURL(bad); err == nil {
			t.Errorf("wsURL(%q) must fail", bad)
		}
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()
	if Dispatching.String() != "dispatching" || !strings.HasPrefix(State(42).String(), "state(") {
		t.Fatal("unexpected State.String")
	}
}
