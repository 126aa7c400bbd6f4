package gateway

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EgorLis/adaptgo/pkg/codec"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Observer — счётчики для метрик. Вызывается из run loop.
type Observer interface {
	StateChanged(s State)
	FrameReceived(event string)
	FrameSent(op string)
	DecodeFailed()
	HeartbeatSent()
	PongMissed()
	Closed(code int)
	Reconnecting(wait time.Duration)
}

type Config struct {
	URL    string // https://harmony.adapt.chat (http/https переписываются в ws/wss)
	Token  string
	Status string // online по умолчанию
	Device string // desktop по умолчанию

	Codec codec.Codec

	HeartbeatInterval time.Duration // 15s
	ReconnectDelay    time.Duration // первая пауза перед реконнектом, 5s
	MaxReconnectDelay time.Duration // потолок backoff, 60s
	// MaxMissedPongs — сколько ping подряд может остаться без pong.
	// 0 — по умолчанию (2), <0 — проверка выключена.
	MaxMissedPongs int
	// HelloTimeout — сколько ждать hello после identify, потом закрытие 4000.
	// 0 — 2×HeartbeatInterval, но не меньше секунды; <0 — без ограничения.
	HelloTimeout time.Duration
	WriteTimeout time.Duration // 5s
	ReadLimit    int64

	Dialer   *websocket.Dialer
	Logger   *zerolog.Logger
	Observer Observer
}

func (c *Config) setDefaults() {
	if c.Status == "" {
		c.Status = "online"
	}
	if c.Device == "" {
		c.Device = "desktop"
	}
	if c.Codec == nil {
		c.Codec = codec.JSON
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.MaxReconnectDelay < c.ReconnectDelay {
		c.MaxReconnectDelay = max(60*time.Second, c.ReconnectDelay)
	}
	if c.MaxMissedPongs == 0 {
		c.MaxMissedPongs = 2
	}
	if c.HelloTimeout == 0 {
		c.HelloTimeout = max(2*c.HeartbeatInterval, time.Second)
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 16 << 20
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Observer == nil {
		c.Observer = nopObserver{}
	}
}

type Gateway struct {
	cfg Config
	log zerolog.Logger

	state      atomic.Int32
	heartbeats atomic.Int32

	mu      sync.Mutex
	running bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}

	wmu  sync.Mutex // сериализует запись в websocket
	conn *websocket.Conn

	// "События". Ставятся до Connect, вызываются из run loop.
	OnStateChange func(from, to State)
	// OnReady — снимок ready, до перехода в Dispatching.
	OnReady func(*codec.Envelope)
	// OnDispatch — каждое событие, кроме hello/pong (ready тоже приходит сюда).
	OnDispatch func(*codec.Envelope)
	// OnClose — соединение закрыто; reconnect=false, если это конец.
	OnClose func(err *CloseError, reconnect bool)
	OnError func(error)
}

func New(cfg Config) *Gateway {
	cfg.setDefaults()
	g := &Gateway{cfg: cfg, log: zerolog.Nop()}
	if cfg.Logger != nil {
		g.log = cfg.Logger.With().Str("component", "gateway").Logger()
	}
	return g
}

func (g *Gateway) State() State { return State(g.state.Load()) }

// Heartbeats — сколько heartbeat-тикеров сейчас запущено (0 или 1).
func (g *Gateway) Heartbeats() int { return int(g.heartbeats.Load()) }

func (g *Gateway) SetToken(token string) {
	g.mu.Lock()
	g.cfg.Token = token
	g.mu.Unlock()
}

func (g *Gateway) SetStatus(status string) {
	g.mu.Lock()
	g.cfg.Status = status
	g.mu.Unlock()
}

func (g *Gateway) Codec() codec.Codec { return g.cfg.Codec }

// Connect запускает run loop и сразу возвращается. Ошибки соединения
// приходят через OnClose/OnError. Отмена ctx равносильна Close.
func (g *Gateway) Connect(ctx context.Context) error {
	target, err := wsURL(g.cfg.URL)
	if err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return ErrAlreadyConnected
	}
	loopCtx, cancel := context.WithCancel(ctx)
	g.running = true
	g.closed = false
	g.cancel = cancel
	g.done = make(chan struct{})

	go g.run(loopCtx, target, g.done)
	return nil
}

// Close — явное терминальное закрытие (1000). Повторный вызов — no-op.
// Не ждёт остановки run loop: для этого есть Done.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running || g.closed {
		return nil
	}
	g.closed = true
	g.cancel()
	return nil
}

// Done закрывается, когда run loop остановился. До первого Connect — nil.
func (g *Gateway) Done() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}

// Send оборачивает данные в {op, data} и пишет в сокет. Если соединения
// нет, кадр молча отбрасывается.
func (g *Gateway) Send(op string, data any) error {
	return g.write(op, outFrame{Op: op, Data: data})
}

type outFrame struct {
	Op   string `json:"op"`
	Data any    `json:"data,omitempty"`
}

type identifyFrame struct {
	Op     string `json:"op"`
	Token  string `json:"token"`
	Status string `json:"status"`
	Device string `json:"device"`
}

func (g *Gateway) credentials() (token, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.Token, g.cfg.Status
}

func (g *Gateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func (g *Gateway) setState(s State) {
	old := State(g.state.Swap(int32(s)))
	if old == s {
		return
	}
	g.log.Debug().Stringer("from", old).Stringer("to", s).Msg("state")
	g.cfg.Observer.StateChanged(s)
	if g.OnStateChange != nil {
		g.OnStateChange(old, s)
	}
}

func (g *Gateway) fail(err error) {
	g.log.Warn().Err(err).Msg("gateway error")
	if g.OnError != nil {
		g.OnError(err)
	}
}

// wsURL — http(s) -> ws(s), остальные схемы как есть.
func wsURL(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("gateway: empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.New("gateway: unsupported url scheme " + u.Scheme)
	}
	return u.String(), nil
}

type nopObserver struct{}

func (nopObserver) StateChanged(State)         {}
func (nopObserver) FrameReceived(string)       {}
func (nopObserver) FrameSent(string)           {}
func (nopObserver) DecodeFailed()              {}
func (nopObserver) HeartbeatSent()             {}
func (nopObserver) PongMissed()                {}
func (nopObserver) Closed(int)                 {}
func (nopObserver) Reconnecting(time.Duration) {}
