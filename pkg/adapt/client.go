// Package adapt — клиент чат-сервиса Adapt: шлюз реального времени,
// кеши каналов/гильдий/пользователей и REST-вызовы поверх них.
//
//	c := adapt.New(adapt.WithLogger(log))
//	c.OnMessageCreate(func(m *adapt.Message) {
//		if m.Content == "!ping" {
//			_, _ = m.Reply(ctx, "pong")
//		}
//	})
//	if err := c.Login(ctx, token); err != nil { ... }
package adapt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/EgorLis/adaptgo/pkg/cache"
	"github.com/EgorLis/adaptgo/pkg/codec"
	"github.com/EgorLis/adaptgo/pkg/events"
	"github.com/EgorLis/adaptgo/pkg/gateway"
	"github.com/EgorLis/adaptgo/pkg/rest"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrNoToken = errors.New("adapt: token is required")

type Client struct {
	cfg  Config
	log  zerolog.Logger
	rest *rest.Client
	gw   *gateway.Gateway

	emitter events.Emitter
	closing atomic.Bool

	Channels *ChannelCache
	Guilds   *GuildCache
	Users    *UserCache

	mu    sync.RWMutex
	user  *ClientUser
	token string
	ready *ReadyEvent // последний снимок, ждёт отправки в handleDispatch
}

func New(opts ...Option) *Client {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	cfg := o.cfg.merge()

	c := &Client{
		cfg: cfg,
		log: o.logger.With().Str("component", "adapt").Logger(),
	}

	restOpts := []rest.Option{rest.WithLogger(o.logger), rest.WithHTTPClient(o.httpClient)}
	gwCfg := gateway.Config{
		URL:               cfg.Gateway,
		Status:            cfg.Status,
		Codec:             o.codec,
		HeartbeatInterval: o.tuning.HeartbeatInterval,
		ReconnectDelay:    o.tuning.ReconnectDelay,
		MaxReconnectDelay: o.tuning.MaxReconnectDelay,
		MaxMissedPongs:    o.tuning.MaxMissedPongs,
		HelloTimeout:      o.tuning.HelloTimeout,
		Logger:            &o.logger,
	}
	if o.metrics != nil {
		restOpts = append(restOpts, rest.WithObserver(o.metrics))
		gwCfg.Observer = o.metrics
	}
	c.rest = rest.New(cfg.API, restOpts...)

	var cacheOpts []cache.Option
	if o.cacheLimit > 0 {
		cacheOpts = append(cacheOpts, cache.WithLimit(o.cacheLimit))
	}
	cacheOpts = append(cacheOpts, cache.WithLogger(c.log))
	newCaches(c, cacheOpts...)

	c.gw = gateway.New(gwCfg)
	c.gw.OnReady = c.handleReady
	c.gw.OnDispatch = c.handleDispatch
	c.gw.OnClose = c.handleClose
	c.gw.OnError = func(err error) {
		c.log.Debug().Err(err).Msg("gateway error")
	}
	return c
}

// Login сохраняет токен и запускает соединение со шлюзом. Возвращается
// сразу; готовность — событие ready.
func (c *Client) Login(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoToken
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.rest.SetToken(token)
	c.gw.SetToken(token)
	c.closing.Store(false)
	return c.gw.Connect(ctx)
}

// Close закрывает шлюз без реконнекта. Кеши остаются.
func (c *Client) Close() error {
	c.closing.Store(true)
	return c.gw.Close()
}

// Done закрывается, когда шлюз окончательно остановился.
func (c *Client) Done() <-chan struct{} { return c.gw.Done() }

func (c *Client) State() gateway.State { return c.gw.State() }

func (c *Client) Config() Config { return c.cfg }

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// User — текущий пользователь; nil до первого ready.
func (c *Client) User() *ClientUser {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// REST — низкоуровневый клиент API для вызовов, которых нет в SDK.
func (c *Client) REST() *rest.Client { return c.rest }

// SetPresence шлёт update_presence и запоминает статус для следующих identify.
func (c *Client) SetPresence(status string) error {
	c.gw.SetStatus(status)
	return c.gw.Send(gateway.OpUpdatePresence, map[string]string{"status": status})
}

func (c *Client) sendMessage(ctx context.Context, channelID Snowflake, opts CreateMessageOptions) (*Message, error) {
	if opts.Nonce == "" {
		opts.Nonce = uuid.NewString()
	}
	var m Message
	if err := c.rest.Post(ctx, "/channels/"+channelID.String()+"/messages", opts, &m); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	c.bindMessage(&m)
	return &m, nil
}

func (c *Client) bindMessage(m *Message) {
	m.client = c
	if m.Author != nil {
		m.Author.client = c
	}
	if ch, ok := c.Channels.Get(m.ChannelID); ok {
		m.Channel = ch
	}
}

// ========================= gateway hooks =========================

// handleReady раскладывает снимок по кешам: сначала каналы каждой
// гильдии, затем сама гильдия, затем текущий пользователь.
func (c *Client) handleReady(env *codec.Envelope) {
	var ready ReadyEvent
	if err := codec.Bind(env.Data, &ready); err != nil {
		c.log.Error().Err(err).Msg("malformed ready snapshot")
		return
	}
	for _, g := range ready.Guilds {
		if g == nil {
			continue
		}
		g.attach(c)
		for _, ch := range g.Channels {
			if ch != nil {
				c.Channels.Set(ch.ID, ch)
			}
		}
		c.Guilds.Set(g.ID, g)
	}
	if ready.User != nil && ready.User.User != nil {
		ready.User.client = c
		c.Users.Set(ready.User.ID, ready.User.User)
	}
	ready.Data = env.Data
	c.mu.Lock()
	if ready.User != nil && ready.User.User != nil {
		c.user = ready.User
	}
	c.ready = &ready
	c.mu.Unlock()
	c.log.Info().
		Int("guilds", c.Guilds.Len()).
		Int("channels", c.Channels.Len()).
		Msg("ready snapshot applied")
}

func (c *Client) handleDispatch(env *codec.Envelope) {
	switch env.Event {
	case gateway.EventReady:
		c.mu.Lock()
		ev := c.ready
		c.ready = nil
		c.mu.Unlock()
		if ev == nil {
			// снимок не разобрался — отдаём хотя бы сырые данные
			ev = &ReadyEvent{User: c.User(), Data: env.Data}
		}
		events.Emit(&c.emitter, EventReady, ev)

	case gateway.EventMessageCreate:
		var payload struct {
			Message *Message `json:"message"`
		}
		if err := codec.Bind(env.Data, &payload); err != nil || payload.Message == nil {
			c.log.Warn().Err(err).Msg("malformed message_create")
			return
		}
		c.bindMessage(payload.Message)
		events.Emit(&c.emitter, EventMessageCreate, payload.Message)
	}
	events.Emit(&c.emitter, EventRaw, env)
}

func (c *Client) handleClose(err *gateway.CloseError, reconnect bool) {
	if c.closing.Load() {
		return
	}
	c.log.Warn().Int("code", err.Code).Bool("reconnect", reconnect).Msg("gateway disconnected")
	events.Emit(&c.emitter, EventError, &ErrorEvent{
		Code:      gateway.CloseAbnormal,
		Message:   disconnectMessage,
		Reconnect: reconnect,
		Err:       err,
	})
}
