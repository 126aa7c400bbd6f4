package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/EgorLis/adaptgo/pkg/adapt"
	"github.com/EgorLis/adaptgo/pkg/codec"
	"github.com/EgorLis/adaptgo/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const replyTimeout = 10 * time.Second

type Bot struct {
	cfg      BotConfig
	log      zerolog.Logger
	client   *adapt.Client
	registry *prometheus.Registry
	srv      *http.Server
	started  time.Time

	mu     sync.Mutex
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New собирает клиента Adapt по конфигу. Дополнительные опции идут
// после конфиговых и могут их переопределить.
func New(cfg BotConfig, log zerolog.Logger, opts ...adapt.Option) (*Bot, error) {
	c, err := codec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}

	bot := &Bot{
		cfg:      cfg,
		log:      log.With().Str("component", "bot").Logger(),
		registry: prometheus.NewRegistry(),
	}
	mopts := []metrics.Option{metrics.WithRegistry(bot.registry)}
	if cfg.Metrics.Namespace != "" {
		mopts = append(mopts, metrics.WithNamespace(cfg.Metrics.Namespace))
	}
	m := metrics.New(mopts...)

	base := []adapt.Option{
		adapt.WithConfig(cfg.Adapt),
		adapt.WithCodec(c),
		adapt.WithLogger(log),
		adapt.WithMetrics(m),
		adapt.WithCacheLimit(cfg.CacheLimit),
	}
	bot.client = adapt.New(append(base, opts...)...)

	bot.client.OnReady(func(ev *adapt.ReadyEvent) {
		name := "unknown"
		if ev.User != nil && ev.User.User != nil {
			name = ev.User.Name()
		}
		bot.log.Info().Str("user", name).Int("guilds", len(ev.Guilds)).Msg("ready")
	})
	bot.client.OnError(func(ev *adapt.ErrorEvent) {
		bot.log.Warn().Err(ev.Err).Int("code", ev.Code).Bool("reconnect", ev.Reconnect).Msg(ev.Message)
	})
	bot.client.OnMessageCreate(bot.onMessage)
	return bot, nil
}

func (bot *Bot) Client() *adapt.Client { return bot.client }

func (bot *Bot) Start(ctx context.Context) error {
	if bot == nil {
		return errors.New("бот не инициализирован")
	}
	bot.mu.Lock()
	defer bot.mu.Unlock()
	if bot.stopCh != nil {
		return errors.New("уже запущен")
	}
	if bot.cfg.Token == "" {
		return adapt.ErrNoToken
	}

	if err := bot.client.Login(ctx, bot.cfg.Token); err != nil {
		return err
	}
	bot.started = time.Now()
	bot.stopCh = make(chan struct{})

	if bot.cfg.Metrics.Listen != "" {
		bot.srv = &http.Server{
			Addr:              bot.cfg.Metrics.Listen,
			Handler:           bot.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		bot.wg.Add(1)
		go func(srv *http.Server) {
			defer bot.wg.Done()
			bot.log.Info().Str("addr", srv.Addr).Msg("http listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				bot.log.Error().Err(err).Msg("http server")
			}
		}(bot.srv)
	}

	// сторож для остановки
	stopCh, srv := bot.stopCh, bot.srv
	bot.wg.Add(1)
	go func() {
		defer bot.wg.Done()
		<-stopCh
		if srv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = srv.Shutdown(sctx)
			cancel()
		}
		done := bot.client.Done()
		_ = bot.client.Close()
		if done != nil {
			<-done
		}
	}()

	return nil
}

func (bot *Bot) Stop() {
	bot.mu.Lock()
	ch := bot.stopCh
	bot.stopCh = nil
	bot.mu.Unlock()

	if ch != nil {
		close(ch)     // повторный Stop() ничего не делает
		bot.wg.Wait() // ждём сторожа и http-сервер
	}
}

func (bot *Bot) Uptime() time.Duration {
	bot.mu.Lock()
	defer bot.mu.Unlock()
	if bot.started.IsZero() {
		return 0
	}
	return time.Since(bot.started)
}

// onMessage вызывается из цикла шлюза: ответ синхронный, с таймаутом.
func (bot *Bot) onMessage(m *adapt.Message) {
	if self := bot.client.User(); self != nil && m.AuthorID == self.ID {
		return
	}
	text := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(text, bot.cfg.Prefix) {
		return
	}

	author := "unknown"
	if m.Author != nil {
		author = m.Author.Name()
	}
	bot.log.Debug().Str("author", author).Str("channel", m.ChannelID.String()).Msg(text)

	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()
	say := func(s string) {
		if _, err := m.Reply(ctx, s); err != nil {
			bot.log.Error().Err(err).Msg("reply")
		}
	}
	if err := bot.HandleCommand(text, say); err != nil {
		say(fmt.Sprintf("err: %v", err))
	}
}
