package adapt

import (
	"net/http"
	"time"

	"github.com/EgorLis/adaptgo/pkg/codec"
	"github.com/EgorLis/adaptgo/pkg/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultAPI     = "https://api.adapt.chat"
	DefaultCDN     = "https://convey.adapt.chat"
	DefaultGateway = "https://harmony.adapt.chat"
	DefaultStatus  = "online"
)

// Config — адреса сервисов и статус присутствия при identify.
type Config struct {
	API     string `yaml:"api" json:"api"`
	CDN     string `yaml:"cdn" json:"cdn"`
	Gateway string `yaml:"gateway" json:"gateway"`
	Status  string `yaml:"status" json:"status"`
}

func DefaultConfig() Config {
	return Config{API: DefaultAPI, CDN: DefaultCDN, Gateway: DefaultGateway, Status: DefaultStatus}
}

// merge — пустые поля берутся из умолчаний.
func (c Config) merge() Config {
	d := DefaultConfig()
	if c.API != "" {
		d.API = c.API
	}
	if c.CDN != "" {
		d.CDN = c.CDN
	}
	if c.Gateway != "" {
		d.Gateway = c.Gateway
	}
	if c.Status != "" {
		d.Status = c.Status
	}
	return d
}

// GatewayTuning — тайминги шлюза; нулевые поля -> умолчания gateway.Config.
type GatewayTuning struct {
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	MaxMissedPongs    int
	HelloTimeout      time.Duration
}

type options struct {
	cfg        Config
	codec      codec.Codec
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	httpClient *http.Client
	cacheLimit int
	tuning     GatewayTuning
}

type Option func(*options)

func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

func WithAPI(url string) Option {
	return func(o *options) { o.cfg.API = url }
}

func WithCDN(url string) Option {
	return func(o *options) { o.cfg.CDN = url }
}

func WithGateway(url string) Option {
	return func(o *options) { o.cfg.Gateway = url }
}

func WithStatus(status string) Option {
	return func(o *options) { o.cfg.Status = status }
}

// WithCodec — кодек кадров шлюза (codec.JSON по умолчанию).
func WithCodec(c codec.Codec) Option {
	return func(o *options) { o.codec = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithCacheLimit ограничивает каждый кеш n записями (LRU). 0 — без лимита.
func WithCacheLimit(n int) Option {
	return func(o *options) { o.cacheLimit = n }
}

func WithGatewayTuning(t GatewayTuning) Option {
	return func(o *options) { o.tuning = t }
}
