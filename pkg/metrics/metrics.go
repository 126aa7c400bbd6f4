// Package metrics — Prometheus-метрики шлюза и REST-клиента.
// *Metrics реализует gateway.Observer и rest.Observer.
package metrics

import (
	"strconv"
	"time"

	"github.com/EgorLis/adaptgo/pkg/gateway"
	"github.com/EgorLis/adaptgo/pkg/rest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Config struct {
	Namespace   string
	ConstLabels prometheus.Labels
	Buckets     []float64
	Registry    prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(ns string) Option {
	return func(c *Config) { c.Namespace = ns }
}

func WithConstLabels(l prometheus.Labels) Option {
	return func(c *Config) { c.ConstLabels = l }
}

func WithBuckets(b []float64) Option {
	return func(c *Config) { c.Buckets = b }
}

// WithRegistry — по умолчанию prometheus.DefaultRegisterer.
func WithRegistry(r prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = r }
}

type Metrics struct {
	connects      prometheus.Counter
	closes        *prometheus.CounterVec
	reconnects    prometheus.Counter
	reconnectWait prometheus.Gauge
	framesIn      *prometheus.CounterVec
	framesOut     *prometheus.CounterVec
	decodeErrors  prometheus.Counter
	heartbeats    prometheus.Counter
	missedPongs   prometheus.Counter
	state         prometheus.Gauge

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var (
	_ gateway.Observer = (*Metrics)(nil)
	_ rest.Observer    = (*Metrics)(nil)
)

func New(opts ...Option) *Metrics {
	cfg := Config{
		Namespace: "adapt",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, o := range opts {
		o(&cfg)
	}
	f := promauto.With(cfg.Registry)

	counter := func(sub, name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: sub, Name: name, Help: help, ConstLabels: cfg.ConstLabels,
		})
	}
	counterVec := func(sub, name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: sub, Name: name, Help: help, ConstLabels: cfg.ConstLabels,
		}, labels)
	}

	return &Metrics{
		connects:     counter("gateway", "connects_total", "Gateway transports opened"),
		closes:       counterVec("gateway", "closes_total", "Gateway connections closed, by close code", "code"),
		reconnects:   counter("gateway", "reconnects_total", "Scheduled gateway reconnects"),
		framesIn:     counterVec("gateway", "frames_received_total", "Inbound gateway frames by event", "event"),
		framesOut:    counterVec("gateway", "frames_sent_total", "Outbound gateway frames by op", "op"),
		decodeErrors: counter("gateway", "decode_errors_total", "Malformed inbound frames"),
		heartbeats:   counter("gateway", "heartbeats_total", "Heartbeat pings sent"),
		missedPongs:  counter("gateway", "heartbeat_timeouts_total", "Connections dropped for missing pongs"),
		reconnectWait: f.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: "gateway", Name: "reconnect_wait_seconds",
			Help: "Delay before the pending reconnect", ConstLabels: cfg.ConstLabels,
		}),
		state: f.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: "gateway", Name: "state",
			Help: "Current gateway state (0 idle ... 6 reconnecting)", ConstLabels: cfg.ConstLabels,
		}),
		requests: counterVec("rest", "requests_total", "REST requests by method, route and status", "method", "route", "status"),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: "rest", Name: "request_duration_seconds",
			Help: "REST request latency", ConstLabels: cfg.ConstLabels, Buckets: cfg.Buckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) StateChanged(s gateway.State) {
	m.state.Set(float64(s))
	if s == gateway.AwaitingHello {
		m.connects.Inc()
	}
}

func (m *Metrics) FrameReceived(event string) { m.framesIn.WithLabelValues(event).Inc() }
func (m *Metrics) FrameSent(op string)        { m.framesOut.WithLabelValues(op).Inc() }
func (m *Metrics) DecodeFailed()              { m.decodeErrors.Inc() }
func (m *Metrics) HeartbeatSent()             { m.heartbeats.Inc() }
func (m *Metrics) PongMissed()                { m.missedPongs.Inc() }

func (m *Metrics) Closed(code int) {
	m.closes.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (m *Metrics) Reconnecting(wait time.Duration) {
	m.reconnects.Inc()
	m.reconnectWait.Set(wait.Seconds())
}

// RequestDone — rest.Observer. status 0 — запрос не дошёл до ответа.
func (m *Metrics) RequestDone(method, route string, status int, took time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, route, code).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
