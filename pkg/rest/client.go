// Package rest — тонкий HTTP-клиент к REST API Adapt: JSON-тела,
// заголовок Authorization с токеном, без ретраев и rate limit.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/EgorLis/adaptgo/pkg/codec"
	"github.com/rs/zerolog"
)

// Observer получает итог каждого запроса (метрики).
type Observer interface {
	RequestDone(method, route string, status int, took time.Duration)
}

type Client struct {
	http *http.Client
	base string
	log  zerolog.Logger
	obs  Observer

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l.With().Str("component", "rest").Logger() }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.obs = o }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New создаёт клиент к API с базовым адресом base (https://api.adapt.chat).
func New(base string, opts ...Option) *Client {
	c := &Client{
		http: &http.Client{Timeout: 10 * time.Second},
		base: strings.TrimRight(base, "/"),
		log:  zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Base() string { return c.base }

// Get — GET path в out. 404 — (false, nil), out не трогается.
func (c *Client) Get(ctx context.Context, path string, out any) (bool, error) {
	err := c.Do(ctx, http.MethodGet, path, nil, out)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, http.MethodDelete, path, nil, nil)
}

// Do выполняет запрос. Не-2xx — *RemoteError (сообщение из тела
// {message, code}, если его удалось прочитать).
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rest: encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	// токен идёт как есть, без схемы
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", tok)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, path, 0, start)
		return fmt.Errorf("rest: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.observe(method, path, resp.StatusCode, start)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rest: read %s %s: %w", method, path, err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("request done")

	if resp.StatusCode/100 != 2 {
		return newRemoteError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	tree, err := codec.DecodeJSON(raw)
	if err != nil {
		return fmt.Errorf("rest: decode %s %s: %w", method, path, err)
	}
	if err := codec.Bind(tree, out); err != nil {
		return fmt.Errorf("rest: bind %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) observe(method, path string, status int, start time.Time) {
	if c.obs != nil {
		c.obs.RequestDone(method, Route(path), status, time.Since(start))
	}
}

// Route сворачивает числовые сегменты пути: /channels/123/messages ->
// /channels/{id}/messages. Нужен, чтобы метки метрик не разрастались.
func Route(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p != "" && isNumeric(p) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
