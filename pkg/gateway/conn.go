package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// ========================= low-level =========================

func (g *Gateway) dial(ctx context.Context, target string) (*websocket.Conn, error) {
	conn, resp, err := g.cfg.Dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (http %d)", target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	conn.SetReadLimit(g.cfg.ReadLimit)
	return conn, nil
}

func (g *Gateway) setConn(c *websocket.Conn) {
	g.wmu.Lock()
	g.conn = c
	g.wmu.Unlock()
}

// closeConn шлёт close-кадр (если сокет ещё жив) и закрывает транспорт.
func (g *Gateway) closeConn(code int, reason string) {
	g.wmu.Lock()
	defer g.wmu.Unlock()
	if g.conn == nil {
		return
	}
	_ = g.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(500*time.Millisecond))
	_ = g.conn.Close()
	g.conn = nil
}

func (g *Gateway) write(op string, v any) error {
	g.wmu.Lock()
	defer g.wmu.Unlock()
	if g.conn == nil {
		g.log.Debug().Str("op", op).Msg("no connection, frame dropped")
		return nil
	}
	data, err := g.cfg.Codec.Encode(v)
	if err != nil {
		return fmt.Errorf("gateway: encode %s: %w", op, err)
	}
	_ = g.conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
	if err := g.conn.WriteMessage(g.cfg.Codec.MessageType(), data); err != nil {
		return fmt.Errorf("gateway: write %s: %w", op, err)
	}
	g.cfg.Observer.FrameSent(op)
	return nil
}

func (g *Gateway) identify() error {
	token, status := g.credentials()
	return g.write(OpIdentify, identifyFrame{
		Op:     OpIdentify,
		Token:  token,
		Status: status,
		Device: g.cfg.Device,
	})
}

// closeInfo — код и причина из ошибки чтения.
func closeInfo(err error) *CloseError {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: ce.Code, Reason: ce.Text, Err: err}
	}
	return &CloseError{Code: CloseAbnormal, Reason: "connection lost", Err: err}
}

// heartbeat — тикер ping'ов; живёт не дольше одной сессии.
type heartbeat struct {
	g      *Gateway
	ticker *time.Ticker
	missed int
}

func (h *heartbeat) C() <-chan time.Time {
	if h == nil || h.ticker == nil {
		return nil
	}
	return h.ticker.C
}

func (g *Gateway) startHeartbeat(old *heartbeat) *heartbeat {
	old.stop() // hello может прийти повторно
	g.heartbeats.Add(1)
	return &heartbeat{g: g, ticker: time.NewTicker(g.cfg.HeartbeatInterval)}
}

func (h *heartbeat) stop() {
	if h == nil || h.ticker == nil {
		return
	}
	h.ticker.Stop()
	h.ticker = nil
	h.g.heartbeats.Add(-1)
}

func (h *heartbeat) pong() {
	if h != nil {
		h.missed = 0
	}
}
