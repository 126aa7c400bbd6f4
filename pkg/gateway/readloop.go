package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

func (g *Gateway) run(ctx context.Context, target string, done chan struct{}) {
	defer func() {
		g.closeConn(CloseNormal, "closing")
		g.setState(Idle)
		g.mu.Lock()
		g.running = false
		g.cancel()
		g.mu.Unlock()
		close(done)
	}()

	bo := &backoff.ExponentialBackOff{
		InitialInterval:     g.cfg.ReconnectDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         g.cfg.MaxReconnectDelay,
	}
	bo.Reset()

	for {
		cerr := g.session(ctx, target, bo)
		g.cfg.Observer.Closed(cerr.Code)

		explicit := ctx.Err() != nil || g.isClosed()
		reconnect := !explicit && !cerr.Terminal()
		g.log.Info().
			Int("code", cerr.Code).
			Str("reason", cerr.Reason).
			Bool("reconnect", reconnect).
			Msg("connection closed")
		if g.OnClose != nil {
			g.OnClose(cerr, reconnect)
		}
		if !explicit {
			g.fail(cerr)
		}
		if !reconnect {
			return
		}

		// подчищаемся и ждём перед новым транспортом
		g.setState(Reconnecting)
		wait := bo.NextBackOff()
		g.cfg.Observer.Reconnecting(wait)
		g.log.Info().Dur("wait", wait).Msg("reconnecting")

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// session — одно соединение от dial до закрытия. Возвращает, чем оно кончилось.
func (g *Gateway) session(ctx context.Context, target string, bo *backoff.ExponentialBackOff) *CloseError {
	g.setState(Connecting)
	conn, err := g.dial(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return &CloseError{Code: CloseNormal, Reason: "closed", Err: ctx.Err()}
		}
		return &CloseError{Code: CloseAbnormal, Reason: "dial failed", Err: err}
	}
	g.setConn(conn)

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	stop := make(chan struct{})
	go readPump(conn, frames, readErr, stop)

	var hb *heartbeat
	defer func() {
		hb.stop()
		close(stop)
		g.closeConn(CloseNormal, "")
	}()

	g.setState(AwaitingHello)
	if err := g.identify(); err != nil {
		g.setState(Closing)
		return &CloseError{Code: CloseAbnormal, Reason: "identify failed", Err: err}
	}

	var helloC <-chan time.Time
	if g.cfg.HelloTimeout > 0 {
		helloTimer := time.NewTimer(g.cfg.HelloTimeout)
		defer helloTimer.Stop()
		helloC = helloTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			g.setState(Closing)
			g.closeConn(CloseNormal, "client closing")
			return &CloseError{Code: CloseNormal, Reason: "closed by client"}

		case err := <-readErr:
			g.setState(Closing)
			return closeInfo(err)

		case <-helloC:
			g.setState(Closing)
			g.closeConn(CloseHeartbeatLost, "hello timeout")
			return &CloseError{Code: CloseHeartbeatLost, Reason: "hello timeout"}

		case <-hb.C():
			if g.cfg.MaxMissedPongs > 0 && hb.missed >= g.cfg.MaxMissedPongs {
				g.cfg.Observer.PongMissed()
				g.setState(Closing)
				g.closeConn(CloseHeartbeatLost, "heartbeat timeout")
				return &CloseError{Code: CloseHeartbeatLost, Reason: "heartbeat timeout"}
			}
			hb.missed++
			if err := g.write(OpPing, outFrame{Op: OpPing}); err != nil {
				g.fail(err)
				continue
			}
			g.cfg.Observer.HeartbeatSent()

		case data := <-frames:
			env, err := g.cfg.Codec.Decode(data)
			if err != nil {
				// битый кадр — нарушение протокола, рвём, реконнект обычный
				g.cfg.Observer.DecodeFailed()
				g.fail(err)
				g.setState(Closing)
				g.closeConn(CloseProtocolError, "malformed frame")
				return &CloseError{Code: CloseProtocolError, Reason: "malformed frame", Err: err}
			}
			g.cfg.Observer.FrameReceived(env.Event)

			switch env.Event {
			case EventHello:
				helloC = nil
				hb = g.startHeartbeat(hb)
				g.setState(Identified)
			case EventPong:
				hb.pong()
			case EventReady:
				if g.OnReady != nil {
					g.OnReady(env)
				}
				g.setState(Dispatching)
				bo.Reset()
				if g.OnDispatch != nil {
					g.OnDispatch(env)
				}
			default:
				if g.OnDispatch != nil {
					g.OnDispatch(env)
				}
			}
		}
	}
}

// readPump только читает сокет; разбор и состояние — в session.
func readPump(conn *websocket.Conn, frames chan<- []byte, readErr chan<- error, stop <-chan struct{}) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case frames <- data:
		case <-stop:
			return
		}
	}
}
