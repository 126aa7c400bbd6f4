package adapt

import (
	"github.com/EgorLis/adaptgo/pkg/codec"
	"github.com/EgorLis/adaptgo/pkg/events"
)

// ReadyEvent — снимок после identify. Data — исходная нагрузка кадра.
type ReadyEvent struct {
	User   *ClientUser `json:"user"`
	Guilds []*Guild    `json:"guilds"`
	Data   any         `json:"-"`
}

// ErrorEvent — обрыв соединения со шлюзом.
type ErrorEvent struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Reconnect bool   `json:"-"`
	Err       error  `json:"-"`
}

func (e *ErrorEvent) Error() string { return e.Message }

func (e *ErrorEvent) Unwrap() error { return e.Err }

type TypingEvent struct {
	ChannelID Snowflake `json:"channel_id"`
	UserID    Snowflake `json:"user_id"`
}

var (
	EventReady         = events.Event[*ReadyEvent]("ready")
	EventMessageCreate = events.Event[*Message]("messageCreate")
	EventError         = events.Event[*ErrorEvent]("error")
	// Зарезервированы, шлюз их пока не присылает.
	EventTypingStart = events.Event[*TypingEvent]("typingStart")
	EventTypingStop  = events.Event[*TypingEvent]("typingStop")
	// EventRaw — каждый кадр шлюза после ready/hello, как есть.
	EventRaw = events.Event[*codec.Envelope]("raw")
)

const disconnectMessage = "The websocket connection has been closed. Attempting to reconnect."

// Events — общий диспетчер: events.On(c.Events(), adapt.EventReady, ...).
func (c *Client) Events() *events.Emitter { return &c.emitter }

func (c *Client) OnReady(fn func(*ReadyEvent)) events.Subscription {
	return events.On(&c.emitter, EventReady, fn)
}

func (c *Client) OnceReady(fn func(*ReadyEvent)) events.Subscription {
	return events.Once(&c.emitter, EventReady, fn)
}

func (c *Client) OnMessageCreate(fn func(*Message)) events.Subscription {
	return events.On(&c.emitter, EventMessageCreate, fn)
}

func (c *Client) OnError(fn func(*ErrorEvent)) events.Subscription {
	return events.On(&c.emitter, EventError, fn)
}

func (c *Client) Off(sub events.Subscription) bool { return c.emitter.Off(sub) }
