package adapt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/EgorLis/adaptgo/pkg/codec"
)

type Snowflake = codec.Snowflake

// Kind — строковый тип сущности (тип канала, тип сообщения). Сервер
// иногда шлёт его числом, тогда берутся цифры.
type Kind string

func (k *Kind) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*k = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*k = Kind(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("kind: %w", err)
	}
	*k = Kind(n.String())
	return nil
}

type User struct {
	client *Client

	ID          Snowflake `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Avatar      *string   `json:"avatar"`
	Banner      *string   `json:"banner"`
	Bio         *string   `json:"bio"`
	Flags       int       `json:"flags"`
}

func (u *User) Client() *Client { return u.client }

// Name — отображаемое имя: display_name, иначе username.
func (u *User) Name() string {
	switch {
	case u.DisplayName != "":
		return u.DisplayName
	case u.Username != "":
		return u.Username
	}
	return "Unknown User"
}

func (u *User) String() string { return u.Name() }

// ClientUser — пользователь, под которым залогинен клиент. Видит свой email
// и может менять присутствие.
type ClientUser struct {
	*User
	Email string `json:"email"`
}

func (u *ClientUser) SetPresence(status string) error {
	return u.client.SetPresence(status)
}

type MemberCount struct {
	Total  int  `json:"total"`
	Online *int `json:"online"`
}

type Guild struct {
	client *Client

	ID          Snowflake   `json:"id"`
	Name        string      `json:"name"`
	Description *string     `json:"description"`
	Icon        *string     `json:"icon"`
	Banner      *string     `json:"banner"`
	OwnerID     Snowflake   `json:"owner_id"`
	Flags       int         `json:"flags"`
	MemberCount MemberCount `json:"member_count"`
	VanityURL   *string     `json:"vanity_url"`
	Channels    []*Channel  `json:"channels"`
}

func (g *Guild) Client() *Client { return g.client }

// attach привязывает гильдию и её каналы к клиенту.
func (g *Guild) attach(c *Client) {
	g.client = c
	for _, ch := range g.Channels {
		if ch == nil {
			continue
		}
		ch.client = c
		ch.Guild = g
	}
}

type Channel struct {
	client *Client
	// Guild — nil для личных каналов и пока гильдия не загружена.
	Guild *Guild `json:"-"`

	ID          Snowflake `json:"id"`
	GuildID     Snowflake `json:"guild_id"`
	Type        Kind      `json:"type"`
	Topic       *string   `json:"topic"`
	NSFW        bool      `json:"nsfw"`
	Locked      bool      `json:"locked"`
	Slowmode    int       `json:"slowmode"`
	LastMessage *Message  `json:"last_message"`
	Name        string    `json:"name"`
	Color       *string   `json:"color"`
	Icon        *string   `json:"icon"`
	Position    int       `json:"position"`
	Overwrites  []any     `json:"overwrites"`
	ParentID    Snowflake `json:"parent_id"`
}

func (ch *Channel) Client() *Client { return ch.client }

// Send — POST /channels/{id}/messages.
func (ch *Channel) Send(ctx context.Context, opts CreateMessageOptions) (*Message, error) {
	return ch.client.sendMessage(ctx, ch.ID, opts)
}

type Attachment struct {
	Alt      string `json:"alt"`
	Filename string `json:"filename"`
}

type MessageReference struct {
	MessageID Snowflake `json:"message_id"`
	ChannelID Snowflake `json:"channel_id,omitempty"`
	GuildID   Snowflake `json:"guild_id,omitempty"`
}

type Message struct {
	client *Client
	// Channel — из кеша каналов; nil, если канал клиенту не известен.
	Channel *Channel `json:"-"`

	ID          Snowflake          `json:"id"`
	Nonce       *string            `json:"nonce"`
	ChannelID   Snowflake          `json:"channel_id"`
	AuthorID    Snowflake          `json:"author_id"`
	Author      *User              `json:"author"`
	Type        Kind               `json:"type"`
	Content     string             `json:"content"`
	Embeds      []Embed            `json:"embeds"`
	Attachments []Attachment       `json:"attachments"`
	Flags       int                `json:"flags"`
	Stars       int                `json:"stars"`
	Mentions    []any              `json:"mentions"`
	EditedAt    *int64             `json:"edited_at"`
	References  []MessageReference `json:"references"`
}

func (m *Message) Client() *Client { return m.client }

// Reply отправляет ответ в тот же канал со ссылкой на это сообщение.
func (m *Message) Reply(ctx context.Context, content string) (*Message, error) {
	ref := MessageReference{MessageID: m.ID, ChannelID: m.ChannelID}
	if m.Channel != nil {
		ref.GuildID = m.Channel.GuildID
	}
	return m.client.sendMessage(ctx, m.ChannelID, CreateMessageOptions{
		Content:    content,
		References: []MessageReference{ref},
	})
}

// CreateMessageOptions — тело POST /channels/{id}/messages.
// Пустой Nonce заменяется случайным UUID.
type CreateMessageOptions struct {
	Content    string             `json:"content"`
	Embeds     []Embed            `json:"embeds,omitempty"`
	Nonce      string             `json:"nonce,omitempty"`
	References []MessageReference `json:"references,omitempty"`
}

type ChannelCreateOptions struct {
	Name     string    `json:"name"`
	Type     int       `json:"type"`
	SpaceID  Snowflake `json:"space_id,omitempty"`
	ParentID Snowflake `json:"parent_id,omitempty"`
}
