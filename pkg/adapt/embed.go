package adapt

import "time"

type EmbedType string

const (
	EmbedRich  EmbedType = "rich"
	EmbedImage EmbedType = "image"
	EmbedVideo EmbedType = "video"
	EmbedMeta  EmbedType = "meta"
)

type EmbedAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type Embed struct {
	Type        EmbedType    `json:"type"`
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Image       string       `json:"image,omitempty"`
	Thumbnail   string       `json:"thumbnail,omitempty"`
	Color       *int         `json:"color,omitempty"`
	Hue         *int         `json:"hue,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Author      *EmbedAuthor `json:"author,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedBuilder собирает Embed цепочкой вызовов:
//
//	e := adapt.NewEmbed().Title("pong").Color(0x5865f2).Field("latency", "12ms", true).Build()
type EmbedBuilder struct {
	e Embed
}

func NewEmbed() *EmbedBuilder {
	return &EmbedBuilder{e: Embed{Type: EmbedRich}}
}

func (b *EmbedBuilder) Type(t EmbedType) *EmbedBuilder {
	b.e.Type = t
	return b
}

func (b *EmbedBuilder) Title(s string) *EmbedBuilder {
	b.e.Title = s
	return b
}

func (b *EmbedBuilder) Description(s string) *EmbedBuilder {
	b.e.Description = s
	return b
}

func (b *EmbedBuilder) URL(s string) *EmbedBuilder {
	b.e.URL = s
	return b
}

func (b *EmbedBuilder) Image(s string) *EmbedBuilder {
	b.e.Image = s
	return b
}

func (b *EmbedBuilder) Thumbnail(s string) *EmbedBuilder {
	b.e.Thumbnail = s
	return b
}

func (b *EmbedBuilder) Author(a EmbedAuthor) *EmbedBuilder {
	b.e.Author = &a
	return b
}

func (b *EmbedBuilder) Footer(f EmbedFooter) *EmbedBuilder {
	b.e.Footer = &f
	return b
}

func (b *EmbedBuilder) Fields(f ...EmbedField) *EmbedBuilder {
	b.e.Fields = f
	return b
}

func (b *EmbedBuilder) Color(c int) *EmbedBuilder {
	b.e.Color = &c
	return b
}

func (b *EmbedBuilder) Hue(h int) *EmbedBuilder {
	b.e.Hue = &h
	return b
}

func (b *EmbedBuilder) Field(name, value string, inline bool) *EmbedBuilder {
	b.e.Fields = append(b.e.Fields, EmbedField{Name: name, Value: value, Inline: inline})
	return b
}

// Timestamp пишется в RFC 3339 (UTC).
func (b *EmbedBuilder) Timestamp(t time.Time) *EmbedBuilder {
	b.e.Timestamp = t.UTC().Format(time.RFC3339)
	return b
}

// Build возвращает копию: билдер можно продолжать менять.
func (b *EmbedBuilder) Build() Embed {
	e := b.e
	e.Fields = append([]EmbedField(nil), b.e.Fields...)
	return e
}
