// Package codec — кодеки кадров шлюза Adapt (text / binary) и нормализация
// снежинок (snowflake) после декодирования.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Envelope — единица обмена со шлюзом: имя события и произвольные данные.
// Data уже нормализован: все идентификаторы — десятичные строки.
type Envelope struct {
	Event string
	Data  any
}

// Codec — сериализация кадров шлюза. MessageType — тип websocket-сообщения,
// которым кодек пишет кадры (websocket.TextMessage / websocket.BinaryMessage).
type Codec interface {
	Name() string
	MessageType() int
	Encode(v any) ([]byte, error)
	Decode(data []byte) (*Envelope, error)
}

var ErrNoEvent = errors.New("frame has no event")

// MaxDepth — предел вложенности списков/объектов в кадре для бинарных кодеков.
const MaxDepth = 512

var ErrTooDeep = errors.New("frame nesting too deep")

// DecodeError — кадр не разобран. Для соединения это нарушение протокола.
type DecodeError struct {
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec %s: decode: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
	Proto   Codec = protoCodec{}
)

// ByName возвращает кодек по имени: json, msgpack, proto.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSON, nil
	case "msgpack":
		return MsgPack, nil
	case "proto", "protobuf":
		return Proto, nil
	}
	return nil, fmt.Errorf("unknown codec %q", name)
}

// Bind перекладывает нормализованное дерево Data в типизированную структуру
// (по json-тегам).
func Bind(data any, out any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func newEnvelope(codec string, event, op string, data any) (*Envelope, error) {
	name := event
	if name == "" {
		name = op
	}
	if name == "" {
		return nil, &DecodeError{Codec: codec, Err: ErrNoEvent}
	}
	return &Envelope{Event: name, Data: Normalize(data)}, nil
}

// frameFields вытаскивает event/op/data из уже разобранного корня кадра.
func frameFields(codec string, root any) (*Envelope, error) {
	m, ok := asStringMap(root)
	if !ok {
		return nil, &DecodeError{Codec: codec, Err: fmt.Errorf("frame is %T, want object", root)}
	}
	event, _ := m["event"].(string)
	op, _ := m["op"].(string)
	return newEnvelope(codec, event, op, m["data"])
}

func asStringMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = val
		}
		return m, true
	}
	return nil, false
}
