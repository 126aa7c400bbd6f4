package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/gorilla/websocket"
)

type jsonCodec struct{}

func (jsonCodec) Name() string     { return "json" }
func (jsonCodec) MessageType() int { return websocket.TextMessage }

func (jsonCodec) Encode(v any) ([]byte, error) { return json.Marshal(v) }

func (c jsonCodec) Decode(data []byte) (*Envelope, error) {
	root, err := DecodeJSON(data)
	if err != nil {
		return nil, &DecodeError{Codec: c.Name(), Err: err}
	}
	return frameFields(c.Name(), root)
}

// DecodeJSON разбирает произвольный JSON с UseNumber (числа не проходят через
// float64) и нормализует идентификаторы. Этим же пользуется REST-клиент.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return Normalize(out), nil
}

var errTrailingData = errors.New("trailing data after JSON value")

// toTree — Go-значение (структура, мапа) в общее дерево map/slice/json.Number.
func toTree(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
