package codec

import (
	"bytes"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

type msgpackCodec struct{}

func (msgpackCodec) Name() string     { return "msgpack" }
func (msgpackCodec) MessageType() int { return websocket.BinaryMessage }

func (msgpackCodec) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c msgpackCodec) Decode(data []byte) (*Envelope, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	root, err := decodeMsgpack(dec, 0)
	if err != nil {
		return nil, &DecodeError{Codec: c.Name(), Err: err}
	}
	return frameFields(c.Name(), root)
}

// decodeMsgpack сам обходит массивы и мапы, чтобы считать глубину;
// скаляры (целые — в int64/uint64, без float) разбирает библиотека.
func decodeMsgpack(dec *msgpack.Decoder, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case msgpcode.IsFixedArray(code) || code == msgpcode.Array16 || code == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		list := make([]any, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			item, err := decodeMsgpack(dec, depth+1)
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil

	case msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, min(n, 1024))
		for i := 0; i < n; i++ {
			k, err := decodeMsgpack(dec, depth+1)
			if err != nil {
				return nil, err
			}
			v, err := decodeMsgpack(dec, depth+1)
			if err != nil {
				return nil, err
			}
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprint(k)
			}
			m[key] = v
		}
		return m, nil
	}
	return dec.DecodeInterfaceLoose()
}
