package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/encoding/protowire"
)

// Кадр в protobuf — это один Value (корневой объект кадра):
//
//	message Value {
//	  oneof kind {
//	    bool   null  = 1;
//	    bool   bool  = 2;
//	    sint64 int   = 3;
//	    uint64 uint  = 4;
//	    double float = 5;
//	    string str   = 6;
//	    List   list  = 7;
//	    Map    map   = 8;
//	  }
//	}
//	message List  { repeated Value items = 1; }
//	message Map   { repeated Entry entries = 1; }
//	message Entry { string key = 1; Value value = 2; }
const (
	valueNull   protowire.Number = 1
	valueBool   protowire.Number = 2
	valueInt    protowire.Number = 3
	valueUint   protowire.Number = 4
	valueFloat  protowire.Number = 5
	valueString protowire.Number = 6
	valueList   protowire.Number = 7
	valueMap    protowire.Number = 8

	listItem   protowire.Number = 1
	mapEntry   protowire.Number = 1
	entryKey   protowire.Number = 1
	entryValue protowire.Number = 2
)

type protoCodec struct{}

func (protoCodec) Name() string     { return "proto" }
func (protoCodec) MessageType() int { return websocket.BinaryMessage }

func (protoCodec) Encode(v any) ([]byte, error) {
	tree, err := toTree(v)
	if err != nil {
		return nil, err
	}
	return appendValue(nil, tree)
}

func (c protoCodec) Decode(data []byte) (*Envelope, error) {
	root, err := consumeValue(data, 0)
	if err != nil {
		return nil, &DecodeError{Codec: c.Name(), Err: err}
	}
	return frameFields(c.Name(), root)
}

func appendValue(b []byte, v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		b = protowire.AppendTag(b, valueNull, protowire.VarintType)
		return protowire.AppendVarint(b, 1), nil
	case bool:
		b = protowire.AppendTag(b, valueBool, protowire.VarintType)
		return protowire.AppendVarint(b, protowire.EncodeBool(t)), nil
	case string:
		b = protowire.AppendTag(b, valueString, protowire.BytesType)
		return protowire.AppendString(b, t), nil
	case json.Number:
		return appendNumber(b, t)
	case int64:
		return appendInt(b, t), nil
	case int:
		return appendInt(b, int64(t)), nil
	case int32:
		return appendInt(b, int64(t)), nil
	case uint64:
		return appendUint(b, t), nil
	case uint32:
		return appendUint(b, uint64(t)), nil
	case float64:
		return appendFloat(b, t), nil
	case float32:
		return appendFloat(b, float64(t)), nil
	case []any:
		var inner []byte
		for _, item := range t {
			enc, err := appendValue(nil, item)
			if err != nil {
				return nil, err
			}
			inner = protowire.AppendTag(inner, listItem, protowire.BytesType)
			inner = protowire.AppendBytes(inner, enc)
		}
		b = protowire.AppendTag(b, valueList, protowire.BytesType)
		return protowire.AppendBytes(b, inner), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var inner []byte
		for _, k := range keys {
			val, err := appendValue(nil, t[k])
			if err != nil {
				return nil, err
			}
			entry := protowire.AppendTag(nil, entryKey, protowire.BytesType)
			entry = protowire.AppendString(entry, k)
			entry = protowire.AppendTag(entry, entryValue, protowire.BytesType)
			entry = protowire.AppendBytes(entry, val)
			inner = protowire.AppendTag(inner, mapEntry, protowire.BytesType)
			inner = protowire.AppendBytes(inner, entry)
		}
		b = protowire.AppendTag(b, valueMap, protowire.BytesType)
		return protowire.AppendBytes(b, inner), nil
	}
	return nil, fmt.Errorf("proto: unsupported value type %T", v)
}

func appendNumber(b []byte, n json.Number) ([]byte, error) {
	if i, err := n.Int64(); err == nil {
		return appendInt(b, i), nil
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return appendUint(b, u), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("proto: number %q: %w", n, err)
	}
	return appendFloat(b, f), nil
}

func appendInt(b []byte, v int64) []byte {
	b = protowire.AppendTag(b, valueInt, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(v))
}

func appendUint(b []byte, v uint64) []byte {
	b = protowire.AppendTag(b, valueUint, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendFloat(b []byte, v float64) []byte {
	b = protowire.AppendTag(b, valueFloat, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func consumeValue(b []byte, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}
	var out any
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		v, known, n, err := consumeField(num, typ, b, depth)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		if known {
			out = v
		}
		b = b[n:]
	}
	return out, nil
}

func consumeField(num protowire.Number, typ protowire.Type, b []byte, depth int) (any, bool, int, error) {
	want := protowire.VarintType
	switch num {
	case valueFloat:
		want = protowire.Fixed64Type
	case valueString, valueList, valueMap:
		want = protowire.BytesType
	case valueNull, valueBool, valueInt, valueUint:
	default:
		// неизвестное поле — пропускаем
		return nil, false, protowire.ConsumeFieldValue(num, typ, b), nil
	}
	if typ != want {
		return nil, false, 0, fmt.Errorf("proto: field %d has wire type %d", num, typ)
	}

	switch num {
	case valueNull:
		_, n := protowire.ConsumeVarint(b)
		return nil, true, n, nil
	case valueBool:
		x, n := protowire.ConsumeVarint(b)
		return protowire.DecodeBool(x), true, n, nil
	case valueInt:
		x, n := protowire.ConsumeVarint(b)
		return protowire.DecodeZigZag(x), true, n, nil
	case valueUint:
		x, n := protowire.ConsumeVarint(b)
		return x, true, n, nil
	case valueFloat:
		x, n := protowire.ConsumeFixed64(b)
		return math.Float64frombits(x), true, n, nil
	case valueString:
		s, n := protowire.ConsumeString(b)
		return s, true, n, nil
	case valueList:
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, false, n, nil
		}
		list, err := consumeList(raw, depth+1)
		return list, true, n, err
	default:
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, false, n, nil
		}
		m, err := consumeMap(raw, depth+1)
		return m, true, n, err
	}
}

func consumeList(b []byte, depth int) ([]any, error) {
	list := []any{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if num != listItem || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		item, err := consumeValue(raw, depth)
		if err != nil {
			return nil, err
		}
		list = append(list, item)
		b = b[n:]
	}
	return list, nil
}

func consumeMap(b []byte, depth int) (map[string]any, error) {
	m := map[string]any{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if num != mapEntry || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		k, v, err := consumeEntry(raw, depth)
		if err != nil {
			return nil, err
		}
		m[k] = v
		b = b[n:]
	}
	return m, nil
}

func consumeEntry(b []byte, depth int) (string, any, error) {
	var (
		key string
		val any
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", nil, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == entryKey && typ == protowire.BytesType:
			key, n = protowire.ConsumeString(b)
		case num == entryValue && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				v, err := consumeValue(raw, depth)
				if err != nil {
					return "", nil, err
				}
				val = v
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return "", nil, protowire.ParseError(n)
		}
		b = b[n:]
	}
	return key, val, nil
}
