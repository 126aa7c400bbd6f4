package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Snowflake — идентификатор сущности. Всегда строка: 64-битные id не влезают
// в float64 без потерь.
type Snowflake string

func (s Snowflake) String() string { return string(s) }

// UnmarshalJSON принимает и строку, и голое число (цифры берутся как есть).
func (s *Snowflake) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = Snowflake(str)
		return nil
	}
	if !isDigits(string(b)) {
		return fmt.Errorf("snowflake: invalid value %s", b)
	}
	*s = Snowflake(b)
	return nil
}

// IsIDKey — ключ, значение которого считается идентификатором.
func IsIDKey(k string) bool {
	return k == "id" || k == "ids" || strings.HasSuffix(k, "_id") || strings.HasSuffix(k, "_ids")
}

// Normalize рекурсивно переписывает значения id-ключей в десятичные строки.
// Мапы и слайсы меняются на месте.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if IsIDKey(k) {
				t[k] = normalizeID(val)
			} else {
				t[k] = Normalize(val)
			}
		}
		return t
	case map[any]any:
		m, _ := asStringMap(t)
		return Normalize(m)
	case []any:
		for i := range t {
			t[i] = Normalize(t[i])
		}
		return t
	}
	return v
}

func normalizeID(v any) any {
	switch t := v.(type) {
	case []any:
		for i := range t {
			t[i] = normalizeID(t[i])
		}
		return t
	case map[string]any, map[any]any:
		return Normalize(t)
	}
	if s, ok := idString(v); ok {
		return s
	}
	return v
}

func idString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		if isDigits(t.String()) {
			return t.String(), true
		}
		f, err := t.Float64()
		if err != nil {
			return "", false
		}
		return floatID(f)
	case int:
		return strconv.Itoa(t), true
	case int8:
		return strconv.FormatInt(int64(t), 10), true
	case int16:
		return strconv.FormatInt(int64(t), 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint8:
		return strconv.FormatUint(uint64(t), 10), true
	case uint16:
		return strconv.FormatUint(uint64(t), 10), true
	case uint32:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case float32:
		return floatID(float64(t))
	case float64:
		return floatID(t)
	}
	return "", false
}

// до float64 точность уже потеряна, но целое значение отдаём без экспоненты
func floatID(f float64) (string, bool) {
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, 64), true
}

func isDigits(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
