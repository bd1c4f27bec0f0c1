package violation

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// SubscriptKind identifies which variant a Subscript holds
type SubscriptKind int

const (
	SubscriptIndex SubscriptKind = iota
	SubscriptBoolKey
	SubscriptIntKey
	SubscriptUintKey
	SubscriptStringKey
)

func (k SubscriptKind) String() string {
	return []string{"index", "bool_key", "int_key", "uint_key", "string_key"}[k]
}

// Subscript addresses a single repeated item or map entry
type Subscript struct {
	kind SubscriptKind
	u    uint64
	i    int64
	b    bool
	s    string
}

// Index returns a repeated-item subscript
func Index(i uint64) Subscript { return Subscript{kind: SubscriptIndex, u: i} }

// BoolKey returns a map subscript for a bool key
func BoolKey(b bool) Subscript { return Subscript{kind: SubscriptBoolKey, b: b} }

// IntKey returns a map subscript for a signed integer key
func IntKey(i int64) Subscript { return Subscript{kind: SubscriptIntKey, i: i} }

// UintKey returns a map subscript for an unsigned integer key
func UintKey(u uint64) Subscript { return Subscript{kind: SubscriptUintKey, u: u} }

// StringKey returns a map subscript for a string key
func StringKey(s string) Subscript { return Subscript{kind: SubscriptStringKey, s: s} }

// Kind returns the active variant
func (s Subscript) Kind() SubscriptKind { return s.kind }

// Value returns the active variant as an untyped value
func (s Subscript) Value() any {
	switch s.kind {
	case SubscriptBoolKey:
		return s.b
	case SubscriptIntKey:
		return s.i
	case SubscriptStringKey:
		return s.s
	default:
		return s.u
	}
}

// String renders the subscript the way it appears inside brackets
func (s Subscript) String() string {
	switch s.kind {
	case SubscriptBoolKey:
		return strconv.FormatBool(s.b)
	case SubscriptIntKey:
		return strconv.FormatInt(s.i, 10)
	case SubscriptStringKey:
		return strconv.Quote(s.s)
	default:
		return strconv.FormatUint(s.u, 10)
	}
}

// MarshalJSON encodes the subscript as a single-key object, e.g. {"index":1}
func (s Subscript) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{s.kind.String(): s.Value()})
}

// UnmarshalJSON decodes the single-key object form
func (s *Subscript) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("subscript must have exactly one key, got %d", len(raw))
	}
	for key, value := range raw {
		switch key {
		case "index":
			var u uint64
			if err := json.Unmarshal(value, &u); err != nil {
				return err
			}
			*s = Index(u)
		case "bool_key":
			var b bool
			if err := json.Unmarshal(value, &b); err != nil {
				return err
			}
			*s = BoolKey(b)
		case "int_key":
			var i int64
			if err := json.Unmarshal(value, &i); err != nil {
				return err
			}
			*s = IntKey(i)
		case "uint_key":
			var u uint64
			if err := json.Unmarshal(value, &u); err != nil {
				return err
			}
			*s = UintKey(u)
		case "string_key":
			var str string
			if err := json.Unmarshal(value, &str); err != nil {
				return err
			}
			*s = StringKey(str)
		default:
			return fmt.Errorf("unknown subscript kind %q", key)
		}
	}
	return nil
}
