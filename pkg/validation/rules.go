package validation

import (
	"time"

	"github.com/platinummonkey/protoguard/pkg/celbridge"
)

// Ignore controls when the rules of a field are skipped
type Ignore int

const (
	// IgnoreUnspecified applies the rules; absence is only an error when
	// Required is set
	IgnoreUnspecified Ignore = iota
	// IgnoreIfZeroValue skips the rules when the value is absent or equal to
	// the zero value of its type
	IgnoreIfZeroValue
	// IgnoreAlways skips the rules unconditionally
	IgnoreAlways
)

var ignoreNames = []string{"unspecified", "if_zero_value", "always"}

func (i Ignore) String() string {
	if i < 0 || int(i) >= len(ignoreNames) {
		return "unknown"
	}
	return ignoreNames[i]
}

// Common holds the settings shared by every rule category
type Common struct {
	Required bool             `yaml:"required,omitempty"`
	Ignore   Ignore           `yaml:"ignore,omitempty"`
	CEL      []celbridge.Rule `yaml:"cel,omitempty"`
	// ErrorMessages overrides the synthesized message per rule id
	ErrorMessages map[string]string `yaml:"error_messages,omitempty"`
}

// Number is the set of Go types backing protobuf numeric fields
type Number interface {
	int32 | int64 | uint32 | uint64 | float32 | float64
}

// NumericRules constrains any of the protobuf numeric types
type NumericRules[T Number] struct {
	Common `yaml:",inline"`

	Const *T  `yaml:"const,omitempty"`
	Lt    *T  `yaml:"lt,omitempty"`
	Lte   *T  `yaml:"lte,omitempty"`
	Gt    *T  `yaml:"gt,omitempty"`
	Gte   *T  `yaml:"gte,omitempty"`
	In    []T `yaml:"in,omitempty"`
	NotIn []T `yaml:"not_in,omitempty"`
	// Finite rejects NaN and infinities; float and double only
	Finite bool `yaml:"finite,omitempty"`
}

// StringFormat selects a well-known string format
type StringFormat int

const (
	FormatNone StringFormat = iota
	FormatEmail
	FormatHostname
	FormatIP
	FormatIPv4
	FormatIPv6
	FormatURI
	FormatURIRef
	FormatAddress
	FormatUUID
	FormatTUUID
	FormatIPWithPrefixLen
	FormatIPv4WithPrefixLen
	FormatIPv6WithPrefixLen
	FormatIPPrefix
	FormatIPv4Prefix
	FormatIPv6Prefix
	FormatHostAndPort
	FormatHTTPHeaderName
	FormatHTTPHeaderValue
)

// StringRules constrains string fields. Lengths count runes unless the name
// says bytes.
type StringRules struct {
	Common `yaml:",inline"`

	Const       *string  `yaml:"const,omitempty"`
	Len         *uint64  `yaml:"len,omitempty"`
	MinLen      *uint64  `yaml:"min_len,omitempty"`
	MaxLen      *uint64  `yaml:"max_len,omitempty"`
	LenBytes    *uint64  `yaml:"len_bytes,omitempty"`
	MinBytes    *uint64  `yaml:"min_bytes,omitempty"`
	MaxBytes    *uint64  `yaml:"max_bytes,omitempty"`
	Pattern     string   `yaml:"pattern,omitempty"`
	Prefix      string   `yaml:"prefix,omitempty"`
	Suffix      string   `yaml:"suffix,omitempty"`
	Contains    string   `yaml:"contains,omitempty"`
	NotContains string   `yaml:"not_contains,omitempty"`
	In          []string `yaml:"in,omitempty"`
	NotIn       []string `yaml:"not_in,omitempty"`

	Format StringFormat `yaml:"format,omitempty"`
	// Strict applies to the HTTP header formats; nil means strict
	Strict *bool `yaml:"strict,omitempty"`
}

// BytesFormat selects a well-known bytes format
type BytesFormat int

const (
	BytesFormatNone BytesFormat = iota
	BytesFormatIP
	BytesFormatIPv4
	BytesFormatIPv6
)

// BytesRules constrains bytes fields
type BytesRules struct {
	Common `yaml:",inline"`

	Const    []byte   `yaml:"const,omitempty"`
	Len      *uint64  `yaml:"len,omitempty"`
	MinLen   *uint64  `yaml:"min_len,omitempty"`
	MaxLen   *uint64  `yaml:"max_len,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty"`
	Prefix   []byte   `yaml:"prefix,omitempty"`
	Suffix   []byte   `yaml:"suffix,omitempty"`
	Contains []byte   `yaml:"contains,omitempty"`
	In       [][]byte `yaml:"in,omitempty"`
	NotIn    [][]byte `yaml:"not_in,omitempty"`

	Format BytesFormat `yaml:"format,omitempty"`
}

// BoolRules constrains bool fields
type BoolRules struct {
	Common `yaml:",inline"`

	Const *bool `yaml:"const,omitempty"`
}

// EnumRules constrains enum fields by value number
type EnumRules struct {
	Common `yaml:",inline"`

	Const       *int32  `yaml:"const,omitempty"`
	DefinedOnly bool    `yaml:"defined_only,omitempty"`
	In          []int32 `yaml:"in,omitempty"`
	NotIn       []int32 `yaml:"not_in,omitempty"`
}

// TimestampRules constrains google.protobuf.Timestamp fields
type TimestampRules struct {
	Common `yaml:",inline"`

	Const  *time.Time     `yaml:"const,omitempty"`
	Lt     *time.Time     `yaml:"lt,omitempty"`
	Lte    *time.Time     `yaml:"lte,omitempty"`
	Gt     *time.Time     `yaml:"gt,omitempty"`
	Gte    *time.Time     `yaml:"gte,omitempty"`
	LtNow  bool           `yaml:"lt_now,omitempty"`
	GtNow  bool           `yaml:"gt_now,omitempty"`
	Within *time.Duration `yaml:"within,omitempty"`
}

// DurationRules constrains google.protobuf.Duration fields
type DurationRules struct {
	Common `yaml:",inline"`

	Const *time.Duration  `yaml:"const,omitempty"`
	Lt    *time.Duration  `yaml:"lt,omitempty"`
	Lte   *time.Duration  `yaml:"lte,omitempty"`
	Gt    *time.Duration  `yaml:"gt,omitempty"`
	Gte   *time.Duration  `yaml:"gte,omitempty"`
	In    []time.Duration `yaml:"in,omitempty"`
	NotIn []time.Duration `yaml:"not_in,omitempty"`
}

// AnyRules constrains the type URL of google.protobuf.Any fields
type AnyRules struct {
	Common `yaml:",inline"`

	In    []string `yaml:"in,omitempty"`
	NotIn []string `yaml:"not_in,omitempty"`
}

// FieldMaskRules constrains google.protobuf.FieldMask fields. A path matches
// a list entry when it equals it or lies below it.
type FieldMaskRules struct {
	Common `yaml:",inline"`

	Const []string `yaml:"const,omitempty"`
	In    []string `yaml:"in,omitempty"`
	NotIn []string `yaml:"not_in,omitempty"`
}

// RepeatedRules constrains list fields and, through Items, their elements
type RepeatedRules struct {
	Common `yaml:",inline"`

	MinItems *uint64     `yaml:"min_items,omitempty"`
	MaxItems *uint64     `yaml:"max_items,omitempty"`
	Unique   bool        `yaml:"unique,omitempty"`
	Items    *FieldRules `yaml:"items,omitempty"`
}

// MapRules constrains map fields and, through Keys and Values, their entries
type MapRules struct {
	Common `yaml:",inline"`

	MinPairs *uint64     `yaml:"min_pairs,omitempty"`
	MaxPairs *uint64     `yaml:"max_pairs,omitempty"`
	Keys     *FieldRules `yaml:"keys,omitempty"`
	Values   *FieldRules `yaml:"values,omitempty"`
}

// MessageRules applies to a field holding a nested message
type MessageRules struct {
	Common `yaml:",inline"`

	// Skip disables validation of the nested message's own rules
	Skip bool `yaml:"skip,omitempty"`
}

// FieldRules holds the rules of one field. At most one category may be set
// and it must match the field type.
type FieldRules struct {
	Float    *NumericRules[float32] `yaml:"float,omitempty"`
	Double   *NumericRules[float64] `yaml:"double,omitempty"`
	Int32    *NumericRules[int32]   `yaml:"int32,omitempty"`
	Int64    *NumericRules[int64]   `yaml:"int64,omitempty"`
	Uint32   *NumericRules[uint32]  `yaml:"uint32,omitempty"`
	Uint64   *NumericRules[uint64]  `yaml:"uint64,omitempty"`
	Sint32   *NumericRules[int32]   `yaml:"sint32,omitempty"`
	Sint64   *NumericRules[int64]   `yaml:"sint64,omitempty"`
	Fixed32  *NumericRules[uint32]  `yaml:"fixed32,omitempty"`
	Fixed64  *NumericRules[uint64]  `yaml:"fixed64,omitempty"`
	Sfixed32 *NumericRules[int32]   `yaml:"sfixed32,omitempty"`
	Sfixed64 *NumericRules[int64]   `yaml:"sfixed64,omitempty"`

	Bool      *BoolRules      `yaml:"bool,omitempty"`
	String    *StringRules    `yaml:"string,omitempty"`
	Bytes     *BytesRules     `yaml:"bytes,omitempty"`
	Enum      *EnumRules      `yaml:"enum,omitempty"`
	Repeated  *RepeatedRules  `yaml:"repeated,omitempty"`
	Map       *MapRules       `yaml:"map,omitempty"`
	Any       *AnyRules       `yaml:"any,omitempty"`
	Duration  *DurationRules  `yaml:"duration,omitempty"`
	Timestamp *TimestampRules `yaml:"timestamp,omitempty"`
	FieldMask *FieldMaskRules `yaml:"field_mask,omitempty"`
	Message   *MessageRules   `yaml:"message,omitempty"`
}

// OneofRules constrains a oneof as a whole
type OneofRules struct {
	Required bool `yaml:"required,omitempty"`
}

// MessageTypeRules holds the rules attached to one message type
type MessageTypeRules struct {
	CEL    []celbridge.Rule      `yaml:"cel,omitempty"`
	Fields map[string]FieldRules `yaml:"fields,omitempty"`
	Oneofs map[string]OneofRules `yaml:"oneofs,omitempty"`
}

// RuleSet maps fully-qualified message names to their rules. It is the rule
// descriptor consumed by New.
type RuleSet struct {
	Messages map[string]MessageTypeRules `yaml:"messages"`
}

// Message returns the rules of the named message, if any
func (rs *RuleSet) Message(fullName string) (MessageTypeRules, bool) {
	if rs == nil {
		return MessageTypeRules{}, false
	}
	r, ok := rs.Messages[fullName]
	return r, ok
}
