package validation

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const fieldOption = "(buf.validate.field)"

// RuleOptions renders fr as protobuf field option assignments, one per line,
// e.g. `(buf.validate.field).string.min_len = 3`. Custom error messages have
// no option form and are left out.
func RuleOptions(fr FieldRules) []string {
	var out []string
	renderFieldRules(&out, fieldOption, &fr)
	return out
}

func renderFieldRules(out *[]string, prefix string, fr *FieldRules) {
	rv := reflect.ValueOf(fr).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		if f := rv.Field(i); !f.IsNil() {
			renderCategory(out, prefix, yamlName(rt.Field(i)), f.Elem())
		}
	}
}

func renderCategory(out *[]string, prefix, cat string, rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf, f := rt.Field(i), rv.Field(i)
		if sf.Anonymous {
			renderCommon(out, prefix, f.Interface().(Common))
			continue
		}
		key := prefix + "." + cat + "." + yamlName(sf)
		switch x := f.Interface().(type) {
		case *FieldRules:
			if x != nil {
				renderFieldRules(out, key, x)
			}
			continue
		case StringFormat:
			switch x {
			case FormatNone:
			case FormatHTTPHeaderName:
				*out = append(*out, prefix+"."+cat+".well_known_regex = KNOWN_REGEX_HTTP_HEADER_NAME")
			case FormatHTTPHeaderValue:
				*out = append(*out, prefix+"."+cat+".well_known_regex = KNOWN_REGEX_HTTP_HEADER_VALUE")
			default:
				*out = append(*out, prefix+"."+cat+"."+x.String()+" = true")
			}
			continue
		case BytesFormat:
			if x != BytesFormatNone {
				*out = append(*out, prefix+"."+cat+"."+x.String()+" = true")
			}
			continue
		}
		if f.IsZero() {
			continue
		}
		*out = append(*out, key+" = "+optionValue(f))
	}
}

func renderCommon(out *[]string, prefix string, c Common) {
	if c.Required {
		*out = append(*out, prefix+".required = true")
	}
	switch c.Ignore {
	case IgnoreIfZeroValue:
		*out = append(*out, prefix+".ignore = IGNORE_IF_ZERO_VALUE")
	case IgnoreAlways:
		*out = append(*out, prefix+".ignore = IGNORE_ALWAYS")
	}
	for _, r := range c.CEL {
		*out = append(*out, fmt.Sprintf("%s.cel = {id: %s, message: %s, expression: %s}",
			prefix, strconv.Quote(r.ID), strconv.Quote(r.Message), strconv.Quote(r.Expression)))
	}
}

// optionValue renders v in protobuf text format
func optionValue(v reflect.Value) string {
	switch x := v.Interface().(type) {
	case time.Time:
		return fmt.Sprintf("{seconds: %d, nanos: %d}", x.Unix(), x.Nanosecond())
	case time.Duration:
		return fmt.Sprintf("{seconds: %d, nanos: %d}", int64(x/time.Second), int32(x%time.Second))
	case []byte:
		return quoteBytes(x)
	}
	switch v.Kind() {
	case reflect.Pointer:
		return optionValue(v.Elem())
	case reflect.Slice:
		items := make([]string, v.Len())
		for i := range items {
			items[i] = optionValue(v.Index(i))
		}
		return "[" + strings.Join(items, ", ") + "]"
	case reflect.String:
		return strconv.Quote(v.String())
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		switch {
		case math.IsNaN(f):
			return "nan"
		case math.IsInf(f, 1):
			return "inf"
		case math.IsInf(f, -1):
			return "-inf"
		}
		return strconv.FormatFloat(f, 'g', -1, v.Type().Bits())
	}
	return fmt.Sprint(v.Interface())
}

// quoteBytes escapes everything outside printable ASCII as \xNN
func quoteBytes(b []byte) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range b {
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c >= 0x20 && c < 0x7f:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "\\x%02x", c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
