package validation

import (
	"google.golang.org/protobuf/reflect/protoreflect"
)

// nativeValue converts a singular value of fd's element type into the Go
// value CEL expressions see as `this`
func nativeValue(fd protoreflect.FieldDescriptor, val protoreflect.Value) any {
	switch fd.Kind() {
	case protoreflect.EnumKind:
		return int64(val.Enum())
	case protoreflect.MessageKind, protoreflect.GroupKind:
		msg := val.Message()
		md := fd.Message()
		switch {
		case md.FullName() == timestampFullName:
			return asTime(msg)
		case md.FullName() == durationFullName:
			return asDuration(msg)
		case isWrapper(md):
			inner := md.Fields().ByNumber(1)
			if inner == nil {
				return nil
			}
			return nativeValue(inner, msg.Get(inner))
		default:
			return msg.Interface()
		}
	default:
		return val.Interface()
	}
}

// kindNative converts values of a scalar kind when no descriptor is at hand
func kindNative(kind protoreflect.Kind) func(protoreflect.Value) any {
	if kind == protoreflect.EnumKind {
		return func(val protoreflect.Value) any { return int64(val.Enum()) }
	}
	return func(val protoreflect.Value) any {
		if msg, ok := val.Interface().(protoreflect.Message); ok {
			return msg.Interface()
		}
		return val.Interface()
	}
}
