package schema

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/celbridge"
	"github.com/platinummonkey/protoguard/pkg/validation"
)

// memoName computes a full name once and caches it
type memoName struct {
	once sync.Once
	name string
}

func (m *memoName) get(compute func() string) string {
	m.once.Do(func() { m.name = compute() })
	return m.name
}

// File is an assembled .proto file
type File struct {
	Path      string
	Package   string
	GoPackage string
	// Imports lists the paths of the files defining referenced types
	Imports    []string
	Messages   []*Message
	Enums      []*Enum
	Services   []*Service
	Extensions []*Extension
}

func (f *File) qualify(name string) string {
	if f.Package == "" {
		return name
	}
	return f.Package + "." + name
}

// Entry is a field or a oneof of a message, in declaration order
type Entry interface {
	entryName() string
}

// Message is an assembled message type
type Message struct {
	Name          string
	Entries       []Entry
	Messages      []*Message
	Enums         []*Enum
	Reserved      *ReservedNumbers
	ReservedNames []string
	CEL           []celbridge.Rule

	parent   *Message
	file     *File
	fullName memoName
}

// FullName returns the dotted name, e.g. acme.v1.User.Address
func (m *Message) FullName() string {
	return m.fullName.get(func() string {
		if m.parent != nil {
			return m.parent.FullName() + "." + m.Name
		}
		return m.file.qualify(m.Name)
	})
}

// Parent returns the enclosing message, or nil at file level
func (m *Message) Parent() *Message { return m.parent }

// File returns the declaring file
func (m *Message) File() *File { return m.file }

// Fields returns every field, oneof members included, in declaration order
func (m *Message) Fields() []*Field {
	var out []*Field
	for _, e := range m.Entries {
		switch x := e.(type) {
		case *Field:
			out = append(out, x)
		case *Oneof:
			out = append(out, x.Fields...)
		}
	}
	return out
}

// Field returns the named field, or nil
func (m *Message) Field(name string) *Field {
	for _, f := range m.Fields() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Oneofs returns the oneofs in declaration order
func (m *Message) Oneofs() []*Oneof {
	var out []*Oneof
	for _, e := range m.Entries {
		if o, ok := e.(*Oneof); ok {
			out = append(out, o)
		}
	}
	return out
}

// Options renders the message-level rules as option assignments
func (m *Message) Options() []string {
	var out []string
	for _, r := range m.CEL {
		out = append(out, fmt.Sprintf("(buf.validate.message).cel = {id: %q, message: %q, expression: %q}",
			r.ID, r.Message, r.Expression))
	}
	return out
}

// Field is an assembled field. For message and enum fields TypeName is the
// resolved full name without a leading dot.
type Field struct {
	Name     string
	Number   int32
	Kind     protoreflect.Kind
	TypeName string
	Repeated bool
	Optional bool
	MapKey   protoreflect.Kind
	Rules    *validation.FieldRules

	// typeFile is the path of the file defining TypeName
	typeFile string
	oneof    *Oneof
	message  *Message
}

func (f *Field) entryName() string { return f.Name }

// IsMap reports whether the field is a map; Kind and TypeName then describe
// the value
func (f *Field) IsMap() bool { return f.MapKey != 0 }

// Oneof returns the oneof holding the field, or nil
func (f *Field) Oneof() *Oneof { return f.oneof }

// FullName returns the dotted name of the field
func (f *Field) FullName() string {
	if f.message == nil {
		return f.Name
	}
	return f.message.FullName() + "." + f.Name
}

// Options renders the field rules as option assignments
func (f *Field) Options() []string {
	if f.Rules == nil {
		return nil
	}
	return validation.RuleOptions(*f.Rules)
}

// Oneof is an assembled oneof
type Oneof struct {
	Name     string
	Required bool
	Fields   []*Field
}

func (o *Oneof) entryName() string { return o.Name }

// Options renders the oneof rules as option assignments
func (o *Oneof) Options() []string {
	if !o.Required {
		return nil
	}
	return []string{"(buf.validate.oneof).required = true"}
}

// Enum is an assembled enum
type Enum struct {
	Name          string
	Values        []*EnumValue
	Reserved      *ReservedNumbers
	ReservedNames []string

	parent   *Message
	file     *File
	fullName memoName
}

// FullName returns the dotted name of the enum
func (e *Enum) FullName() string {
	return e.fullName.get(func() string {
		if e.parent != nil {
			return e.parent.FullName() + "." + e.Name
		}
		return e.file.qualify(e.Name)
	})
}

// File returns the declaring file
func (e *Enum) File() *File { return e.file }

// EnumValue is one value of an enum
type EnumValue struct {
	Name   string
	Number int32

	auto bool
}

// Service is an assembled service
type Service struct {
	Name    string
	Methods []*Method

	file     *File
	fullName memoName
}

// FullName returns the dotted name of the service
func (s *Service) FullName() string {
	return s.fullName.get(func() string { return s.file.qualify(s.Name) })
}

// File returns the declaring file
func (s *Service) File() *File { return s.file }

// Method is one RPC; Input and Output are resolved full names
type Method struct {
	Name            string
	Input           string
	Output          string
	ClientStreaming bool
	ServerStreaming bool

	inputFile, outputFile string
}

// Extension holds extension fields of one target message
type Extension struct {
	Target string
	Fields []*Field

	targetFile string
}
