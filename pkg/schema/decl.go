package schema

import (
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/celbridge"
	"github.com/platinummonkey/protoguard/pkg/validation"
)

// Fragments are registered independently and linked by Assemble. Names of
// nested declarations are relative to their package, e.g. Parent "Outer.Mid"
// for a message declared inside Outer.Mid.

// FileDecl declares a .proto file of a package
type FileDecl struct {
	// Path is the import path, e.g. "acme/v1/user.proto"
	Path      string
	GoPackage string
}

// FieldDecl declares a message field or an extension field
type FieldDecl struct {
	Name string
	// Number is the tag; zero means allocate
	Number int32
	// Kind is the scalar kind. Leave it zero and set TypeName for message
	// and enum references.
	Kind protoreflect.Kind
	// TypeName references a message or enum, relative to the enclosing scope
	// or fully qualified with a leading dot
	TypeName string
	Repeated bool
	// Optional gives a proto3 scalar explicit presence
	Optional bool
	// Map makes the field a map; Kind and TypeName then describe the value
	MapKey protoreflect.Kind
	// Oneof names the oneof of the enclosing message the field belongs to
	Oneof string
	Rules *validation.FieldRules
}

// IsMap reports whether the field is a map
func (d FieldDecl) IsMap() bool {
	return d.MapKey != 0
}

// OneofDecl declares a oneof; its members are the fields naming it
type OneofDecl struct {
	Name     string
	Required bool
}

// MessageDecl declares a message
type MessageDecl struct {
	Name string
	// Parent is the relative name of the enclosing message, empty at file
	// level
	Parent string
	// File is the path of the declaring file; it may be omitted when the
	// package has a single file
	File            string
	Fields          []FieldDecl
	Oneofs          []OneofDecl
	ReservedNumbers []Range
	ReservedNames   []string
	CEL             []celbridge.Rule
}

// EnumValueDecl declares one enum value; a nil Number is allocated
type EnumValueDecl struct {
	Name   string
	Number *int32
}

// EnumDecl declares an enum
type EnumDecl struct {
	Name            string
	Parent          string
	File            string
	Values          []EnumValueDecl
	ReservedNumbers []Range
	ReservedNames   []string
}

// MethodDecl declares an RPC
type MethodDecl struct {
	Name            string
	Input           string
	Output          string
	ClientStreaming bool
	ServerStreaming bool
}

// ServiceDecl declares a service
type ServiceDecl struct {
	Name    string
	File    string
	Methods []MethodDecl
}

// ExtensionDecl declares extension fields of Target. Extension fields must be
// numbered explicitly.
type ExtensionDecl struct {
	Target string
	File   string
	Fields []FieldDecl
}

func relativeName(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
