package schema

import (
	"fmt"
	"slices"
	"unicode"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protoguard/pkg/validation"
)

// FileDescriptorProtos renders the schema as descriptor protos, in file order
func (s *Schema) FileDescriptorProtos() []*descriptorpb.FileDescriptorProto {
	out := make([]*descriptorpb.FileDescriptorProto, len(s.Files))
	for i, f := range s.Files {
		out[i] = fileProto(f)
	}
	return out
}

// Descriptors links the schema into a file registry. Linking doubles as a
// structural check of the assembled tree. The result is built once.
func (s *Schema) Descriptors() (*protoregistry.Files, error) {
	s.descOnce.Do(func() {
		s.desc, s.descErr = s.buildFiles()
	})
	return s.desc, s.descErr
}

// MessageDescriptor returns the linked descriptor of a message
func (s *Schema) MessageDescriptor(fullName string) (protoreflect.MessageDescriptor, error) {
	files, err := s.Descriptors()
	if err != nil {
		return nil, err
	}
	d, err := files.FindDescriptorByName(protoreflect.FullName(fullName))
	if err != nil {
		return nil, notFound("message %s", fullName)
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("%s is not a message", fullName)
	}
	return md, nil
}

// Validator builds a validator for the named message from the schema's rules
func (s *Schema) Validator(fullName string, opts ...validation.Option) (*validation.Validator, error) {
	md, err := s.MessageDescriptor(fullName)
	if err != nil {
		return nil, err
	}
	return validation.New(md, s.RuleSet(), opts...)
}

func (s *Schema) buildFiles() (*protoregistry.Files, error) {
	files := new(protoregistry.Files)
	own := make(map[string]bool, len(s.Files))
	for _, f := range s.Files {
		own[f.Path] = true
	}

	var register func(fd protoreflect.FileDescriptor) error
	register = func(fd protoreflect.FileDescriptor) error {
		if _, err := files.FindFileByPath(fd.Path()); err == nil {
			return nil
		}
		imports := fd.Imports()
		for i := 0; i < imports.Len(); i++ {
			if err := register(imports.Get(i).FileDescriptor); err != nil {
				return err
			}
		}
		return files.RegisterFile(fd)
	}

	for _, f := range s.Files {
		for _, imp := range f.Imports {
			if own[imp] {
				continue
			}
			fd, err := s.externalFile(imp)
			if err != nil {
				return nil, err
			}
			if err := register(fd); err != nil {
				return nil, fmt.Errorf("failed to register %s: %w", imp, err)
			}
		}
		fd, err := protodesc.NewFile(fileProto(f), files)
		if err != nil {
			return nil, fmt.Errorf("failed to link %s: %w", f.Path, err)
		}
		if err := files.RegisterFile(fd); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", f.Path, err)
		}
	}
	return files, nil
}

func (s *Schema) externalFile(path string) (protoreflect.FileDescriptor, error) {
	if s.external != nil {
		if fd, err := s.external.FindFileByPath(path); err == nil {
			return fd, nil
		}
	}
	if fd, err := protoregistry.GlobalFiles.FindFileByPath(path); err == nil {
		return fd, nil
	}
	return nil, notFound("file %q", path)
}

func fileProto(f *File) *descriptorpb.FileDescriptorProto {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(f.Path),
		Syntax:     proto.String("proto3"),
		Dependency: slices.Clone(f.Imports),
	}
	if f.Package != "" {
		fdp.Package = proto.String(f.Package)
	}
	if f.GoPackage != "" {
		fdp.Options = &descriptorpb.FileOptions{GoPackage: proto.String(f.GoPackage)}
	}
	for _, m := range f.Messages {
		fdp.MessageType = append(fdp.MessageType, messageProto(m))
	}
	for _, e := range f.Enums {
		fdp.EnumType = append(fdp.EnumType, enumProto(e))
	}
	for _, svc := range f.Services {
		fdp.Service = append(fdp.Service, serviceProto(svc))
	}
	for _, ext := range f.Extensions {
		for _, field := range ext.Fields {
			fp := fieldProto(field)
			fp.Extendee = proto.String("." + ext.Target)
			fdp.Extension = append(fdp.Extension, fp)
		}
	}
	return fdp
}

func messageProto(m *Message) *descriptorpb.DescriptorProto {
	dp := &descriptorpb.DescriptorProto{Name: proto.String(m.Name)}

	oneofIndex := make(map[*Oneof]int32)
	for _, o := range m.Oneofs() {
		oneofIndex[o] = int32(len(dp.OneofDecl))
		dp.OneofDecl = append(dp.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String(o.Name)})
	}

	var optional []*descriptorpb.FieldDescriptorProto
	for _, f := range m.Fields() {
		fp := fieldProto(f)
		switch {
		case f.IsMap():
			entry := mapEntryProto(f)
			dp.NestedType = append(dp.NestedType, entry)
			fp.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
			fp.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
			fp.TypeName = proto.String("." + m.FullName() + "." + entry.GetName())
		case f.oneof != nil:
			fp.OneofIndex = proto.Int32(oneofIndex[f.oneof])
		case f.Optional:
			optional = append(optional, fp)
		}
		dp.Field = append(dp.Field, fp)
	}
	// synthetic oneofs of proto3 optional fields follow the real ones
	for _, fp := range optional {
		fp.OneofIndex = proto.Int32(int32(len(dp.OneofDecl)))
		dp.OneofDecl = append(dp.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String(syntheticOneofName(dp, fp.GetName()))})
	}

	for _, nested := range m.Messages {
		dp.NestedType = append(dp.NestedType, messageProto(nested))
	}
	for _, e := range m.Enums {
		dp.EnumType = append(dp.EnumType, enumProto(e))
	}
	for _, r := range m.Reserved.Ranges() {
		dp.ReservedRange = append(dp.ReservedRange, &descriptorpb.DescriptorProto_ReservedRange{
			Start: proto.Int32(r.Start),
			End:   proto.Int32(r.End),
		})
	}
	dp.ReservedName = slices.Clone(m.ReservedNames)
	return dp
}

// syntheticOneofName follows protoc: "_" + field name, prefixed with X until
// it is unique among the oneofs
func syntheticOneofName(dp *descriptorpb.DescriptorProto, field string) string {
	name := "_" + field
	for {
		taken := false
		for _, o := range dp.OneofDecl {
			if o.GetName() == name {
				taken = true
				break
			}
		}
		if !taken {
			return name
		}
		name = "X" + name
	}
}

func fieldProto(f *Field) *descriptorpb.FieldDescriptorProto {
	fp := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(f.Name),
		Number: proto.Int32(f.Number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   descriptorpb.FieldDescriptorProto_Type(f.Kind).Enum(),
	}
	if f.Repeated {
		fp.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	}
	if f.TypeName != "" {
		fp.TypeName = proto.String("." + f.TypeName)
	}
	if f.Optional {
		fp.Proto3Optional = proto.Bool(true)
	}
	return fp
}

func mapEntryProto(f *Field) *descriptorpb.DescriptorProto {
	value := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String("value"),
		Number: proto.Int32(2),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   descriptorpb.FieldDescriptorProto_Type(f.Kind).Enum(),
	}
	if f.TypeName != "" {
		value.TypeName = proto.String("." + f.TypeName)
	}
	return &descriptorpb.DescriptorProto{
		Name: proto.String(mapEntryName(f.Name)),
		Field: []*descriptorpb.FieldDescriptorProto{
			{
				Name:   proto.String("key"),
				Number: proto.Int32(1),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:   descriptorpb.FieldDescriptorProto_Type(f.MapKey).Enum(),
			},
			value,
		},
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
	}
}

// mapEntryName derives the implicit entry message name, e.g. "labels_v2" ->
// "LabelsV2Entry"
func mapEntryName(field string) string {
	out := make([]rune, 0, len(field)+5)
	upper := true
	for _, c := range field {
		switch {
		case c == '_':
			upper = true
		case upper:
			out = append(out, unicode.ToUpper(c))
			upper = false
		default:
			out = append(out, c)
		}
	}
	return string(out) + "Entry"
}

func enumProto(e *Enum) *descriptorpb.EnumDescriptorProto {
	ep := &descriptorpb.EnumDescriptorProto{Name: proto.String(e.Name)}
	for _, v := range e.Values {
		ep.Value = append(ep.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v.Name),
			Number: proto.Int32(v.Number),
		})
	}
	// enum reserved ranges are inclusive
	for _, r := range e.Reserved.Ranges() {
		ep.ReservedRange = append(ep.ReservedRange, &descriptorpb.EnumDescriptorProto_EnumReservedRange{
			Start: proto.Int32(r.Start),
			End:   proto.Int32(r.End - 1),
		})
	}
	ep.ReservedName = slices.Clone(e.ReservedNames)
	return ep
}

func serviceProto(svc *Service) *descriptorpb.ServiceDescriptorProto {
	sp := &descriptorpb.ServiceDescriptorProto{Name: proto.String(svc.Name)}
	for _, m := range svc.Methods {
		mp := &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.Name),
			InputType:  proto.String("." + m.Input),
			OutputType: proto.String("." + m.Output),
		}
		if m.ClientStreaming {
			mp.ClientStreaming = proto.Bool(true)
		}
		if m.ServerStreaming {
			mp.ServerStreaming = proto.Bool(true)
		}
		sp.Method = append(sp.Method, mp)
	}
	return sp
}
