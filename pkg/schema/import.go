package schema

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/platinummonkey/protoguard/pkg/validation"
)

// ImportFiles registers the declarations of compiled proto3 files, following
// their imports. Files the global registry already knows, such as the
// well-known types, are left for Assemble to resolve externally. Field,
// oneof and message rules are looked up in rules by full name.
func ImportFiles(r *Registry, files []protoreflect.FileDescriptor, rules *validation.RuleSet) error {
	var errs errList
	seen := make(map[string]bool)

	var visit func(fd protoreflect.FileDescriptor)
	visit = func(fd protoreflect.FileDescriptor) {
		if seen[fd.Path()] {
			return
		}
		seen[fd.Path()] = true
		if _, err := protoregistry.GlobalFiles.FindFileByPath(fd.Path()); err == nil {
			return
		}
		imports := fd.Imports()
		for i := 0; i < imports.Len(); i++ {
			visit(imports.Get(i).FileDescriptor)
		}
		errs.add(importFile(r, fd, rules), "import %s", fd.Path())
	}
	for _, fd := range files {
		visit(fd)
	}
	return errs.err()
}

func importFile(r *Registry, fd protoreflect.FileDescriptor, rules *validation.RuleSet) error {
	if fd.Syntax() != protoreflect.Proto3 {
		return fmt.Errorf("syntax %s is not supported, only proto3", fd.Syntax())
	}
	pkg := string(fd.Package())
	path := fd.Path()

	var goPackage string
	if opts, ok := fd.Options().(*descriptorpb.FileOptions); ok {
		goPackage = opts.GetGoPackage()
	}
	if err := r.AddFile(pkg, FileDecl{Path: path, GoPackage: goPackage}); err != nil {
		return err
	}

	var errs errList
	messages := fd.Messages()
	for i := 0; i < messages.Len(); i++ {
		errs.push(importMessage(r, pkg, path, "", messages.Get(i), rules))
	}
	enums := fd.Enums()
	for i := 0; i < enums.Len(); i++ {
		errs.push(r.AddEnum(pkg, enumDecl(path, "", enums.Get(i))))
	}

	services := fd.Services()
	for i := 0; i < services.Len(); i++ {
		sd := services.Get(i)
		d := ServiceDecl{Name: string(sd.Name()), File: path}
		methods := sd.Methods()
		for j := 0; j < methods.Len(); j++ {
			md := methods.Get(j)
			d.Methods = append(d.Methods, MethodDecl{
				Name:            string(md.Name()),
				Input:           "." + string(md.Input().FullName()),
				Output:          "." + string(md.Output().FullName()),
				ClientStreaming: md.IsStreamingClient(),
				ServerStreaming: md.IsStreamingServer(),
			})
		}
		errs.push(r.AddService(pkg, d))
	}

	// extension fields grouped by target, in declaration order
	var targets []string
	byTarget := make(map[string][]FieldDecl)
	extensions := fd.Extensions()
	for i := 0; i < extensions.Len(); i++ {
		xd := extensions.Get(i)
		target := "." + string(xd.ContainingMessage().FullName())
		if _, ok := byTarget[target]; !ok {
			targets = append(targets, target)
		}
		byTarget[target] = append(byTarget[target], fieldDecl(xd, nil))
	}
	for _, target := range targets {
		errs.push(r.AddExtension(pkg, ExtensionDecl{Target: target, File: path, Fields: byTarget[target]}))
	}

	if len(errs.errs) > 0 {
		return errs.err()
	}
	return nil
}

func importMessage(r *Registry, pkg, path, parent string, md protoreflect.MessageDescriptor, rules *validation.RuleSet) error {
	if md.IsMapEntry() {
		return nil
	}
	mr, _ := rules.Message(string(md.FullName()))
	d := MessageDecl{
		Name:   string(md.Name()),
		Parent: parent,
		File:   path,
		CEL:    mr.CEL,
	}

	oneofs := md.Oneofs()
	for i := 0; i < oneofs.Len(); i++ {
		od := oneofs.Get(i)
		if od.IsSynthetic() {
			continue
		}
		name := string(od.Name())
		d.Oneofs = append(d.Oneofs, OneofDecl{Name: name, Required: mr.Oneofs[name].Required})
	}

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		var fr *validation.FieldRules
		if rule, ok := mr.Fields[string(fd.Name())]; ok {
			fr = &rule
		}
		d.Fields = append(d.Fields, fieldDecl(fd, fr))
	}

	ranges := md.ReservedRanges()
	for i := 0; i < ranges.Len(); i++ {
		rr := ranges.Get(i)
		d.ReservedNumbers = append(d.ReservedNumbers, Range{Start: int32(rr[0]), End: int32(rr[1])})
	}
	d.ReservedNames = reservedNames(md.ReservedNames())

	if err := r.AddMessage(pkg, d); err != nil {
		return err
	}

	var errs errList
	scope := relativeName(parent, d.Name)
	nested := md.Messages()
	for i := 0; i < nested.Len(); i++ {
		errs.push(importMessage(r, pkg, path, scope, nested.Get(i), rules))
	}
	enums := md.Enums()
	for i := 0; i < enums.Len(); i++ {
		errs.push(r.AddEnum(pkg, enumDecl(path, scope, enums.Get(i))))
	}
	if len(errs.errs) > 0 {
		return errs.err()
	}
	return nil
}

func fieldDecl(fd protoreflect.FieldDescriptor, rules *validation.FieldRules) FieldDecl {
	d := FieldDecl{
		Name:   string(fd.Name()),
		Number: int32(fd.Number()),
		Rules:  rules,
	}
	typed := fd
	if fd.IsMap() {
		d.MapKey = fd.MapKey().Kind()
		typed = fd.MapValue()
	} else {
		d.Repeated = fd.IsList()
	}
	switch typed.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		d.TypeName = "." + string(typed.Message().FullName())
	case protoreflect.EnumKind:
		d.TypeName = "." + string(typed.Enum().FullName())
	default:
		d.Kind = typed.Kind()
	}
	if od := fd.ContainingOneof(); od != nil {
		if od.IsSynthetic() {
			d.Optional = true
		} else {
			d.Oneof = string(od.Name())
		}
	}
	return d
}

func enumDecl(path, parent string, ed protoreflect.EnumDescriptor) EnumDecl {
	d := EnumDecl{
		Name:   string(ed.Name()),
		Parent: parent,
		File:   path,
	}
	values := ed.Values()
	for i := 0; i < values.Len(); i++ {
		vd := values.Get(i)
		n := int32(vd.Number())
		d.Values = append(d.Values, EnumValueDecl{Name: string(vd.Name()), Number: &n})
	}
	// enum ranges are inclusive; the last number cannot be represented in a
	// half-open int32 range and stays unreserved
	ranges := ed.ReservedRanges()
	for i := 0; i < ranges.Len(); i++ {
		rr := ranges.Get(i)
		end := int32(rr[1])
		if end < math.MaxInt32 {
			end++
		}
		if end > int32(rr[0]) {
			d.ReservedNumbers = append(d.ReservedNumbers, Range{Start: int32(rr[0]), End: end})
		}
	}
	d.ReservedNames = reservedNames(ed.ReservedNames())
	return d
}

func reservedNames(names protoreflect.Names) []string {
	if names.Len() == 0 {
		return nil
	}
	out := make([]string, names.Len())
	for i := range out {
		out[i] = string(names.Get(i))
	}
	return out
}
