package schema

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/platinummonkey/protoguard/pkg/observability"
)

// Assemble links every registered fragment into a Schema. All defects are
// reported together as an *AssemblyError and no partial schema is returned.
func (r *Registry) Assemble(ctx context.Context) (s *Schema, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, span := observability.StartSpan(ctx, "schema.Assemble", attribute.Int("packages", len(r.packages)))
	start := time.Now()
	defer func() {
		r.recorder.RecordAssembly(err, time.Since(start))
		observability.EndSpan(span, err)
	}()
	defer observability.RecoverPanic(r.logger, "schema assembly", &err)

	a := newAssembler(r)
	s, err = a.run()
	if err != nil {
		r.logger.WithError(err).Warn("schema assembly failed")
		return nil, err
	}
	r.logger.WithFields(map[string]interface{}{
		"files":    len(s.Files),
		"messages": len(s.messages),
		"duration": time.Since(start).String(),
	}).Debug("schema assembled")
	return s, nil
}

type extensionDecl struct {
	file *File
	decl ExtensionDecl
}

// assembler holds the state of one Assemble call
type assembler struct {
	r    *Registry
	errs errList

	files     map[string]*File
	messages  map[string]*Message
	enums     map[string]*Enum
	services  map[string]*Service
	msgDecls  map[*Message]MessageDecl
	enumDecls map[*Enum]EnumDecl
	svcDecls  map[*Service]ServiceDecl
	extDecls  []extensionDecl
}

func newAssembler(r *Registry) *assembler {
	return &assembler{
		r:         r,
		files:     make(map[string]*File),
		messages:  make(map[string]*Message),
		enums:     make(map[string]*Enum),
		services:  make(map[string]*Service),
		msgDecls:  make(map[*Message]MessageDecl),
		enumDecls: make(map[*Enum]EnumDecl),
		svcDecls:  make(map[*Service]ServiceDecl),
	}
}

func (a *assembler) run() (*Schema, error) {
	names := slices.Clone(a.r.order)
	sort.Strings(names)
	for _, name := range names {
		a.collectFiles(a.r.packages[name])
	}
	for _, name := range names {
		a.resolvePackage(a.r.packages[name])
	}
	if err := a.errs.err(); err != nil {
		return nil, err
	}

	for _, m := range sortedByName(a.messages) {
		a.buildEntries(m, a.msgDecls[m])
	}
	for _, e := range sortedByName(a.enums) {
		a.buildValues(e, a.enumDecls[e])
	}
	for _, svc := range sortedByName(a.services) {
		a.buildMethods(svc, a.svcDecls[svc])
	}
	for _, ext := range a.extDecls {
		a.buildExtension(ext.file, ext.decl)
	}
	if err := a.errs.err(); err != nil {
		return nil, err
	}

	for _, m := range sortedByName(a.messages) {
		a.allocateFields(m)
	}
	for _, e := range sortedByName(a.enums) {
		a.allocateValues(e)
	}
	if err := a.errs.err(); err != nil {
		return nil, err
	}

	files := a.finalize()
	if err := a.errs.err(); err != nil {
		return nil, err
	}
	return &Schema{
		Files:    files,
		messages: a.messages,
		enums:    a.enums,
		services: a.services,
		external: a.r.external,
	}, nil
}

func sortedByName[T any](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

func (a *assembler) collectFiles(p *packageFragments) {
	for _, path := range p.fileOrder {
		d := p.files[path]
		a.files[path] = &File{Path: d.Path, Package: p.name, GoPackage: d.GoPackage}
	}
}

// fileFor returns the file a top-level declaration lives in
func (a *assembler) fileFor(p *packageFragments, path, what string) *File {
	if path == "" {
		if len(p.fileOrder) == 1 {
			return a.files[p.fileOrder[0]]
		}
		if len(p.fileOrder) == 0 {
			a.errs.push(notFound("file of package %q declaring %s", p.name, what))
			return nil
		}
		a.errs.addf("%s: file must be set when package %q has %d files", what, p.name, len(p.fileOrder))
		return nil
	}
	f, ok := a.files[path]
	if !ok || f.Package != p.name {
		a.errs.push(notFound("file %q of package %q declaring %s", path, p.name, what))
		return nil
	}
	return f
}

// resolvePackage moves every nested declaration under its parent, depth
// first from the file-level messages
func (a *assembler) resolvePackage(p *packageFragments) {
	messages := make(map[string]*Message, len(p.messages))
	for key, d := range p.messages {
		m := &Message{Name: d.Name, ReservedNames: d.ReservedNames, CEL: d.CEL}
		rn, err := NewReservedNumbers(d.ReservedNumbers...)
		a.errs.add(err, "message %s", qualify(p.name, key))
		m.Reserved = rn
		messages[key] = m
		a.msgDecls[m] = d
	}
	enums := make(map[string]*Enum, len(p.enums))
	for key, d := range p.enums {
		e := &Enum{Name: d.Name, ReservedNames: d.ReservedNames}
		rn, err := NewReservedNumbers(d.ReservedNumbers...)
		a.errs.add(err, "enum %s", qualify(p.name, key))
		e.Reserved = rn
		enums[key] = e
		a.enumDecls[e] = d
	}

	children := make(map[string][]string)
	for _, child := range sortedKeys(p.parents) {
		parent := p.parents[child]
		if _, ok := p.messages[parent]; !ok {
			a.errs.push(notFound("message %s, parent of %s", qualify(p.name, parent), qualify(p.name, child)))
			continue
		}
		children[parent] = append(children[parent], child)
	}

	var attach func(key string, m *Message)
	attach = func(key string, m *Message) {
		a.messages[m.FullName()] = m
		for _, child := range children[key] {
			if cm, ok := messages[child]; ok {
				if d := p.messages[child]; d.File != "" && d.File != m.file.Path {
					a.errs.addf("message %s: declared in %q but its parent is in %q", qualify(p.name, child), d.File, m.file.Path)
				}
				cm.parent, cm.file = m, m.file
				m.Messages = append(m.Messages, cm)
				attach(child, cm)
				continue
			}
			ce := enums[child]
			if d := p.enums[child]; d.File != "" && d.File != m.file.Path {
				a.errs.addf("enum %s: declared in %q but its parent is in %q", qualify(p.name, child), d.File, m.file.Path)
			}
			ce.parent, ce.file = m, m.file
			m.Enums = append(m.Enums, ce)
			a.enums[ce.FullName()] = ce
		}
	}

	for _, key := range sortedKeys(p.messages) {
		d := p.messages[key]
		if d.Parent != "" {
			continue
		}
		f := a.fileFor(p, d.File, "message "+qualify(p.name, key))
		if f == nil {
			continue
		}
		m := messages[key]
		m.file = f
		f.Messages = append(f.Messages, m)
		attach(key, m)
	}
	for _, key := range sortedKeys(p.enums) {
		d := p.enums[key]
		if d.Parent != "" {
			continue
		}
		f := a.fileFor(p, d.File, "enum "+qualify(p.name, key))
		if f == nil {
			continue
		}
		e := enums[key]
		e.file = f
		f.Enums = append(f.Enums, e)
		a.enums[e.FullName()] = e
	}
	for _, key := range sortedKeys(p.services) {
		d := p.services[key]
		f := a.fileFor(p, d.File, "service "+qualify(p.name, key))
		if f == nil {
			continue
		}
		svc := &Service{Name: d.Name, file: f}
		f.Services = append(f.Services, svc)
		a.services[svc.FullName()] = svc
		a.svcDecls[svc] = d
	}
	for _, d := range p.extensions {
		f := a.fileFor(p, d.File, "extension of "+d.Target)
		if f == nil {
			continue
		}
		a.extDecls = append(a.extDecls, extensionDecl{file: f, decl: d})
	}
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// resolveType finds a message or enum the way protoc does: from the
// innermost scope outward, then fully qualified. It returns the kind, the
// full name and the path of the defining file.
func (a *assembler) resolveType(scope, name string) (protoreflect.Kind, string, string, error) {
	var candidates []string
	if strings.HasPrefix(name, ".") {
		candidates = []string{name[1:]}
	} else {
		for s := scope; s != ""; {
			candidates = append(candidates, s+"."+name)
			i := strings.LastIndexByte(s, '.')
			if i < 0 {
				break
			}
			s = s[:i]
		}
		candidates = append(candidates, name)
	}

	for _, c := range candidates {
		if m, ok := a.messages[c]; ok {
			return protoreflect.MessageKind, c, m.file.Path, nil
		}
		if e, ok := a.enums[c]; ok {
			return protoreflect.EnumKind, c, e.file.Path, nil
		}
		if d := a.externalDescriptor(protoreflect.FullName(c)); d != nil {
			switch d := d.(type) {
			case protoreflect.MessageDescriptor:
				return protoreflect.MessageKind, c, d.ParentFile().Path(), nil
			case protoreflect.EnumDescriptor:
				return protoreflect.EnumKind, c, d.ParentFile().Path(), nil
			}
		}
	}
	return 0, "", "", notFound("type %s referenced from %s", name, scope)
}

func (a *assembler) externalDescriptor(name protoreflect.FullName) protoreflect.Descriptor {
	if a.r.external != nil {
		if d, err := a.r.external.FindDescriptorByName(name); err == nil {
			return d
		}
	}
	if d, err := protoregistry.GlobalFiles.FindDescriptorByName(name); err == nil {
		return d
	}
	return nil
}

// field builds a field node, resolving its type reference from scope
func (a *assembler) field(scope string, d FieldDecl) *Field {
	where := scope + "." + d.Name
	if d.Name == "" {
		a.errs.addf("field of %s has no name", scope)
		return nil
	}
	f := &Field{
		Name:     d.Name,
		Number:   d.Number,
		Kind:     d.Kind,
		Repeated: d.Repeated,
		Optional: d.Optional,
		MapKey:   d.MapKey,
		Rules:    d.Rules,
	}
	ok := true
	if d.IsMap() {
		if d.Repeated || d.Optional {
			a.errs.addf("field %s: a map cannot be repeated or optional", where)
			ok = false
		}
		if !validMapKey(d.MapKey) {
			a.errs.addf("field %s: %s is not a valid map key kind", where, d.MapKey)
			ok = false
		}
	}
	if d.Repeated && d.Optional {
		a.errs.addf("field %s: a repeated field cannot be optional", where)
		ok = false
	}

	switch {
	case d.TypeName != "":
		kind, full, file, err := a.resolveType(scope, d.TypeName)
		if err != nil {
			a.errs.add(err, "field %s", where)
			return nil
		}
		if d.Kind != 0 && d.Kind != kind {
			a.errs.addf("field %s: %s is a %s, not a %s", where, full, kind, d.Kind)
			return nil
		}
		f.Kind, f.TypeName, f.typeFile = kind, full, file
	case d.Kind == 0:
		a.errs.addf("field %s has no type", where)
		return nil
	case d.Kind == protoreflect.MessageKind || d.Kind == protoreflect.EnumKind || d.Kind == protoreflect.GroupKind:
		a.errs.addf("field %s: %s fields need a type name", where, d.Kind)
		return nil
	}
	if !ok {
		return nil
	}
	return f
}

func validMapKey(k protoreflect.Kind) bool {
	switch k {
	case protoreflect.FloatKind, protoreflect.DoubleKind, protoreflect.BytesKind,
		protoreflect.EnumKind, protoreflect.MessageKind, protoreflect.GroupKind:
		return false
	}
	return k.IsValid()
}

// buildEntries creates the fields and oneofs of m in declaration order. A
// oneof takes the position of its first member.
func (a *assembler) buildEntries(m *Message, d MessageDecl) {
	scope := m.FullName()
	declared := make(map[string]OneofDecl, len(d.Oneofs))
	for _, od := range d.Oneofs {
		if _, dup := declared[od.Name]; dup {
			a.errs.addf("message %s: oneof %q declared twice", scope, od.Name)
			continue
		}
		declared[od.Name] = od
	}

	reservedNames := make(map[string]bool, len(m.ReservedNames))
	for _, name := range m.ReservedNames {
		reservedNames[name] = true
	}
	seen := make(map[string]bool, len(d.Fields))
	oneofs := make(map[string]*Oneof)
	for _, fd := range d.Fields {
		f := a.field(scope, fd)
		if f == nil {
			continue
		}
		f.message = m
		if seen[f.Name] {
			a.errs.addf("message %s: field %q declared twice", scope, f.Name)
			continue
		}
		seen[f.Name] = true
		if reservedNames[f.Name] {
			a.errs.addf("message %s: field name %q is reserved", scope, f.Name)
		}

		if fd.Oneof == "" {
			m.Entries = append(m.Entries, f)
			continue
		}
		od, ok := declared[fd.Oneof]
		if !ok {
			a.errs.push(notFound("oneof %s.%s of field %s", scope, fd.Oneof, f.Name))
			continue
		}
		if f.Repeated || f.IsMap() || f.Optional {
			a.errs.addf("field %s: oneof members cannot be repeated, maps or optional", f.FullName())
			continue
		}
		o, ok := oneofs[od.Name]
		if !ok {
			o = &Oneof{Name: od.Name, Required: od.Required}
			oneofs[od.Name] = o
			m.Entries = append(m.Entries, o)
		}
		f.oneof = o
		o.Fields = append(o.Fields, f)
	}
	for _, od := range d.Oneofs {
		if _, ok := oneofs[od.Name]; !ok {
			a.errs.addf("message %s: oneof %q has no fields", scope, od.Name)
		}
	}
}

func (a *assembler) buildValues(e *Enum, d EnumDecl) {
	if len(d.Values) == 0 {
		a.errs.addf("enum %s has no values", e.FullName())
		return
	}
	reservedNames := make(map[string]bool, len(e.ReservedNames))
	for _, name := range e.ReservedNames {
		reservedNames[name] = true
	}
	seen := make(map[string]bool, len(d.Values))
	for _, vd := range d.Values {
		if seen[vd.Name] {
			a.errs.addf("enum %s: value %q declared twice", e.FullName(), vd.Name)
			continue
		}
		seen[vd.Name] = true
		if reservedNames[vd.Name] {
			a.errs.addf("enum %s: value name %q is reserved", e.FullName(), vd.Name)
		}
		v := &EnumValue{Name: vd.Name, auto: vd.Number == nil}
		if vd.Number != nil {
			v.Number = *vd.Number
		}
		e.Values = append(e.Values, v)
	}
}

func (a *assembler) buildMethods(svc *Service, d ServiceDecl) {
	scope := svc.FullName()
	for _, md := range d.Methods {
		method := &Method{
			Name:            md.Name,
			ClientStreaming: md.ClientStreaming,
			ServerStreaming: md.ServerStreaming,
		}
		var ok bool
		method.Input, method.inputFile, ok = a.messageRef(scope, md.Input, scope+"."+md.Name)
		if !ok {
			continue
		}
		method.Output, method.outputFile, ok = a.messageRef(scope, md.Output, scope+"."+md.Name)
		if !ok {
			continue
		}
		svc.Methods = append(svc.Methods, method)
	}
}

// messageRef resolves name and requires it to be a message
func (a *assembler) messageRef(scope, name, where string) (string, string, bool) {
	kind, full, file, err := a.resolveType(scope, name)
	if err != nil {
		a.errs.add(err, "%s", where)
		return "", "", false
	}
	if kind != protoreflect.MessageKind {
		a.errs.addf("%s: %s is not a message", where, full)
		return "", "", false
	}
	return full, file, true
}

func (a *assembler) buildExtension(f *File, d ExtensionDecl) {
	target, targetFile, ok := a.messageRef(f.Package, d.Target, "extension in "+f.Path)
	if !ok {
		return
	}
	if !isOptionsMessage(target) {
		a.errs.addf("extension of %s in %s: only descriptor options can be extended", target, f.Path)
		return
	}
	ext := &Extension{Target: target, targetFile: targetFile}
	numbers := make([]int32, 0, len(d.Fields))
	for _, fd := range d.Fields {
		field := a.field(f.Package, fd)
		if field == nil {
			continue
		}
		if fd.Number == 0 || fd.Oneof != "" || fd.IsMap() {
			a.errs.addf("extension field %s of %s must have an explicit number and cannot be a map or oneof member", fd.Name, target)
			continue
		}
		a.errs.add(checkFieldNumber(fd.Number), "extension field %s of %s", fd.Name, target)
		numbers = append(numbers, fd.Number)
		ext.Fields = append(ext.Fields, field)
	}
	a.errs.add(CheckManualTags(numbers, nil), "extension of %s in %s", target, f.Path)
	f.Extensions = append(f.Extensions, ext)
}

func isOptionsMessage(name string) bool {
	return strings.HasPrefix(name, "google.protobuf.") && strings.HasSuffix(name, "Options")
}

// allocateFields checks the manual numbers of m and numbers the rest in
// declaration order
func (a *assembler) allocateFields(m *Message) {
	fields := m.Fields()
	reserved := m.Reserved.Clone()
	_ = reserved.Add(implementationReserved)

	var manual []int32
	for _, f := range fields {
		if f.Number == 0 {
			continue
		}
		if err := checkFieldNumber(f.Number); err != nil {
			a.errs.add(err, "field %s", f.FullName())
			continue
		}
		manual = append(manual, f.Number)
	}
	if err := CheckManualTags(manual, reserved); err != nil {
		a.errs.add(err, "message %s", m.FullName())
		return
	}

	for _, n := range manual {
		_ = reserved.AddNumber(n)
	}
	alloc := NewTagAllocator(reserved, 1)
	for _, f := range fields {
		if f.Number != 0 {
			continue
		}
		n, err := alloc.Next()
		if err != nil {
			a.errs.add(err, "message %s", m.FullName())
			return
		}
		f.Number = n
	}
}

// allocateValues numbers enum values from zero. The first value must end up
// as zero.
func (a *assembler) allocateValues(e *Enum) {
	var manual []int32
	for _, v := range e.Values {
		if !v.auto {
			manual = append(manual, v.Number)
		}
	}
	if err := CheckManualTags(manual, e.Reserved); err != nil {
		a.errs.add(err, "enum %s", e.FullName())
		return
	}

	used := e.Reserved.Clone()
	for _, n := range manual {
		if n < MaxFieldNumber {
			_ = used.AddNumber(n)
		}
	}
	alloc := NewTagAllocator(used, 0)
	for _, v := range e.Values {
		if !v.auto {
			continue
		}
		n, err := alloc.Next()
		if err != nil {
			a.errs.add(err, "enum %s", e.FullName())
			return
		}
		v.Number = n
	}
	if len(e.Values) > 0 && e.Values[0].Number != 0 {
		a.errs.addf("enum %s: first value %s must be zero", e.FullName(), e.Values[0].Name)
	}
}

// finalize sorts every level by name, computes imports and orders the files
// so that each one follows the files it imports
func (a *assembler) finalize() []*File {
	for _, f := range a.files {
		sortMessages(f.Messages)
		sortEnums(f.Enums)
		sort.Slice(f.Services, func(i, j int) bool { return f.Services[i].Name < f.Services[j].Name })
		sort.SliceStable(f.Extensions, func(i, j int) bool { return f.Extensions[i].Target < f.Extensions[j].Target })
		f.Imports = imports(f)
	}
	return a.orderFiles()
}

func sortMessages(ms []*Message) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].Name < ms[j].Name })
	for _, m := range ms {
		sortMessages(m.Messages)
		sortEnums(m.Enums)
	}
}

func sortEnums(es []*Enum) {
	sort.Slice(es, func(i, j int) bool { return es[i].Name < es[j].Name })
}

func imports(f *File) []string {
	set := make(map[string]bool)
	addField := func(field *Field) {
		if field.typeFile != "" {
			set[field.typeFile] = true
		}
	}
	var walk func(m *Message)
	walk = func(m *Message) {
		for _, field := range m.Fields() {
			addField(field)
		}
		for _, nested := range m.Messages {
			walk(nested)
		}
	}
	for _, m := range f.Messages {
		walk(m)
	}
	for _, svc := range f.Services {
		for _, method := range svc.Methods {
			set[method.inputFile] = true
			set[method.outputFile] = true
		}
	}
	for _, ext := range f.Extensions {
		set[ext.targetFile] = true
		for _, field := range ext.Fields {
			addField(field)
		}
	}
	delete(set, f.Path)
	delete(set, "")
	return sortedKeys(set)
}

// orderFiles sorts files topologically by their imports, breaking ties by
// path. Imports of files outside the schema are ignored.
func (a *assembler) orderFiles() []*File {
	indegree := make(map[string]int, len(a.files))
	dependents := make(map[string][]string)
	for path := range a.files {
		indegree[path] = 0
	}
	for path, f := range a.files {
		for _, imp := range f.Imports {
			if _, ok := a.files[imp]; ok {
				indegree[path]++
				dependents[imp] = append(dependents[imp], path)
			}
		}
	}

	var ready []string
	for path, n := range indegree {
		if n == 0 {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)

	out := make([]*File, 0, len(a.files))
	for len(ready) > 0 {
		path := ready[0]
		ready = ready[1:]
		out = append(out, a.files[path])
		for _, dep := range dependents[path] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Strings(ready)
	}

	if len(out) != len(a.files) {
		var cycle []string
		for path, n := range indegree {
			if n > 0 {
				cycle = append(cycle, path)
			}
		}
		sort.Strings(cycle)
		a.errs.addf("import cycle among %s", strings.Join(cycle, ", "))
	}
	return out
}
