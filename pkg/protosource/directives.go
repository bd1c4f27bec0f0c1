package protosource

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/protoguard/pkg/celbridge"
	"github.com/platinummonkey/protoguard/pkg/validation"
)

const directivePrefix = "@protoguard:"

// Directive is one rule assignment read from a comment
type Directive struct {
	Option string
	Value  string
	// Line is the 1-based line of the annotated declaration
	Line int
}

// IsDirective reports whether a comment line holds a directive
func IsDirective(text string) bool {
	return strings.HasPrefix(text, directivePrefix)
}

// ExtractDirective parses "@protoguard:option:value"
func ExtractDirective(text string, line int) (*Directive, error) {
	if !IsDirective(text) {
		return nil, errors.New("not a protoguard directive")
	}
	parts := strings.SplitN(strings.TrimPrefix(text, directivePrefix), ":", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
		return nil, fmt.Errorf("invalid directive %q, expected @protoguard:option:value", text)
	}
	return &Directive{
		Option: strings.TrimSpace(parts[0]),
		Value:  strings.TrimSpace(parts[1]),
		Line:   line,
	}, nil
}

// ParseDirectives extracts the directives of a comment. Line comments and
// the lines of block comments, with or without a leading '*', are both
// recognized.
func ParseDirectives(comment string, line int) ([]*Directive, error) {
	var out []*Directive
	for _, raw := range strings.Split(comment, "\n") {
		text := strings.TrimSpace(raw)
		text = strings.TrimSpace(strings.TrimPrefix(text, "*"))
		if !IsDirective(text) {
			continue
		}
		d, err := ExtractDirective(text, line)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// RulesFromFiles collects the directives of files and of the files they
// import. Files known to the global registry are skipped.
func RulesFromFiles(files []protoreflect.FileDescriptor) (*validation.RuleSet, error) {
	rs := &validation.RuleSet{Messages: make(map[string]validation.MessageTypeRules)}
	var errs []error
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
		messages := fd.Messages()
		for i := 0; i < messages.Len(); i++ {
			errs = append(errs, collectMessage(rs, fd, messages.Get(i)))
		}
	}
	for _, fd := range files {
		visit(fd)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return rs, nil
}

// directivesOf returns the directives in the leading comment of d
func directivesOf(fd protoreflect.FileDescriptor, d protoreflect.Descriptor) ([]*Directive, int, error) {
	loc := fd.SourceLocations().ByDescriptor(d)
	line := loc.StartLine + 1
	ds, err := ParseDirectives(loc.LeadingComments, line)
	if err != nil {
		return nil, line, fmt.Errorf("%s:%d: %s: %w", fd.Path(), line, d.FullName(), err)
	}
	return ds, line, nil
}

func collectMessage(rs *validation.RuleSet, fd protoreflect.FileDescriptor, md protoreflect.MessageDescriptor) error {
	if md.IsMapEntry() {
		return nil
	}
	var errs []error
	fail := func(line int, d protoreflect.Descriptor, err error) {
		errs = append(errs, fmt.Errorf("%s:%d: %s: %w", fd.Path(), line, d.FullName(), err))
	}

	var mr validation.MessageTypeRules
	ds, line, err := directivesOf(fd, md)
	if err != nil {
		errs = append(errs, err)
	}
	for _, d := range ds {
		if d.Option != "cel" {
			fail(line, md, fmt.Errorf("unknown message option %q", d.Option))
			continue
		}
		var rule celbridge.Rule
		if err := decodeStrict(d.Value, &rule); err != nil {
			fail(line, md, fmt.Errorf("cel: %w", err))
			continue
		}
		mr.CEL = append(mr.CEL, rule)
	}

	oneofs := md.Oneofs()
	for i := 0; i < oneofs.Len(); i++ {
		od := oneofs.Get(i)
		ds, line, err := directivesOf(fd, od)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, d := range ds {
			if d.Option != "required" {
				fail(line, od, fmt.Errorf("unknown oneof option %q", d.Option))
				continue
			}
			var required bool
			if err := yaml.Unmarshal([]byte(d.Value), &required); err != nil {
				fail(line, od, fmt.Errorf("required: %w", err))
				continue
			}
			if mr.Oneofs == nil {
				mr.Oneofs = make(map[string]validation.OneofRules)
			}
			mr.Oneofs[string(od.Name())] = validation.OneofRules{Required: required}
		}
	}

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		field := fields.Get(i)
		ds, line, err := directivesOf(fd, field)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(ds) == 0 {
			continue
		}
		fr, err := FieldRules(ds)
		if err != nil {
			fail(line, field, err)
			continue
		}
		if mr.Fields == nil {
			mr.Fields = make(map[string]validation.FieldRules)
		}
		mr.Fields[string(field.Name())] = *fr
	}

	if len(mr.CEL) > 0 || len(mr.Fields) > 0 || len(mr.Oneofs) > 0 {
		rs.Messages[string(md.FullName())] = mr
	}

	nested := md.Messages()
	for i := 0; i < nested.Len(); i++ {
		errs = append(errs, collectMessage(rs, fd, nested.Get(i)))
	}
	return errors.Join(errs...)
}

// FieldRules folds field directives into one rule value. Options are dotted
// paths into the YAML rule layout, e.g. "repeated.items.int64.gt".
func FieldRules(ds []*Directive) (*validation.FieldRules, error) {
	tree := make(map[string]any)
	for _, d := range ds {
		var value any
		if err := yaml.Unmarshal([]byte(d.Value), &value); err != nil {
			return nil, fmt.Errorf("%s: invalid value %q: %w", d.Option, d.Value, err)
		}
		if err := setPath(tree, strings.Split(d.Option, "."), value); err != nil {
			return nil, fmt.Errorf("%s: %w", d.Option, err)
		}
	}

	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, err
	}
	var fr validation.FieldRules
	if err := decodeStrict(string(data), &fr); err != nil {
		return nil, err
	}
	return &fr, nil
}

func setPath(tree map[string]any, path []string, value any) error {
	for i, key := range path {
		if key == "" {
			return errors.New("empty path segment")
		}
		if i == len(path)-1 {
			if _, taken := tree[key]; taken {
				return fmt.Errorf("%s is set twice", strings.Join(path[:i+1], "."))
			}
			tree[key] = value
			return nil
		}
		next, ok := tree[key]
		if !ok {
			child := make(map[string]any)
			tree[key] = child
			tree = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%s is already set to a value", strings.Join(path[:i+1], "."))
		}
		tree = child
	}
	return nil
}

// decodeStrict decodes YAML and rejects unknown keys
func decodeStrict(src string, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(src)))
	dec.KnownFields(true)
	return dec.Decode(out)
}
