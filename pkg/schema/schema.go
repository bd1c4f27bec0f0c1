package schema

import (
	"sync"

	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/platinummonkey/protoguard/pkg/validation"
)

// Schema is an assembled, immutable set of files. It is safe for concurrent
// use.
type Schema struct {
	// Files are ordered so that every file follows the files it imports
	Files []*File

	messages map[string]*Message
	enums    map[string]*Enum
	services map[string]*Service
	external *protoregistry.Files

	descOnce sync.Once
	desc     *protoregistry.Files
	descErr  error

	rulesOnce sync.Once
	rules     *validation.RuleSet
}

// File returns the file with the given path, or nil
func (s *Schema) File(path string) *File {
	for _, f := range s.Files {
		if f.Path == path {
			return f
		}
	}
	return nil
}

// Message returns the message with the given full name, or nil
func (s *Schema) Message(fullName string) *Message {
	return s.messages[fullName]
}

// Enum returns the enum with the given full name, or nil
func (s *Schema) Enum(fullName string) *Enum {
	return s.enums[fullName]
}

// Service returns the service with the given full name, or nil
func (s *Schema) Service(fullName string) *Service {
	return s.services[fullName]
}

// Messages returns every message, nested ones included, in file order and
// depth first
func (s *Schema) Messages() []*Message {
	var out []*Message
	var walk func(ms []*Message)
	walk = func(ms []*Message) {
		for _, m := range ms {
			out = append(out, m)
			walk(m.Messages)
		}
	}
	for _, f := range s.Files {
		walk(f.Messages)
	}
	return out
}

// Enums returns every enum, file-level ones first, then those nested in
// Messages order
func (s *Schema) Enums() []*Enum {
	var out []*Enum
	for _, f := range s.Files {
		out = append(out, f.Enums...)
	}
	for _, m := range s.Messages() {
		out = append(out, m.Enums...)
	}
	return out
}

// RuleSet collects the validation rules attached to the schema's fields,
// oneofs and messages
func (s *Schema) RuleSet() *validation.RuleSet {
	s.rulesOnce.Do(func() {
		rs := &validation.RuleSet{Messages: make(map[string]validation.MessageTypeRules)}
		for _, m := range s.Messages() {
			mr := validation.MessageTypeRules{CEL: m.CEL}
			for _, f := range m.Fields() {
				if f.Rules == nil {
					continue
				}
				if mr.Fields == nil {
					mr.Fields = make(map[string]validation.FieldRules)
				}
				mr.Fields[f.Name] = *f.Rules
			}
			for _, o := range m.Oneofs() {
				if !o.Required {
					continue
				}
				if mr.Oneofs == nil {
					mr.Oneofs = make(map[string]validation.OneofRules)
				}
				mr.Oneofs[o.Name] = validation.OneofRules{Required: true}
			}
			if len(mr.CEL) > 0 || len(mr.Fields) > 0 || len(mr.Oneofs) > 0 {
				rs.Messages[m.FullName()] = mr
			}
		}
		s.rules = rs
	})
	return s.rules
}
