package violation

import (
	"strings"

	"google.golang.org/protobuf/types/descriptorpb"
)

// FieldType is the protobuf scalar or composite type of a path element
type FieldType = descriptorpb.FieldDescriptorProto_Type

// FieldPathElement is one step of a FieldPath
type FieldPathElement struct {
	FieldNumber int32      `json:"field_number,omitempty"`
	FieldName   string     `json:"field_name,omitempty"`
	FieldType   FieldType  `json:"field_type,omitempty"`
	KeyType     FieldType  `json:"key_type,omitempty"`
	ValueType   FieldType  `json:"value_type,omitempty"`
	Subscript   *Subscript `json:"subscript,omitempty"`
}

// WithSubscript returns a copy of e addressing a single item
func (e FieldPathElement) WithSubscript(s Subscript) FieldPathElement {
	e.Subscript = &s
	return e
}

// String renders the element as name[subscript]
func (e FieldPathElement) String() string {
	if e.Subscript == nil {
		return e.FieldName
	}
	return e.FieldName + "[" + e.Subscript.String() + "]"
}

// FieldPath is an ordered sequence of elements from the root message
type FieldPath struct {
	Elements []FieldPathElement `json:"elements,omitempty"`
}

// NewFieldPath builds a path from elements, copying the slice
func NewFieldPath(elems ...FieldPathElement) FieldPath {
	if len(elems) == 0 {
		return FieldPath{}
	}
	out := make([]FieldPathElement, len(elems))
	copy(out, elems)
	return FieldPath{Elements: out}
}

// Len returns the number of elements
func (p FieldPath) Len() int { return len(p.Elements) }

// Last returns the final element, or false for an empty path
func (p FieldPath) Last() (FieldPathElement, bool) {
	if len(p.Elements) == 0 {
		return FieldPathElement{}, false
	}
	return p.Elements[len(p.Elements)-1], true
}

// Prepend returns a new path with elems placed before p's elements
func (p FieldPath) Prepend(elems ...FieldPathElement) FieldPath {
	out := make([]FieldPathElement, 0, len(elems)+len(p.Elements))
	out = append(out, elems...)
	out = append(out, p.Elements...)
	return FieldPath{Elements: out}
}

// Append returns a new path with elems placed after p's elements
func (p FieldPath) Append(elems ...FieldPathElement) FieldPath {
	out := make([]FieldPathElement, 0, len(elems)+len(p.Elements))
	out = append(out, p.Elements...)
	out = append(out, elems...)
	return FieldPath{Elements: out}
}

// String renders the path in dotted form, e.g. users[2].tags["a"]
func (p FieldPath) String() string {
	var sb strings.Builder
	for i, e := range p.Elements {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(e.String())
	}
	return sb.String()
}

// Ancestors is the stack of enclosing field elements during a recursive
// validate call
type Ancestors struct {
	elems []FieldPathElement
}

// Push adds an element when descending into a nested value
func (a *Ancestors) Push(e FieldPathElement) {
	a.elems = append(a.elems, e)
}

// Pop removes the most recent element when the recursion unwinds
func (a *Ancestors) Pop() {
	if len(a.elems) > 0 {
		a.elems = a.elems[:len(a.elems)-1]
	}
}

// Depth returns the number of enclosing elements
func (a *Ancestors) Depth() int {
	return len(a.elems)
}

// PathTo returns a detached path consisting of all ancestors followed by
// current
func (a *Ancestors) PathTo(current ...FieldPathElement) FieldPath {
	out := make([]FieldPathElement, 0, len(a.elems)+len(current))
	out = append(out, a.elems...)
	out = append(out, current...)
	return FieldPath{Elements: out}
}
