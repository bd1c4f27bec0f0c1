package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is matched by errors reporting a missing fragment or type
var ErrNotFound = errors.New("not found")

// NotFoundError reports a reference to something never registered
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return "could not find data for " + e.What
}

// Is makes NotFoundError match ErrNotFound
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(format string, args ...any) error {
	return &NotFoundError{What: fmt.Sprintf(format, args...)}
}

// AssemblyError aggregates every defect found by Assemble. No schema is
// produced when it is returned.
type AssemblyError struct {
	Errors []error
}

func (e *AssemblyError) Error() string {
	if len(e.Errors) == 1 {
		return "schema assembly failed: " + e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "schema assembly failed: %d errors", len(e.Errors))
	for _, err := range e.Errors {
		sb.WriteString("\n - ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As
func (e *AssemblyError) Unwrap() []error {
	return e.Errors
}

// errList collects errors with a common prefix
type errList struct {
	errs []error
}

func (l *errList) add(err error, format string, args ...any) {
	if err == nil {
		return
	}
	l.errs = append(l.errs, fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err))
}

func (l *errList) addf(format string, args ...any) {
	l.errs = append(l.errs, fmt.Errorf(format, args...))
}

func (l *errList) push(err error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}

func (l *errList) err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return &AssemblyError{Errors: l.errs}
}
