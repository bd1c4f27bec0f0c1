package protosource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bufbuild/protocompile"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/validation"
)

// Result holds compiled files and the rules read from their directives
type Result struct {
	Files []protoreflect.FileDescriptor
	Rules *validation.RuleSet
}

// Compiler compiles .proto sources from memory and from disk
type Compiler struct {
	sources     map[string]string
	importPaths []string
	logger      *observability.Logger
}

// Option configures a Compiler
type Option func(*Compiler)

// WithSources adds in-memory sources keyed by import path. They take
// precedence over files on disk.
func WithSources(sources map[string]string) Option {
	return func(c *Compiler) {
		for path, src := range sources {
			c.sources[path] = src
		}
	}
}

// WithImportPaths sets the directories searched for files on disk
func WithImportPaths(paths ...string) Option {
	return func(c *Compiler) {
		c.importPaths = append(c.importPaths, paths...)
	}
}

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// NewCompiler creates a compiler
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		sources: make(map[string]string),
		logger:  observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles the named files along with their imports. Well-known
// google/protobuf imports resolve without a source.
func (c *Compiler) Compile(ctx context.Context, paths ...string) (_ *Result, err error) {
	ctx, span := observability.StartSpan(ctx, "protosource.Compile",
		attribute.Int("protosource.files", len(paths)))
	defer func() { observability.EndSpan(span, err) }()

	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to compile")
	}

	resolvers := protocompile.CompositeResolver{
		&protocompile.SourceResolver{Accessor: c.openSource},
	}
	if len(c.importPaths) > 0 {
		resolvers = append(resolvers, &protocompile.SourceResolver{ImportPaths: c.importPaths})
	}
	compiler := protocompile.Compiler{
		Resolver:       protocompile.WithStandardImports(resolvers),
		SourceInfoMode: protocompile.SourceInfoStandard,
	}

	compiled, err := compiler.Compile(ctx, paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s: %w", strings.Join(paths, ", "), err)
	}

	files := make([]protoreflect.FileDescriptor, 0, len(compiled))
	for _, f := range compiled {
		files = append(files, f)
	}

	rules, err := RulesFromFiles(files)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"files":    len(files),
		"messages": len(rules.Messages),
	}).Debug("Compiled proto sources")

	return &Result{Files: files, Rules: rules}, nil
}

// CompileAll compiles every in-memory source, or when there are none,
// every .proto file under the first import path
func (c *Compiler) CompileAll(ctx context.Context) (*Result, error) {
	var paths []string
	for path := range c.sources {
		paths = append(paths, path)
	}
	if len(paths) == 0 && len(c.importPaths) > 0 {
		found, err := FindProtoFiles(c.importPaths[0])
		if err != nil {
			return nil, err
		}
		paths = found
	}
	sort.Strings(paths)
	return c.Compile(ctx, paths...)
}

// FindProtoFiles lists the .proto files under root as slash-separated paths
// relative to root
func FindProtoFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".proto" {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (c *Compiler) openSource(path string) (io.ReadCloser, error) {
	src, ok := c.sources[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(src)), nil
}

// Registry returns the compiled files and everything they import
func (r *Result) Registry() (*protoregistry.Files, error) {
	reg := new(protoregistry.Files)
	seen := make(map[string]bool)
	var register func(fd protoreflect.FileDescriptor) error
	register = func(fd protoreflect.FileDescriptor) error {
		if seen[fd.Path()] {
			return nil
		}
		seen[fd.Path()] = true
		imports := fd.Imports()
		for i := 0; i < imports.Len(); i++ {
			if err := register(imports.Get(i).FileDescriptor); err != nil {
				return err
			}
		}
		return reg.RegisterFile(fd)
	}
	for _, fd := range r.Files {
		if err := register(fd); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// ErrTypeNotFound is returned when a name does not resolve to a message type
var ErrTypeNotFound = errors.New("message type not found")

// FindMessage looks a message type up in the compiled files and their
// imports
func (r *Result) FindMessage(name protoreflect.FullName) (protoreflect.MessageDescriptor, error) {
	reg, err := r.Registry()
	if err != nil {
		return nil, err
	}
	return findMessage(reg, name)
}

func findMessage(reg *protoregistry.Files, name protoreflect.FullName) (protoreflect.MessageDescriptor, error) {
	d, err := reg.FindDescriptorByName(name)
	if err != nil {
		return nil, fmt.Errorf("message type %s not found: %w", name, errors.Join(ErrTypeNotFound, err))
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("%s is not a message type: %w", name, ErrTypeNotFound)
	}
	return md, nil
}

// MessageTypes lists the message types declared in the compiled files,
// nested ones included, skipping map entries
func (r *Result) MessageTypes() []protoreflect.MessageDescriptor {
	var out []protoreflect.MessageDescriptor
	var walk func(ms protoreflect.MessageDescriptors)
	walk = func(ms protoreflect.MessageDescriptors) {
		for i := 0; i < ms.Len(); i++ {
			md := ms.Get(i)
			if md.IsMapEntry() {
				continue
			}
			out = append(out, md)
			walk(md.Messages())
		}
	}
	for _, fd := range r.Files {
		walk(fd.Messages())
	}
	return out
}
