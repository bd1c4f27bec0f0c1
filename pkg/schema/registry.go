package schema

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/reflect/protoregistry"

	"github.com/platinummonkey/protoguard/pkg/observability"
)

// packageFragments is the flat collection of one package. parents maps the
// relative name of every nested declaration to the name of its parent.
type packageFragments struct {
	name       string
	files      map[string]FileDecl
	fileOrder  []string
	messages   map[string]MessageDecl
	enums      map[string]EnumDecl
	services   map[string]ServiceDecl
	extensions []ExtensionDecl
	parents    map[string]string
}

func newPackageFragments(name string) *packageFragments {
	return &packageFragments{
		name:     name,
		files:    make(map[string]FileDecl),
		messages: make(map[string]MessageDecl),
		enums:    make(map[string]EnumDecl),
		services: make(map[string]ServiceDecl),
		parents:  make(map[string]string),
	}
}

// Registry collects schema fragments per package until Assemble links them.
// Registration is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	packages map[string]*packageFragments
	order    []string

	logger   *observability.Logger
	recorder observability.Recorder
	external *protoregistry.Files
}

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger for assembly diagnostics
func WithLogger(l *observability.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder sets the metrics sink
func WithRecorder(rec observability.Recorder) Option {
	return func(r *Registry) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithExternalFiles makes the types of files resolvable by references
// without registering them as fragments. Well-known types are always
// resolvable.
func WithExternalFiles(files *protoregistry.Files) Option {
	return func(r *Registry) {
		r.external = files
	}
}

// NewRegistry returns an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		packages: make(map[string]*packageFragments),
		logger:   observability.NewNopLogger(),
		recorder: observability.NopRecorder{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) pkg(name string) *packageFragments {
	p, ok := r.packages[name]
	if !ok {
		p = newPackageFragments(name)
		r.packages[name] = p
		r.order = append(r.order, name)
	}
	return p
}

// AddFile registers a file of pkg
func (r *Registry) AddFile(pkg string, d FileDecl) error {
	if d.Path == "" {
		return fmt.Errorf("file of package %q has no path", pkg)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, p := range r.packages {
		if _, ok := p.files[d.Path]; ok {
			return fmt.Errorf("file %q already registered in package %q", d.Path, name)
		}
	}
	p := r.pkg(pkg)
	p.files[d.Path] = d
	p.fileOrder = append(p.fileOrder, d.Path)
	return nil
}

// AddMessage registers a message of pkg
func (r *Registry) AddMessage(pkg string, d MessageDecl) error {
	if d.Name == "" {
		return fmt.Errorf("message of package %q has no name", pkg)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.pkg(pkg)
	key := relativeName(d.Parent, d.Name)
	if err := p.claim(key); err != nil {
		return err
	}
	p.messages[key] = d
	if d.Parent != "" {
		p.parents[key] = d.Parent
	}
	return nil
}

// AddEnum registers an enum of pkg
func (r *Registry) AddEnum(pkg string, d EnumDecl) error {
	if d.Name == "" {
		return fmt.Errorf("enum of package %q has no name", pkg)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.pkg(pkg)
	key := relativeName(d.Parent, d.Name)
	if err := p.claim(key); err != nil {
		return err
	}
	p.enums[key] = d
	if d.Parent != "" {
		p.parents[key] = d.Parent
	}
	return nil
}

// AddService registers a service of pkg
func (r *Registry) AddService(pkg string, d ServiceDecl) error {
	if d.Name == "" {
		return fmt.Errorf("service of package %q has no name", pkg)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.pkg(pkg)
	if err := p.claim(d.Name); err != nil {
		return err
	}
	p.services[d.Name] = d
	return nil
}

// AddExtension registers extension fields declared in pkg
func (r *Registry) AddExtension(pkg string, d ExtensionDecl) error {
	if d.Target == "" {
		return fmt.Errorf("extension of package %q has no target", pkg)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.pkg(pkg)
	p.extensions = append(p.extensions, d)
	return nil
}

// claim reports a name already used by another declaration of the package
func (p *packageFragments) claim(key string) error {
	_, m := p.messages[key]
	_, e := p.enums[key]
	_, s := p.services[key]
	if m || e || s {
		return fmt.Errorf("%s is already registered", qualify(p.name, key))
	}
	return nil
}

func qualify(pkg, name string) string {
	if pkg == "" {
		return name
	}
	return pkg + "." + name
}
