// Package desc contains an immutable pool of linked protobuf descriptors and
// read-only views of the messages, fields, enums, services, and methods in
// it.
//
// A Pool is built once from a serialized FileDescriptorSet, such as the
// output of "protoc --include_imports -o". All cross references are resolved
// while the pool is built, so lookups afterwards are simple map accesses.
// A Pool and every descriptor obtained from it are safe for concurrent use.
package desc

import (
	"fmt"
	"sort"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	// Linked so that their files are present in protoregistry.GlobalFiles
	// and can satisfy imports that a descriptor set omits.
	_ "google.golang.org/protobuf/types/known/anypb"
	_ "google.golang.org/protobuf/types/known/durationpb"
	_ "google.golang.org/protobuf/types/known/emptypb"
	_ "google.golang.org/protobuf/types/known/fieldmaskpb"
	_ "google.golang.org/protobuf/types/known/structpb"
	_ "google.golang.org/protobuf/types/known/timestamppb"
	_ "google.golang.org/protobuf/types/known/wrapperspb"
)

// Pool is an immutable collection of linked descriptors.
type Pool struct {
	files    *protoregistry.Files
	types    *dynamicpb.Types
	paths    []string
	messages map[string]*MessageDescriptor
	enums    map[string]*EnumDescriptor
	services map[string]*ServiceDescriptor
}

// PoolOption is an option that can be used to customize how a Pool is built.
type PoolOption interface {
	apply(*poolOptions)
}

type poolOptions struct {
	imports    protodesc.Resolver
	anyImports bool
}

type poolOptionFunc func(*poolOptions)

func (f poolOptionFunc) apply(opts *poolOptions) {
	f(opts)
}

// WithoutWellKnownImports returns a PoolOption that requires the descriptor
// set to contain every imported file. By default, imports of the standard
// files under "google/protobuf/" that the set omits are satisfied from the
// well-known types linked into this program.
func WithoutWellKnownImports() PoolOption {
	return poolOptionFunc(func(opts *poolOptions) {
		opts.imports = nil
	})
}

// WithImportResolver returns a PoolOption that satisfies any import the
// descriptor set omits from the given resolver.
func WithImportResolver(res protodesc.Resolver) PoolOption {
	return poolOptionFunc(func(opts *poolOptions) {
		opts.imports = res
		opts.anyImports = true
	})
}

// NewPool decodes the given serialized FileDescriptorSet and links its
// files into a pool. It returns a *SchemaDecodeError if the bytes are not
// a valid FileDescriptorSet or if the files cannot be linked.
func NewPool(data []byte, opts ...PoolOption) (*Pool, error) {
	var fds descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(data, &fds); err != nil {
		return nil, &SchemaDecodeError{Err: err}
	}
	return NewPoolFromSet(&fds, opts...)
}

// NewPoolFromSet links the files in the given set into a pool. Files may
// appear in any order.
func NewPoolFromSet(fds *descriptorpb.FileDescriptorSet, opts ...PoolOption) (*Pool, error) {
	options := poolOptions{imports: protoregistry.GlobalFiles}
	for _, opt := range opts {
		opt.apply(&options)
	}

	l := &linker{
		protos:  map[string]*descriptorpb.FileDescriptorProto{},
		files:   &protoregistry.Files{},
		opts:    options,
		linking: map[string]bool{},
		linked:  map[string]protoreflect.FileDescriptor{},
	}
	var names []string
	for _, fdp := range fds.GetFile() {
		name := fdp.GetName()
		if _, ok := l.protos[name]; ok {
			return nil, &SchemaDecodeError{File: name, Err: fmt.Errorf("file appears more than once in descriptor set")}
		}
		l.protos[name] = fdp
		names = append(names, name)
	}
	for _, name := range names {
		if err := l.link(name, ""); err != nil {
			return nil, err
		}
	}

	p := &Pool{
		files:    l.files,
		types:    dynamicpb.NewTypes(l.files),
		messages: map[string]*MessageDescriptor{},
		enums:    map[string]*EnumDescriptor{},
		services: map[string]*ServiceDescriptor{},
	}
	for _, fd := range l.ordered {
		p.paths = append(p.paths, fd.Path())
		p.indexFile(fd)
	}
	p.link()
	return p, nil
}

// linker links file descriptor protos in import order, regardless of the
// order in which they appear in the set.
type linker struct {
	protos  map[string]*descriptorpb.FileDescriptorProto
	files   *protoregistry.Files
	opts    poolOptions
	linking map[string]bool
	linked  map[string]protoreflect.FileDescriptor
	ordered []protoreflect.FileDescriptor
}

func (l *linker) link(name, importedBy string) error {
	if _, ok := l.linked[name]; ok {
		return nil
	}
	if l.linking[name] {
		return &SchemaDecodeError{File: name, Err: fmt.Errorf("import cycle detected")}
	}
	fdp, ok := l.protos[name]
	if !ok {
		return l.linkImport(name, importedBy)
	}
	l.linking[name] = true
	for _, dep := range fdp.GetDependency() {
		if err := l.link(dep, name); err != nil {
			return err
		}
	}
	delete(l.linking, name)

	fd, err := protodesc.NewFile(fdp, l.files)
	if err != nil {
		return &SchemaDecodeError{File: name, Err: err}
	}
	return l.register(fd)
}

// linkImport satisfies an import that is absent from the set using the
// configured import resolver.
func (l *linker) linkImport(name, importedBy string) error {
	notFound := &SchemaDecodeError{File: importedBy, Err: fmt.Errorf("imported file %q is not in descriptor set", name)}
	if l.opts.imports == nil || (!l.opts.anyImports && !strings.HasPrefix(name, "google/protobuf/")) {
		return notFound
	}
	fd, err := l.opts.imports.FindFileByPath(name)
	if err != nil {
		return notFound
	}
	l.linking[name] = true
	imps := fd.Imports()
	for i, length := 0, imps.Len(); i < length; i++ {
		if err := l.link(imps.Get(i).Path(), name); err != nil {
			return err
		}
	}
	delete(l.linking, name)
	return l.register(fd)
}

func (l *linker) register(fd protoreflect.FileDescriptor) error {
	if err := l.files.RegisterFile(fd); err != nil {
		return &SchemaDecodeError{File: fd.Path(), Err: err}
	}
	l.linked[fd.Path()] = fd
	l.ordered = append(l.ordered, fd)
	return nil
}

// FindMessageByName returns the message with the given fully-qualified
// name. Lookup is exact and case-sensitive. If there is no such message,
// a *NotFoundError is returned.
func (p *Pool) FindMessageByName(name string) (*MessageDescriptor, error) {
	if md, ok := p.messages[name]; ok {
		return md, nil
	}
	return nil, &NotFoundError{What: "message", Name: name}
}

// FindServiceByName returns the service with the given fully-qualified
// name. If there is no such service, a *NotFoundError is returned.
func (p *Pool) FindServiceByName(name string) (*ServiceDescriptor, error) {
	if sd, ok := p.services[name]; ok {
		return sd, nil
	}
	return nil, &NotFoundError{What: "service", Name: name}
}

// FindEnumByName returns the enum with the given fully-qualified name. If
// there is no such enum, a *NotFoundError is returned.
func (p *Pool) FindEnumByName(name string) (*EnumDescriptor, error) {
	if ed, ok := p.enums[name]; ok {
		return ed, nil
	}
	return nil, &NotFoundError{What: "enum", Name: name}
}

// FindMessageByURL returns the message named by the given Any type URL,
// which is the part after the last slash.
func (p *Pool) FindMessageByURL(url string) (*MessageDescriptor, error) {
	name := url
	if pos := strings.LastIndexByte(url, '/'); pos >= 0 {
		name = url[pos+1:]
	}
	return p.FindMessageByName(name)
}

// Messages returns every message in the pool, including nested and map
// entry types, sorted by full name.
func (p *Pool) Messages() []*MessageDescriptor {
	ret := make([]*MessageDescriptor, 0, len(p.messages))
	for _, md := range p.messages {
		ret = append(ret, md)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].FullName() < ret[j].FullName()
	})
	return ret
}

// Services returns every service in the pool, sorted by full name.
func (p *Pool) Services() []*ServiceDescriptor {
	ret := make([]*ServiceDescriptor, 0, len(p.services))
	for _, sd := range p.services {
		ret = append(ret, sd)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].FullName() < ret[j].FullName()
	})
	return ret
}

// Files returns the paths of the files in the pool in import order: each
// file comes after all of the files it imports.
func (p *Pool) Files() []string {
	ret := make([]string, len(p.paths))
	copy(ret, p.paths)
	return ret
}

// Registry returns the linked files. Callers must not register additional
// files with it.
func (p *Pool) Registry() *protoregistry.Files {
	return p.files
}

// Types returns a resolver of dynamic message types for every message in
// the pool. It is suitable for resolving Any type URLs with the
// protojson and prototext packages.
func (p *Pool) Types() *dynamicpb.Types {
	return p.types
}
