// Package testprotos provides the schemas used by tests. The sources are
// embedded and compiled on demand with protocompile, so no generated code
// or checked-in descriptor sets are needed.
package testprotos

import (
	"context"
	"embed"
	"io/fs"
	"strings"
	"sync"
	"testing"

	"github.com/bufbuild/protocompile"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/jhump/dynproto/desc"
)

//go:embed protos
var sources embed.FS

// Files are the paths of the test files, relative to the import root.
var Files = []string{
	"test/v1/test.proto",
	"test/legacy/legacy.proto",
}

var (
	compileOnce sync.Once
	compiled    []protoreflect.FileDescriptor
	compileErr  error
)

// Compile compiles the embedded test sources. Results are cached.
func Compile() ([]protoreflect.FileDescriptor, error) {
	compileOnce.Do(func() {
		files := map[string]string{}
		compileErr = fs.WalkDir(sources, "protos", func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			data, err := sources.ReadFile(path)
			if err != nil {
				return err
			}
			files[strings.TrimPrefix(path, "protos/")] = string(data)
			return nil
		})
		if compileErr != nil {
			return
		}
		compiler := protocompile.Compiler{
			Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
				Accessor: protocompile.SourceAccessorFromMap(files),
			}),
		}
		results, err := compiler.Compile(context.Background(), Files...)
		if err != nil {
			compileErr = err
			return
		}
		for _, res := range results {
			compiled = append(compiled, res)
		}
	})
	return compiled, compileErr
}

// DescriptorSet returns a set containing the test files and their
// dependencies, with every file after the files it imports. If
// includeImports is false, the standard files under "google/protobuf/" are
// left out.
func DescriptorSet(includeImports bool) (*descriptorpb.FileDescriptorSet, error) {
	files, err := Compile()
	if err != nil {
		return nil, err
	}
	fds := &descriptorpb.FileDescriptorSet{}
	seen := map[string]bool{}
	var add func(fd protoreflect.FileDescriptor)
	add = func(fd protoreflect.FileDescriptor) {
		if seen[fd.Path()] {
			return
		}
		seen[fd.Path()] = true
		imps := fd.Imports()
		for i, length := 0, imps.Len(); i < length; i++ {
			add(imps.Get(i).FileDescriptor)
		}
		if !includeImports && strings.HasPrefix(fd.Path(), "google/protobuf/") {
			return
		}
		fds.File = append(fds.File, protodesc.ToFileDescriptorProto(fd))
	}
	for _, fd := range files {
		add(fd)
	}
	return fds, nil
}

// DescriptorSetBytes returns the serialized form of DescriptorSet.
func DescriptorSetBytes(includeImports bool) ([]byte, error) {
	fds, err := DescriptorSet(includeImports)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(fds)
}

var (
	poolOnce sync.Once
	pool     *desc.Pool
	poolErr  error
)

// Pool returns a pool built from the test files, including their imports.
// The same pool is returned on every call, so descriptors obtained from
// different calls can be mixed. It fails the test on error.
func Pool(t testing.TB) *desc.Pool {
	t.Helper()
	poolOnce.Do(func() {
		var data []byte
		data, poolErr = DescriptorSetBytes(true)
		if poolErr == nil {
			pool, poolErr = desc.NewPool(data)
		}
	})
	require.NoError(t, poolErr)
	return pool
}

// Message returns the named message from the pool returned by Pool.
func Message(t testing.TB, name string) *desc.MessageDescriptor {
	t.Helper()
	md, err := Pool(t).FindMessageByName(name)
	require.NoError(t, err)
	return md
}
