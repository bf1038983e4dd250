// Command protodyn converts protobuf messages between the wire, text, and
// JSON formats, and describes the types in a schema, using only runtime
// descriptors. The schema is a serialized FileDescriptorSet (as produced by
// "protoc --include_imports -o") or a set of .proto sources.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
