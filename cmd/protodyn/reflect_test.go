package main

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	refv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"

	"github.com/jhump/dynproto/internal/testprotos"
)

type services []string

func (s services) GetServiceInfo() map[string]grpc.ServiceInfo {
	info := map[string]grpc.ServiceInfo{}
	for _, name := range s {
		info[name] = grpc.ServiceInfo{}
	}
	return info
}

// reflectionServer starts a server that describes the test schema and
// returns its address.
func reflectionServer(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	svr := grpc.NewServer()
	refv1.RegisterServerReflectionServer(svr, reflection.NewServerV1(reflection.ServerOptions{
		Services:           services{"test.v1.Rot13Service"},
		DescriptorResolver: testprotos.Pool(t).Registry(),
	}))
	go func() {
		_ = svr.Serve(l)
	}()
	t.Cleanup(svr.Stop)
	return l.Addr().String()
}

func TestReflect(t *testing.T) {
	addr := reflectionServer(t)

	res := run(t, "", "describe", "--reflect", addr, "test.v1.Rot13Service")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Transform(test.v1.Rot13Request) returns (test.v1.Rot13Response)")

	res = run(t, `{"text":"abc"}`, "convert", "--reflect", addr, "-t", "test.v1.Rot13Request", "--from", "json", "--to", "text")
	require.Equal(t, 0, res.code, res.stderr)
	assert.Equal(t, `text:"abc"`+"\n", res.stdout)

	// only files reachable from the listed services are downloaded
	res = run(t, "", "describe", "--reflect", addr, "test.legacy.Record")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.stderr, "no message, enum, or service")
}
