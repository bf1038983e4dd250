package grpcreflect_test

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection"
	refv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"
	refv1alpha "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/grpc/status"

	"github.com/jhump/dynproto/desc"
	"github.com/jhump/dynproto/dynamic"
	"github.com/jhump/dynproto/grpcreflect"
	"github.com/jhump/dynproto/internal/testprotos"
)

var (
	client      *grpcreflect.Client
	alphaClient *grpcreflect.Client
)

// services reports the test service as though it were registered.
type services struct{}

func (services) GetServiceInfo() map[string]grpc.ServiceInfo {
	return map[string]grpc.ServiceInfo{
		"test.v1.Rot13Service": {Metadata: "test/v1/test.proto"},
	}
}

func TestMain(m *testing.M) {
	code, err := run(m)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run(m *testing.M) (int, error) {
	data, err := testprotos.DescriptorSetBytes(true)
	if err != nil {
		return 0, err
	}
	pool, err := desc.NewPool(data)
	if err != nil {
		return 0, err
	}
	opts := reflection.ServerOptions{
		Services:           services{},
		DescriptorResolver: pool.Registry(),
	}

	// one server with both versions, and one with only v1alpha
	v1, err := serve(func(svr *grpc.Server) {
		refv1.RegisterServerReflectionServer(svr, reflection.NewServerV1(opts))
		refv1alpha.RegisterServerReflectionServer(svr, reflection.NewServer(opts))
	})
	if err != nil {
		return 0, err
	}
	defer v1.stop()
	alpha, err := serve(func(svr *grpc.Server) {
		refv1alpha.RegisterServerReflectionServer(svr, reflection.NewServer(opts))
	})
	if err != nil {
		return 0, err
	}
	defer alpha.stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client = grpcreflect.NewClient(ctx, v1.conn)
	defer client.Reset()
	alphaClient = grpcreflect.NewClient(ctx, alpha.conn)
	defer alphaClient.Reset()

	return m.Run(), nil
}

type server struct {
	svr  *grpc.Server
	conn *grpc.ClientConn
}

func serve(register func(*grpc.Server), opts ...grpc.ServerOption) (*server, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen on socket: %w", err)
	}
	svr := grpc.NewServer(opts...)
	register(svr)
	go func() {
		_ = svr.Serve(l)
	}()
	conn, err := grpc.NewClient(l.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		svr.Stop()
		return nil, fmt.Errorf("failed to create client to %s: %w", l.Addr(), err)
	}
	return &server{svr: svr, conn: conn}, nil
}

func (s *server) stop() {
	_ = s.conn.Close()
	s.svr.Stop()
}

func TestListServices(t *testing.T) {
	for _, c := range []*grpcreflect.Client{client, alphaClient} {
		names, err := c.ListServices()
		require.NoError(t, err)
		assert.Equal(t, []string{"test.v1.Rot13Service"}, names)
	}
}

func TestFileByFilename(t *testing.T) {
	fd, err := client.FileByFilename("test/v1/test.proto")
	require.NoError(t, err)
	assert.Equal(t, "test.v1", fd.GetPackage())
	assert.Contains(t, fd.GetDependency(), "other/v1/other.proto")

	// a dependency is sent along with the file, so this is a cache hit
	other, err := client.FileByFilename("other/v1/other.proto")
	require.NoError(t, err)
	assert.Equal(t, "other.v1", other.GetPackage())

	_, err = client.FileByFilename("does/not/exist.proto")
	require.ErrorIs(t, err, desc.ErrNotFound)
	assert.EqualError(t, err, `file "does/not/exist.proto" not found`)
}

func TestFileContainingSymbol(t *testing.T) {
	for _, c := range []*grpcreflect.Client{client, alphaClient} {
		fd, err := c.FileContainingSymbol("test.legacy.Record")
		require.NoError(t, err)
		assert.Equal(t, "test/legacy/legacy.proto", fd.GetName())

		fd, err = c.FileContainingSymbol("test.v1.Rot13Service.Transform")
		require.NoError(t, err)
		assert.Equal(t, "test/v1/test.proto", fd.GetName())

		_, err = c.FileContainingSymbol("test.v1.Nobody")
		require.ErrorIs(t, err, desc.ErrNotFound)
	}
}

func TestPool(t *testing.T) {
	pool, err := client.Pool()
	require.NoError(t, err)
	sd, err := pool.FindServiceByName("test.v1.Rot13Service")
	require.NoError(t, err)
	mtd := sd.FindMethodByName("Transform")
	require.NotNil(t, mtd)

	// imports came along
	_, err = pool.FindMessageByName("other.v1.Label")
	require.NoError(t, err)
	_, err = pool.FindMessageByName("google.protobuf.Timestamp")
	require.NoError(t, err)
	// but unrelated files did not
	_, err = pool.FindMessageByName("test.legacy.Record")
	require.ErrorIs(t, err, desc.ErrNotFound)

	req, err := dynamic.NewMessageWithValues(mtd.Input(), dynamic.Assign("text", dynamic.ValueOfString("abc")))
	require.NoError(t, err)
	data, err := req.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "\n\x03abc", string(data))
}

func TestPoolSymbols(t *testing.T) {
	pool, err := alphaClient.Pool("test.legacy.Record")
	require.NoError(t, err)
	md, err := pool.FindMessageByName("test.legacy.Record")
	require.NoError(t, err)
	assert.Equal(t, desc.GroupKind, md.FindFieldByName("extra").Kind())
	_, err = pool.FindServiceByName("test.v1.Rot13Service")
	require.ErrorIs(t, err, desc.ErrNotFound)

	_, err = client.Pool("test.v1.Nobody")
	require.ErrorIs(t, err, desc.ErrNotFound)
}

func TestReset(t *testing.T) {
	_, err := client.ListServices()
	require.NoError(t, err)
	client.Reset()
	client.Reset()
	names, err := client.ListServices()
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestConcurrentRequests(t *testing.T) {
	symbols := []string{"test.v1.Person", "test.legacy.Status", "other.v1.Label", "test.v1.Rot13Service"}
	var group errgroup.Group
	for i := range 16 {
		group.Go(func() error {
			_, err := client.FileContainingSymbol(symbols[i%len(symbols)])
			return err
		})
	}
	require.NoError(t, group.Wait())
}

// flakyV1 fails every stream with Unavailable while down is set.
type flakyV1 struct {
	refv1.ServerReflectionServer
	down atomic.Bool
}

func (f *flakyV1) ServerReflectionInfo(stream refv1.ServerReflection_ServerReflectionInfoServer) error {
	if f.down.Load() {
		return status.Error(codes.Unavailable, "going away")
	}
	return f.ServerReflectionServer.ServerReflectionInfo(stream)
}

// methodLog records the full method name of every stream a server accepts.
type methodLog struct {
	mu      sync.Mutex
	methods []string
}

func (l *methodLog) intercept(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	l.mu.Lock()
	l.methods = append(l.methods, info.FullMethod)
	l.mu.Unlock()
	return handler(srv, ss)
}

func (l *methodLog) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ret := l.methods
	l.methods = nil
	return ret
}

func TestRetryV1AfterFallback(t *testing.T) {
	pool := testprotos.Pool(t)
	opts := reflection.ServerOptions{Services: services{}, DescriptorResolver: pool.Registry()}
	v1 := &flakyV1{ServerReflectionServer: reflection.NewServerV1(opts)}
	v1.down.Store(true)
	var log methodLog
	svr, err := serve(func(svr *grpc.Server) {
		refv1.RegisterServerReflectionServer(svr, v1)
		refv1alpha.RegisterServerReflectionServer(svr, reflection.NewServer(opts))
	}, grpc.StreamInterceptor(log.intercept))
	require.NoError(t, err)
	t.Cleanup(svr.stop)

	const (
		v1Method      = "/grpc.reflection.v1.ServerReflection/ServerReflectionInfo"
		v1AlphaMethod = "/grpc.reflection.v1alpha.ServerReflection/ServerReflectionInfo"
	)
	now := time.Unix(1_000_000, 0)
	c := grpcreflect.NewClient(context.Background(), svr.conn)
	t.Cleanup(c.Reset)
	grpcreflect.SetClock(c, func() time.Time { return now })

	_, err = c.ListServices()
	require.NoError(t, err)
	assert.Equal(t, []string{v1Method, v1AlphaMethod}, log.take())

	// v1 is back, but the fallback sticks for a while
	v1.down.Store(false)
	now = now.Add(30 * time.Minute)
	c.Reset()
	_, err = c.ListServices()
	require.NoError(t, err)
	assert.Equal(t, []string{v1AlphaMethod}, log.take())

	now = now.Add(2 * time.Hour)
	c.Reset()
	_, err = c.ListServices()
	require.NoError(t, err)
	assert.Equal(t, []string{v1Method}, log.take())
}
