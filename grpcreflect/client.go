package grpcreflect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	refv1 "google.golang.org/grpc/reflection/grpc_reflection_v1"
	refv1alpha "google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/jhump/dynproto/desc"
)

// A request is attempted this many times, each on a fresh stream, before
// giving up.
const maxAttempts = 3

// After falling back to v1alpha, v1 is tried again once this much time has
// passed.
const durationBetweenV1Attempts = time.Hour

// ProtocolError is returned when the server sends a response of the wrong
// kind.
type ProtocolError struct {
	// Missing names the response that was expected.
	Missing string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: response was missing %s", e.Missing)
}

// Client is a connection to a server's reflection service. It keeps a
// single stream open and caches every file it downloads. It is safe for
// concurrent use.
type Client struct {
	ctx         context.Context
	stubV1      refv1.ServerReflectionClient
	stubV1Alpha refv1alpha.ServerReflectionClient
	now         func() time.Time

	connMu      sync.Mutex
	cancel      context.CancelFunc
	stream      reflectionStream
	useV1Alpha  bool
	lastTriedV1 time.Time

	cacheMu sync.RWMutex
	files   map[string]*descriptorpb.FileDescriptorProto
}

// NewClient creates a client that talks to the reflection service over cc.
// It uses the v1 version of the service, falling back to v1alpha if the
// server does not implement v1. Streams are bound to ctx.
func NewClient(ctx context.Context, cc grpc.ClientConnInterface) *Client {
	return &Client{
		ctx:         ctx,
		stubV1:      refv1.NewServerReflectionClient(cc),
		stubV1Alpha: refv1alpha.NewServerReflectionClient(cc),
		now:         time.Now,
		files:       map[string]*descriptorpb.FileDescriptorProto{},
	}
}

// ListServices asks the server for the fully-qualified names of the
// services it exposes, sorted.
func (c *Client) ListServices() ([]string, error) {
	resp, err := c.send(&refv1.ServerReflectionRequest{
		MessageRequest: &refv1.ServerReflectionRequest_ListServices{ListServices: "*"},
	})
	if err != nil {
		return nil, err
	}
	listResp := resp.GetListServicesResponse()
	if listResp == nil {
		return nil, &ProtocolError{Missing: "list_services_response"}
	}
	names := make([]string, len(listResp.GetService()))
	for i, svc := range listResp.GetService() {
		names[i] = svc.GetName()
	}
	slices.Sort(names)
	return names, nil
}

// FileByFilename returns the descriptor of the file with the given path.
// Files already downloaded, including those sent as the dependencies of
// earlier answers, are served from the cache.
func (c *Client) FileByFilename(name string) (*descriptorpb.FileDescriptorProto, error) {
	if fd := c.cached(name); fd != nil {
		return fd, nil
	}
	files, err := c.fetch(&refv1.ServerReflectionRequest{
		MessageRequest: &refv1.ServerReflectionRequest_FileByFilename{FileByFilename: name},
	})
	if isNotFound(err) {
		return nil, &desc.NotFoundError{What: "file", Name: name}
	} else if err != nil {
		return nil, err
	}
	for _, fd := range files {
		if fd.GetName() == name {
			return fd, nil
		}
	}
	return nil, &desc.NotFoundError{What: "file", Name: name}
}

// FileContainingSymbol returns the descriptor of the file that declares
// the given fully-qualified element name.
func (c *Client) FileContainingSymbol(symbol string) (*descriptorpb.FileDescriptorProto, error) {
	files, err := c.fetch(&refv1.ServerReflectionRequest{
		MessageRequest: &refv1.ServerReflectionRequest_FileContainingSymbol{FileContainingSymbol: symbol},
	})
	if isNotFound(err) {
		return nil, &desc.NotFoundError{What: "symbol", Name: symbol}
	} else if err != nil {
		return nil, err
	}
	// the answer comes first, followed by any dependencies not sent before
	if len(files) == 0 {
		return nil, &ProtocolError{Missing: "file_descriptor_proto"}
	}
	return files[0], nil
}

// Pool downloads the files that declare the given symbols, along with all
// of their imports, and links them into a pool. With no symbols, it uses
// every service the server lists.
func (c *Client) Pool(symbols ...string) (*desc.Pool, error) {
	if len(symbols) == 0 {
		services, err := c.ListServices()
		if err != nil {
			return nil, err
		}
		symbols = services
	}

	fds := &descriptorpb.FileDescriptorSet{}
	seen := map[string]bool{}
	var add func(fd *descriptorpb.FileDescriptorProto) error
	add = func(fd *descriptorpb.FileDescriptorProto) error {
		if seen[fd.GetName()] {
			return nil
		}
		seen[fd.GetName()] = true
		for _, dep := range fd.GetDependency() {
			depFd, err := c.FileByFilename(dep)
			if err != nil {
				return fmt.Errorf("resolving import %q of %q: %w", dep, fd.GetName(), err)
			}
			if err := add(depFd); err != nil {
				return err
			}
		}
		fds.File = append(fds.File, fd)
		return nil
	}
	for _, symbol := range symbols {
		fd, err := c.FileContainingSymbol(symbol)
		if err != nil {
			return nil, err
		}
		if err := add(fd); err != nil {
			return nil, err
		}
	}
	return desc.NewPoolFromSet(fds)
}

func (c *Client) cached(name string) *descriptorpb.FileDescriptorProto {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return c.files[name]
}

// fetch sends a request whose answer is a set of files and adds them to the
// cache. Files already in the cache are kept in preference to new copies.
func (c *Client) fetch(req *refv1.ServerReflectionRequest) ([]*descriptorpb.FileDescriptorProto, error) {
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}
	fdResp := resp.GetFileDescriptorResponse()
	if fdResp == nil {
		return nil, &ProtocolError{Missing: "file_descriptor_response"}
	}

	files := make([]*descriptorpb.FileDescriptorProto, 0, len(fdResp.GetFileDescriptorProto()))
	for _, data := range fdResp.GetFileDescriptorProto() {
		fd := &descriptorpb.FileDescriptorProto{}
		if err := proto.Unmarshal(data, fd); err != nil {
			return nil, err
		}
		c.cacheMu.Lock()
		if existing, ok := c.files[fd.GetName()]; ok {
			fd = existing
		} else {
			c.files[fd.GetName()] = fd
		}
		c.cacheMu.Unlock()
		files = append(files, fd)
	}
	return files, nil
}

func (c *Client) send(req *refv1.ServerReflectionRequest) (*refv1.ServerReflectionResponse, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	var err error
	for range maxAttempts {
		var resp *refv1.ServerReflectionResponse
		resp, err = c.sendLocked(req)
		if err == nil {
			if errResp := resp.GetErrorResponse(); errResp != nil {
				return nil, status.Errorf(codes.Code(errResp.GetErrorCode()), "%s", errResp.GetErrorMessage())
			}
			return resp, nil
		}
		c.resetLocked()
		if code := status.Code(err); (code == codes.Unimplemented || code == codes.Unavailable) && !c.useV1Alpha {
			// Some servers close the stream without a status when they do
			// not know the service, which surfaces as unavailable.
			c.fallBackLocked()
		}
		if c.ctx.Err() != nil {
			break
		}
	}
	return nil, err
}

func (c *Client) sendLocked(req *refv1.ServerReflectionRequest) (*refv1.ServerReflectionResponse, error) {
	if err := c.initStreamLocked(); err != nil {
		return nil, err
	}
	if err := c.stream.Send(req); err != nil {
		if errors.Is(err, io.EOF) {
			// the real error is reported by Recv
			_, err = c.stream.Recv()
		}
		return nil, err
	}
	return c.stream.Recv()
}

func (c *Client) initStreamLocked() error {
	if c.stream != nil {
		return nil
	}
	var ctx context.Context
	ctx, c.cancel = context.WithCancel(c.ctx)
	if c.useV1Alpha && c.now().Sub(c.lastTriedV1) > durationBetweenV1Attempts {
		c.useV1Alpha = false
	}
	if !c.useV1Alpha {
		stream, err := c.stubV1.ServerReflectionInfo(ctx)
		if err == nil {
			c.stream = stream
			return nil
		}
		if status.Code(err) != codes.Unimplemented {
			return err
		}
		c.fallBackLocked()
	}
	stream, err := c.stubV1Alpha.ServerReflectionInfo(ctx)
	if err != nil {
		return err
	}
	c.stream = v1AlphaStream{stream}
	return nil
}

func (c *Client) fallBackLocked() {
	c.useV1Alpha = true
	c.lastTriedV1 = c.now()
}

// Reset closes the current stream, if any. The next request opens a new
// one. The cache is kept.
func (c *Client) Reset() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.resetLocked()
}

func (c *Client) resetLocked() {
	if c.stream != nil {
		_ = c.stream.CloseSend()
		for {
			// drain, which also covers io.EOF
			if _, err := c.stream.Recv(); err != nil {
				break
			}
		}
		c.stream = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
