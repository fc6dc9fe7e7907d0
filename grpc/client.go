package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
)

const (
	serviceName = "trojan.ProxyService"
	proxyMethod = "/" + serviceName + "/Proxy"
)

// proxyStreamDesc is shared by client and server; the rpc is a plain
// bidirectional stream.
var proxyStreamDesc = grpc.StreamDesc{
	StreamName:    "Proxy",
	ServerStreams: true,
	ClientStreams: true,
}

// Dial connects to the remote grpc endpoint. The call blocks until the
// underlying transport is up; a non-temporary dial error such as a refused
// port fails the call instead of being retried forever, so unreachable
// peers surface here rather than hanging the session.
func Dial(addrStr string, creds credentials.TransportCredentials) (*grpc.ClientConn, error) {
	return grpc.Dial(addrStr,
		grpc.WithTransportCredentials(creds),
		grpc.WithBlock(),
		grpc.FailOnNonTempDialError(true),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  500 * time.Millisecond,
				Multiplier: 1.5,
				Jitter:     0.2,
				MaxDelay:   19 * time.Second,
			},
			MinConnectTimeout: 5 * time.Second,
		}),
	)
}

type ProxyServiceClient interface {
	Proxy(ctx context.Context, opts ...grpc.CallOption) (ProxyService_ProxyClient, error)
}

type ProxyService_ProxyClient interface {
	Send(*GrpcPacket) error
	Recv() (*GrpcPacket, error)
	grpc.ClientStream
}

type proxyServiceClient struct {
	cc *grpc.ClientConn
}

func NewProxyServiceClient(cc *grpc.ClientConn) ProxyServiceClient {
	return &proxyServiceClient{cc: cc}
}

func (c *proxyServiceClient) Proxy(ctx context.Context, opts ...grpc.CallOption) (ProxyService_ProxyClient, error) {
	opts = append([]grpc.CallOption{grpc.ForceCodec(packetCodec{})}, opts...)
	stream, err := c.cc.NewStream(ctx, &proxyStreamDesc, proxyMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &proxyServiceProxyClient{stream}, nil
}

type proxyServiceProxyClient struct {
	grpc.ClientStream
}

func (x *proxyServiceProxyClient) Send(m *GrpcPacket) error {
	return x.ClientStream.SendMsg(m)
}

func (x *proxyServiceProxyClient) Recv() (*GrpcPacket, error) {
	m := new(GrpcPacket)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
