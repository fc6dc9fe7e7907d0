package grpc

import (
	"google.golang.org/grpc"
)

// ProxyServiceServer is the server half of the tunnel, implemented by the
// remote proxy peer (and by our test stubs).
type ProxyServiceServer interface {
	Proxy(ProxyService_ProxyServer) error
}

type ProxyService_ProxyServer interface {
	Send(*GrpcPacket) error
	Recv() (*GrpcPacket, error)
	grpc.ServerStream
}

type proxyServiceProxyServer struct {
	grpc.ServerStream
}

func (x *proxyServiceProxyServer) Send(m *GrpcPacket) error {
	return x.ServerStream.SendMsg(m)
}

func (x *proxyServiceProxyServer) Recv() (*GrpcPacket, error) {
	m := new(GrpcPacket)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func proxyHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ProxyServiceServer).Proxy(&proxyServiceProxyServer{stream})
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ProxyServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    proxyStreamDesc.StreamName,
			Handler:       proxyHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "grpc/stream.proto",
}

func RegisterProxyServiceServer(s *grpc.Server, srv ProxyServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}
