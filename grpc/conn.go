package grpc

import (
	"bytes"
	"context"
	"io"
	"net"
	"time"

	"github.com/essoojay/TrojanRust/utils"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"google.golang.org/grpc/peer"
)

// streamConn is the part shared by ProxyService_ProxyClient and
// ProxyService_ProxyServer that Conn actually needs.
type streamConn interface {
	Context() context.Context
	Send(*GrpcPacket) error
	Recv() (*GrpcPacket, error)
}

// Conn adapts the packet stream to net.Conn so the generic relay can pump
// it. When datagram is set each Write becomes one Datagram packet,
// preserving message boundaries end to end; otherwise payload travels as
// Data packets and is plain bytes.
type Conn struct {
	stream      streamConn
	cacheReader io.Reader
	closeFunc   context.CancelFunc
	closed      atomic.Bool
	datagram    bool
	remote      net.Addr
}

func NewConn(stream streamConn, closeFunc context.CancelFunc, datagram bool) *Conn {
	conn := &Conn{
		stream:    stream,
		closeFunc: closeFunc,
		datagram:  datagram,
	}

	if ad, ok := peer.FromContext(stream.Context()); ok {
		conn.remote = ad.Addr
	} else {
		conn.remote = &net.TCPAddr{IP: net.IPv4zero, Port: 0}
	}

	return conn
}

func (c *Conn) Read(b []byte) (n int, err error) {
	if c.cacheReader == nil {
		for {
			p, err := c.stream.Recv()
			if err != nil {
				return 0, utils.NewErr("grpc read failed", err)
			}
			// control packets carry no payload
			if p.PacketType == PacketTypeData || p.PacketType == PacketTypeDatagram {
				c.cacheReader = bytes.NewReader(p.Payload)
				break
			}
			if ce := utils.CanLogWarn("grpc conn skipping packet with unexpected type"); ce != nil {
				ce.Write(zap.Uint32("type", p.PacketType))
			}
		}
	}
	n, err = c.cacheReader.Read(b)
	if err == io.EOF {
		c.cacheReader = nil
		return n, nil
	}
	return n, err
}

func (c *Conn) Write(b []byte) (n int, err error) {
	pt := PacketTypeData
	if c.datagram {
		pt = PacketTypeDatagram
	}
	err = c.stream.Send(&GrpcPacket{PacketType: pt, Payload: b})
	if err != nil {
		return 0, utils.NewErr("unable to send data over grpc stream", err)
	}
	return len(b), nil
}

func (c *Conn) Close() error {
	if c.closed.CAS(false, true) && c.closeFunc != nil {
		c.closeFunc()
	}
	return nil
}

func (c *Conn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4zero, Port: 0}
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.remote
}

func (*Conn) SetDeadline(time.Time) error      { return nil }
func (*Conn) SetReadDeadline(time.Time) error  { return nil }
func (*Conn) SetWriteDeadline(time.Time) error { return nil }
