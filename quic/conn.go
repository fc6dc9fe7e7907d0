package quic

import (
	"net"

	"github.com/lucas-clemente/quic-go"
	"go.uber.org/atomic"
)

// StreamConn makes a quic.Stream satisfy net.Conn. quic.Stream carries no
// addresses of its own, it is identified by StreamID; the wrapped
// connection's addresses stand in.
type StreamConn struct {
	quic.Stream
	laddr, raddr net.Addr
	closed       atomic.Bool
}

func (sc *StreamConn) LocalAddr() net.Addr {
	return sc.laddr
}

func (sc *StreamConn) RemoteAddr() net.Addr {
	return sc.raddr
}

// Close cancels both directions. quic-go streams are duplex and
// Stream.Close only shuts down the send side, so the read side must be
// cancelled explicitly.
func (sc *StreamConn) Close() error {
	if !sc.closed.CAS(false, true) {
		return nil
	}
	sc.CancelRead(quic.StreamErrorCode(quic.ConnectionRefused))
	sc.CancelWrite(quic.StreamErrorCode(quic.ConnectionRefused))
	return sc.Stream.Close()
}
