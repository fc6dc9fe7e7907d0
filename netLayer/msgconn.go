package netLayer

import (
	"io"
	"net"

	"github.com/essoojay/TrojanRust/utils"
	"go.uber.org/zap"
)

// MsgConn is a datagram-oriented connection, similar to net.PacketConn but
// using Addr so that the peer may be a not-yet-resolved domain name.
// ReadMsgFrom returns the datagram directly to avoid extra copies.
type MsgConn interface {
	ReadMsgFrom() ([]byte, Addr, error)
	WriteMsgTo([]byte, Addr) error
	Close() error
}

// UDPMsgConn is a MsgConn over a real udp socket, bound to an ephemeral
// local port and connected to a single remote address.
type UDPMsgConn struct {
	conn  *net.UDPConn
	raddr Addr
}

func NewUDPMsgConn(raddr Addr) (*UDPMsgConn, error) {
	ua := raddr.ToUDPAddr()
	if ua == nil {
		return nil, utils.ErrInErr{ErrDesc: "cannot resolve udp target", Data: raddr.String()}
	}
	conn, err := net.DialUDP("udp", nil, ua)
	if err != nil {
		return nil, err
	}
	return &UDPMsgConn{conn: conn, raddr: raddr}, nil
}

func (u *UDPMsgConn) ReadMsgFrom() ([]byte, Addr, error) {
	bs := utils.GetPacket()
	n, err := u.conn.Read(bs)
	if err != nil {
		utils.PutPacket(bs)
		return nil, u.raddr, err
	}
	return bs[:n], u.raddr, nil
}

// WriteMsgTo ignores the address parameter; the socket is connected.
func (u *UDPMsgConn) WriteMsgTo(bs []byte, _ Addr) error {
	_, err := u.conn.Write(bs)
	return err
}

func (u *UDPMsgConn) Close() error {
	return u.conn.Close()
}

// StreamMsgConn treats a byte stream as a datagram source and sink: every
// Read chunk is one datagram attributed to PeerAddr, and every datagram is
// written out as plain bytes. It is the inbound-side adapter used when the
// inbound channel carries raw udp payloads.
type StreamMsgConn struct {
	RW       io.ReadWriteCloser
	PeerAddr Addr
}

func (s *StreamMsgConn) ReadMsgFrom() ([]byte, Addr, error) {
	bs := utils.GetPacket()
	n, err := s.RW.Read(bs)
	if err != nil {
		utils.PutPacket(bs)
		return nil, s.PeerAddr, err
	}
	return bs[:n], s.PeerAddr, nil
}

func (s *StreamMsgConn) WriteMsgTo(bs []byte, _ Addr) error {
	_, err := s.RW.Write(bs)
	return err
}

func (s *StreamMsgConn) Close() error {
	return s.RW.Close()
}

// RelayUDP pumps datagrams between lc and rc in both directions, blocking
// until the first direction finishes. Same race semantics as Relay: the
// losing direction is abandoned and both conns are closed. Returns the
// number of bytes downloaded from rc.
func RelayUDP(rc, lc MsgConn) uint64 {
	go func() {
		var count uint64
		for {
			bs, raddr, err := lc.ReadMsgFrom()
			if err != nil {
				break
			}

			if ce := utils.CanLogDebug("RelayUDP will write to"); ce != nil {
				ce.Write(zap.String("raddr", raddr.String()), zap.Int("len", len(bs)))
			}

			err = rc.WriteMsgTo(bs, raddr)
			utils.PutPacket(bs)
			if err != nil {
				break
			}
			count += uint64(len(bs))
		}
		AllUploadBytesSinceStart.Add(count)

		rc.Close()
		lc.Close()
	}()

	var count uint64
	for {
		bs, raddr, err := rc.ReadMsgFrom()
		if err != nil {
			break
		}
		err = lc.WriteMsgTo(bs, raddr)
		utils.PutPacket(bs)
		if err != nil {
			break
		}
		count += uint64(len(bs))
	}
	AllDownloadBytesSinceStart.Add(count)

	rc.Close()
	lc.Close()

	return count
}
