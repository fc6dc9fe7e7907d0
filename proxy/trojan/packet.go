package trojan

import (
	"bufio"
	"io"

	"github.com/essoojay/TrojanRust/netLayer"
	"github.com/essoojay/TrojanRust/utils"
)

// PacketConn bridges discrete datagrams onto a byte stream. Each datagram
// travels as one self-describing record:
//
//	atype(1) | addr | port(2, BE) | length(2, BE) | CRLF | payload
//
// Read and write state are independent, so both directions may run
// concurrently without coordination. A malformed record is fatal for the
// stream: the error ends the session's relay.
type PacketConn struct {
	rwc  io.ReadWriteCloser
	bufr *bufio.Reader
}

func NewPacketConn(rwc io.ReadWriteCloser) *PacketConn {
	return &PacketConn{
		rwc:  rwc,
		bufr: bufio.NewReader(rwc),
	}
}

func (c *PacketConn) ReadMsgFrom() ([]byte, netLayer.Addr, error) {
	addr, err := GetAddrFromReader(c.bufr)
	if err != nil {
		return nil, addr, err
	}
	addr.Network = "udp"

	lb1, err := c.bufr.ReadByte()
	if err != nil {
		return nil, addr, err
	}
	lb2, err := c.bufr.ReadByte()
	if err != nil {
		return nil, addr, err
	}
	length := uint16(lb1)<<8 + uint16(lb2)
	if length == 0 {
		return nil, addr, utils.ErrInErr{ErrDesc: "zero length record", ErrDetail: utils.ErrInvalidData}
	}

	cr_b, err := c.bufr.ReadByte()
	if err != nil {
		return nil, addr, err
	}
	lf_b, err := c.bufr.ReadByte()
	if err != nil {
		return nil, addr, err
	}
	if cr_b != crlf[0] || lf_b != crlf[1] {
		return nil, addr, utils.ErrInErr{ErrDesc: "record not separated by CRLF", ErrDetail: utils.ErrInvalidData}
	}

	bs := utils.GetBytes(int(length))
	_, err = io.ReadFull(c.bufr, bs)
	if err != nil {
		utils.PutBytes(bs)
		return nil, addr, err
	}

	return bs, addr, nil
}

func (c *PacketConn) WriteMsgTo(bs []byte, addr netLayer.Addr) error {
	buf := utils.GetBuf()
	WriteAddrToBuf(addr, buf)
	buf.WriteByte(byte(len(bs) >> 8))
	buf.WriteByte(byte(len(bs) << 8 >> 8))
	buf.Write(crlf)
	buf.Write(bs)

	_, err := c.rwc.Write(buf.Bytes())
	utils.PutBuf(buf)
	return err
}

func (c *PacketConn) Close() error {
	return c.rwc.Close()
}
