package trojan

import (
	"io"

	"github.com/essoojay/TrojanRust/netLayer"
	"github.com/essoojay/TrojanRust/utils"
)

// WriteHandshake sends the one-shot request header:
//
//	token(56) | command(1) | atype(1) | addr | port(2, BE) | CRLF
//
// The header is unacknowledged; a wrong token is only discoverable by the
// far end closing or misbehaving, never by an explicit rejection.
func WriteHandshake(w io.Writer, target netLayer.Addr, cmd byte, token []byte) error {
	if len(token) != HexLen {
		return utils.ErrInErr{ErrDesc: "trojan token has wrong width", Data: len(token)}
	}
	if target.Port <= 0 {
		return utils.ErrInErr{ErrDesc: "trojan handshake failed, target port invalid", Data: target.Port}
	}

	buf := utils.GetBuf()
	buf.Write(token)
	buf.WriteByte(cmd)
	WriteAddrToBuf(target, buf)
	buf.Write(crlf)

	_, err := w.Write(buf.Bytes())
	utils.PutBuf(buf)
	return err
}

// ReadHandshake parses a header written by WriteHandshake. It is the peer
// half of the codec, used by the server end of a tunnel.
func ReadHandshake(r utils.ByteReader) (token []byte, cmd byte, target netLayer.Addr, err error) {
	token = make([]byte, HexLen)
	if _, err = io.ReadFull(r, token); err != nil {
		return
	}
	if cmd, err = r.ReadByte(); err != nil {
		return
	}
	if target, err = GetAddrFromReader(r); err != nil {
		return
	}

	var cr, lf byte
	if cr, err = r.ReadByte(); err != nil {
		return
	}
	if lf, err = r.ReadByte(); err != nil {
		return
	}
	if cr != crlf[0] || lf != crlf[1] {
		err = utils.ErrInErr{ErrDesc: "trojan handshake not terminated by CRLF", ErrDetail: utils.ErrInvalidData}
		return
	}

	if cmd == CmdUDPAssociate {
		target.Network = "udp"
	} else {
		target.Network = "tcp"
	}
	return
}
