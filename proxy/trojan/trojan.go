//Package trojan implements the client half of the trojan protocol.
//
//See https://trojan-gfw.github.io/trojan/protocol .
package trojan

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net"

	"github.com/essoojay/TrojanRust/netLayer"
	"github.com/essoojay/TrojanRust/utils"
)

const (
	Name = "trojan"

	// HexLen is the fixed width of the authentication token: a sha224
	// digest, each byte rendered as two lowercase hex characters.
	HexLen = 56

	ATypIP4    = 0x01
	ATypDomain = 0x03
	ATypIP6    = 0x04
)
const (
	CmdConnect      = 0x01
	CmdUDPAssociate = 0x03
)

var crlf = []byte{0x0d, 0x0a}

// SHA224_hexStringBytes derives the authentication token from the plaintext
// secret. Same secret always yields the same 56 bytes.
func SHA224_hexStringBytes(password string) []byte {
	digest := sha256.Sum224([]byte(password))
	token := make([]byte, HexLen)
	hex.Encode(token, digest[:])
	return token
}

// ATypeOfAddr reports the trojan address type a given Addr encodes to.
func ATypeOfAddr(addr netLayer.Addr) byte {
	if len(addr.IP) > 0 {
		if addr.IP.To4() != nil {
			return ATypIP4
		}
		return ATypIP6
	}
	return ATypDomain
}

// WriteAddrToBuf appends atype | addr | port(2, big endian) in trojan
// encoding. Domains are length-prefixed with a single byte.
func WriteAddrToBuf(target netLayer.Addr, buf *bytes.Buffer) {
	if len(target.IP) > 0 {
		if ip4 := target.IP.To4(); ip4 == nil {
			buf.WriteByte(ATypIP6)
			buf.Write(target.IP)
		} else {
			buf.WriteByte(ATypIP4)
			buf.Write(ip4)
		}
	} else if l := len(target.Name); l > 0 {
		buf.WriteByte(ATypDomain)
		buf.WriteByte(byte(l))
		buf.WriteString(target.Name)
	}

	buf.WriteByte(byte(target.Port >> 8))
	buf.WriteByte(byte(target.Port << 8 >> 8))
}

// GetAddrFromReader reads the atype | addr | port sequence written by
// WriteAddrToBuf.
func GetAddrFromReader(buf utils.ByteReader) (addr netLayer.Addr, err error) {
	var b1 byte
	b1, err = buf.ReadByte()
	if err != nil {
		return
	}
	switch b1 {
	case ATypDomain:
		var b2 byte
		b2, err = buf.ReadByte()
		if err != nil {
			return
		}
		if b2 == 0 {
			err = utils.ErrInErr{ErrDesc: "got ATypDomain but domain length is marked to be 0", ErrDetail: utils.ErrInvalidData}
			return
		}
		bs := make([]byte, int(b2))
		_, err = io.ReadFull(buf, bs)
		if err != nil {
			return
		}
		addr.Name = string(bs)
	case ATypIP4:
		bs := make([]byte, net.IPv4len)
		_, err = io.ReadFull(buf, bs)
		if err != nil {
			return
		}
		addr.IP = bs
	case ATypIP6:
		bs := make([]byte, net.IPv6len)
		_, err = io.ReadFull(buf, bs)
		if err != nil {
			return
		}
		addr.IP = bs
	default:
		err = utils.ErrInErr{ErrDesc: "unknown address type", ErrDetail: utils.ErrInvalidData, Data: b1}
		return
	}

	pb1, err := buf.ReadByte()
	if err != nil {
		return
	}
	pb2, err := buf.ReadByte()
	if err != nil {
		return
	}
	port := uint16(pb1)<<8 + uint16(pb2)
	if port == 0 {
		err = utils.ErrInErr{ErrDesc: "zero port", ErrDetail: utils.ErrInvalidData}
		return
	}
	addr.Port = int(port)
	return
}
