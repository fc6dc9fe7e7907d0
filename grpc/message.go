/*
Package grpc tunnels proxy sessions over a single bidirectional streaming
rpc, "/trojan.ProxyService/Proxy". Each message on the stream is a
GrpcPacket; the first one of a session carries the TrojanRequest header,
all following ones carry raw payload (or one datagram each, for udp).

The message types mirror grpc/stream.proto and are wired by hand on
protowire instead of generated code, so the package carries no protoc
artifacts.
*/
package grpc

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Values of GrpcPacket.PacketType. Exactly one Request packet opens a
// session; Data and Datagram packets carry the payload after it.
const (
	PacketTypeRequest  uint32 = 1
	PacketTypeData     uint32 = 2
	PacketTypeDatagram uint32 = 3
)

type GrpcPacket struct {
	PacketType uint32
	Trojan     *TrojanRequest
	Payload    []byte
}

type TrojanRequest struct {
	Hex     []byte
	Atype   uint32
	Command uint32
	Address string
	Port    uint32
}

func (m *TrojanRequest) marshal() []byte {
	var b []byte
	if len(m.Hex) > 0 {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Hex)
	}
	if m.Atype != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Atype))
	}
	if m.Command != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Command))
	}
	if m.Address != "" {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendString(b, m.Address)
	}
	if m.Port != 0 {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Port))
	}
	return b
}

func (m *TrojanRequest) unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Hex = append([]byte(nil), v...)
			b = b[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Atype = uint32(v)
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Command = uint32(v)
			b = b[n:]
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Address = string(v)
			b = b[n:]
		case num == 5 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Port = uint32(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

func (m *GrpcPacket) marshal() []byte {
	var b []byte
	if m.PacketType != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.PacketType))
	}
	if m.Trojan != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Trojan.marshal())
	}
	if len(m.Payload) > 0 {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Payload)
	}
	return b
}

func (m *GrpcPacket) unmarshal(b []byte) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.PacketType = uint32(v)
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Trojan = &TrojanRequest{}
			if err := m.Trojan.unmarshal(v); err != nil {
				return err
			}
			b = b[n:]
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Payload = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

type wireMessage interface {
	marshal() []byte
	unmarshal([]byte) error
}

// packetCodec replaces the generated-code proto codec: grpc picks it by
// name "proto" and we force it explicitly on every stream anyway.
type packetCodec struct{}

func (packetCodec) Marshal(v any) ([]byte, error) {
	msg, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("grpc codec: cannot marshal %T", v)
	}
	return msg.marshal(), nil
}

func (packetCodec) Unmarshal(data []byte, v any) error {
	msg, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("grpc codec: cannot unmarshal into %T", v)
	}
	return msg.unmarshal(data)
}

func (packetCodec) Name() string { return "proto" }
