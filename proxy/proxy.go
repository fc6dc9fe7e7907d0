/*
Package proxy holds the outbound session model and the Handler that routes
each inbound request through one of four transport escalations: direct,
tcp (+tls +trojan handshake), grpc tunnel, or quic tunnel.

The inbound side is not our business: requests arrive already parsed,
together with a duplex channel representing the accepted client connection.
*/
package proxy

import (
	"errors"
	"strings"

	"github.com/essoojay/TrojanRust/netLayer"
	"github.com/essoojay/TrojanRust/utils"
)

// Mode selects the transport escalation of the outbound link.
type Mode int

const (
	ModeDirect Mode = iota
	ModeTCP
	ModeGRPC
	ModeQUIC
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "direct":
		return ModeDirect, nil
	case "tcp":
		return ModeTCP, nil
	case "grpc":
		return ModeGRPC, nil
	case "quic":
		return ModeQUIC, nil
	}
	return 0, utils.ErrInErr{ErrDesc: "unknown outbound mode", ErrDetail: utils.ErrWrongParameter, Data: s}
}

func (m Mode) String() string {
	switch m {
	case ModeDirect:
		return "direct"
	case ModeTCP:
		return "tcp"
	case ModeGRPC:
		return "grpc"
	case ModeQUIC:
		return "quic"
	}
	return "unknown"
}

// SupportedProtocols selects the application-layer handshake, independently
// of the transport Mode.
type SupportedProtocols int

const (
	ProtocolTrojan SupportedProtocols = iota
	ProtocolSocks
	ProtocolDirect
)

func ParseProtocol(s string) (SupportedProtocols, error) {
	switch strings.ToLower(s) {
	case "trojan":
		return ProtocolTrojan, nil
	case "socks":
		return ProtocolSocks, nil
	case "direct":
		return ProtocolDirect, nil
	}
	return 0, utils.ErrInErr{ErrDesc: "unknown proxy protocol", ErrDetail: utils.ErrWrongParameter, Data: s}
}

func (p SupportedProtocols) String() string {
	switch p {
	case ProtocolTrojan:
		return "trojan"
	case ProtocolSocks:
		return "socks"
	case ProtocolDirect:
		return "direct"
	}
	return "unknown"
}

// InboundRequest is what the inbound listener hands us for one session:
// the true destination and the requested command. Addr.Network is "tcp" or
// "udp" and decides the framing downstream.
type InboundRequest struct {
	Addr    netLayer.Addr
	Command byte
}

// Error kinds surfaced by Dispatch. Escalator failures are never retried
// and never downgraded; each one terminates its session.
var (
	ErrMissingDestination     = errors.New("missing address of the remote server")
	ErrUnsupportedProtocol    = errors.New("unsupported protocol")
	ErrDestinationUnreachable = errors.New("destination unreachable")
	ErrAuthConfiguration      = errors.New("auth token width is wrong for the protocol")
)
