package proxy

import (
	"context"
	"io"
	"net"
	"strconv"

	grpcLayer "github.com/essoojay/TrojanRust/grpc"
	"github.com/essoojay/TrojanRust/netLayer"
	"github.com/essoojay/TrojanRust/proxy/trojan"
	quicLayer "github.com/essoojay/TrojanRust/quic"
	"github.com/essoojay/TrojanRust/tlsLayer"
	"github.com/essoojay/TrojanRust/utils"
	"go.uber.org/zap"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// Handler routes each inbound request to the configured transport
// escalation and drives the relay. It is immutable after NewHandler, so a
// single instance serves any number of concurrent Dispatch calls without
// locking.
type Handler struct {
	mode        Mode
	protocol    SupportedProtocols
	destination *netLayer.Addr
	tlsConf     *tlsLayer.Conf
	tlsClient   *tlsLayer.Client
	secret      []byte
}

// NewHandler resolves the outbound definition into an immutable Handler.
// It derives the authentication token, builds the TLS client and checks
// every config invariant. It never touches the network.
func NewHandler(oc *OutboundConfig) (*Handler, error) {
	if oc == nil {
		return nil, utils.ErrNilParameter
	}
	mode, err := ParseMode(oc.Mode)
	if err != nil {
		return nil, err
	}
	protocol, err := ParseProtocol(oc.Protocol)
	if err != nil {
		return nil, err
	}

	var tlsConf *tlsLayer.Conf
	var tlsClient *tlsLayer.Client
	if oc.TLS != nil {
		if oc.TLS.Host == "" && !oc.TLS.Insecure {
			return nil, utils.ErrInErr{ErrDesc: "tls is set but sni is empty"}
		}
		tlsConf = &tlsLayer.Conf{
			Host:     oc.TLS.Host,
			Insecure: oc.TLS.Insecure,
			Use_uTls: oc.TLS.Utls,
		}
		tlsClient = tlsLayer.NewClient(*tlsConf)
	}

	// The fixed destination overrides per-request destinations; address
	// and port are either both present or both absent.
	var destination *netLayer.Addr
	switch {
	case oc.Address != "" && oc.Port != 0:
		a, err := netLayer.NewAddrByHostPort(net.JoinHostPort(oc.Address, strconv.Itoa(oc.Port)))
		if err != nil {
			return nil, utils.NewErr("bad outbound destination", err)
		}
		a.Network = "tcp"
		destination = &a
	case oc.Address != "" && oc.Port == 0:
		return nil, utils.ErrInErr{ErrDesc: "missing port while address is present"}
	case oc.Address == "" && oc.Port != 0:
		return nil, utils.ErrInErr{ErrDesc: "missing address while port is present"}
	}

	var secret []byte
	if protocol == ProtocolTrojan {
		if oc.Secret == "" {
			return nil, utils.ErrInErr{ErrDesc: "trojan protocol requires a secret"}
		}
		secret = trojan.SHA224_hexStringBytes(oc.Secret)
	}

	return &Handler{
		mode:        mode,
		protocol:    protocol,
		destination: destination,
		tlsConf:     tlsConf,
		tlsClient:   tlsClient,
		secret:      secret,
	}, nil
}

// Dispatch establishes the outbound connection for one request and relays
// data back and forth until one side terminates. It is the single entry
// point of the engine and is safe for concurrent use.
func (h *Handler) Dispatch(inbound io.ReadWriteCloser, req InboundRequest) error {
	if req.Addr.IsEmpty() {
		return utils.NewErr("request has no destination", ErrMissingDestination)
	}

	var err error
	switch h.mode {
	case ModeDirect:
		err = h.handleDirectStream(req, inbound)
	case ModeTCP:
		err = h.handleTCPStream(req, inbound)
	case ModeGRPC:
		err = h.handleGRPCStream(req, inbound)
	case ModeQUIC:
		err = h.handleQUICStream(req, inbound)
	default:
		err = utils.ErrInErr{ErrDesc: "unknown outbound mode", ErrDetail: utils.ErrWrongParameter, Data: h.mode}
	}

	if err != nil {
		if ce := utils.CanLogErr("dispatch failed"); ce != nil {
			ce.Write(zap.String("mode", h.mode.String()),
				zap.String("target", req.Addr.String()),
				zap.Error(err),
			)
		}
	}
	return err
}

// checkTunnel holds the preconditions shared by every tunneled mode. They
// run before any network I/O: a rejected session must not leave a partial
// connection behind. The token width is re-validated on every dispatch
// because the same Handler serves concurrent sessions.
func (h *Handler) checkTunnel() error {
	if h.destination == nil {
		return ErrMissingDestination
	}
	switch h.protocol {
	case ProtocolTrojan:
		if len(h.secret) != trojan.HexLen {
			return utils.NewDataErr("trojan token is not 56 bytes", ErrAuthConfiguration, len(h.secret))
		}
		return nil
	default:
		return utils.NewDataErr("outbound cannot carry this protocol", ErrUnsupportedProtocol, h.protocol.String())
	}
}

// handleDirectStream dials the request's own destination, no tls, no
// handshake, no fixed destination override.
func (h *Handler) handleDirectStream(req InboundRequest, inbound io.ReadWriteCloser) error {
	if req.Addr.IsUDP() {
		rc, err := netLayer.NewUDPMsgConn(req.Addr)
		if err != nil {
			return utils.NewDataErr("failed to connect to udp "+req.Addr.String(), ErrDestinationUnreachable, err)
		}

		// the inbound stream carries trojan udp records; the socket side
		// speaks raw datagrams
		netLayer.RelayUDP(rc, trojan.NewPacketConn(inbound))
	} else {
		addr := req.Addr
		outbound, err := addr.Dial()
		if err != nil {
			return utils.NewDataErr("failed to connect to tcp "+addr.String(), ErrDestinationUnreachable, err)
		}

		netLayer.Relay(&addr, outbound, inbound)
	}

	if ce := utils.CanLogInfo("connection finished"); ce != nil {
		ce.Write(zap.String("mode", "direct"), zap.String("target", req.Addr.String()))
	}
	return nil
}

// handleTCPStream dials the remote proxy peer, escalates to tls when
// configured, fires the trojan handshake and relays.
func (h *Handler) handleTCPStream(req InboundRequest, inbound io.ReadWriteCloser) error {
	if err := h.checkTunnel(); err != nil {
		return err
	}

	outbound, err := h.destination.Dial()
	if err != nil {
		return utils.NewDataErr("failed to connect to "+h.destination.String(), ErrDestinationUnreachable, err)
	}

	stream := outbound
	if h.tlsClient != nil {
		stream, err = h.tlsClient.Handshake(outbound)
		if err != nil {
			outbound.Close()
			return utils.NewErr("tls handshake failed", err)
		}
	}

	if err = trojan.WriteHandshake(stream, req.Addr, req.Command, h.secret); err != nil {
		stream.Close()
		return utils.NewErr("failed to write trojan handshake", err)
	}

	if req.Addr.IsUDP() {
		netLayer.RelayUDP(
			trojan.NewPacketConn(stream),
			&netLayer.StreamMsgConn{RW: inbound, PeerAddr: req.Addr},
		)
	} else {
		netLayer.Relay(&req.Addr, stream, inbound)
	}

	if ce := utils.CanLogInfo("connection finished"); ce != nil {
		ce.Write(zap.String("mode", "tcp"), zap.String("target", req.Addr.String()))
	}
	return nil
}

// handleGRPCStream opens a bidirectional streaming call to the remote peer
// and multiplexes the session over typed packets: one control message
// first, then data (or datagram) chunks.
func (h *Handler) handleGRPCStream(req InboundRequest, inbound io.ReadWriteCloser) error {
	if err := h.checkTunnel(); err != nil {
		return err
	}

	var creds credentials.TransportCredentials
	if h.tlsConf != nil {
		creds = credentials.NewTLS(tlsLayer.GetTlsConfig(*h.tlsConf))
	} else {
		creds = insecure.NewCredentials()
	}

	cc, err := grpcLayer.Dial(h.destination.String(), creds)
	if err != nil {
		return utils.NewDataErr("failed to connect to remote grpc server", ErrDestinationUnreachable, err)
	}
	defer cc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := grpcLayer.NewProxyServiceClient(cc).Proxy(ctx)
	if err != nil {
		cancel()
		return utils.NewDataErr("failed to open grpc stream", ErrDestinationUnreachable, err)
	}

	err = stream.Send(&grpcLayer.GrpcPacket{
		PacketType: grpcLayer.PacketTypeRequest,
		Trojan: &grpcLayer.TrojanRequest{
			Hex:     h.secret,
			Atype:   uint32(trojan.ATypeOfAddr(req.Addr)),
			Command: uint32(req.Command),
			Address: req.Addr.HostStr(),
			Port:    uint32(req.Addr.Port),
		},
	})
	if err != nil {
		cancel()
		return utils.NewDataErr("failed to write request data", ErrDestinationUnreachable, err)
	}

	conn := grpcLayer.NewConn(stream, cancel, req.Addr.IsUDP())
	netLayer.Relay(&req.Addr, conn, inbound)

	if ce := utils.CanLogInfo("connection finished"); ce != nil {
		ce.Write(zap.String("mode", "grpc"), zap.String("target", req.Addr.String()))
	}
	return nil
}

// handleQUICStream connects to the remote peer from an ephemeral local
// address, opens one bidirectional stream, fires the trojan handshake and
// relays. Certificate verification follows the configured policy.
func (h *Handler) handleQUICStream(req InboundRequest, inbound io.ReadWriteCloser) error {
	if err := h.checkTunnel(); err != nil {
		return err
	}

	var policy quicLayer.CertPolicy
	if h.tlsConf != nil && h.tlsConf.Insecure {
		// explicit, auditable configuration choice; never the default
		policy = quicLayer.SkipVerifyCertPolicy{ServerName: h.tlsConf.Host}
	} else {
		serverName := h.destination.HostStr()
		if h.tlsConf != nil && h.tlsConf.Host != "" {
			serverName = h.tlsConf.Host
		}
		policy = quicLayer.SecureCertPolicy{ServerName: serverName}
	}

	conn, err := quicLayer.Dial(h.destination.String(), policy)
	if err != nil {
		return utils.NewErr("quic dial failed", err)
	}
	defer quicLayer.CloseConn(conn)

	stream, err := quicLayer.OpenStreamConn(conn)
	if err != nil {
		return utils.NewErr("quic open stream failed", err)
	}

	if err = trojan.WriteHandshake(stream, req.Addr, req.Command, h.secret); err != nil {
		stream.Close()
		return utils.NewErr("failed to write trojan handshake", err)
	}

	netLayer.Relay(&req.Addr, stream, inbound)

	if ce := utils.CanLogInfo("connection finished"); ce != nil {
		ce.Write(zap.String("mode", "quic"), zap.String("target", req.Addr.String()))
	}
	return nil
}
