package proxy

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/essoojay/TrojanRust/netLayer"
	"github.com/essoojay/TrojanRust/proxy/trojan"
)

func mustHandler(t *testing.T, oc *OutboundConfig) *Handler {
	h, err := NewHandler(oc)
	if err != nil {
		t.Log("NewHandler failed", err)
		t.FailNow()
	}
	return h
}

// The stub proxy server verifies the exact handshake bytes and then echoes
// the payload back.
func TestDispatchTCPTrojan(t *testing.T) {
	listener, err := net.Listen("tcp", netLayer.GetRandLocalPrivateAddr(true, false))
	if err != nil {
		t.Log("listen failed", err)
		t.FailNow()
	}
	defer listener.Close()

	secret := "a-test-secret"
	token := trojan.SHA224_hexStringBytes(secret)
	targetIP := net.IPv4(10, 1, 2, 3).To4()
	targetPort := 8080
	payload := []byte("GET / HTTP/1.1\r\n\r\n")
	response := []byte("HTTP/1.1 200 OK\r\n\r\n")

	serverErr := make(chan error, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			serverErr <- err
			return
		}
		defer conn.Close()

		wantHeader := &bytes.Buffer{}
		wantHeader.Write(token)
		wantHeader.WriteByte(trojan.CmdConnect)
		wantHeader.WriteByte(trojan.ATypIP4)
		wantHeader.Write(targetIP)
		wantHeader.WriteByte(byte(targetPort >> 8))
		wantHeader.WriteByte(byte(targetPort & 0xff))
		wantHeader.Write([]byte{0x0d, 0x0a})

		got := make([]byte, wantHeader.Len()+len(payload))
		if _, err := io.ReadFull(conn, got); err != nil {
			serverErr <- err
			return
		}
		if !bytes.Equal(got[:wantHeader.Len()], wantHeader.Bytes()) {
			serverErr <- errors.New("handshake bytes mismatch")
			return
		}
		if !bytes.Equal(got[wantHeader.Len():], payload) {
			serverErr <- errors.New("payload bytes mismatch")
			return
		}

		_, err = conn.Write(response)
		serverErr <- err
	}()

	serverAddr := listener.Addr().(*net.TCPAddr)
	h := mustHandler(t, &OutboundConfig{
		Mode:     "tcp",
		Protocol: "trojan",
		Secret:   secret,
		Address:  "127.0.0.1",
		Port:     serverAddr.Port,
	})

	inbound, clientSide := net.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- h.Dispatch(inbound, InboundRequest{
			Addr:    netLayer.Addr{Network: "tcp", IP: targetIP, Port: targetPort},
			Command: trojan.CmdConnect,
		})
	}()

	if _, err := clientSide.Write(payload); err != nil {
		t.Log("client write failed", err)
		t.FailNow()
	}

	gotResponse := make([]byte, len(response))
	if _, err := io.ReadFull(clientSide, gotResponse); err != nil {
		t.Log("client read failed", err)
		t.FailNow()
	}
	if !bytes.Equal(gotResponse, response) {
		t.Log("response mismatch", string(gotResponse))
		t.FailNow()
	}
	clientSide.Close()

	if err := <-serverErr; err != nil {
		t.Log("server side failed", err)
		t.FailNow()
	}
	if err := <-done; err != nil {
		t.Log("dispatch returned error", err)
		t.FailNow()
	}
}

func TestDispatchDirectTCP(t *testing.T) {
	listener, err := net.Listen("tcp", netLayer.GetRandLocalPrivateAddr(true, false))
	if err != nil {
		t.Log("listen failed", err)
		t.FailNow()
	}
	defer listener.Close()

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		io.Copy(conn, conn)
		conn.Close()
	}()

	h := mustHandler(t, &OutboundConfig{Mode: "direct", Protocol: "direct"})

	serverAddr := listener.Addr().(*net.TCPAddr)
	inbound, clientSide := net.Pipe()
	go h.Dispatch(inbound, InboundRequest{
		Addr: netLayer.Addr{Network: "tcp", IP: serverAddr.IP, Port: serverAddr.Port},
	})

	msg := []byte("hello direct")
	if _, err := clientSide.Write(msg); err != nil {
		t.Log("write failed", err)
		t.FailNow()
	}
	got := make([]byte, len(msg))
	if _, err := io.ReadFull(clientSide, got); err != nil {
		t.Log("read failed", err)
		t.FailNow()
	}
	if !bytes.Equal(got, msg) {
		t.Log("echo mismatch", string(got))
		t.FailNow()
	}
	clientSide.Close()
}

// Rejections must happen before any network traffic, so the destinations
// here point at ports that would fail loudly if dialed.
func TestDispatchRejections(t *testing.T) {
	inbound, _ := net.Pipe()
	defer inbound.Close()
	req := InboundRequest{
		Addr:    netLayer.Addr{Network: "tcp", IP: net.IPv4(10, 0, 0, 1).To4(), Port: 80},
		Command: trojan.CmdConnect,
	}

	t.Run("empty request address", func(t *testing.T) {
		h := &Handler{
			mode:     ModeDirect,
			protocol: ProtocolDirect,
		}
		err := h.Dispatch(inbound, InboundRequest{})
		if !errors.Is(err, ErrMissingDestination) {
			t.Log("want ErrMissingDestination, got", err)
			t.FailNow()
		}
	})

	t.Run("missing destination", func(t *testing.T) {
		h := &Handler{
			mode:     ModeTCP,
			protocol: ProtocolTrojan,
			secret:   trojan.SHA224_hexStringBytes("x"),
		}
		err := h.Dispatch(inbound, req)
		if !errors.Is(err, ErrMissingDestination) {
			t.Log("want ErrMissingDestination, got", err)
			t.FailNow()
		}
	})

	dest, _ := netLayer.NewAddrByHostPort("127.0.0.1:1")
	dest.Network = "tcp"

	t.Run("unsupported protocol", func(t *testing.T) {
		h := &Handler{
			mode:        ModeTCP,
			protocol:    ProtocolSocks,
			destination: &dest,
			secret:      trojan.SHA224_hexStringBytes("x"),
		}
		start := time.Now()
		err := h.Dispatch(inbound, req)
		if !errors.Is(err, ErrUnsupportedProtocol) {
			t.Log("want ErrUnsupportedProtocol, got", err)
			t.FailNow()
		}
		if time.Since(start) > time.Second {
			t.Log("rejection appears to have touched the network")
			t.FailNow()
		}
	})

	t.Run("bad token width", func(t *testing.T) {
		h := &Handler{
			mode:        ModeTCP,
			protocol:    ProtocolTrojan,
			destination: &dest,
			secret:      []byte("not-56-bytes"),
		}
		err := h.Dispatch(inbound, req)
		if !errors.Is(err, ErrAuthConfiguration) {
			t.Log("want ErrAuthConfiguration, got", err)
			t.FailNow()
		}
	})
}

// A refused grpc destination must yield DestinationUnreachable promptly
// instead of being retried with backoff forever.
func TestDispatchGRPCUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", netLayer.GetRandLocalPrivateAddr(true, false))
	if err != nil {
		t.Log("listen failed", err)
		t.FailNow()
	}
	serverAddr := listener.Addr().(*net.TCPAddr)
	listener.Close()

	h := mustHandler(t, &OutboundConfig{
		Mode:     "grpc",
		Protocol: "trojan",
		Secret:   "s",
		Address:  "127.0.0.1",
		Port:     serverAddr.Port,
	})

	inbound, _ := net.Pipe()
	defer inbound.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Dispatch(inbound, InboundRequest{
			Addr:    netLayer.Addr{Network: "tcp", IP: net.IPv4(10, 0, 0, 1).To4(), Port: 80},
			Command: trojan.CmdConnect,
		})
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrDestinationUnreachable) {
			t.Log("want ErrDestinationUnreachable, got", err)
			t.FailNow()
		}
	case <-time.After(time.Second * 5):
		t.Log("dispatch is still blocked on a refused grpc destination")
		t.FailNow()
	}
}

func TestNewHandlerValidation(t *testing.T) {
	cases := []struct {
		name string
		oc   OutboundConfig
	}{
		{"unknown mode", OutboundConfig{Mode: "warp", Protocol: "trojan", Secret: "s"}},
		{"unknown protocol", OutboundConfig{Mode: "tcp", Protocol: "vmess", Secret: "s"}},
		{"address without port", OutboundConfig{Mode: "tcp", Protocol: "trojan", Secret: "s", Address: "example.com"}},
		{"port without address", OutboundConfig{Mode: "tcp", Protocol: "trojan", Secret: "s", Port: 443}},
		{"trojan without secret", OutboundConfig{Mode: "tcp", Protocol: "trojan", Address: "example.com", Port: 443}},
		{"tls without sni", OutboundConfig{Mode: "tcp", Protocol: "trojan", Secret: "s", Address: "example.com", Port: 443, TLS: &TLSConfig{}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := NewHandler(&c.oc); err == nil {
				t.Log("config was accepted")
				t.FailNow()
			}
		})
	}

	h := mustHandler(t, &OutboundConfig{
		Mode: "tcp", Protocol: "trojan", Secret: "s",
		Address: "example.com", Port: 443,
		TLS: &TLSConfig{Host: "example.com"},
	})
	if len(h.secret) != trojan.HexLen {
		t.Log("derived token has wrong width", len(h.secret))
		t.FailNow()
	}
	if h.destination == nil || h.destination.Port != 443 {
		t.Log("destination not resolved")
		t.FailNow()
	}
}
