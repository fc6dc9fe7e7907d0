package trojan

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/essoojay/TrojanRust/netLayer"
	"github.com/essoojay/TrojanRust/utils"
)

func TestSHA224_hexStringBytes(t *testing.T) {
	token := SHA224_hexStringBytes("password")
	if len(token) != HexLen {
		t.Log("bad token length", len(token))
		t.FailNow()
	}
	for _, b := range token {
		if !(b >= '0' && b <= '9' || b >= 'a' && b <= 'f') {
			t.Log("token is not lowercase hex", string(token))
			t.FailNow()
		}
	}
	if !bytes.Equal(token, SHA224_hexStringBytes("password")) {
		t.Log("token not deterministic")
		t.FailNow()
	}
	if bytes.Equal(token, SHA224_hexStringBytes("password2")) {
		t.Log("different secrets gave same token")
		t.FailNow()
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	token := SHA224_hexStringBytes("secret")

	targets := []netLayer.Addr{
		{IP: net.IPv4(127, 0, 0, 1).To4(), Port: 443},
		{Name: "www.example.com", Port: 80},
		{IP: net.ParseIP("2001:db8::1"), Port: 8443},
	}

	for _, target := range targets {
		var buf bytes.Buffer
		if err := WriteHandshake(&buf, target, CmdConnect, token); err != nil {
			t.Log("write handshake failed", target.String(), err)
			t.FailNow()
		}

		gotToken, cmd, gotTarget, err := ReadHandshake(bufio.NewReader(&buf))
		if err != nil {
			t.Log("read handshake failed", target.String(), err)
			t.FailNow()
		}
		if !bytes.Equal(gotToken, token) {
			t.Log("token mismatch")
			t.FailNow()
		}
		if cmd != CmdConnect {
			t.Log("command mismatch", cmd)
			t.FailNow()
		}
		if gotTarget.Port != target.Port {
			t.Log("port mismatch", gotTarget.Port, target.Port)
			t.FailNow()
		}
		if target.Name != "" && gotTarget.Name != target.Name {
			t.Log("domain mismatch", gotTarget.Name)
			t.FailNow()
		}
		if len(target.IP) > 0 && !gotTarget.IP.Equal(target.IP) {
			t.Log("ip mismatch", gotTarget.IP)
			t.FailNow()
		}
		if gotTarget.Network != "tcp" {
			t.Log("CmdConnect should yield tcp network", gotTarget.Network)
			t.FailNow()
		}
	}
}

func TestHandshakeBadToken(t *testing.T) {
	var buf bytes.Buffer
	target := netLayer.Addr{IP: net.IPv4(1, 2, 3, 4).To4(), Port: 80}
	if err := WriteHandshake(&buf, target, CmdConnect, []byte("too-short")); err == nil {
		t.Log("short token was accepted")
		t.FailNow()
	}
	if buf.Len() != 0 {
		t.Log("bytes were written despite the bad token")
		t.FailNow()
	}
}

type staticStream struct {
	io.Reader
}

func (staticStream) Write(p []byte) (int, error) { return len(p), nil }
func (staticStream) Close() error                { return nil }

// A malformed record is fatal for the whole stream, so every corruption
// must surface as an invalid-data error rather than a silent resync.
func TestPacketConnMalformedRecord(t *testing.T) {
	ip4Addr := []byte{0x01, 8, 8, 8, 8}

	cases := []struct {
		name   string
		record []byte
	}{
		{"unknown atype", []byte{0x09, 1, 2, 3, 4, 0x00, 0x35}},
		{"zero domain length", []byte{0x03, 0x00}},
		{"zero port", append(append([]byte{}, ip4Addr...), 0x00, 0x00)},
		{"zero length record", append(append(append([]byte{}, ip4Addr...), 0x00, 0x35), 0x00, 0x00)},
		{"missing crlf separator", append(append(append(append([]byte{}, ip4Addr...), 0x00, 0x35), 0x00, 0x02), 'X', 'X', 'p', 'q')},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pc := NewPacketConn(staticStream{bytes.NewReader(c.record)})
			_, _, err := pc.ReadMsgFrom()
			if err == nil {
				t.Log("corrupt record was accepted")
				t.FailNow()
			}
			if !errors.Is(err, utils.ErrInvalidData) {
				t.Log("want ErrInvalidData, got", err)
				t.FailNow()
			}
		})
	}
}

func TestPacketConn(t *testing.T) {
	c1, c2 := net.Pipe()
	left := NewPacketConn(c1)
	right := NewPacketConn(c2)
	defer left.Close()
	defer right.Close()

	addr := netLayer.Addr{Network: "udp", IP: net.IPv4(8, 8, 8, 8).To4(), Port: 53}
	payloads := [][]byte{
		[]byte("first datagram"),
		[]byte("x"),
		bytes.Repeat([]byte{0xab}, 5000),
	}

	go func() {
		for _, p := range payloads {
			if err := left.WriteMsgTo(p, addr); err != nil {
				return
			}
		}
	}()

	for i, want := range payloads {
		got, gotAddr, err := right.ReadMsgFrom()
		if err != nil {
			t.Log("read record", i, err)
			t.FailNow()
		}
		if !bytes.Equal(got, want) {
			t.Log("payload mismatch at record", i)
			t.FailNow()
		}
		if gotAddr.Port != addr.Port || !gotAddr.IP.Equal(addr.IP) {
			t.Log("address mismatch at record", i, gotAddr.String())
			t.FailNow()
		}
		if !gotAddr.IsUDP() {
			t.Log("record address should be udp")
			t.FailNow()
		}
	}
}
