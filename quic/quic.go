/*
Package quic escalates outbound sessions onto a quic stream. One Dial makes
one quic connection from an ephemeral local address; OpenStreamConn opens a
bidirectional stream on it and presents it as a net.Conn for the relay.
*/
package quic

import (
	"crypto/tls"
	"crypto/x509"
	"time"

	"github.com/essoojay/TrojanRust/utils"
	"github.com/lucas-clemente/quic-go"
)

var AlpnList = []string{"h3"}

var common_DialConfig = quic.Config{
	ConnectionIDLength:   12,
	HandshakeIdleTimeout: time.Second * 8,
	MaxIdleTimeout:       time.Second * 45,
	KeepAlive:            true,
}

// CertPolicy decides how the server certificate is checked. The secure
// policy is the default; skipping verification must be an explicit,
// deliberate configuration choice.
type CertPolicy interface {
	tlsConfig() (*tls.Config, error)
}

// SecureCertPolicy verifies the chain against the system roots and checks
// the certificate against ServerName.
type SecureCertPolicy struct {
	ServerName string
}

func (p SecureCertPolicy) tlsConfig() (*tls.Config, error) {
	roots, err := x509.SystemCertPool()
	if err != nil {
		return nil, utils.NewErr("failed to load system cert pool", err)
	}
	return &tls.Config{
		RootCAs:    roots,
		ServerName: p.ServerName,
		NextProtos: AlpnList,
	}, nil
}

// SkipVerifyCertPolicy accepts any certificate the server presents.
type SkipVerifyCertPolicy struct {
	ServerName string
}

func (p SkipVerifyCertPolicy) tlsConfig() (*tls.Config, error) {
	return &tls.Config{
		InsecureSkipVerify: true,
		ServerName:         p.ServerName,
		NextProtos:         AlpnList,
	}, nil
}

// Dial connects to the remote quic endpoint. The local udp socket binds to
// an ephemeral wildcard address.
func Dial(addrStr string, policy CertPolicy) (quic.Connection, error) {
	tlsConf, err := policy.tlsConfig()
	if err != nil {
		return nil, err
	}
	utils.Info("quic dialing " + addrStr)
	return quic.DialAddr(addrStr, tlsConf, &common_DialConfig)
}

// OpenStreamConn opens one bidirectional stream on conn. The open blocks
// until the peer's stream window allows it.
func OpenStreamConn(conn quic.Connection) (*StreamConn, error) {
	stream, err := conn.OpenStreamSync(conn.Context())
	if err != nil {
		return nil, err
	}
	return &StreamConn{
		Stream: stream,
		laddr:  conn.LocalAddr(),
		raddr:  conn.RemoteAddr(),
	}, nil
}

// CloseConn tears the whole quic connection down, streams included.
func CloseConn(conn quic.Connection) error {
	return conn.CloseWithError(0, "")
}
