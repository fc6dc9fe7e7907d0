/*
Package tlsLayer escalates an established connection to TLS before any
application-layer bytes are sent. Only the client side is provided here;
certificate stores and verification policy objects are built by the caller.
*/
package tlsLayer

import (
	"crypto/tls"
	"crypto/x509"

	utls "github.com/refraction-networking/utls"
)

// Conf describes the client TLS settings of one outbound link.
type Conf struct {
	Host     string   // expected peer name (SNI)
	Insecure bool     // skip certificate verification
	Use_uTls bool     // use a browser-like ClientHello
	AlpnList []string

	RootCAs *x509.CertPool // nil means the system store
}

func GetTlsConfig(conf Conf) *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: conf.Insecure,
		ServerName:         conf.Host,
		NextProtos:         conf.AlpnList,
		RootCAs:            conf.RootCAs,
	}
}

func GetUTlsConfig(conf Conf) utls.Config {
	return utls.Config{
		InsecureSkipVerify: conf.Insecure,
		ServerName:         conf.Host,
		NextProtos:         conf.AlpnList,
		RootCAs:            conf.RootCAs,
	}
}
