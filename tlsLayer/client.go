package tlsLayer

import (
	"crypto/tls"
	"net"

	"github.com/essoojay/TrojanRust/utils"
	utls "github.com/refraction-networking/utls"
	"go.uber.org/zap"
)

type Client struct {
	tlsConfig  *tls.Config
	uTlsConfig utls.Config
	use_uTls   bool
}

func NewClient(conf Conf) *Client {
	c := &Client{
		use_uTls: conf.Use_uTls,
	}

	if conf.Use_uTls {
		c.uTlsConfig = GetUTlsConfig(conf)

		if ce := utils.CanLogInfo("using uTls and Chrome fingerprint for"); ce != nil {
			ce.Write(zap.String("host", conf.Host))
		}
	} else {
		c.tlsConfig = GetTlsConfig(conf)
	}

	return c
}

// Handshake performs the client TLS handshake over underlay and returns
// the escalated connection.
func (c *Client) Handshake(underlay net.Conn) (result net.Conn, err error) {
	if c.use_uTls {
		// the utls config cannot be shared between handshakes, it gets
		// polluted after one use; work on a copy
		configCopy := c.uTlsConfig

		utlsConn := utls.UClient(underlay, &configCopy, utls.HelloChrome_Auto)
		err = utlsConn.Handshake()
		if err != nil {
			return
		}
		result = utlsConn
	} else {
		officialConn := tls.Client(underlay, c.tlsConfig)
		err = officialConn.Handshake()
		if err != nil {
			return
		}
		result = officialConn
	}

	return
}
