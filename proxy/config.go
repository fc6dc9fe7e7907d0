package proxy

import (
	"os"

	"github.com/BurntSushi/toml"
	"github.com/essoojay/TrojanRust/utils"
)

// OutboundConfig is the outbound definition as written by the user. All
// validation happens in NewHandler; this struct is only the decoded file.
type OutboundConfig struct {
	Mode     string `toml:"mode"`     // direct, tcp, grpc, quic
	Protocol string `toml:"protocol"` // trojan, socks, direct
	Secret   string `toml:"secret"`   // plaintext pre-shared secret

	// Optional fixed destination. When present it overrides any
	// destination encoded in the per-request data; address and port must
	// be given together.
	Address string `toml:"address"`
	Port    int    `toml:"port"`

	TLS *TLSConfig `toml:"tls"`
}

// TLSConfig escalates the outbound link to TLS before anything else.
type TLSConfig struct {
	Host     string `toml:"sni"`
	Insecure bool   `toml:"insecure"`
	Utls     bool   `toml:"utls"`
}

func LoadTomlConfStr(str string) (oc *OutboundConfig, err error) {
	oc = &OutboundConfig{}
	_, err = toml.Decode(str, oc)
	return
}

func LoadTomlConfFile(fileNamePath string) (*OutboundConfig, error) {
	bs, err := os.ReadFile(fileNamePath)
	if err != nil {
		return nil, utils.NewErr("can't open config file", err)
	}
	return LoadTomlConfStr(string(bs))
}
