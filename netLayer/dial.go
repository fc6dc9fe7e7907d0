package netLayer

import (
	"net"
)

// Dial dials the address using its Network ("tcp" when empty). For udp the
// returned conn is a connected udp socket bound to an ephemeral local port.
// No dial timeout is imposed here; supervision is the caller's business.
func (addr *Addr) Dial() (net.Conn, error) {
	switch addr.Network {
	case "udp", "udp4", "udp6":
		ua := addr.ToUDPAddr()
		if ua == nil {
			return nil, &net.AddrError{Err: "cannot resolve", Addr: addr.String()}
		}
		return net.DialUDP("udp", nil, ua)
	case "":
		addr.Network = "tcp"
		fallthrough
	default:
		return net.Dial(addr.Network, addr.String())
	}
}
