/*
Package netLayer contains the network-level address model, dialing, and the
bidirectional relay primitives used by every outbound mode.
*/
package netLayer

import (
	"math/rand"
	"net"
	"strconv"
)

// Addr represents an address that you want to access by proxy. Either Name
// or IP is used, exclusively. Network records the transport protocol name
// ("tcp" or "udp"); empty means tcp.
type Addr struct {
	Network string
	Name    string // domain name
	IP      net.IP
	Port    int
}

// NewAddrByHostPort requires the string to be in host:port form.
func NewAddrByHostPort(hostPortStr string) (Addr, error) {
	host, portStr, err := net.SplitHostPort(hostPortStr)
	if err != nil {
		return Addr{}, err
	}
	if host == "" {
		host = "127.0.0.1"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Addr{}, err
	}

	a := Addr{Port: port}
	if ip := net.ParseIP(host); ip != nil {
		a.IP = ip
	} else {
		a.Name = host
	}
	return a, nil
}

func NewAddrFromUDPAddr(addr *net.UDPAddr) Addr {
	return Addr{
		IP:      addr.IP,
		Port:    addr.Port,
		Network: "udp",
	}
}

// String returns the host:port form. Name is preferred when no IP is set.
func (a *Addr) String() string {
	port := strconv.Itoa(a.Port)
	if a.IP == nil {
		return net.JoinHostPort(a.Name, port)
	}
	return net.JoinHostPort(a.IP.String(), port)
}

func (a *Addr) HostStr() string {
	if a.IP == nil {
		return a.Name
	}
	return a.IP.String()
}

func (a *Addr) IsEmpty() bool {
	return a.Name == "" && len(a.IP) == 0 && a.Network == "" && a.Port == 0
}

func (a *Addr) IsUDP() bool {
	switch a.Network {
	case "udp", "udp4", "udp6":
		return true
	}
	return false
}

func (a *Addr) ToUDPAddr() *net.UDPAddr {
	ua, err := net.ResolveUDPAddr("udp", a.String())
	if err != nil {
		return nil
	}
	return ua
}

// RandPort returns a random high port, checking with the system that it is
// actually free when mustValid is set. Used by tests.
func RandPort(mustValid, isudp bool, depth int) (p int) {
	p = rand.Intn(60000) + 4096
	if !mustValid {
		return
	}
	var err error
	if isudp {
		var listener *net.UDPConn
		listener, err = net.ListenUDP("udp", &net.UDPAddr{
			IP:   net.IPv4(0, 0, 0, 0),
			Port: p,
		})
		if listener != nil {
			listener.Close()
		}
	} else {
		var listener *net.TCPListener
		listener, err = net.ListenTCP("tcp", &net.TCPAddr{
			IP:   net.IPv4(0, 0, 0, 0),
			Port: p,
		})
		if listener != nil {
			listener.Close()
		}
	}
	if err != nil && depth < 20 {
		return RandPort(mustValid, isudp, depth+1)
	}
	return
}

func RandPortStr(mustValid, isudp bool) string {
	return strconv.Itoa(RandPort(mustValid, isudp, 0))
}

func GetRandLocalPrivateAddr(mustValid, isudp bool) string {
	return "127.0.0.1:" + RandPortStr(mustValid, isudp)
}
