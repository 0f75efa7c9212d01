// Package wire implements the on-wire framing for meshbridge datagrams: a
// shared admission token followed by one of four tagged message kinds.
package wire

import "net"

// AddrFamily identifies the address family carried in an encoded PeerAddress.
type AddrFamily uint8

const (
	AddrFamilyV4 AddrFamily = 1
	AddrFamilyV6 AddrFamily = 2
)

// PeerAddress is an opaque network endpoint: address family, raw address
// bytes, and port. It is a fixed-size value type so it can be used directly
// as a map key and compared/hashed by value, per spec.
type PeerAddress struct {
	Family AddrFamily
	IP     [16]byte // v4 addresses occupy the first 4 bytes
	Port   uint16
}

// PeerAddressFromUDP converts a *net.UDPAddr into a PeerAddress.
func PeerAddressFromUDP(addr *net.UDPAddr) PeerAddress {
	var pa PeerAddress
	pa.Port = uint16(addr.Port)
	if v4 := addr.IP.To4(); v4 != nil {
		pa.Family = AddrFamilyV4
		copy(pa.IP[:4], v4)
		return pa
	}
	pa.Family = AddrFamilyV6
	copy(pa.IP[:], addr.IP.To16())
	return pa
}

// UDPAddr converts a PeerAddress back into a *net.UDPAddr.
func (a PeerAddress) UDPAddr() *net.UDPAddr {
	if a.Family == AddrFamilyV4 {
		ip := make(net.IP, 4)
		copy(ip, a.IP[:4])
		return &net.UDPAddr{IP: ip, Port: int(a.Port)}
	}
	ip := make(net.IP, 16)
	copy(ip, a.IP[:])
	return &net.UDPAddr{IP: ip, Port: int(a.Port)}
}

// String renders the endpoint as host:port for logging.
func (a PeerAddress) String() string {
	return a.UDPAddr().String()
}
