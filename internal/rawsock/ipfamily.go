// Package rawsock provides the low-level, platform-specific socket
// operations a probe needs: raw socket creation, TTL/hop-limit socket
// options, and the IPv4/IPv6 family constants that every other layer
// selects by.
package rawsock

import (
	"net"
	"syscall"
)

// IsIPv6 reports whether ip is an IPv6 address (not IPv4 or IPv4-mapped).
func IsIPv6(ip net.IP) bool {
	return ip != nil && ip.To4() == nil
}

// SocketDomain returns AF_INET or AF_INET6 for ip.
func SocketDomain(ip net.IP) int {
	if IsIPv6(ip) {
		return syscall.AF_INET6
	}
	return syscall.AF_INET
}

// ICMPNetwork returns the network string for icmp.ListenPacket: "ip6:ipv6-icmp"
// or "ip4:icmp".
func ICMPNetwork(ip net.IP) string {
	if IsIPv6(ip) {
		return "ip6:ipv6-icmp"
	}
	return "ip4:icmp"
}

// ListenAddress returns the wildcard address to bind a listener to for
// ip's family: "::" for IPv6, "0.0.0.0" for IPv4.
func ListenAddress(ip net.IP) string {
	if IsIPv6(ip) {
		return "::"
	}
	return "0.0.0.0"
}

// UDPBindAddress returns the local address a UDP probe socket binds to
// before sending, matching ip's family. Unlike the reference
// implementation this module was distilled from (which only ever binds
// "0.0.0.0:0" and so never actually sends a probe over IPv6), this
// selects "[::]:0" for IPv6 targets.
func UDPBindAddress(ip net.IP) string {
	if IsIPv6(ip) {
		return "[::]:0"
	}
	return "0.0.0.0:0"
}

// TTLSocketOption returns the socket option that controls outbound
// TTL/hop-limit: IPV6_UNICAST_HOPS for IPv6, IP_TTL for IPv4.
func TTLSocketOption(ip net.IP) int {
	if IsIPv6(ip) {
		return syscall.IPV6_UNICAST_HOPS
	}
	return syscall.IP_TTL
}

// ProtocolLevel returns the setsockopt level to pair with
// TTLSocketOption: IPPROTO_IPV6 for IPv6, IPPROTO_IP for IPv4.
func ProtocolLevel(ip net.IP) int {
	if IsIPv6(ip) {
		return syscall.IPPROTO_IPV6
	}
	return syscall.IPPROTO_IP
}

// IPHeaderSize returns the quoted IP header size in a Time
// Exceeded/Destination Unreachable payload: 40 for IPv6, 20 for IPv4.
func IPHeaderSize(ip net.IP) int {
	if IsIPv6(ip) {
		return 40
	}
	return 20
}

// Sockaddr builds the syscall sockaddr for target:port, picking the
// IPv4 or IPv6 variant by target's family.
func Sockaddr(target net.IP, port int) syscall.Sockaddr {
	if IsIPv6(target) {
		var addr [16]byte
		copy(addr[:], target.To16())
		return &syscall.SockaddrInet6{Port: port, Addr: addr}
	}
	var addr [4]byte
	copy(addr[:], target.To4())
	return &syscall.SockaddrInet4{Port: port, Addr: addr}
}

// BindSockaddr resolves UDPBindAddress(ip) into the syscall sockaddr a
// UDP probe socket binds to before sending.
func BindSockaddr(ip net.IP) (syscall.Sockaddr, error) {
	addr, err := net.ResolveUDPAddr("udp", UDPBindAddress(ip))
	if err != nil {
		return nil, err
	}
	return Sockaddr(addr.IP, addr.Port), nil
}
