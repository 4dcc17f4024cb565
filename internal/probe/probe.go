// Package probe sends a single outbound traceroute probe: one ICMP Echo
// Request or one UDP datagram, with the TTL/hop-limit and identifier the
// caller asks for. Every call opens a fresh kernel socket and closes it
// before returning; nothing here waits for a reply, that's the
// receiver's job.
package probe

import (
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/net/icmp"

	"github.com/nraines/tracewatch/internal/codec"
	"github.com/nraines/tracewatch/internal/rawsock"
	"github.com/nraines/tracewatch/pkg/pathmodel"
)

// minUDPPayload is the minimum payload size a UDP probe carries, per
// the historical traceroute convention of a non-trivial packet body.
const minUDPPayload = 32

// Send transmits one probe toward target with the given TTL/hop-limit
// and wire identifier, and returns once the datagram has left the
// socket (or the attempt failed). icmpID is the random value carried in
// the ICMP identifier field for ICMP-mode probes; it's ignored in UDP
// mode.
func Send(target net.IP, mode pathmodel.PingMode, ttl, wireID, icmpID int, timeout time.Duration) error {
	switch mode {
	case pathmodel.ModeICMP:
		return sendICMP(target, ttl, wireID, icmpID, timeout)
	case pathmodel.ModeUDP:
		return sendUDP(target, ttl, wireID, timeout)
	default:
		return fmt.Errorf("probe: mode %q is not implemented", mode)
	}
}

func sendICMP(target net.IP, ttl, seq, id int, timeout time.Duration) error {
	isV6 := rawsock.IsIPv6(target)
	conn, err := icmp.ListenPacket(rawsock.ICMPNetwork(target), rawsock.ListenAddress(target))
	if err != nil {
		return fmt.Errorf("probe: open icmp socket: %w", err)
	}
	defer conn.Close()

	if isV6 {
		if err := conn.IPv6PacketConn().SetHopLimit(ttl); err != nil {
			return fmt.Errorf("probe: set hop limit: %w", err)
		}
	} else {
		if err := conn.IPv4PacketConn().SetTTL(ttl); err != nil {
			return fmt.Errorf("probe: set ttl: %w", err)
		}
	}

	payload := []byte(fmt.Sprintf("tracewatch-%d-%d", ttl, seq))
	msg, err := codec.BuildEchoRequest(isV6, id, seq, payload)
	if err != nil {
		return fmt.Errorf("probe: build echo request: %w", err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fmt.Errorf("probe: set write deadline: %w", err)
	}
	if _, err := conn.WriteTo(msg, &net.IPAddr{IP: target}); err != nil {
		return fmt.Errorf("probe: send echo request: %w", err)
	}
	return nil
}

func sendUDP(target net.IP, ttl, port int, timeout time.Duration) error {
	fd, err := rawsock.Create(rawsock.SocketDomain(target), syscall.SOCK_DGRAM, syscall.IPPROTO_UDP)
	if err != nil {
		return fmt.Errorf("probe: open udp socket: %w", err)
	}
	defer rawsock.Close(fd)

	bindAddr, err := rawsock.BindSockaddr(target)
	if err != nil {
		return fmt.Errorf("probe: resolve bind address: %w", err)
	}
	if err := rawsock.Bind(fd, bindAddr); err != nil {
		return fmt.Errorf("probe: bind udp socket: %w", err)
	}

	if err := rawsock.SetTTL(fd, rawsock.ProtocolLevel(target), rawsock.TTLSocketOption(target), ttl); err != nil {
		return fmt.Errorf("probe: set ttl: %w", err)
	}

	payload := make([]byte, minUDPPayload)
	copy(payload, fmt.Sprintf("tracewatch-%d-%d", ttl, port))

	sa := rawsock.Sockaddr(target, port)
	if err := rawsock.SendTo(fd, payload, sa); err != nil {
		return fmt.Errorf("probe: send udp datagram: %w", err)
	}
	return nil
}
