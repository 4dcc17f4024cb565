// Package codec implements the wire encoding used to correlate outbound
// traceroute probes with their inbound ICMP responses: building Echo
// Request datagrams and parsing Time Exceeded / Echo Reply / Destination
// Unreachable messages back into (hop, attempt) pairs.
//
// Every exported parse function treats buf as the raw ICMP message,
// starting at the type byte — exactly what golang.org/x/net/icmp's
// PacketConn.ReadFrom returns for both "ip4:icmp" and "ip6:ipv6-icmp"
// listeners. The outer IP source address is supplied separately by the
// caller, since it comes from ReadFrom's peer address, not from buf.
package codec

import (
	"net"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/nraines/tracewatch/internal/rawsock"
	"github.com/nraines/tracewatch/pkg/pathmodel"
)

// ICMP message types this package dispatches on, by IP version.
const (
	icmpV4EchoReply       = 0
	icmpV4TimeExceeded    = 11
	icmpV4DestUnreachable = 3

	icmpV6EchoReply    = 129
	icmpV6TimeExceeded = 3
)

// EncodeIdentifier packs a 1-based hop and a 0-based attempt into the
// dense identifier space used on the wire. The encoding is a bijection
// over {(hop, attempt) : 1 <= hop <= maxHops, 0 <= attempt < attempts};
// DecodeIdentifier is its exact inverse.
func EncodeIdentifier(hop, attempt, attempts int) int {
	return attempts*(hop-1) + attempt
}

// DecodeIdentifier is the inverse of EncodeIdentifier: it recovers the
// 1-based hop and 0-based attempt from a dense wire identifier.
func DecodeIdentifier(raw, attempts int) (hop, attempt int) {
	return raw/attempts + 1, raw % attempts
}

// WireIdentifier returns the value that belongs on the wire for the
// given mode: the bare encoded identifier for ICMP mode (placed in the
// Echo sequence number), or the identifier offset by the UDP base port
// (placed in the UDP destination port) for UDP mode.
func WireIdentifier(mode pathmodel.PingMode, hop, attempt, attempts int) int {
	id := EncodeIdentifier(hop, attempt, attempts)
	if mode == pathmodel.ModeUDP {
		return id + pathmodel.UDPBasePort()
	}
	return id
}

// BuildEchoRequest constructs a minimal ICMP Echo Request for the given
// IP version. id is a random value carried in the ICMP identifier field
// to help the host OS disambiguate sockets; seq carries the identifier
// returned by WireIdentifier for ICMP mode.
func BuildEchoRequest(isIPv6 bool, id, seq int, payload []byte) ([]byte, error) {
	msg := &icmp.Message{
		Code: 0,
		Body: &icmp.Echo{
			ID:   id & 0xffff,
			Seq:  seq & 0xffff,
			Data: payload,
		},
	}
	if isIPv6 {
		msg.Type = ipv6.ICMPTypeEchoRequest
	} else {
		msg.Type = ipv4.ICMPTypeEcho
	}
	return msg.Marshal(nil)
}

// Result is the decoded outcome of a successful parse match.
type Result struct {
	Hop        int
	Attempt    int
	IsTerminal bool
	MPLS       []pathmodel.MPLSLabel
}

// offsets into the raw ICMP message buffer: these are absolute
// positions within the full ICMP message (8-byte outer ICMP header
// plus the quoted datagram that follows it for Time Exceeded and
// Destination Unreachable), not relative to any sub-slice. The quoted
// offsets are derived from rawsock.IPHeaderSize rather than hardcoded,
// since the quoted IP header's length depends on the trace target's
// address family.
const (
	echoSeqOffset = 6 // bytes 6..8: Echo sequence number

	icmpOuterHeaderLen       = 8 // outer ICMP header preceding any quoted datagram
	quotedICMPSeqFieldOffset = 6 // offset of the sequence field within a quoted ICMP header
	quotedUDPPortFieldOffset = 2 // offset of the destination port within a quoted UDP header
)

// quotedICMPSeqOffset is the absolute offset of a quoted ICMP echo
// sequence number: the outer ICMP header, then the quoted IP header,
// then the sequence field of the quoted ICMP header. For an IPv4
// target this lands at byte 34 (8 + 20 + 6); for an IPv6 target, byte
// 54 (8 + 40 + 6).
func quotedICMPSeqOffset(target net.IP) int {
	return icmpOuterHeaderLen + rawsock.IPHeaderSize(target) + quotedICMPSeqFieldOffset
}

// quotedUDPPortOffset is the absolute offset of a quoted UDP
// destination port: the outer ICMP header, then the quoted IP header,
// then the destination-port field of the quoted UDP header. For an
// IPv4 target this lands at byte 30 (8 + 20 + 2).
func quotedUDPPortOffset(target net.IP) int {
	return icmpOuterHeaderLen + rawsock.IPHeaderSize(target) + quotedUDPPortFieldOffset
}

// quotedOffsetForTimeExceeded picks the offset to read a quoted
// identifier from for an ICMPv{4,6} Time Exceeded message. IPv4 reads
// the real field for each mode (ICMP sequence or UDP destination
// port). IPv6 always uses the ICMP-sequence-shaped offset — 8 +
// IPHeaderSize(target) + 6, i.e. 54 for an IPv6 target — even in UDP
// mode. That lands on the quoted UDP checksum field rather than its
// destination port, but matches the documented behavior of the
// implementation this encoding was distilled from. Do not "fix" this
// without a live capture confirming the real layout; see DESIGN.md.
func quotedOffsetForTimeExceeded(target net.IP, isIPv6 bool, mode pathmodel.PingMode) int {
	if isIPv6 {
		return quotedICMPSeqOffset(target)
	}
	if mode == pathmodel.ModeUDP {
		return quotedUDPPortOffset(target)
	}
	return quotedICMPSeqOffset(target)
}

func be16(buf []byte, at int) (int, bool) {
	if at < 0 || at+2 > len(buf) {
		return 0, false
	}
	return int(buf[at])<<8 | int(buf[at+1]), true
}

// decodeAndBound turns a raw wire value into (hop, attempt), undoing the
// mode-specific base-port offset first, and rejects results outside the
// configured bounds: a decoded attempt >= attempts or hop outside
// [1, maxHops] means the datagram wasn't ours.
func decodeAndBound(raw int, mode pathmodel.PingMode, attempts, maxHops int) (hop, attempt int, ok bool) {
	v := raw
	if mode == pathmodel.ModeUDP {
		v -= pathmodel.UDPBasePort()
		if v < 0 {
			return 0, 0, false
		}
	}
	hop, attempt = DecodeIdentifier(v, attempts)
	if attempt < 0 || attempt >= attempts || hop < 1 || hop > maxHops {
		return 0, 0, false
	}
	return hop, attempt, true
}

// ParseInbound dispatches a raw ICMP message against the probe that
// produced it. src is the outer IP source (the peer address from
// ReadFrom); target is the trace destination; isIPv6/mode/attempts/
// maxHops describe the trace in progress. A nil Result means the
// datagram is unrelated traffic and should be discarded silently.
func ParseInbound(buf []byte, src, target net.IP, isIPv6 bool, mode pathmodel.PingMode, attempts, maxHops int) *Result {
	if len(buf) < 8 {
		return nil
	}
	typ := buf[0]

	if isIPv6 {
		switch typ {
		case icmpV6EchoReply:
			return parseEchoReply(buf, src, target, mode, attempts, maxHops)
		case icmpV6TimeExceeded:
			return parseTimeExceeded(buf, quotedOffsetForTimeExceeded(target, isIPv6, mode), mode, attempts, maxHops)
		}
		return nil
	}

	switch typ {
	case icmpV4EchoReply:
		return parseEchoReply(buf, src, target, mode, attempts, maxHops)
	case icmpV4TimeExceeded:
		return parseTimeExceeded(buf, quotedOffsetForTimeExceeded(target, isIPv6, mode), mode, attempts, maxHops)
	case icmpV4DestUnreachable:
		if mode != pathmodel.ModeUDP || !src.Equal(target) {
			return nil
		}
		return parseDestUnreachable(buf, target, attempts, maxHops)
	}
	return nil
}

// parseEchoReply matches an ICMP Echo Reply: valid only in ICMP mode,
// and only from the trace target itself. The identifier is read
// straight from the sequence-number field and decoded the same way as
// any other ICMP-mode identifier.
func parseEchoReply(buf []byte, src, target net.IP, mode pathmodel.PingMode, attempts, maxHops int) *Result {
	if mode != pathmodel.ModeICMP || !src.Equal(target) {
		return nil
	}
	raw, ok := be16(buf, echoSeqOffset)
	if !ok {
		return nil
	}
	hop, attempt, ok := decodeAndBound(raw, pathmodel.ModeICMP, attempts, maxHops)
	if !ok {
		return nil
	}
	return &Result{Hop: hop, Attempt: attempt, IsTerminal: true}
}

// parseTimeExceeded matches an ICMP Time Exceeded quoting one of our
// outbound probes, with the quoted identifier read at offset.
func parseTimeExceeded(buf []byte, offset int, mode pathmodel.PingMode, attempts, maxHops int) *Result {
	raw, ok := be16(buf, offset)
	if !ok {
		return nil
	}
	hop, attempt, ok := decodeAndBound(raw, mode, attempts, maxHops)
	if !ok {
		return nil
	}
	mpls := ExtractMPLSExtensions(buf)
	return &Result{Hop: hop, Attempt: attempt, IsTerminal: false, MPLS: mpls}
}

// parseDestUnreachable matches an ICMPv4 Destination Unreachable from
// the target itself, used by UDP mode as its terminal-hop signal
// (the target has no listener on the probe port, so it replies with
// port-unreachable instead of accepting the datagram).
func parseDestUnreachable(buf []byte, target net.IP, attempts, maxHops int) *Result {
	raw, ok := be16(buf, quotedUDPPortOffset(target))
	if !ok {
		return nil
	}
	hop, attempt, ok := decodeAndBound(raw, pathmodel.ModeUDP, attempts, maxHops)
	if !ok {
		return nil
	}
	return &Result{Hop: hop, Attempt: attempt, IsTerminal: true}
}
