// Package receiver owns the long-lived raw ICMP socket an iteration
// reads replies from. It performs no parsing; callers hand the raw
// buffers it returns to internal/codec.
package receiver

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/icmp"

	"github.com/nraines/tracewatch/internal/rawsock"
)

// pollDeadline bounds every individual read so the caller's loop stays
// responsive to cancellation even while nothing has arrived.
const pollDeadline = 100 * time.Millisecond

// ErrTimeout is returned by Recv when no datagram arrived within the
// poll deadline; this is expected and not a failure.
var ErrTimeout = errors.New("receiver: no datagram within poll deadline")

// Receiver holds one raw ICMP socket for the duration of an iteration.
type Receiver struct {
	conn   *icmp.PacketConn
	buf    []byte
	target net.IP
}

// Open listens on a raw ICMP socket matching target's IP family.
func Open(target net.IP) (*Receiver, error) {
	conn, err := icmp.ListenPacket(rawsock.ICMPNetwork(target), rawsock.ListenAddress(target))
	if err != nil {
		return nil, fmt.Errorf("receiver: open icmp socket: %w", err)
	}
	return &Receiver{conn: conn, buf: make([]byte, 1500), target: target}, nil
}

// Close releases the underlying socket.
func (r *Receiver) Close() error {
	return r.conn.Close()
}

// Recv attempts to read one datagram, blocking for at most the poll
// deadline. On success it returns the raw message bytes (reusing an
// internal buffer; callers must not retain the slice past their next
// Recv call) and the outer IP source address. On timeout it returns
// ErrTimeout.
func (r *Receiver) Recv() (buf []byte, src net.IP, err error) {
	if err := r.conn.SetReadDeadline(time.Now().Add(pollDeadline)); err != nil {
		return nil, nil, fmt.Errorf("receiver: set read deadline: %w", err)
	}
	n, peer, err := r.conn.ReadFrom(r.buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil, ErrTimeout
		}
		return nil, nil, fmt.Errorf("receiver: read: %w", err)
	}
	ipAddr, ok := peer.(*net.IPAddr)
	if !ok {
		return nil, nil, fmt.Errorf("receiver: unexpected peer address type %T", peer)
	}
	return r.buf[:n], ipAddr.IP, nil
}
