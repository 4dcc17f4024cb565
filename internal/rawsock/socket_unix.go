//go:build !windows

package rawsock

import "syscall"

// FD is a raw socket file descriptor.
type FD int

// InvalidFD is the zero value for a socket that failed to open.
const InvalidFD FD = -1

// Create opens a raw socket with the given domain/type/protocol triple
// (e.g. syscall.AF_INET, syscall.SOCK_DGRAM, syscall.IPPROTO_UDP).
func Create(domain, sockType, proto int) (FD, error) {
	fd, err := syscall.Socket(domain, sockType, proto)
	if err != nil {
		return InvalidFD, err
	}
	return FD(fd), nil
}

// Close releases fd.
func Close(fd FD) error {
	return syscall.Close(int(fd))
}

// SetTTL sets the outbound TTL/hop-limit socket option.
func SetTTL(fd FD, level, opt, ttl int) error {
	return syscall.SetsockoptInt(int(fd), level, opt, ttl)
}

// SendTo writes data to sa on fd.
func SendTo(fd FD, data []byte, sa syscall.Sockaddr) error {
	return syscall.Sendto(int(fd), data, 0, sa)
}

// Bind binds fd to the local address sa.
func Bind(fd FD, sa syscall.Sockaddr) error {
	return syscall.Bind(int(fd), sa)
}
