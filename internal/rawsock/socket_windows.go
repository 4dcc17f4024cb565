//go:build windows

package rawsock

import "syscall"

// FD is a raw socket handle.
type FD syscall.Handle

// InvalidFD is the zero value for a socket that failed to open.
const InvalidFD FD = FD(syscall.InvalidHandle)

// Create opens a raw socket with the given domain/type/protocol triple.
func Create(domain, sockType, proto int) (FD, error) {
	fd, err := syscall.Socket(domain, sockType, proto)
	if err != nil {
		return InvalidFD, err
	}
	return FD(fd), nil
}

// Close releases fd.
func Close(fd FD) error {
	return syscall.Closesocket(syscall.Handle(fd))
}

// SetTTL sets the outbound TTL/hop-limit socket option.
func SetTTL(fd FD, level, opt, ttl int) error {
	return syscall.SetsockoptInt(syscall.Handle(fd), level, opt, ttl)
}

// SendTo writes data to sa on fd.
func SendTo(fd FD, data []byte, sa syscall.Sockaddr) error {
	return syscall.Sendto(syscall.Handle(fd), data, 0, sa)
}

// Bind binds fd to the local address sa.
func Bind(fd FD, sa syscall.Sockaddr) error {
	return syscall.Bind(syscall.Handle(fd), sa)
}
