package rawsock

import (
	"net"
	"syscall"
	"testing"
)

func TestIPv4Family(t *testing.T) {
	ip := net.ParseIP("192.0.2.1")
	if IsIPv6(ip) {
		t.Fatal("expected IPv4 to report false")
	}
	if ListenAddress(ip) != "0.0.0.0" {
		t.Errorf("got %q", ListenAddress(ip))
	}
	if UDPBindAddress(ip) != "0.0.0.0:0" {
		t.Errorf("got %q", UDPBindAddress(ip))
	}
	if IPHeaderSize(ip) != 20 {
		t.Errorf("got %d", IPHeaderSize(ip))
	}
}

func TestIPv6Family(t *testing.T) {
	ip := net.ParseIP("2001:db8::1")
	if !IsIPv6(ip) {
		t.Fatal("expected IPv6 to report true")
	}
	if ListenAddress(ip) != "::" {
		t.Errorf("got %q", ListenAddress(ip))
	}
	if UDPBindAddress(ip) != "[::]:0" {
		t.Errorf("got %q", UDPBindAddress(ip))
	}
	if IPHeaderSize(ip) != 40 {
		t.Errorf("got %d", IPHeaderSize(ip))
	}
}

func TestSockaddrFamilyMatchesTarget(t *testing.T) {
	if _, ok := Sockaddr(net.ParseIP("192.0.2.1"), 33434).(*syscall.SockaddrInet4); !ok {
		t.Error("expected IPv4 sockaddr variant")
	}
}

func TestBindSockaddrMatchesTargetFamily(t *testing.T) {
	sa4, err := BindSockaddr(net.ParseIP("192.0.2.1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sa4.(*syscall.SockaddrInet4); !ok {
		t.Errorf("expected IPv4 sockaddr variant, got %T", sa4)
	}

	sa6, err := BindSockaddr(net.ParseIP("2001:db8::1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := sa6.(*syscall.SockaddrInet6); !ok {
		t.Errorf("expected IPv6 sockaddr variant, got %T", sa6)
	}
}
