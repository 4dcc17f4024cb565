package probe

import (
	"net"
	"testing"
	"time"

	"github.com/nraines/tracewatch/pkg/pathmodel"
)

func TestSendRejectsUnimplementedMode(t *testing.T) {
	err := Send(net.ParseIP("8.8.8.8"), pathmodel.ModeTCP, 1, 0, 0, time.Second)
	if err == nil {
		t.Fatal("expected an error for tcp mode")
	}
}

func TestSendICMPRequiresPrivilege(t *testing.T) {
	err := Send(net.ParseIP("8.8.8.8"), pathmodel.ModeICMP, 1, 0, 0, 50*time.Millisecond)
	if err != nil {
		t.Skipf("raw ICMP socket unavailable in this environment: %v", err)
	}
}

func TestSendUDPRequiresPrivilege(t *testing.T) {
	err := Send(net.ParseIP("8.8.8.8"), pathmodel.ModeUDP, 1, 33434, 0, 50*time.Millisecond)
	if err != nil {
		t.Skipf("raw UDP socket unavailable in this environment: %v", err)
	}
}
