//go:build !windows

package rawsock

import (
	"fmt"
	"os"
	"strings"
)

// CheckPrivileges verifies the current process can open raw sockets,
// which every probe mode in this module requires.
func CheckPrivileges() error {
	if os.Geteuid() == 0 {
		return nil
	}
	if hasNetRawCapability() {
		return nil
	}
	return fmt.Errorf("tracewatch requires elevated privileges for raw socket access.\n\nRun with: sudo %s", strings.Join(os.Args, " "))
}

// hasNetRawCapability checks for CAP_NET_RAW on Linux by reading
// /proc/self/status; it's always false on other Unix systems, which
// don't expose this file.
func hasNetRawCapability() bool {
	data, err := os.ReadFile("/proc/self/status")
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, "CapEff:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return false
		}
		var capMask uint64
		if _, err := fmt.Sscanf(fields[1], "%x", &capMask); err != nil {
			return false
		}
		const capNetRaw = 1 << 13
		return capMask&capNetRaw != 0
	}
	return false
}
