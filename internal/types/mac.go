package types

import (
	"net"
	"os"
)

// MACAddress returns the host MAC address used for the debug_mac field.
// The MACADDR environment variable overrides interface discovery, which
// picks the first non-loopback interface with a hardware address.
func MACAddress() string {
	if addr := os.Getenv("MACADDR"); addr != "" {
		return addr
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return "00:00:00:00:00:00"
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) > 0 {
			return iface.HardwareAddr.String()
		}
	}
	return "00:00:00:00:00:00"
}
