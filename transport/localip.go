// File: transport/localip.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"net"
	"strings"

	"github.com/momentics/rcom/api"
)

// LocalIPv4 returns the first IPv4 address of an interface whose name
// starts with "w" (wlan0, wlp2s0, ...), falling back to 127.0.0.1.
func LocalIPv4() api.Address {
	fallback := api.Address{IP: [4]byte{127, 0, 0, 1}}
	ifaces, err := net.Interfaces()
	if err != nil {
		return fallback
	}
	for _, iface := range ifaces {
		if !strings.HasPrefix(iface.Name, "w") {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				var out api.Address
				copy(out.IP[:], ip4)
				return out
			}
		}
	}
	return fallback
}
