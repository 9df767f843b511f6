package netutil

import (
	"fmt"
	"net"
)

// LocalIPv4 returns the first non-loopback IPv4 address of this host, or
// 127.0.0.1 when none is found.
func LocalIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := ipNet.IP.To4()
		if ip == nil || ip.IsLoopback() {
			continue
		}
		return ip.String()
	}

	return "127.0.0.1"
}

// BroadcastAddr computes the IPv4 directed-broadcast address for the given
// address and mask, e.g. 192.168.1.7/255.255.255.0 -> 192.168.1.255.
func BroadcastAddr(addr, mask string) (string, error) {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("invalid IPv4 address: %s", addr)
	}

	maskIP := net.ParseIP(mask)
	if maskIP == nil || maskIP.To4() == nil {
		return "", fmt.Errorf("invalid IPv4 mask: %s", mask)
	}

	ip4 := ip.To4()
	mask4 := net.IPMask(maskIP.To4())

	bcast := make(net.IP, len(ip4))
	for i := range ip4 {
		bcast[i] = ip4[i]&mask4[i] | ^mask4[i]
	}
	return bcast.String(), nil
}
