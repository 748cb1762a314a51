package config

import (
	"fmt"
	"net"
)

// pickIP picks a non-loopback IPv4 address matching mode ("private" or
// "public"), for nodes configured with bindHost: "auto" rather than an
// explicit address.
func pickIP(mode string) (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if (iface.Flags&net.FlagUp) == 0 || (iface.Flags&net.FlagLoopback) != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			ip = ip.To4()
			if ip == nil {
				continue
			}
			if mode == "private" && isPrivateIP(ip) {
				return ip, nil
			}
			if mode == "public" && !isPrivateIP(ip) {
				return ip, nil
			}
		}
	}
	return nil, fmt.Errorf("config: no suitable %s interface found", mode)
}

func isPrivateIP(ip net.IP) bool {
	privateBlocks := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
	}
	for _, block := range privateBlocks {
		_, cidr, _ := net.ParseCIDR(block)
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// ResolvedBindHost returns the host a udplink.Link should bind to:
// cfg.Link.BindHost verbatim unless it is "auto" or "", in which case a
// private-range interface address is picked automatically — convenient for
// containerized simulation nodes that don't know their own address ahead
// of time.
func (l LinkConfig) ResolvedBindHost() (string, error) {
	if l.BindHost != "" && l.BindHost != "auto" {
		return l.BindHost, nil
	}
	ip, err := pickIP("private")
	if err != nil {
		return "", err
	}
	return ip.String(), nil
}

// BroadcastUDPAddr and UnicastUDPAddr resolve the configured ports against
// the resolved bind host, ready to hand to udplink.New.
func (l LinkConfig) BroadcastUDPAddr() (*net.UDPAddr, error) {
	host, err := l.ResolvedBindHost()
	if err != nil {
		return nil, err
	}
	return net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, l.BroadcastPort))
}

func (l LinkConfig) UnicastUDPAddr() (*net.UDPAddr, error) {
	host, err := l.ResolvedBindHost()
	if err != nil {
		return nil, err
	}
	return net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, l.UnicastPort))
}
