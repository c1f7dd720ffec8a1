// Package netinfo discovers local reachable IPv4 addresses and picks the
// listen address when none is configured.
package netinfo

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Provider satisfies the router's address lookup.
type Provider struct{}

func (Provider) LocalIPv4s() []string { return LocalIPv4s() }

// LocalIPv4s collects the machine's non-loopback IPv4 addresses. The
// outbound-routing probe goes first since it yields the address peers can
// actually reach; the interface walk fills in the rest.
func LocalIPv4s() []string {
	var out []string
	seen := make(map[string]bool)

	if ip := probeOutbound(); ip != "" {
		out = append(out, ip)
		seen[ip] = true
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return out
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil || ip4.IsLoopback() {
				continue
			}
			s := ip4.String()
			if !seen[s] {
				out = append(out, s)
				seen[s] = true
			}
		}
	}
	return out
}

// probeOutbound discovers the address the kernel would route external
// traffic from. No packet is sent; UDP connect only binds the socket.
func probeOutbound() string {
	conn, err := net.DialTimeout("udp", "8.8.8.8:80", time.Second)
	if err != nil {
		return ""
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.IsLoopback() {
		return ""
	}
	if ip4 := addr.IP.To4(); ip4 != nil {
		return ip4.String()
	}
	return ""
}

// BestListenAddr picks the listen address: private/LAN ranges win over
// anything else, and "listen everywhere" is the fallback when discovery
// comes up empty.
func BestListenAddr() string {
	ips := LocalIPv4s()
	if len(ips) == 0 {
		return "0.0.0.0"
	}
	for _, s := range ips {
		if ip := net.ParseIP(s); ip != nil && ip.IsPrivate() {
			return s
		}
	}
	return ips[0]
}

// LogNetworkInfo prints the discovered addresses and how to reach the
// server, classified the way operators expect to read them.
func LogNetworkInfo(host string, port int) {
	l := log.With().Str("module", "netinfo").Logger()

	if hostname, err := os.Hostname(); err == nil {
		l.Info().Str("hostname", hostname).Msg("server network info")
	}

	ips := LocalIPv4s()
	if len(ips) == 0 {
		l.Warn().Msg("no local IPv4 addresses discovered")
	}
	for _, s := range ips {
		l.Info().Str("ip", s).Str("kind", classify(s)).Str("url", wsURL(s, port)).Msg("reachable address")
	}
	l.Info().Str("url", wsURL("127.0.0.1", port)).Msg("loopback address")
	l.Info().Str("host", host).Int("port", port).Msg("listen address selected")
}

func classify(s string) string {
	ip := net.ParseIP(s)
	switch {
	case ip == nil:
		return "unknown"
	case ip.IsPrivate():
		return "lan"
	default:
		return "public"
	}
}

func wsURL(host string, port int) string {
	return "ws://" + net.JoinHostPort(host, strconv.Itoa(port))
}
