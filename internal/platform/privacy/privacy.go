// Package privacy masks personal data before it reaches logs.
package privacy

import (
	"net"
	"strings"
)

// AnonymizeIP keeps the network part of an address: /24 for IPv4 and /48
// for IPv6. It returns "unknown" for an empty input and "invalid" when the
// input does not parse.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}
	if v4 := parsed.To4(); v4 != nil {
		return net.IPv4(v4[0], v4[1], v4[2], 0).String()
	}
	masked := make(net.IP, net.IPv6len)
	copy(masked, parsed[:6])
	return masked.String()
}

// MaskCardUID keeps the last four hex digits of a card UID so log lines stay
// correlatable without exposing the full identifier.
func MaskCardUID(uid string) string {
	uid = strings.TrimSpace(uid)
	if len(uid) <= 4 {
		return strings.Repeat("*", len(uid))
	}
	return strings.Repeat("*", len(uid)-4) + uid[len(uid)-4:]
}
