package ssrf

import (
	"fmt"
	"net/netip"
)

// cidr is a network stored as raw bytes so that matching works on the exact
// address family the caller supplies.
type cidr struct {
	network []byte
	bits    int
	label   string
}

var ipv4Blocklist = []cidr{
	mustCIDR("127.0.0.0/8", "loopback"),
	mustCIDR("10.0.0.0/8", "private"),
	mustCIDR("172.16.0.0/12", "private"),
	mustCIDR("192.168.0.0/16", "private"),
	mustCIDR("169.254.0.0/16", "link-local/metadata"),
	mustCIDR("100.64.0.0/10", "carrier-grade NAT"),
	mustCIDR("192.0.2.0/24", "documentation"),
	mustCIDR("198.51.100.0/24", "documentation"),
	mustCIDR("203.0.113.0/24", "documentation"),
	mustCIDR("224.0.0.0/4", "multicast"),
	mustCIDR("240.0.0.0/4", "reserved"),
	mustCIDR("0.0.0.0/8", "reserved"),
}

// The mapped IPv4 ranges come before the ::ffff:0:0/96 catch-all so that
// blockedRange reports the narrowest match.
var ipv6Blocklist = append(mappedIPv4Blocklist(),
	mustCIDR("::1/128", "loopback"),
	mustCIDR("::/128", "unspecified"),
	mustCIDR("::ffff:0:0/96", "IPv4-mapped"),
	mustCIDR("fc00::/7", "unique-local"),
	mustCIDR("fe80::/10", "link-local"),
	mustCIDR("ff00::/8", "multicast"),
	mustCIDR("64:ff9b::/96", "NAT64"),
	mustCIDR("100::/64", "discard"),
	mustCIDR("2001:db8::/32", "documentation"),
)

func mustCIDR(prefix, label string) cidr {
	parsed := netip.MustParsePrefix(prefix)

	return cidr{
		network: parsed.Addr().AsSlice(),
		bits:    parsed.Bits(),
		label:   label,
	}
}

// mappedIPv4Blocklist re-derives every IPv4 entry as its ::ffff:a.b.c.d/(96+n) form.
func mappedIPv4Blocklist() []cidr {
	mapped := make([]cidr, 0, len(ipv4Blocklist))

	for _, entry := range ipv4Blocklist {
		network := make([]byte, 16)
		network[10] = 0xff
		network[11] = 0xff
		copy(network[12:], entry.network)

		mapped = append(mapped, cidr{
			network: network,
			bits:    96 + entry.bits,
			label:   "IPv4-mapped " + entry.label,
		})
	}

	return mapped
}

// contains compares whole bytes first and then the remaining high bits of the
// next byte under a mask.
func (c cidr) contains(ip []byte) bool {
	if len(ip) != len(c.network) {
		return false
	}

	full := c.bits / 8
	for i := 0; i < full; i++ {
		if ip[i] != c.network[i] {
			return false
		}
	}

	rem := c.bits % 8
	if rem == 0 {
		return true
	}

	mask := ^byte(0) << (8 - rem)

	return ip[full]&mask == c.network[full]&mask
}

func (c cidr) String() string {
	addr, _ := netip.AddrFromSlice(c.network)

	return fmt.Sprintf("%s/%d", addr, c.bits)
}

// blockedRange returns the first blocklist entry containing addr.
func blockedRange(addr netip.Addr) (cidr, bool) {
	var (
		raw  []byte
		list []cidr
	)

	if addr.Is4() {
		b := addr.As4()
		raw, list = b[:], ipv4Blocklist
	} else {
		b := addr.As16()
		raw, list = b[:], ipv6Blocklist
	}

	for _, entry := range list {
		if entry.contains(raw) {
			return entry, true
		}
	}

	return cidr{}, false
}
