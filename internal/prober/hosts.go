package prober

import (
	"fmt"
	"net/netip"
)

// ExpandHosts lists the probe targets of every range, in order and without
// duplicates. IPv4 prefixes shorter than /31 skip the network and
// broadcast addresses; /31 and /32 yield every address.
func ExpandHosts(cidrs []string) ([]netip.Addr, error) {
	seen := make(map[netip.Addr]struct{})
	var out []netip.Addr
	for _, c := range cidrs {
		prefix, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", c, err)
		}
		prefix = prefix.Masked()
		if !prefix.Addr().Is4() {
			return nil, fmt.Errorf("CIDR %q: only IPv4 ranges are supported", c)
		}
		if prefix.Bits() < 16 {
			return nil, fmt.Errorf("CIDR %q: prefix too large to scan", c)
		}
		skipEnds := prefix.Bits() < 31
		first := prefix.Addr()
		for a := first; prefix.Contains(a); a = a.Next() {
			if skipEnds && (a == first || !prefix.Contains(a.Next())) {
				continue
			}
			if _, dup := seen[a]; dup {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	return out, nil
}
