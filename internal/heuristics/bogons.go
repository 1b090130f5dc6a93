package heuristics

import (
	"net/netip"

	"github.com/gaissmai/bart"
)

// bogonASNRanges mirrors BOGON_ASN_RANGES: RFC 6996 private-use ranges.
var bogonASNRanges = [][2]int64{
	{64512, 65534},
	{4200000000, 4294967294},
}

// bogonPrefixCIDRs mirrors BOGON_PREFIXES verbatim.
var bogonPrefixCIDRs = []string{
	"0.0.0.0/8",
	"10.0.0.0/8",
	"100.64.0.0/10",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"224.0.0.0/4",
	"240.0.0.0/4",
	"255.255.255.255/32",
}

// BogonTable answers overlap queries against the 15 reserved/private
// prefixes in O(log n) via a compressed binary trie, replacing the
// original's linear scan over ipaddress.ip_network objects.
type BogonTable struct {
	tbl *bart.Table[bool]
}

func NewBogonTable() *BogonTable {
	tbl := &bart.Table[bool]{}
	for _, cidr := range bogonPrefixCIDRs {
		pfx := netip.MustParsePrefix(cidr)
		tbl.Insert(pfx, true)
	}
	return &BogonTable{tbl: tbl}
}

// Overlaps reports whether the announced prefix overlaps any bogon range,
// matching ip_network(prefix).overlaps(bogon) for every bogon entry.
func (b *BogonTable) Overlaps(prefix string) bool {
	pfx, err := netip.ParsePrefix(prefix)
	if err != nil {
		return false
	}
	return b.tbl.OverlapsPrefix(pfx)
}

// IsBogonASN reports whether originAS falls in a private/reserved 16- or
// 32-bit AS number range, matching BOGON_ASN_RANGES.
func IsBogonASN(originAS int64) (bool, int64, int64) {
	for _, r := range bogonASNRanges {
		if originAS >= r[0] && originAS <= r[1] {
			return true, r[0], r[1]
		}
	}
	return false, 0, 0
}
