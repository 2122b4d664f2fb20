package stack

import (
	"math/bits"
	"sort"
)

// RouteFlags mirrors the flag letters printed by Linux's `route -n` (U, G,
// H, R; L is folded into the same bitset for parity with the source's
// Route_Entry even though loopback routing is never exercised by this
// core).
type RouteFlags uint8

const (
	RouteUp RouteFlags = 1 << iota
	RouteLoopback
	RouteGateway
	RouteHost
	RouteReject
)

func (f RouteFlags) String() string {
	var s []byte
	if f&RouteUp != 0 {
		s = append(s, 'U')
	}
	if f&RouteLoopback != 0 {
		s = append(s, 'L')
	}
	if f&RouteGateway != 0 {
		s = append(s, 'G')
	}
	if f&RouteHost != 0 {
		s = append(s, 'H')
	}
	if f&RouteReject != 0 {
		s = append(s, 'R')
	}
	return string(s)
}

// RouteEntry is one row of the routing table: a destination network, the
// gateway to reach it through (zero if directly connected), a netmask, a
// flag set, and the outbound interface name.
type RouteEntry struct {
	Destination [4]byte
	Gateway     [4]byte
	Netmask     [4]byte
	Flags       RouteFlags
	Interface   string
}

func maskedEqual(a, b, mask [4]byte) bool {
	for i := 0; i < 4; i++ {
		if a[i]&mask[i] != b[i]&mask[i] {
			return false
		}
	}
	return true
}

func prefixLen(mask [4]byte) int {
	return bits.OnesCount8(mask[0]) + bits.OnesCount8(mask[1]) + bits.OnesCount8(mask[2]) + bits.OnesCount8(mask[3])
}

// RouteTable holds routing entries sorted most-specific (longest netmask)
// first. Lookup is a linear scan in that order, returning the first entry
// whose masked destination agrees with the masked query — longest-prefix
// match. This fixes the bitwise-AND bug in the source's lookup() (spec.md
// §9 Open Question (a)): the match predicate here is equality of masked
// addresses, never a truthiness test on the AND of two masked values.
type RouteTable struct {
	entries []RouteEntry
}

// NewRouteTable returns an empty routing table. Callers typically follow up
// with Add to install a default route, per spec.md §4.2's "initial
// population adds a default route 0.0.0.0/0 -> gateway with flag GATEWAY".
func NewRouteTable() *RouteTable {
	return &RouteTable{}
}

// Add inserts entry, keeping the table sorted by netmask prefix length
// descending. Ties keep insertion order (stable sort).
func (t *RouteTable) Add(entry RouteEntry) {
	t.entries = append(t.entries, entry)
	sort.SliceStable(t.entries, func(i, j int) bool {
		return prefixLen(t.entries[i].Netmask) > prefixLen(t.entries[j].Netmask)
	})
}

// Lookup returns the longest-prefix-matching entry for dst, iterating
// most-specific first. An empty or non-matching table returns ok=false;
// the caller must treat that as a routing failure (spec.md §4.2).
func (t *RouteTable) Lookup(dst [4]byte) (entry RouteEntry, ok bool) {
	for _, e := range t.entries {
		if maskedEqual(e.Destination, dst, e.Netmask) {
			return e, true
		}
	}
	return RouteEntry{}, false
}

// NextHop resolves the IP address that ARP should be queried for to reach
// dst through entry: the gateway if the route is indirect, else dst itself
// (spec.md §4.4 step 2).
func (e RouteEntry) NextHop(dst [4]byte) [4]byte {
	if e.Flags&RouteGateway != 0 && e.Gateway != dst {
		return e.Gateway
	}
	return dst
}
