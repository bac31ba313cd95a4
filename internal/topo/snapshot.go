package topo

import (
	"sort"
	"strings"
)

// Switch is a discovered datapath. Ports lists the usable port numbers,
// sorted ascending; reserved/local ports never appear.
type Switch struct {
	DPID  uint64 `json:"dpid"`
	Ports []int  `json:"ports"`
}

// Endpoint is one end of a link: a port on a switch.
type Endpoint struct {
	DPID uint64 `json:"dpid"`
	Port int    `json:"port"`
}

// Less orders endpoints by (dpid, port).
func (e Endpoint) Less(o Endpoint) bool {
	if e.DPID != o.DPID {
		return e.DPID < o.DPID
	}
	return e.Port < o.Port
}

// Link is an inter-switch connection as reported by the producer. The
// producer reports each physical link in both directions; identity
// comparison must therefore go through Canonical.
type Link struct {
	A Endpoint `json:"src"`
	B Endpoint `json:"dst"`
}

// LinkID is the canonical identity of a link: the unordered endpoint
// pair stored with the lesser endpoint first. Two differently oriented
// reports of one physical link produce the same LinkID.
type LinkID struct {
	Lo Endpoint
	Hi Endpoint
}

// Canonical returns the orientation-independent identity of the link.
func (l Link) Canonical() LinkID {
	if l.B.Less(l.A) {
		return LinkID{Lo: l.B, Hi: l.A}
	}
	return LinkID{Lo: l.A, Hi: l.B}
}

// SwitchPair returns the sorted dpid pair of the link's endpoints. The
// target environment maps its physical links by switch pair, not by
// port, so this is the key used for handle lookup.
func (l Link) SwitchPair() [2]uint64 {
	if l.A.DPID <= l.B.DPID {
		return [2]uint64{l.A.DPID, l.B.DPID}
	}
	return [2]uint64{l.B.DPID, l.A.DPID}
}

// Host is a discovered end host, keyed by MAC. Address fields may be
// re-learned by the producer across snapshots.
type Host struct {
	MAC  string `json:"mac"`
	IPv4 string `json:"ipv4,omitempty"`
	IPv6 string `json:"ipv6,omitempty"`
	DPID uint64 `json:"dpid"`
	Port int    `json:"port"`
}

// Snapshot is a complete, versioned description of the discovered
// topology. Version 0 means uninitialized; the producer increments it
// exactly once per successful rebuild.
type Snapshot struct {
	Version  uint64            `json:"version"`
	Switches map[uint64]Switch `json:"switches"`
	Links    map[LinkID]Link   `json:"links"`
	Hosts    map[string]Host   `json:"hosts"`
}

// SwitchIDs returns the dpids present in the snapshot, sorted.
func (s *Snapshot) SwitchIDs() []uint64 {
	ids := make([]uint64, 0, len(s.Switches))
	for id := range s.Switches {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NormalizeMAC lowercases a MAC address so map keys compare regardless
// of how the producer happened to format them.
func NormalizeMAC(mac string) string {
	return strings.ToLower(strings.TrimSpace(mac))
}
