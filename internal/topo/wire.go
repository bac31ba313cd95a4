package topo

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformed reports a payload that parsed as JSON but does not match
// the producer's snapshot contract.
var ErrMalformed = errors.New("malformed snapshot")

// dpid decodes a datapath id that the producer may emit either as a
// JSON number or as a (decimal or 0x-prefixed hex) string. Identifiers
// are normalized to uint64 here, once, at ingestion.
type dpid uint64

func (d *dpid) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("empty dpid")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return fmt.Errorf("dpid %q: %w", s, err)
	}
	*d = dpid(v)
	return nil
}

type wireSwitch struct {
	DPID  dpid  `json:"dpid"`
	Ports []int `json:"ports"`
}

type wireLink struct {
	SrcDPID dpid `json:"src_dpid"`
	SrcPort int  `json:"src_port"`
	DstDPID dpid `json:"dst_dpid"`
	DstPort int  `json:"dst_port"`
}

type wireHost struct {
	MAC  string  `json:"mac"`
	IPv4 *string `json:"ipv4"`
	IPv6 *string `json:"ipv6"`
	Port int     `json:"port"`
	DPID dpid    `json:"dpid"`
}

// Decode parses the producer's wire JSON into a Snapshot. All three
// collection keys must be present (hosts may be empty but not absent);
// anything else is ErrMalformed.
func Decode(data []byte) (*Snapshot, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	for _, key := range []string{"switches", "links", "hosts"} {
		if _, ok := top[key]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrMalformed, key)
		}
	}

	var switches map[string]wireSwitch
	if err := json.Unmarshal(top["switches"], &switches); err != nil {
		return nil, fmt.Errorf("%w: switches: %v", ErrMalformed, err)
	}
	var links []wireLink
	if err := json.Unmarshal(top["links"], &links); err != nil {
		return nil, fmt.Errorf("%w: links: %v", ErrMalformed, err)
	}
	var hosts map[string]wireHost
	if err := json.Unmarshal(top["hosts"], &hosts); err != nil {
		return nil, fmt.Errorf("%w: hosts: %v", ErrMalformed, err)
	}

	var version uint64
	if raw, ok := top["version"]; ok {
		if err := json.Unmarshal(raw, &version); err != nil {
			return nil, fmt.Errorf("%w: version: %v", ErrMalformed, err)
		}
	}

	snap := &Snapshot{
		Version:  version,
		Switches: make(map[uint64]Switch, len(switches)),
		Links:    make(map[LinkID]Link, len(links)),
		Hosts:    make(map[string]Host, len(hosts)),
	}

	for _, sw := range switches {
		ports := append([]int(nil), sw.Ports...)
		sort.Ints(ports)
		snap.Switches[uint64(sw.DPID)] = Switch{DPID: uint64(sw.DPID), Ports: ports}
	}

	for _, l := range links {
		link := Link{
			A: Endpoint{DPID: uint64(l.SrcDPID), Port: l.SrcPort},
			B: Endpoint{DPID: uint64(l.DstDPID), Port: l.DstPort},
		}
		snap.Links[link.Canonical()] = link
	}

	for key, h := range hosts {
		mac := NormalizeMAC(h.MAC)
		if mac == "" {
			mac = NormalizeMAC(key)
		}
		if mac == "" {
			continue
		}
		host := Host{MAC: mac, DPID: uint64(h.DPID), Port: h.Port}
		if h.IPv4 != nil && *h.IPv4 != "None" {
			host.IPv4 = *h.IPv4
		}
		if h.IPv6 != nil && *h.IPv6 != "None" {
			host.IPv6 = *h.IPv6
		}
		snap.Hosts[mac] = host
	}

	return snap, nil
}

// Validate enforces the acceptance rule for fetched snapshots: switches
// and links must be non-empty, hosts may be empty.
func (s *Snapshot) Validate() error {
	if len(s.Switches) == 0 {
		return fmt.Errorf("%w: no switches", ErrMalformed)
	}
	if len(s.Links) == 0 {
		return fmt.Errorf("%w: no links", ErrMalformed)
	}
	return nil
}
