package twin

import (
	"fmt"
	"strings"

	"netmirror/internal/topo"
)

// TargetState maps producer-side identifiers to environment handles. It
// is built once from the initial snapshot and then mutated only by the
// reconciler, only from the sync loop's goroutine.
type TargetState struct {
	Switches map[uint64]SwitchHandle
	Hosts    map[string]HostHandle
	// Links maps the sorted dpid pair of an inter-switch link to its
	// environment handle. The environment owns at most one physical
	// link per switch pair, so the pair is the lookup key even though
	// snapshot identity also includes ports.
	Links map[[2]uint64]LinkHandle

	// LinkPorts records, per switch, the ports consumed by inter-switch
	// links. Hosts reported on such ports are producer artifacts and
	// are never materialized.
	LinkPorts map[uint64]map[int]bool

	hostCounter int
	ipCursor    int
}

// Capture builds the initial TargetState by listing the environment's
// handles and resolving every canonical snapshot link through
// FindLinkBetween.
func Capture(env Environment, snap *topo.Snapshot) *TargetState {
	st := &TargetState{
		Switches:  make(map[uint64]SwitchHandle),
		Hosts:     make(map[string]HostHandle),
		Links:     make(map[[2]uint64]LinkHandle),
		LinkPorts: make(map[uint64]map[int]bool),
	}

	for _, sw := range env.Switches() {
		st.Switches[sw.DPID()] = sw
	}
	for _, h := range env.Hosts() {
		st.Hosts[topo.NormalizeMAC(h.MAC())] = h
	}

	for _, link := range snap.Links {
		st.consumePorts(link)

		pair := link.SwitchPair()
		if _, done := st.Links[pair]; done {
			continue
		}
		a, okA := st.Switches[link.A.DPID]
		b, okB := st.Switches[link.B.DPID]
		if !okA || !okB {
			continue
		}
		if handle, ok := env.FindLinkBetween(a, b); ok {
			st.Links[pair] = handle
		}
	}

	st.hostCounter = len(st.Hosts) + 1
	st.ipCursor = 1
	return st
}

func (st *TargetState) consumePorts(link topo.Link) {
	for _, ep := range [...]topo.Endpoint{link.A, link.B} {
		ports := st.LinkPorts[ep.DPID]
		if ports == nil {
			ports = make(map[int]bool)
			st.LinkPorts[ep.DPID] = ports
		}
		ports[ep.Port] = true
	}
}

// NextHostName returns the next deterministic twin-side host name.
func (st *TargetState) NextHostName() string {
	name := fmt.Sprintf("twin_h%d", st.hostCounter)
	st.hostCounter++
	return name
}

// AllocateIP hands out the next free address in the 10.0.0.0/24 block,
// skipping any address already held by a known host.
func (st *TargetState) AllocateIP() string {
	used := make(map[string]bool, len(st.Hosts))
	for _, h := range st.Hosts {
		used[h.IP()] = true
	}
	for ; st.ipCursor < 255; st.ipCursor++ {
		ip := fmt.Sprintf("10.0.0.%d", st.ipCursor)
		if !used[ip] {
			st.ipCursor++
			return ip + "/24"
		}
	}
	// Block exhausted; reuse the last address rather than fail the item.
	return "10.0.0.254/24"
}

// StripPrefix removes a CIDR prefix length, if present.
func StripPrefix(ip string) string {
	if i := strings.IndexByte(ip, '/'); i >= 0 {
		return ip[:i]
	}
	return ip
}
