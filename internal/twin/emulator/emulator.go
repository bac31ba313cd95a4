// Package emulator provides the in-memory reference implementation of
// the twin.Environment capability set.
//
// A Network is constructed from an initial snapshot the way the
// original environment would be: one twin switch per datapath, one
// physical link per switch pair, hosts attached on ports not consumed
// by inter-switch links. After construction the network only changes
// through the Environment interface.
package emulator

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"netmirror/internal/topo"
	"netmirror/internal/twin"
)

type switchNode struct {
	name string
	dpid uint64
}

func (s *switchNode) Name() string { return s.name }
func (s *switchNode) DPID() uint64 { return s.dpid }

type hostNode struct {
	name string
	mac  string
	ip   string // without prefix length
	// arp holds static address-resolution entries: ip -> mac.
	arp map[string]string
}

func (h *hostNode) Name() string { return h.name }
func (h *hostNode) MAC() string  { return h.mac }
func (h *hostNode) IP() string   { return h.ip }

type netLink struct {
	name   string
	up     bool
	bwMbit int
	delay  string

	// Exactly one of the pairs below is set.
	switchA, switchB *switchNode // inter-switch link
	host             *hostNode   // host attachment link
	hostSwitch       *switchNode
}

func (l *netLink) Name() string { return l.name }

// Network is an emulated twin network.
type Network struct {
	mu       sync.Mutex
	switches []*switchNode
	hosts    []*hostNode
	links    []*netLink

	byDPID map[uint64]*switchNode
	byMAC  map[string]*hostNode
}

// New builds a Network from the initial snapshot.
func New(snap *topo.Snapshot) *Network {
	n := &Network{
		byDPID: make(map[uint64]*switchNode),
		byMAC:  make(map[string]*hostNode),
	}

	log.Printf("Building twin network")
	n.buildSwitches(snap)
	linkPorts := n.buildSwitchLinks(snap)
	n.buildHosts(snap, linkPorts)
	n.seedBindings()
	log.Printf("Twin network built: %d switches, %d hosts, %d links",
		len(n.switches), len(n.hosts), len(n.links))

	return n
}

func (n *Network) buildSwitches(snap *topo.Snapshot) {
	for _, dpid := range snap.SwitchIDs() {
		sw := &switchNode{name: fmt.Sprintf("twin_s%d", dpid), dpid: dpid}
		n.switches = append(n.switches, sw)
		n.byDPID[dpid] = sw
		log.Printf("  Added switch %s (dpid: %016x)", sw.name, dpid)
	}
}

// buildSwitchLinks creates one physical link per switch pair and returns
// the ports consumed by inter-switch links, per switch.
func (n *Network) buildSwitchLinks(snap *topo.Snapshot) map[uint64]map[int]bool {
	linkPorts := make(map[uint64]map[int]bool)
	seen := make(map[[2]uint64]bool)

	ids := make([]topo.LinkID, 0, len(snap.Links))
	for id := range snap.Links {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Lo != ids[j].Lo {
			return ids[i].Lo.Less(ids[j].Lo)
		}
		return ids[i].Hi.Less(ids[j].Hi)
	})

	for _, id := range ids {
		link := snap.Links[id]
		for _, ep := range [...]topo.Endpoint{link.A, link.B} {
			if linkPorts[ep.DPID] == nil {
				linkPorts[ep.DPID] = make(map[int]bool)
			}
			linkPorts[ep.DPID][ep.Port] = true
		}

		pair := link.SwitchPair()
		if seen[pair] {
			continue
		}
		a, okA := n.byDPID[pair[0]]
		b, okB := n.byDPID[pair[1]]
		if !okA || !okB {
			continue
		}

		l := &netLink{
			name:    a.name + "<->" + b.name,
			up:      true,
			bwMbit:  100,
			delay:   "2ms",
			switchA: a,
			switchB: b,
		}
		n.links = append(n.links, l)
		seen[pair] = true
		log.Printf("  Linked %s <-> %s", a.name, b.name)
	}
	return linkPorts
}

func (n *Network) buildHosts(snap *topo.Snapshot, linkPorts map[uint64]map[int]bool) {
	macs := make([]string, 0, len(snap.Hosts))
	for mac := range snap.Hosts {
		macs = append(macs, mac)
	}
	sort.Strings(macs)

	counter := 1
	for _, mac := range macs {
		host := snap.Hosts[mac]

		// Ports carrying inter-switch links cannot also carry a host;
		// such reports are producer artifacts.
		if linkPorts[host.DPID][host.Port] {
			log.Printf("  Skipping MAC %s (s%d:%d is a switch link port)", mac, host.DPID, host.Port)
			continue
		}
		sw, ok := n.byDPID[host.DPID]
		if !ok {
			log.Printf("  Skipping MAC %s (no switch for dpid %d)", mac, host.DPID)
			continue
		}

		ip := host.IPv4
		if ip == "" {
			ip = fmt.Sprintf("10.0.0.%d/24", counter)
		} else if twin.StripPrefix(ip) == ip {
			ip += "/24"
		}

		n.createHost(fmt.Sprintf("twin_h%d", counter), ip, mac, sw, true)
		counter++
	}

	// Nothing valid reported yet: synthesize a minimal host set so the
	// twin is exercisable.
	if len(n.hosts) == 0 {
		log.Printf("  No valid hosts found, creating default configuration")
		for _, sw := range n.switches {
			name := fmt.Sprintf("twin_h%d", counter)
			ip := fmt.Sprintf("10.0.0.%d/24", counter)
			mac := fmt.Sprintf("00:00:00:00:00:%02x", counter)
			n.createHost(name, ip, mac, sw, true)
			counter++
			if len(n.hosts) >= 3 {
				break
			}
		}
	}
}

func (n *Network) createHost(name, ipWithPrefix, mac string, sw *switchNode, up bool) {
	h := &hostNode{
		name: name,
		mac:  topo.NormalizeMAC(mac),
		ip:   twin.StripPrefix(ipWithPrefix),
		arp:  make(map[string]string),
	}
	n.hosts = append(n.hosts, h)
	n.byMAC[h.mac] = h

	l := &netLink{
		name:       h.name + "<->" + sw.name,
		up:         up,
		bwMbit:     10,
		delay:      "5ms",
		host:       h,
		hostSwitch: sw,
	}
	n.links = append(n.links, l)
	log.Printf("  Added host %s (IP: %s, MAC: %s), linked to %s", name, ipWithPrefix, h.mac, sw.name)
}

// seedBindings installs pairwise static address-resolution entries among
// the initial hosts, mirroring a statically ARP'd bring-up.
func (n *Network) seedBindings() {
	for _, a := range n.hosts {
		for _, b := range n.hosts {
			if a != b && b.ip != "" {
				a.arp[b.ip] = b.mac
			}
		}
	}
}
