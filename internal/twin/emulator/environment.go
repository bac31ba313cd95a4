package emulator

import (
	"fmt"

	"netmirror/internal/topo"
	"netmirror/internal/twin"
)

// Switches implements twin.Environment.
func (n *Network) Switches() []twin.SwitchHandle {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]twin.SwitchHandle, len(n.switches))
	for i, s := range n.switches {
		out[i] = s
	}
	return out
}

// Hosts implements twin.Environment.
func (n *Network) Hosts() []twin.HostHandle {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]twin.HostHandle, len(n.hosts))
	for i, h := range n.hosts {
		out[i] = h
	}
	return out
}

// Links implements twin.Environment.
func (n *Network) Links() []twin.LinkHandle {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]twin.LinkHandle, len(n.links))
	for i, l := range n.links {
		out[i] = l
	}
	return out
}

// FindLinkBetween implements twin.Environment.
func (n *Network) FindLinkBetween(a, b twin.SwitchHandle) (twin.LinkHandle, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, l := range n.links {
		if l.switchA == nil {
			continue
		}
		if (l.switchA.dpid == a.DPID() && l.switchB.dpid == b.DPID()) ||
			(l.switchA.dpid == b.DPID() && l.switchB.dpid == a.DPID()) {
			return l, true
		}
	}
	return nil, false
}

// SetLinkUp implements twin.Environment. Idempotent.
func (n *Network) SetLinkUp(h twin.LinkHandle) error {
	return n.setLinkState(h, true)
}

// SetLinkDown implements twin.Environment. Idempotent.
func (n *Network) SetLinkDown(h twin.LinkHandle) error {
	return n.setLinkState(h, false)
}

func (n *Network) setLinkState(h twin.LinkHandle, up bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	l, ok := h.(*netLink)
	if !ok {
		return fmt.Errorf("foreign link handle %q", h.Name())
	}
	l.up = up
	return nil
}

// AddHost implements twin.Environment. The host starts detached.
func (n *Network) AddHost(name, ipWithPrefix, mac string) (twin.HostHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	mac = topo.NormalizeMAC(mac)
	if _, exists := n.byMAC[mac]; exists {
		return nil, fmt.Errorf("host with MAC %s already exists", mac)
	}
	for _, h := range n.hosts {
		if h.name == name {
			return nil, fmt.Errorf("host %s already exists", name)
		}
	}

	h := &hostNode{
		name: name,
		mac:  mac,
		ip:   twin.StripPrefix(ipWithPrefix),
		arp:  make(map[string]string),
	}
	n.hosts = append(n.hosts, h)
	n.byMAC[mac] = h
	return h, nil
}

// AttachHostToSwitch implements twin.Environment. The new link starts
// down; callers bring it up explicitly.
func (n *Network) AttachHostToSwitch(hh twin.HostHandle, sh twin.SwitchHandle, bwMbit int, delay string) (twin.LinkHandle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	h, ok := hh.(*hostNode)
	if !ok {
		return nil, fmt.Errorf("foreign host handle %q", hh.Name())
	}
	sw, ok := sh.(*switchNode)
	if !ok {
		return nil, fmt.Errorf("foreign switch handle %q", sh.Name())
	}

	for _, l := range n.links {
		if l.host == h {
			return nil, fmt.Errorf("host %s is already attached to %s", h.name, l.hostSwitch.name)
		}
	}

	l := &netLink{
		name:       h.name + "<->" + sw.name,
		up:         false,
		bwMbit:     bwMbit,
		delay:      delay,
		host:       h,
		hostSwitch: sw,
	}
	n.links = append(n.links, l)
	return l, nil
}

// SetAddressBinding implements twin.Environment.
func (n *Network) SetAddressBinding(hh twin.HostHandle, ip, mac string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	h, ok := hh.(*hostNode)
	if !ok {
		return fmt.Errorf("foreign host handle %q", hh.Name())
	}
	h.arp[twin.StripPrefix(ip)] = topo.NormalizeMAC(mac)
	return nil
}
