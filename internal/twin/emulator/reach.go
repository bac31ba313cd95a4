package emulator

import (
	"log"

	"netmirror/internal/topo"
)

// Reachable reports whether the host with macA can reach the host with
// macB: both attachment links must be up, a path of up inter-switch
// links must connect their switches, and macA must hold an address
// binding for macB's address.
func (n *Network) Reachable(macA, macB string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	a, okA := n.byMAC[topo.NormalizeMAC(macA)]
	b, okB := n.byMAC[topo.NormalizeMAC(macB)]
	if !okA || !okB || a == b {
		return false
	}

	swA, upA := n.attachment(a)
	swB, upB := n.attachment(b)
	if swA == nil || swB == nil || !upA || !upB {
		return false
	}

	if b.ip == "" || a.arp[b.ip] != b.mac {
		return false
	}

	return n.connected(swA, swB)
}

// PingAll checks pairwise reachability among all hosts and returns
// (reachable pairs, total pairs). Mirrors a connectivity sweep after
// bring-up.
func (n *Network) PingAll() (ok, total int) {
	n.mu.Lock()
	macs := make([]string, 0, len(n.hosts))
	for _, h := range n.hosts {
		macs = append(macs, h.mac)
	}
	n.mu.Unlock()

	for _, src := range macs {
		for _, dst := range macs {
			if src == dst {
				continue
			}
			total++
			if n.Reachable(src, dst) {
				ok++
			}
		}
	}
	log.Printf("Connectivity: %d/%d host pairs reachable", ok, total)
	return ok, total
}

func (n *Network) attachment(h *hostNode) (*switchNode, bool) {
	for _, l := range n.links {
		if l.host == h {
			return l.hostSwitch, l.up
		}
	}
	return nil, false
}

// connected walks up inter-switch links breadth-first.
func (n *Network) connected(from, to *switchNode) bool {
	if from == to {
		return true
	}
	visited := map[*switchNode]bool{from: true}
	queue := []*switchNode{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, l := range n.links {
			if l.switchA == nil || !l.up {
				continue
			}
			var next *switchNode
			switch cur {
			case l.switchA:
				next = l.switchB
			case l.switchB:
				next = l.switchA
			default:
				continue
			}
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}
