package topo

import "sort"

// Delta is the structural difference between two snapshots, computed
// independently per entity kind. Switch changes are included for
// visibility but cannot be reconciled against a running environment.
type Delta struct {
	AddedLinks   []Link
	RemovedLinks []Link

	AddedHosts   []Host
	RemovedHosts []Host

	AddedSwitches   []Switch
	RemovedSwitches []Switch
}

// Empty reports whether the delta carries no changes of any kind.
func (d Delta) Empty() bool {
	return len(d.AddedLinks) == 0 && len(d.RemovedLinks) == 0 &&
		len(d.AddedHosts) == 0 && len(d.RemovedHosts) == 0 &&
		len(d.AddedSwitches) == 0 && len(d.RemovedSwitches) == 0
}

// HasSwitchChanges reports whether the switch set itself changed, which
// the reconciler surfaces but never applies.
func (d Delta) HasSwitchChanges() bool {
	return len(d.AddedSwitches) > 0 || len(d.RemovedSwitches) > 0
}

// Diff computes next minus old and old minus next per entity kind. Links compare
// by canonical identity, hosts by MAC, switches by dpid. Pure function:
// both snapshots are read-only and the result is deterministic (entries
// sorted by key).
func Diff(old, next *Snapshot) Delta {
	var d Delta

	for id, link := range next.Links {
		if _, ok := old.Links[id]; !ok {
			d.AddedLinks = append(d.AddedLinks, link)
		}
	}
	for id, link := range old.Links {
		if _, ok := next.Links[id]; !ok {
			d.RemovedLinks = append(d.RemovedLinks, link)
		}
	}

	for mac, host := range next.Hosts {
		if _, ok := old.Hosts[mac]; !ok {
			d.AddedHosts = append(d.AddedHosts, host)
		}
	}
	for mac, host := range old.Hosts {
		if _, ok := next.Hosts[mac]; !ok {
			d.RemovedHosts = append(d.RemovedHosts, host)
		}
	}

	for id, sw := range next.Switches {
		if _, ok := old.Switches[id]; !ok {
			d.AddedSwitches = append(d.AddedSwitches, sw)
		}
	}
	for id, sw := range old.Switches {
		if _, ok := next.Switches[id]; !ok {
			d.RemovedSwitches = append(d.RemovedSwitches, sw)
		}
	}

	d.sort()
	return d
}

func (d *Delta) sort() {
	byLink := func(v []Link) {
		sort.Slice(v, func(i, j int) bool {
			a, b := v[i].Canonical(), v[j].Canonical()
			if a.Lo != b.Lo {
				return a.Lo.Less(b.Lo)
			}
			return a.Hi.Less(b.Hi)
		})
	}
	byLink(d.AddedLinks)
	byLink(d.RemovedLinks)

	byHost := func(v []Host) {
		sort.Slice(v, func(i, j int) bool { return v[i].MAC < v[j].MAC })
	}
	byHost(d.AddedHosts)
	byHost(d.RemovedHosts)

	bySwitch := func(v []Switch) {
		sort.Slice(v, func(i, j int) bool { return v[i].DPID < v[j].DPID })
	}
	bySwitch(d.AddedSwitches)
	bySwitch(d.RemovedSwitches)
}
