package twin

import (
	"fmt"
	"log"
	"net"

	"netmirror/internal/topo"
)

// ItemKind classifies one reconciled delta entry.
type ItemKind string

const (
	ItemLinkDown    ItemKind = "link_down"
	ItemLinkUp      ItemKind = "link_up"
	ItemHostAdd     ItemKind = "host_add"
	ItemHostRemove  ItemKind = "host_remove"
	ItemSwitchSet   ItemKind = "switch_set"
	ItemUnsupported ItemKind = "unsupported"
)

// Item records the outcome of one delta entry for the journal.
type Item struct {
	Kind    ItemKind
	Subject string
	OK      bool
	Detail  string
}

// Report summarizes one Apply pass.
type Report struct {
	Items    []Item
	Applied  int
	Skipped  int
	Failures int
}

func (r *Report) record(kind ItemKind, subject string, ok bool, detail string) {
	r.Items = append(r.Items, Item{Kind: kind, Subject: subject, OK: ok, Detail: detail})
	if ok {
		r.Applied++
	}
}

func (r *Report) skip(kind ItemKind, subject, detail string) {
	r.Items = append(r.Items, Item{Kind: kind, Subject: subject, OK: false, Detail: detail})
	r.Skipped++
}

func (r *Report) fail(kind ItemKind, subject string, err error) {
	r.Items = append(r.Items, Item{Kind: kind, Subject: subject, OK: false, Detail: err.Error()})
	r.Failures++
}

// Reconciler mutates a target environment so it matches a snapshot
// delta. Per-item failures are contained: one bad entry never aborts
// the rest of the pass.
type Reconciler struct {
	env Environment
}

// NewReconciler creates a reconciler for the given environment.
func NewReconciler(env Environment) *Reconciler {
	return &Reconciler{env: env}
}

// Apply processes a delta in strict order: removed links, added links,
// added hosts, removed hosts (notice only), switch-set changes (notice
// only). The target state is updated in place.
func (r *Reconciler) Apply(delta topo.Delta, st *TargetState) *Report {
	rep := &Report{}

	for _, link := range delta.RemovedLinks {
		r.linkDown(link, st, rep)
	}
	for _, link := range delta.AddedLinks {
		r.linkUp(link, st, rep)
	}
	for _, host := range delta.AddedHosts {
		r.addHost(host, st, rep)
	}
	for _, host := range delta.RemovedHosts {
		// Host removal is out of scope; the twin keeps the host.
		log.Printf("Host %s no longer reported (not removed from twin)", host.MAC)
		rep.skip(ItemHostRemove, host.MAC, "host removal is not reconciled")
	}

	if delta.HasSwitchChanges() {
		r.switchNotice(delta, rep)
	}

	return rep
}

func (r *Reconciler) linkDown(link topo.Link, st *TargetState, rep *Report) {
	pair := link.SwitchPair()
	subject := fmt.Sprintf("s%d<->s%d", pair[0], pair[1])

	handle, ok := st.Links[pair]
	if !ok {
		log.Printf("Link %s not found in twin, nothing to bring down", subject)
		rep.skip(ItemLinkDown, subject, "no mapped link")
		return
	}
	if err := r.env.SetLinkDown(handle); err != nil {
		log.Printf("Failed to bring down link %s: %v", subject, err)
		rep.fail(ItemLinkDown, subject, err)
		return
	}
	log.Printf("Brought down link twin_s%d <-> twin_s%d", pair[0], pair[1])
	rep.record(ItemLinkDown, subject, true, "")
}

func (r *Reconciler) linkUp(link topo.Link, st *TargetState, rep *Report) {
	pair := link.SwitchPair()
	subject := fmt.Sprintf("s%d<->s%d", pair[0], pair[1])

	handle, ok := st.Links[pair]
	if !ok {
		// The link may exist in the environment without being mapped,
		// e.g. after an interactive session created it.
		a, okA := st.Switches[pair[0]]
		b, okB := st.Switches[pair[1]]
		if okA && okB {
			if found, exists := r.env.FindLinkBetween(a, b); exists {
				st.Links[pair] = found
				handle, ok = found, true
			}
		}
	}
	if !ok {
		log.Printf("CRITICAL: new link %s reported but the twin cannot fabricate physical links at runtime", subject)
		rep.skip(ItemUnsupported, subject, "new inter-switch links cannot be created")
		return
	}

	st.consumePorts(link)
	if err := r.env.SetLinkUp(handle); err != nil {
		log.Printf("Failed to bring up link %s: %v", subject, err)
		rep.fail(ItemLinkUp, subject, err)
		return
	}
	log.Printf("Brought up link twin_s%d <-> twin_s%d", pair[0], pair[1])
	rep.record(ItemLinkUp, subject, true, "")
}

func (r *Reconciler) addHost(host topo.Host, st *TargetState, rep *Report) {
	mac := topo.NormalizeMAC(host.MAC)

	if _, exists := st.Hosts[mac]; exists {
		rep.skip(ItemHostAdd, mac, "host already present")
		return
	}

	sw, ok := st.Switches[host.DPID]
	if !ok {
		log.Printf("Switch s%d not found in twin, cannot add host %s", host.DPID, mac)
		rep.skip(ItemHostAdd, mac, fmt.Sprintf("no twin switch for dpid %d", host.DPID))
		return
	}

	name := st.NextHostName()
	ip := hostAddress(host, st)

	h, err := r.env.AddHost(name, ip, mac)
	if err != nil {
		log.Printf("Failed to add host %s: %v", mac, err)
		rep.fail(ItemHostAdd, mac, err)
		return
	}

	link, err := r.env.AttachHostToSwitch(h, sw, 10, "5ms")
	if err != nil {
		log.Printf("Failed to attach host %s to %s: %v", name, sw.Name(), err)
		rep.fail(ItemHostAdd, mac, err)
		return
	}

	// Attachment does not imply the link is up.
	if err := r.env.SetLinkUp(link); err != nil {
		log.Printf("Failed to bring up host link for %s: %v", name, err)
		rep.fail(ItemHostAdd, mac, err)
		return
	}

	r.propagateBindings(h, StripPrefix(ip), mac, st)

	st.Hosts[mac] = h
	log.Printf("Added host %s (IP: %s, MAC: %s), linked to %s", name, ip, mac, sw.Name())
	rep.record(ItemHostAdd, mac, true, name)
}

// propagateBindings installs static address-resolution entries in both
// directions between the new host and every pre-existing host, so
// reachability never depends on broadcast discovery.
func (r *Reconciler) propagateBindings(newHost HostHandle, newIP, newMAC string, st *TargetState) {
	for mac, existing := range st.Hosts {
		if err := r.env.SetAddressBinding(existing, newIP, newMAC); err != nil {
			log.Printf("Failed to install binding for %s on %s: %v", newMAC, existing.Name(), err)
		}
		if ip := existing.IP(); ip != "" {
			if err := r.env.SetAddressBinding(newHost, ip, mac); err != nil {
				log.Printf("Failed to install binding for %s on %s: %v", mac, newHost.Name(), err)
			}
		}
	}
}

func (r *Reconciler) switchNotice(delta topo.Delta, rep *Report) {
	log.Printf("CRITICAL: switch topology changed; switches cannot be added or removed at runtime")
	for _, sw := range delta.AddedSwitches {
		log.Printf("CRITICAL:   switch added upstream: s%d", sw.DPID)
		rep.skip(ItemSwitchSet, fmt.Sprintf("s%d", sw.DPID), "switch added upstream")
	}
	for _, sw := range delta.RemovedSwitches {
		log.Printf("CRITICAL:   switch removed upstream: s%d", sw.DPID)
		rep.skip(ItemSwitchSet, fmt.Sprintf("s%d", sw.DPID), "switch removed upstream")
	}
}

// hostAddress picks the twin-side address for a new host: the reported
// IPv4 when well-formed (with /24 appended if bare), otherwise the next
// free address in the private block.
func hostAddress(host topo.Host, st *TargetState) string {
	if host.IPv4 != "" {
		bare := StripPrefix(host.IPv4)
		if ip := net.ParseIP(bare); ip != nil && ip.To4() != nil {
			if bare == host.IPv4 {
				return host.IPv4 + "/24"
			}
			return host.IPv4
		}
	}
	return st.AllocateIP()
}
