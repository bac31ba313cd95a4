package twin

// SwitchHandle identifies a switch inside the target environment.
type SwitchHandle interface {
	Name() string
	DPID() uint64
}

// HostHandle identifies a host inside the target environment.
type HostHandle interface {
	Name() string
	MAC() string
	// IP returns the host's address without prefix length, or "" if the
	// host has no address configured.
	IP() string
}

// LinkHandle identifies a link inside the target environment. A link
// connects either two switches or a host to its attachment switch.
type LinkHandle interface {
	Name() string
}

// Environment is the capability set the reconciler depends on. Link
// state changes are idempotent: setting an already-up link up (or an
// already-down link down) is a no-op.
type Environment interface {
	// Switches, Hosts and Links capture the current entity handles.
	Switches() []SwitchHandle
	Hosts() []HostHandle
	Links() []LinkHandle

	// FindLinkBetween resolves the physical link connecting two
	// switches, if one exists.
	FindLinkBetween(a, b SwitchHandle) (LinkHandle, bool)

	// SetLinkUp brings both endpoints of a link up. Idempotent.
	SetLinkUp(l LinkHandle) error
	// SetLinkDown brings both endpoints of a link down. Idempotent.
	SetLinkDown(l LinkHandle) error

	// AddHost creates a host with the given name, address (CIDR form,
	// e.g. "10.0.0.5/24") and MAC. The host starts detached.
	AddHost(name, ipWithPrefix, mac string) (HostHandle, error)

	// AttachHostToSwitch wires a host to a switch and returns the new
	// link. Creation does not imply the link is up.
	AttachHostToSwitch(h HostHandle, s SwitchHandle, bwMbit int, delay string) (LinkHandle, error)

	// SetAddressBinding installs a static address-resolution entry on a
	// host so reaching ip does not depend on broadcast discovery.
	SetAddressBinding(h HostHandle, ip, mac string) error
}
