// Package twin applies topology deltas to a live target environment.
//
// The Environment interface is the capability boundary: it is the
// complete set of operations the reconciler needs, and any environment
// implementing it is substitutable. The in-memory reference
// implementation lives in twin/emulator; tests use recording fakes.
//
// Capability limits are real, not simplifications: a running environment
// can toggle existing inter-switch links up and down but cannot add or
// remove switches, and cannot fabricate brand-new physical links.
package twin
