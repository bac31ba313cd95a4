// Package topo holds the versioned topology snapshot model and the diff
// engine that compares two snapshots.
//
// A Snapshot is a value: it is decoded from the producer's JSON in one
// piece, validated once, and never mutated afterwards. Consumers replace
// their snapshot wholesale when a newer version arrives.
package topo
