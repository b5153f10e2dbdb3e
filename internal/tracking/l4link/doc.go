// Package l4link owns Layer 4 (Linking) of the tracking data model.
//
// Responsibilities: frame-to-frame association of candidates into
// trajectories with a hard displacement gate, Hungarian assignment per
// gated sub-network, and the trajectory lifecycle
// (active → gap → closed) bounded by memory.
// Key types: Linker, Trajectory, Result, Row.
//
// Dependency rule: L4 may depend on L1-L3, but never on L5+. The Linker is
// single-threaded; it owns the open-trajectory set exclusively.
package l4link
