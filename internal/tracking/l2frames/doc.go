// Package l2frames owns Layer 2 (Frames) of the tracking data model.
//
// Responsibilities: reducing each volume of a stack to a 2-D frame by
// maximum-intensity projection along depth.
// Key types: Frame.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2frames
