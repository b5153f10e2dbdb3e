// Package l1stack owns Layer 1 (Stacks) of the tracking data model.
//
// Responsibilities: the immutable four-axis intensity volume
// (time, depth, height, width), shape validation, and loading stacks
// from per-slice image files.
// Key types: Stack.
//
// Dependency rule: L1 depends only on the shared tracking package.
package l1stack
