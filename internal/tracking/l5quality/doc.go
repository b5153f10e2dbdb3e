// Package l5quality summarises a linked run: how many trajectories were
// formed, how long they are and how many detections each frame produced.
//
// It depends on l3detect and l4link outputs only and never feeds back into
// detection or linking.
package l5quality
