// Package pipeline runs one confocal tracking pass end to end.
//
// It is the composition root: it imports the layer packages (l1stack,
// l2frames, l3detect, l4link, l5quality) and none of them import
// pipeline/. Projection and detection fan out per frame on a bounded
// worker pool; linking consumes the frames strictly in order.
package pipeline
