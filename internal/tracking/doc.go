// Package tracking holds the types shared by every layer of the particle
// tracking pipeline: the validated Plan record, the error taxonomy, and the
// three logging streams.
//
// Layers:
//
//	l1stack:   ImageStack (time, depth, height, width) and stack loading
//	l2frames:  maximum-intensity projection into per-frame images
//	l3detect:  per-frame particle localisation
//	l4link:    frame-to-frame linking into trajectories
//	l5quality: track/detection quality metrics
//	pipeline:  composition root wiring the layers together
//
// Dependency rule: layer N may depend on layers below it and on this
// package, never on a higher layer. Only pipeline imports all of them.
package tracking
