// Package l3detect owns Layer 3 (Detection) of the tracking data model.
//
// Responsibilities: locating particle candidates in a single projected
// frame: local-maximum search, centroid refinement, mass and size
// measurement, and minmass/interior filtering.
// Key types: Candidate, Detector, DetectorConfig.
//
// Dependency rule: L3 may depend on L1-L2, but never on L4+. Detection is a
// pure function of one frame and is safe to run concurrently.
package l3detect
