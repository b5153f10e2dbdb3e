package l3detect

// Candidate is one particle detection in a frame. Candidates are never
// mutated after Detect returns them.
type Candidate struct {
	Frame  int     // frame index
	Seq    int     // creation order within the frame, unique per frame
	X      float64 // sub-pixel column
	Y      float64 // sub-pixel row
	Mass   float64 // background-subtracted integrated intensity
	Size   float64 // radius of gyration (pixels)
	Signal float64 // peak background-subtracted intensity
}

// Key identifies a candidate across the whole run.
type Key struct {
	Frame int
	Seq   int
}

// Key returns the candidate's (frame, seq) identity.
func (c Candidate) Key() Key {
	return Key{Frame: c.Frame, Seq: c.Seq}
}
