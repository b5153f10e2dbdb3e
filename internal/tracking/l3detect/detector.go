package l3detect

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/confocal.track/internal/tracking"
	"github.com/banshee-data/confocal.track/internal/tracking/l2frames"
)

// centroidShiftThreshold is the offset (pixels) beyond which refinement
// moves the integer centre and tries again.
const centroidShiftThreshold = 0.6

// DetectorConfig holds detector parameters.
type DetectorConfig struct {
	Diameter      int     // odd neighbourhood size
	MinMass       float64 // reject candidates with less integrated intensity
	Percentile    float64 // maxima must exceed this percentile of the frame
	Separation    float64 // maxima closer than this are merged
	MaxIterations int     // centroid refinement cap
}

// DetectorConfigFromPlan derives detector parameters from a validated plan.
func DetectorConfigFromPlan(p tracking.DetectionParams) DetectorConfig {
	return DetectorConfig{
		Diameter:      p.Diameter(),
		MinMass:       p.MinMass,
		Percentile:    p.Percentile,
		Separation:    p.EffectiveSeparation(),
		MaxIterations: p.MaxIterations,
	}
}

// Detector finds candidates in single frames. It holds only immutable
// configuration and precomputed mask offsets, so one Detector may be
// shared by concurrent workers.
type Detector struct {
	cfg    DetectorConfig
	radius int

	// Circular mask of the given radius as parallel offset slices.
	maskDX []int
	maskDY []int
	fdx    []float64
	fdy    []float64
	fr2    []float64
}

// NewDetector builds a Detector. Diameter is forced odd and at least 3;
// MaxIterations is at least 1.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.Diameter < 3 {
		cfg.Diameter = 3
	}
	if cfg.Diameter%2 == 0 {
		cfg.Diameter++
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 1
	}
	if cfg.Separation <= 0 {
		cfg.Separation = float64(cfg.Diameter)
	}
	d := &Detector{cfg: cfg, radius: cfg.Diameter / 2}
	r2 := d.radius * d.radius
	for dy := -d.radius; dy <= d.radius; dy++ {
		for dx := -d.radius; dx <= d.radius; dx++ {
			if dx*dx+dy*dy > r2 {
				continue
			}
			d.maskDX = append(d.maskDX, dx)
			d.maskDY = append(d.maskDY, dy)
			d.fdx = append(d.fdx, float64(dx))
			d.fdy = append(d.fdy, float64(dy))
			d.fr2 = append(d.fr2, float64(dx*dx+dy*dy))
		}
	}
	return d
}

// Config returns the effective configuration.
func (d *Detector) Config() DetectorConfig { return d.cfg }

// Radius returns the mask radius (diameter / 2).
func (d *Detector) Radius() int { return d.radius }

type peak struct {
	x, y  int
	value float64
	order int // raster order
}

// Detect returns the candidates found in frame, ordered by creation
// (raster order of their source maxima). An empty result is valid.
func (d *Detector) Detect(frame l2frames.Frame) []Candidate {
	if frame.Width < d.cfg.Diameter || frame.Height < d.cfg.Diameter {
		return nil
	}

	work, threshold := d.prepare(frame)
	peaks := d.findPeaks(work, frame.Width, frame.Height, threshold)
	if len(peaks) == 0 {
		return nil
	}
	peaks = d.mergeClosePeaks(peaks)

	var out []Candidate
	for _, p := range peaks {
		c, ok := d.refine(work, frame.Width, frame.Height, p)
		if !ok || c.Mass < d.cfg.MinMass {
			continue
		}
		c.Frame = frame.Index
		c.Seq = len(out)
		out = append(out, c)
	}
	return out
}

// prepare subtracts the frame median and returns the clipped working image
// together with the percentile threshold for maxima.
func (d *Detector) prepare(frame l2frames.Frame) ([]float64, float64) {
	sorted := append([]float64(nil), frame.Pix...)
	sort.Float64s(sorted)
	background := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	work := make([]float64, len(frame.Pix))
	for i, v := range frame.Pix {
		if v > background {
			work[i] = v - background
		}
	}

	// The working image is a monotone map of the frame, so the sorted
	// frame gives the sorted working image without another sort.
	for i, v := range sorted {
		sorted[i] = math.Max(0, v-background)
	}
	threshold := stat.Quantile(d.cfg.Percentile/100, stat.Empirical, sorted, nil)
	return work, threshold
}

// findPeaks scans the valid interior for pixels that equal the maximum of
// their circular neighbourhood. On plateaus the first pixel in raster
// order wins.
func (d *Detector) findPeaks(work []float64, width, height int, threshold float64) []peak {
	r := d.radius
	var peaks []peak
	for y := r; y < height-r; y++ {
		for x := r; x < width-r; x++ {
			idx := y*width + x
			v := work[idx]
			if v <= 0 || v <= threshold {
				continue
			}
			isMax := true
			for k := range d.maskDX {
				nIdx := (y+d.maskDY[k])*width + x + d.maskDX[k]
				nv := work[nIdx]
				if nv > v || (nv == v && nIdx < idx) {
					isMax = false
					break
				}
			}
			if isMax {
				peaks = append(peaks, peak{x: x, y: y, value: v, order: len(peaks)})
			}
		}
	}
	return peaks
}

// mergeClosePeaks drops maxima closer than the configured separation to a
// brighter one. The survivors are returned in raster order.
func (d *Detector) mergeClosePeaks(peaks []peak) []peak {
	byBrightness := append([]peak(nil), peaks...)
	sort.SliceStable(byBrightness, func(i, j int) bool {
		return byBrightness[i].value > byBrightness[j].value
	})

	sep2 := d.cfg.Separation * d.cfg.Separation
	kept := make([]peak, 0, len(byBrightness))
	for _, p := range byBrightness {
		clash := false
		for _, k := range kept {
			dx, dy := float64(p.x-k.x), float64(p.y-k.y)
			if dx*dx+dy*dy < sep2 {
				clash = true
				break
			}
		}
		if !clash {
			kept = append(kept, p)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].order < kept[j].order })
	return kept
}

// refine computes the intensity-weighted centroid around p, walking the
// integer centre towards it when the offset is large. Returns false when
// the neighbourhood carries no signal or the centroid leaves the interior.
func (d *Detector) refine(work []float64, width, height int, p peak) (Candidate, bool) {
	r := d.radius
	cx, cy := p.x, p.y
	vals := make([]float64, len(d.maskDX))

	var mass, ox, oy float64
	for iter := 0; iter < d.cfg.MaxIterations; iter++ {
		for k := range d.maskDX {
			vals[k] = work[(cy+d.maskDY[k])*width+cx+d.maskDX[k]]
		}
		mass = floats.Sum(vals)
		if mass <= 0 {
			return Candidate{}, false
		}
		ox = floats.Dot(vals, d.fdx) / mass
		oy = floats.Dot(vals, d.fdy) / mass

		nx, ny := cx, cy
		if ox > centroidShiftThreshold && cx+1 < width-r {
			nx++
		} else if ox < -centroidShiftThreshold && cx-1 >= r {
			nx--
		}
		if oy > centroidShiftThreshold && cy+1 < height-r {
			ny++
		} else if oy < -centroidShiftThreshold && cy-1 >= r {
			ny--
		}
		// vals, ox and oy must describe the final centre, so never move on
		// the last pass.
		if (nx == cx && ny == cy) || iter == d.cfg.MaxIterations-1 {
			break
		}
		cx, cy = nx, ny
	}

	x := float64(cx) + ox
	y := float64(cy) + oy
	lo := float64(r)
	if x < lo || x > float64(width-1-r) || y < lo || y > float64(height-1-r) {
		return Candidate{}, false
	}

	// Σw|r-c|² = Σw r² - m|c|² for offsets c relative to the integer centre.
	moment := floats.Dot(vals, d.fr2) - mass*(ox*ox+oy*oy)
	size := 0.0
	if moment > 0 {
		size = math.Sqrt(moment / mass)
	}

	return Candidate{
		X:      x,
		Y:      y,
		Mass:   mass,
		Size:   size,
		Signal: floats.Max(vals),
	}, true
}
