// Package testutil provides shared test fixtures.
//
// It builds synthetic confocal stacks: gaussian blobs on an optional uniform noise floor, placed per frame so
// tests can script appearances, gaps and motion.
package testutil

import (
	"math"
	"math/rand/v2"

	"github.com/banshee-data/confocal.track/internal/tracking/l1stack"
)

// Blob is an isotropic gaussian particle. Z is ignored for 2-D images.
type Blob struct {
	X, Y, Z   float64
	Sigma     float64
	Amplitude float64
}

func (b Blob) value(x, y, z float64) float64 {
	s2 := 2 * b.Sigma * b.Sigma
	dx, dy, dz := x-b.X, y-b.Y, z-b.Z
	return b.Amplitude * math.Exp(-(dx*dx+dy*dy+dz*dz)/s2)
}

// GaussianImage renders blobs into a width×height row-major image.
func GaussianImage(width, height int, blobs ...Blob) []float64 {
	pix := make([]float64, width*height)
	for _, b := range blobs {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pix[y*width+x] += b.value(float64(x), float64(y), b.Z)
			}
		}
	}
	return pix
}

// StackBuilder assembles a synthetic (T, Z, H, W) stack.
type StackBuilder struct {
	t, z, h, w int
	noise      float64
	seed       uint64
	blobs      map[int][]Blob
}

// NewStackBuilder starts an all-zero stack of the given shape.
func NewStackBuilder(t, z, h, w int) *StackBuilder {
	return &StackBuilder{t: t, z: z, h: h, w: w, blobs: make(map[int][]Blob)}
}

// Noise adds uniform noise in [0, amplitude) from a seeded source.
func (sb *StackBuilder) Noise(amplitude float64, seed uint64) *StackBuilder {
	sb.noise = amplitude
	sb.seed = seed
	return sb
}

// Blob places b in every frame.
func (sb *StackBuilder) Blob(b Blob) *StackBuilder {
	for t := 0; t < sb.t; t++ {
		sb.blobs[t] = append(sb.blobs[t], b)
	}
	return sb
}

// BlobAt places b in the listed frames only.
func (sb *StackBuilder) BlobAt(b Blob, frames ...int) *StackBuilder {
	for _, t := range frames {
		sb.blobs[t] = append(sb.blobs[t], b)
	}
	return sb
}

// Build renders the stack.
func (sb *StackBuilder) Build() (*l1stack.Stack, error) {
	data := make([]float64, sb.t*sb.z*sb.h*sb.w)
	if sb.noise > 0 {
		rng := rand.New(rand.NewPCG(sb.seed, sb.seed^0x9e3779b97f4a7c15))
		for i := range data {
			data[i] = rng.Float64() * sb.noise
		}
	}
	for t := 0; t < sb.t; t++ {
		for _, b := range sb.blobs[t] {
			for z := 0; z < sb.z; z++ {
				for y := 0; y < sb.h; y++ {
					for x := 0; x < sb.w; x++ {
						i := ((t*sb.z+z)*sb.h+y)*sb.w + x
						data[i] += b.value(float64(x), float64(y), float64(z))
					}
				}
			}
		}
	}
	return l1stack.New([]int{sb.t, sb.z, sb.h, sb.w}, data)
}

// MustBuild is Build for test fixtures; it panics on error.
func (sb *StackBuilder) MustBuild() *l1stack.Stack {
	s, err := sb.Build()
	if err != nil {
		panic(err)
	}
	return s
}
