package l1stack

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png" // register PNG decoder
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	_ "golang.org/x/image/tiff" // register TIFF decoder

	"github.com/banshee-data/confocal.track/internal/tracking"
)

// slicePattern matches per-slice file names such as t003_z12.tif.
var slicePattern = regexp.MustCompile(`^t(\d+)_z(\d+)\.(?i:tiff?|png)$`)

type sliceKey struct{ t, z int }

// LoadDir reads a stack from a directory of per-slice images named
// t<T>_z<Z>.{tif,tiff,png}. Every (t, z) pair in the covered range must be
// present and every slice must have the same bounds. Pixel intensities are
// the 16-bit grey value of each pixel; 8-bit slices are scaled by 257 so
// that 255 maps to 65535.
func LoadDir(dir string) (*Stack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read stack directory: %w", err)
	}

	files := make(map[sliceKey]string)
	maxT, maxZ := -1, -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := slicePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		t, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("bad time index in %s: %w", e.Name(), err)
		}
		z, err := strconv.Atoi(m[2])
		if err != nil {
			return nil, fmt.Errorf("bad z index in %s: %w", e.Name(), err)
		}
		key := sliceKey{t, z}
		if prev, dup := files[key]; dup {
			return nil, fmt.Errorf("duplicate slice t=%d z=%d: %s and %s", t, z, prev, e.Name())
		}
		files[key] = filepath.Join(dir, e.Name())
		if t > maxT {
			maxT = t
		}
		if z > maxZ {
			maxZ = z
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no slice images found in %s", dir)
	}

	nT, nZ := maxT+1, maxZ+1
	if len(files) != nT*nZ {
		return nil, tracking.NewShapeError([]int{nT, nZ}, "found %d slice files, want %d", len(files), nT*nZ)
	}

	keys := make([]sliceKey, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].t != keys[j].t {
			return keys[i].t < keys[j].t
		}
		return keys[i].z < keys[j].z
	})

	var width, height int
	var data []float64
	for i, k := range keys {
		img, err := decodeFile(files[k])
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		if i == 0 {
			width, height = b.Dx(), b.Dy()
			data = make([]float64, 0, nT*nZ*width*height)
		} else if b.Dx() != width || b.Dy() != height {
			return nil, tracking.NewShapeError([]int{nT, nZ, height, width},
				"slice t=%d z=%d is %dx%d", k.t, k.z, b.Dx(), b.Dy())
		}
		data = appendGray(data, img)
	}
	tracking.Diagf("loaded %d slices from %s: T=%d Z=%d %dx%d", len(keys), dir, nT, nZ, width, height)
	return New([]int{nT, nZ, height, width}, data)
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open slice: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

func appendGray(dst []float64, img image.Image) []float64 {
	b := img.Bounds()
	switch g := img.(type) {
	case *image.Gray16:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst = append(dst, float64(g.Gray16At(x, y).Y))
			}
		}
	case *image.Gray:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst = append(dst, float64(uint16(g.GrayAt(x, y).Y)*0x101))
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				v := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				dst = append(dst, float64(v.Y))
			}
		}
	}
	return dst
}
