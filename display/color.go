package display

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/viam-labs/octomapviz/octomap"
)

// RGB is a color with channels in [0,1].
type RGB struct {
	R, G, B float64
}

// RenderPoint is one voxel handed to the renderer: a world-space center and
// a color fixed at produce time.
type RenderPoint struct {
	Position r3.Vector
	Color    RGB
}

// ColorMode selects how accepted voxels are colored.
type ColorMode uint8

const (
	// ColorTexture derives a grayscale intensity from face texture
	// observations.
	ColorTexture ColorMode = iota
	// ColorHeight maps the voxel's z position onto a hue sweep.
	ColorHeight
	// ColorProbability blends red (free) to green (occupied) by occupancy
	// probability.
	ColorProbability
)

// DefaultColorFactor scales the hue sweep of height coloring.
const DefaultColorFactor = 0.8

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// textureColor averages the observation-weighted face values of a leaf into
// a grayscale intensity. A leaf with no observations at all is black.
func textureColor(n *octomap.Node) RGB {
	var weighted float64
	var observations uint32
	for f := octomap.FaceXPlus; f <= octomap.FaceZMinus; f++ {
		obs := n.FaceObservations(f)
		weighted += n.FaceValue(f) * float64(obs)
		observations += obs
	}
	intensity := 0.0
	if observations >= 1 {
		intensity = clamp01(weighted / (float64(observations) * 255.0))
	}
	return RGB{R: intensity, G: intensity, B: intensity}
}

// probabilityColor maps occupancy probability to red (free) through green
// (occupied).
func probabilityColor(p float64) RGB {
	return RGB{R: 1 - p, G: p, B: 0}
}

// heightColor maps a z position within [minZ, maxZ] onto the 6-sector HSV
// hue wheel at full saturation and value. The normalized height is inverted
// and scaled by factor before the sweep, so low voxels come out red-ish and
// high voxels violet-ish. A degenerate height range pins the ratio to 0
// rather than letting the division escape [0,1].
func heightColor(z, minZ, maxZ, factor float64) RGB {
	ratio := 0.0
	if span := maxZ - minZ; span > 0 {
		ratio = clamp01((z - minZ) / span)
	}
	h := (1 - ratio) * factor
	h -= math.Floor(h)
	h *= 6
	sector := int(math.Floor(h))
	f := h - float64(sector)
	if sector%2 == 0 {
		f = 1 - f
	}
	// s = v = 1, so m collapses to 0 and n to 1-f.
	m, n, v := 0.0, 1-f, 1.0
	switch sector {
	case 0, 6:
		return RGB{R: v, G: n, B: m}
	case 1:
		return RGB{R: n, G: v, B: m}
	case 2:
		return RGB{R: m, G: v, B: n}
	case 3:
		return RGB{R: m, G: n, B: v}
	case 4:
		return RGB{R: n, G: m, B: v}
	case 5:
		return RGB{R: v, G: m, B: n}
	default:
		return RGB{R: 1, G: 0.5, B: 0.5}
	}
}
