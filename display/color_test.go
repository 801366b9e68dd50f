package display

import (
	"testing"

	"go.viam.com/test"

	"github.com/viam-labs/octomapviz/octomap"
)

func TestTextureColor(t *testing.T) {
	tree := octomap.NewTree(octomap.KindTextureOcTree, 1)

	t.Run("zero observations is exactly black", func(t *testing.T) {
		leaf := tree.SetLeaf(octomap.Key{X: 0, Y: 0, Z: 0}, 1, 1)
		test.That(t, textureColor(leaf), test.ShouldResemble, RGB{})
	})

	t.Run("saturated faces are white", func(t *testing.T) {
		leaf := tree.SetLeaf(octomap.Key{X: 1, Y: 0, Z: 0}, 1, 1)
		for f := octomap.FaceXPlus; f <= octomap.FaceZMinus; f++ {
			leaf.SetFace(f, 255*3, 3)
		}
		c := textureColor(leaf)
		test.That(t, c.R, test.ShouldAlmostEqual, 1)
		test.That(t, c.G, test.ShouldAlmostEqual, 1)
		test.That(t, c.B, test.ShouldAlmostEqual, 1)
	})

	t.Run("observation-weighted average", func(t *testing.T) {
		leaf := tree.SetLeaf(octomap.Key{X: 0, Y: 1, Z: 0}, 1, 1)
		// One face saw 255 twice, another saw 0 twice: half intensity.
		leaf.SetFace(octomap.FaceXPlus, 510, 2)
		leaf.SetFace(octomap.FaceYMinus, 0, 2)
		c := textureColor(leaf)
		test.That(t, c.R, test.ShouldAlmostEqual, 0.5)
		test.That(t, c.G, test.ShouldAlmostEqual, c.R)
		test.That(t, c.B, test.ShouldAlmostEqual, c.R)
	})

	t.Run("occupancy-only leaf is black", func(t *testing.T) {
		plain := octomap.NewTree(octomap.KindOcTree, 1)
		leaf := plain.SetLeaf(octomap.Key{X: 0, Y: 0, Z: 0}, 1, 1)
		test.That(t, textureColor(leaf), test.ShouldResemble, RGB{})
	})
}

func TestProbabilityColor(t *testing.T) {
	c := probabilityColor(0.7)
	test.That(t, c.R, test.ShouldAlmostEqual, 0.3)
	test.That(t, c.G, test.ShouldAlmostEqual, 0.7)
	test.That(t, c.B, test.ShouldEqual, 0)
}

func TestHeightColor(t *testing.T) {
	t.Run("bottom of range is deep blue-violet", func(t *testing.T) {
		// ratio 0 -> h = 0.8*6 = 4.8 -> sector 4, f complemented to 0.2.
		c := heightColor(0, 0, 10, DefaultColorFactor)
		test.That(t, c.R, test.ShouldAlmostEqual, 0.8)
		test.That(t, c.G, test.ShouldAlmostEqual, 0)
		test.That(t, c.B, test.ShouldAlmostEqual, 1)
	})

	t.Run("top of range is red", func(t *testing.T) {
		// ratio 1 -> h = 0 -> sector 0, f complemented to 1.
		c := heightColor(10, 0, 10, DefaultColorFactor)
		test.That(t, c, test.ShouldResemble, RGB{R: 1, G: 0, B: 0})
	})

	t.Run("clamping keeps out-of-range z on the boundary colors", func(t *testing.T) {
		test.That(t, heightColor(-50, 0, 10, DefaultColorFactor), test.ShouldResemble, heightColor(0, 0, 10, DefaultColorFactor))
		test.That(t, heightColor(99, 0, 10, DefaultColorFactor), test.ShouldResemble, heightColor(10, 0, 10, DefaultColorFactor))
	})

	t.Run("degenerate height range pins the ratio to zero", func(t *testing.T) {
		c := heightColor(5, 5, 5, DefaultColorFactor)
		test.That(t, c, test.ShouldResemble, heightColor(0, 0, 10, DefaultColorFactor))
		for _, ch := range []float64{c.R, c.G, c.B} {
			test.That(t, ch, test.ShouldBeGreaterThanOrEqualTo, 0)
			test.That(t, ch, test.ShouldBeLessThanOrEqualTo, 1)
		}
	})

	t.Run("all channels stay in range across the sweep", func(t *testing.T) {
		for i := 0; i <= 100; i++ {
			c := heightColor(float64(i), 0, 100, 1.0)
			for _, ch := range []float64{c.R, c.G, c.B} {
				test.That(t, ch, test.ShouldBeGreaterThanOrEqualTo, 0)
				test.That(t, ch, test.ShouldBeLessThanOrEqualTo, 1)
			}
		}
	})
}
