package display

import (
	"testing"

	"go.viam.com/test"

	"github.com/viam-labs/octomapviz/octomap"
)

const (
	testOccupied = float32(3.5)
	testFree     = float32(-2.0)
)

// solidBlock builds a depth-2 tree with an occupied leaf in every cell of
// the 3x3x3 block centered on (1,1,1), except the keys listed in skip.
func solidBlock(skip ...octomap.Key) *octomap.Tree {
	tree := octomap.NewTree(octomap.KindOcTree, 1)
	for dz := 0; dz <= 2; dz++ {
		for dy := 0; dy <= 2; dy++ {
		next:
			for dx := 0; dx <= 2; dx++ {
				key := octomap.Key{X: uint16(dx), Y: uint16(dy), Z: uint16(dz)}
				for _, s := range skip {
					if key == s {
						continue next
					}
				}
				tree.SetLeaf(key, 2, testOccupied)
			}
		}
	}
	return tree
}

func TestIsShellVoxel(t *testing.T) {
	center := octomap.Key{X: 1, Y: 1, Z: 1}

	t.Run("fully surrounded voxel is interior", func(t *testing.T) {
		tree := solidBlock()
		test.That(t, isShellVoxel(tree, center, 2, RenderOccupied), test.ShouldBeFalse)
	})

	t.Run("removing any one neighbor exposes it", func(t *testing.T) {
		for _, missing := range []octomap.Key{
			{X: 0, Y: 0, Z: 0}, // corner
			{X: 1, Y: 0, Z: 1}, // face
			{X: 2, Y: 2, Z: 1}, // edge
		} {
			tree := solidBlock(missing)
			test.That(t, isShellVoxel(tree, center, 2, RenderOccupied), test.ShouldBeTrue)
		}
	})

	t.Run("world-edge voxels are always shell", func(t *testing.T) {
		tree := solidBlock()
		// (0,0,0) has in-tree neighbors on one side only; the rest fall
		// outside the key range and count as not covering.
		test.That(t, isShellVoxel(tree, octomap.Key{}, 2, RenderOccupied), test.ShouldBeTrue)
	})

	t.Run("a neighbor of a disabled class does not cover", func(t *testing.T) {
		tree := solidBlock(octomap.Key{X: 1, Y: 1, Z: 0})
		tree.SetLeaf(octomap.Key{X: 1, Y: 1, Z: 0}, 2, testFree)
		test.That(t, isShellVoxel(tree, center, 2, RenderOccupied), test.ShouldBeTrue)
		// With both classes enabled the free neighbor covers again.
		test.That(t, isShellVoxel(tree, center, 2, RenderAll), test.ShouldBeFalse)
	})

	t.Run("a shallower leaf over a neighbor cell does not cover", func(t *testing.T) {
		tree := octomap.NewTree(octomap.KindOcTree, 1)
		voxel := octomap.Key{X: 2, Y: 2, Z: 2}
		tree.SetLeaf(voxel, 2, testOccupied)
		// A pruned depth-1 leaf spatially contains the neighbor cell
		// (1,1,1), but no node exists at that exact key and depth.
		tree.SetLeaf(octomap.Key{X: 0, Y: 0, Z: 0}, 1, testOccupied)
		test.That(t, tree.Search(octomap.Key{X: 1, Y: 1, Z: 1}, 2), test.ShouldBeNil)
		test.That(t, isShellVoxel(tree, voxel, 2, RenderOccupied), test.ShouldBeTrue)
	})
}

func TestRenderModeEnables(t *testing.T) {
	test.That(t, RenderOccupied.enables(true), test.ShouldBeTrue)
	test.That(t, RenderOccupied.enables(false), test.ShouldBeFalse)
	test.That(t, RenderFree.enables(false), test.ShouldBeTrue)
	test.That(t, RenderFree.enables(true), test.ShouldBeFalse)
	test.That(t, RenderAll.enables(true), test.ShouldBeTrue)
	test.That(t, RenderAll.enables(false), test.ShouldBeTrue)
}
