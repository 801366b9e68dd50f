package display

import "github.com/viam-labs/octomapviz/octomap"

// RenderMode is a bitmask selecting which occupancy classes are visible.
type RenderMode uint8

const (
	// RenderFree shows voxels classified as free.
	RenderFree RenderMode = 1 << iota
	// RenderOccupied shows voxels classified as occupied.
	RenderOccupied
)

// RenderAll shows both occupancy classes.
const RenderAll = RenderFree | RenderOccupied

// enables reports whether a voxel of the given occupancy class is visible
// under this mask.
func (m RenderMode) enables(occupied bool) bool {
	if occupied {
		return m&RenderOccupied != 0
	}
	return m&RenderFree != 0
}

// isShellVoxel decides whether a leaf sits on the visible shell of its
// region. It probes all 26 neighbors at the leaf's own depth: a neighbor
// covers this voxel only when a node exists at exactly that key and depth
// and its occupancy class is enabled by the mask. Any missing or
// non-covering neighbor (including neighbors outside the world cube) makes
// the voxel a shell voxel. A fully surrounded voxel is interior and never
// visible, so it is culled.
func isShellVoxel(tree *octomap.Tree, key octomap.Key, depth int, mode RenderMode) bool {
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				neighborKey, ok := key.Neighbor(depth, dx, dy, dz)
				if !ok {
					return true
				}
				neighbor := tree.Search(neighborKey, depth)
				if neighbor == nil || !mode.enables(neighbor.Occupied()) {
					return true
				}
			}
		}
	}
	return false
}
