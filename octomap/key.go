package octomap

// Key addresses a node by its integer cell coordinates at a given depth.
// A key is only meaningful together with a depth: at depth d each component
// ranges over [0, 2^d). The coordinate key uses 16 bits per axis, which
// fixes the maximum tree depth at 16 levels.
type Key struct {
	X, Y, Z uint16
}

// TreeMaxDepth is the deepest level a tree can have, set by the bit width
// of the coordinate key.
const TreeMaxDepth = 16

// childIndex returns which of the 8 children of a node at depth-1 contains
// this key at the given depth. Bit 0 tracks x, bit 1 y, bit 2 z.
func (k Key) childIndex(depth, level int) int {
	shift := uint(depth - level)
	return int((k.X>>shift)&1) | int((k.Y>>shift)&1)<<1 | int((k.Z>>shift)&1)<<2
}

// child returns the key of child i of a node addressed by k, one level down.
func (k Key) child(i int) Key {
	return Key{
		X: k.X<<1 | uint16(i&1),
		Y: k.Y<<1 | uint16(i>>1&1),
		Z: k.Z<<1 | uint16(i>>2&1),
	}
}

// Neighbor offsets k by (dx, dy, dz) cells at the given depth. The second
// return is false when the offset leaves the key range of that depth, i.e.
// the neighbor cell is outside the world cube.
func (k Key) Neighbor(depth, dx, dy, dz int) (Key, bool) {
	limit := 1 << uint(depth)
	x := int(k.X) + dx
	y := int(k.Y) + dy
	z := int(k.Z) + dz
	if x < 0 || y < 0 || z < 0 || x >= limit || y >= limit || z >= limit {
		return Key{}, false
	}
	return Key{X: uint16(x), Y: uint16(y), Z: uint16(z)}, true
}
