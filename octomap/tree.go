// Package octomap implements an in-memory probabilistic occupancy octree
// decoded from serialized map messages. Each node covers a cube of space and
// subdivides into 8 children; leaves carry an occupancy probability and,
// for texture trees, per-face observation statistics.
package octomap

import (
	"math"

	"github.com/golang/geo/r3"
)

// Kind discriminates the supported tree flavors.
type Kind uint8

const (
	// KindOcTree is a plain occupancy tree.
	KindOcTree Kind = iota
	// KindTextureOcTree is an occupancy tree whose nodes also accumulate
	// per-face texture observations.
	KindTextureOcTree
)

// treeID maps a Kind to the identifier carried by serialized messages.
func (k Kind) treeID() string {
	if k == KindTextureOcTree {
		return "TextureOcTree"
	}
	return "OcTree"
}

// Tree is a hierarchical occupancy map. The root covers a cube of edge
// resolution·2^16 centered on the origin; each level halves the edge length.
// A Tree is built once (by Decode or by explicit construction in tests) and
// then only read.
type Tree struct {
	kind       Kind
	resolution float64
	root       *Node

	min, max r3.Vector
	hasLeaf  bool
}

// NewTree returns an empty tree of the given kind. Resolution is the edge
// length of a cell at the maximum depth and must be positive.
func NewTree(kind Kind, resolution float64) *Tree {
	return &Tree{kind: kind, resolution: resolution}
}

// Kind returns the tree flavor.
func (t *Tree) Kind() Kind {
	return t.kind
}

// Resolution returns the edge length of a maximum-depth cell.
func (t *Tree) Resolution() float64 {
	return t.resolution
}

// Depth returns the tree's maximum depth.
func (t *Tree) Depth() int {
	return TreeMaxDepth
}

// NodeSize returns the edge length of a cell at the given depth. Each depth
// halves the edge length of the one above it.
func (t *Tree) NodeSize(depth int) float64 {
	if depth < 0 {
		depth = 0
	}
	if depth > TreeMaxDepth {
		depth = TreeMaxDepth
	}
	return t.resolution * float64(uint(1)<<uint(TreeMaxDepth-depth))
}

// rootEdge is the metric edge length of the whole world cube.
func (t *Tree) rootEdge() float64 {
	return t.NodeSize(0)
}

// KeyToCoord returns the world-space center of the cell addressed by key at
// the given depth. The world cube is centered on the origin.
func (t *Tree) KeyToCoord(key Key, depth int) r3.Vector {
	size := t.NodeSize(depth)
	half := t.rootEdge() / 2
	return r3.Vector{
		X: -half + (float64(key.X)+0.5)*size,
		Y: -half + (float64(key.Y)+0.5)*size,
		Z: -half + (float64(key.Z)+0.5)*size,
	}
}

// Search finds the node at exactly the given key and depth. It returns nil
// when no node exists on that exact path, including when a shallower leaf
// covers the cell: a pruned ancestor does not stand in for its descendants.
func (t *Tree) Search(key Key, depth int) *Node {
	if t.root == nil || depth < 0 || depth > TreeMaxDepth {
		return nil
	}
	limit := 1 << uint(depth)
	if int(key.X) >= limit || int(key.Y) >= limit || int(key.Z) >= limit {
		return nil
	}
	node := t.root
	for level := 1; level <= depth; level++ {
		node = node.childAt(key.childIndex(depth, level))
		if node == nil {
			return nil
		}
	}
	return node
}

// SetLeaf creates (or overwrites) a leaf at the given key and depth with the
// given occupancy log-odds, creating intermediate nodes as needed, and
// returns the leaf. Inner occupancies along the path are refreshed so that
// Occupied checks on ancestors stay consistent.
func (t *Tree) SetLeaf(key Key, depth int, logOdds float32) *Node {
	textured := t.kind == KindTextureOcTree
	if t.root == nil {
		t.root = &Node{}
		if textured {
			t.root.faces = &[numFaces]faceStat{}
		}
	}
	path := make([]*Node, 0, depth+1)
	node := t.root
	path = append(path, node)
	for level := 1; level <= depth; level++ {
		node = node.ensureChild(key.childIndex(depth, level), textured)
		path = append(path, node)
	}
	node.logOdds = logOdds
	for i := len(path) - 2; i >= 0; i-- {
		path[i].refreshFromChildren()
	}
	t.mergeLeafBounds(key, depth)
	return node
}

// Bounds returns the metric axis-aligned bounding box over all leaves. An
// empty tree reports a degenerate box at the origin.
func (t *Tree) Bounds() (min, max r3.Vector) {
	if !t.hasLeaf {
		return r3.Vector{}, r3.Vector{}
	}
	return t.min, t.max
}

func (t *Tree) mergeLeafBounds(key Key, depth int) {
	center := t.KeyToCoord(key, depth)
	half := t.NodeSize(depth) / 2
	lo := r3.Vector{X: center.X - half, Y: center.Y - half, Z: center.Z - half}
	hi := r3.Vector{X: center.X + half, Y: center.Y + half, Z: center.Z + half}
	if !t.hasLeaf {
		t.min, t.max = lo, hi
		t.hasLeaf = true
		return
	}
	t.min.X = math.Min(t.min.X, lo.X)
	t.min.Y = math.Min(t.min.Y, lo.Y)
	t.min.Z = math.Min(t.min.Z, lo.Z)
	t.max.X = math.Max(t.max.X, hi.X)
	t.max.Y = math.Max(t.max.Y, hi.Y)
	t.max.Z = math.Max(t.max.Z, hi.Z)
}

// Leaf is one step of a depth-bounded traversal: the visited node, its key,
// and the depth the key is expressed at. When traversal is bounded, inner
// nodes at the bound are reported as leaves of their own depth and cell
// size.
type Leaf struct {
	Node  *Node
	Key   Key
	Depth int
}

// IterateLeaves walks every leaf of the tree no deeper than maxDepth and
// calls fn for each. A maxDepth of 0 (or out of range) means the full tree
// depth. Returning false from fn stops the traversal.
func (t *Tree) IterateLeaves(maxDepth int, fn func(Leaf) bool) {
	if t.root == nil {
		return
	}
	if maxDepth <= 0 || maxDepth > TreeMaxDepth {
		maxDepth = TreeMaxDepth
	}
	t.iterate(t.root, Key{}, 0, maxDepth, fn)
}

func (t *Tree) iterate(node *Node, key Key, depth, maxDepth int, fn func(Leaf) bool) bool {
	if node.isLeaf() || depth == maxDepth {
		return fn(Leaf{Node: node, Key: key, Depth: depth})
	}
	for i := 0; i < 8; i++ {
		child := node.childAt(i)
		if child == nil {
			continue
		}
		if !t.iterate(child, key.child(i), depth+1, maxDepth, fn) {
			return false
		}
	}
	return true
}
