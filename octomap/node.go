package octomap

import "math"

// Face identifies one of the six axis-aligned faces of a voxel.
type Face uint8

// Faces are ordered +x, -x, +y, -y, +z, -z.
const (
	FaceXPlus Face = iota
	FaceXMinus
	FaceYPlus
	FaceYMinus
	FaceZPlus
	FaceZMinus

	numFaces = 6
)

// Occupancy thresholds and clamping limits in log-odds space, matching the
// conventional octomap defaults (p=0.5 threshold, clamping at p≈0.12 and
// p≈0.97).
const (
	occupancyThresholdLogOdds = 0.0
	freeLogOdds               = -2.0
	occupiedLogOdds           = 3.5
)

// faceStat accumulates texture observations for a single face: the sum of
// observed values (0..255 each) and how many observations were folded in.
type faceStat struct {
	valueSum     float32
	observations uint32
}

// Node is a single cell of the occupancy tree. A node with no children is a
// leaf; its occupancy is stored as log-odds. Texture trees additionally
// carry per-face observation statistics.
type Node struct {
	logOdds  float32
	children []*Node
	faces    *[numFaces]faceStat
}

// LogOdds returns the node's raw occupancy log-odds.
func (n *Node) LogOdds() float32 {
	return n.logOdds
}

// Occupancy returns the node's occupancy probability in [0,1].
func (n *Node) Occupancy() float64 {
	return 1.0 / (1.0 + math.Exp(-float64(n.logOdds)))
}

// Occupied reports whether the node's occupancy is at or above the
// occupancy threshold.
func (n *Node) Occupied() bool {
	return n.logOdds >= occupancyThresholdLogOdds
}

// HasTexture reports whether the node carries face texture statistics.
func (n *Node) HasTexture() bool {
	return n.faces != nil
}

// FaceObservations returns the number of texture observations recorded for
// the given face.
func (n *Node) FaceObservations(f Face) uint32 {
	if n.faces == nil {
		return 0
	}
	return n.faces[f].observations
}

// FaceValue returns the mean observed texture value (0..255) for the given
// face, or 0 when the face has no observations.
func (n *Node) FaceValue(f Face) float64 {
	if n.faces == nil || n.faces[f].observations == 0 {
		return 0
	}
	return float64(n.faces[f].valueSum) / float64(n.faces[f].observations)
}

// SetFace overwrites the texture statistics of one face. It promotes an
// occupancy-only node to a textured one.
func (n *Node) SetFace(f Face, valueSum float32, observations uint32) {
	if n.faces == nil {
		n.faces = &[numFaces]faceStat{}
	}
	n.faces[f] = faceStat{valueSum: valueSum, observations: observations}
}

func (n *Node) isLeaf() bool {
	return n.children == nil
}

// childAt returns child i or nil. The children slice is only allocated on
// first descent, so leaves stay small.
func (n *Node) childAt(i int) *Node {
	if n.children == nil {
		return nil
	}
	return n.children[i]
}

func (n *Node) ensureChild(i int, textured bool) *Node {
	if n.children == nil {
		n.children = make([]*Node, 8)
	}
	if n.children[i] == nil {
		child := &Node{}
		if textured {
			child.faces = &[numFaces]faceStat{}
		}
		n.children[i] = child
	}
	return n.children[i]
}

// refreshFromChildren sets an inner node's occupancy to the maximum of its
// children, the usual pruning-friendly aggregation for occupancy trees.
func (n *Node) refreshFromChildren() {
	if n.children == nil {
		return
	}
	max := float32(math.Inf(-1))
	any := false
	for _, c := range n.children {
		if c == nil {
			continue
		}
		any = true
		if c.logOdds > max {
			max = c.logOdds
		}
	}
	if any {
		n.logOdds = max
	}
}
