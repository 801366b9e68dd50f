package display

import "github.com/viam-labs/octomapviz/octomap"

// depthBuffer double-buffers per-depth point buckets between the message
// path and the update tick. The message path stages points bucket by bucket
// and then publishes the whole generation in one swap; the tick takes the
// ready generation exactly once. Callers hold the display mutex around
// publish and take; staging needs no lock because message handling is
// serial.
type depthBuffer struct {
	staging        [octomap.TreeMaxDepth][]RenderPoint
	ready          [octomap.TreeMaxDepth][]RenderPoint
	stagingBoxSize [octomap.TreeMaxDepth]float64
	readyBoxSize   [octomap.TreeMaxDepth]float64
	staged         int
	pending        bool
}

// beginGeneration clears the staging buckets and records the voxel edge
// length of every depth for the tree being processed. Like the staging
// buckets, the recorded sizes stay on the staging side until publish so a
// generation being staged never touches what the tick reads.
func (b *depthBuffer) beginGeneration(tree *octomap.Tree) {
	for i := range b.staging {
		b.staging[i] = b.staging[i][:0]
		b.stagingBoxSize[i] = tree.NodeSize(i + 1)
	}
	b.staged = 0
}

// add stages one point for the given depth (1-based).
func (b *depthBuffer) add(depth int, pt RenderPoint) {
	b.staging[depth-1] = append(b.staging[depth-1], pt)
	b.staged++
}

// publish swaps every staged bucket and the staged edge lengths into the
// ready generation at once and marks it pending. A traversal that staged
// nothing publishes nothing: the previous ready generation, if any, stays
// untouched. This mirrors how a swap is skipped for empty results rather
// than clearing the display.
func (b *depthBuffer) publish() bool {
	if b.staged == 0 {
		return false
	}
	for i := range b.staging {
		b.staging[i], b.ready[i] = b.ready[i], b.staging[i]
	}
	b.readyBoxSize = b.stagingBoxSize
	b.pending = true
	b.staged = 0
	return true
}

// take hands out the pending generation and its per-depth edge lengths,
// marking it consumed. Ownership of the bucket backing arrays moves to the
// caller: the buffer forgets them so later generations cannot scribble over
// a batch the renderer is still reading.
func (b *depthBuffer) take() ([octomap.TreeMaxDepth][]RenderPoint, [octomap.TreeMaxDepth]float64, bool) {
	if !b.pending {
		return [octomap.TreeMaxDepth][]RenderPoint{}, [octomap.TreeMaxDepth]float64{}, false
	}
	var out [octomap.TreeMaxDepth][]RenderPoint
	for i := range b.ready {
		out[i], b.ready[i] = b.ready[i], nil
	}
	b.pending = false
	return out, b.readyBoxSize, true
}

// clear drops both buffer generations and the pending flag.
func (b *depthBuffer) clear() {
	for i := range b.staging {
		b.staging[i] = nil
		b.ready[i] = nil
		b.stagingBoxSize[i] = 0
		b.readyBoxSize[i] = 0
	}
	b.staged = 0
	b.pending = false
}
