package display

import (
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/viam-labs/octomapviz/octomap"
)

// Pose is a world-space position and orientation, the result of a frame
// lookup for an inbound message.
type Pose struct {
	Position    r3.Vector
	Orientation quat.Number
}

// TransformSource resolves the pose of a named coordinate frame at a given
// time. A failed lookup aborts processing of the message that needed it.
type TransformSource interface {
	Pose(frameID string, at time.Time) (Pose, error)
}

// PointRenderer consumes point batches produced by the display. Each depth
// bucket is drawn as uniformly sized cubes of the given edge length.
// SetBatch replaces the previous batch for that depth; an empty batch clears
// it. The renderer is only called from the display's update tick, never from
// the message path, except for SetPose which follows the message's frame.
type PointRenderer interface {
	SetPose(pose Pose)
	SetBatch(depth int, edge float64, points []RenderPoint)
	Clear()
}

// Unsubscriber tears down a single subscription.
type Unsubscriber interface {
	Unsubscribe() error
}

// Subscriber delivers octree messages for a topic. Implementations must
// invoke the handler serially: a message is fully handled before the next
// one is delivered. The queue size bounds how many undelivered messages are
// retained.
type Subscriber interface {
	Subscribe(topic string, queueSize int, handler func(octomap.Message)) (Unsubscriber, error)
}
