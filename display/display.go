// Package display turns serialized occupancy octree messages into per-depth
// point batches for a renderer. Inbound messages are decoded, their leaves
// depth-bounded, occlusion-culled and colored on the message path, then the
// finished generation is swapped to the render tick under a single lock.
package display

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/viam-labs/octomapviz/octomap"
)

// DefaultQueueSize is how many undelivered messages a subscription retains
// when the config does not say otherwise.
const DefaultQueueSize = 5

// Config holds the operator-facing settings of a display.
type Config struct {
	// Topic is the subscription topic octree messages arrive on.
	Topic string `json:"topic"`
	// QueueSize bounds the inbound message queue. Zero means
	// DefaultQueueSize; values below 1 are rejected.
	QueueSize int `json:"queue_size,omitempty"`
	// MaxTreeDepth bounds traversal depth. Zero means the full tree depth.
	MaxTreeDepth int `json:"max_tree_depth,omitempty"`
	// RenderMode selects which occupancy classes are shown. Zero means
	// occupied voxels only.
	RenderMode RenderMode `json:"render_mode,omitempty"`
	// ColorMode selects voxel coloring; the zero value is texture coloring.
	ColorMode ColorMode `json:"color_mode,omitempty"`
	// ColorFactor scales the height-color hue sweep. Zero means
	// DefaultColorFactor.
	ColorFactor float64 `json:"color_factor,omitempty"`
}

// Validate checks the config attributes and fills in defaults.
func (c *Config) Validate(path string) error {
	if c.Topic == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "topic")
	}
	if c.QueueSize < 0 {
		return errors.New("queue_size must be at least 1")
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.MaxTreeDepth < 0 || c.MaxTreeDepth > octomap.TreeMaxDepth {
		return errors.Errorf("max_tree_depth must be in [0, %d]", octomap.TreeMaxDepth)
	}
	if c.RenderMode == 0 {
		c.RenderMode = RenderOccupied
	}
	if c.RenderMode&^RenderAll != 0 {
		return errors.Errorf("unknown render_mode bits %#x", uint8(c.RenderMode))
	}
	if c.ColorMode > ColorProbability {
		return errors.Errorf("unknown color_mode %d", uint8(c.ColorMode))
	}
	if c.ColorFactor < 0 || c.ColorFactor > 1 {
		return errors.New("color_factor must be in [0, 1]")
	}
	if c.ColorFactor == 0 {
		c.ColorFactor = DefaultColorFactor
	}
	return nil
}

// Stats is the informational state a display surfaces.
type Stats struct {
	MessagesReceived int64
	LastError        string
}

// Display owns one octree subscription end to end: it decodes inbound
// messages on the subscriber's delivery goroutine and feeds the resulting
// point generations to a renderer on Update ticks. The two sides only meet
// at the ready-buffer handoff, which a single mutex guards.
type Display struct {
	logger     golog.Logger
	renderer   PointRenderer
	transforms TransformSource
	subscriber Subscriber
	clock      clock.Clock

	confMu sync.RWMutex
	conf   Config

	enabled bool
	unsub   Unsubscriber

	// procMu serializes the producer side (staging) with Clear and Reset.
	// Messages are already serial per subscription, so it is uncontended on
	// the message path; the tick never takes it.
	procMu sync.Mutex

	mu  sync.Mutex
	buf depthBuffer

	messagesReceived atomic.Int64
	lastError        atomic.String

	activeBackgroundWorkers sync.WaitGroup
	closedMu                sync.RWMutex
	closed                  bool
}

// New creates a disabled display with the given collaborators. Call Enable
// to subscribe and start processing.
func New(conf Config, renderer PointRenderer, transforms TransformSource, subscriber Subscriber, logger golog.Logger) (*Display, error) {
	if err := conf.Validate(""); err != nil {
		return nil, err
	}
	return &Display{
		logger:     logger,
		renderer:   renderer,
		transforms: transforms,
		subscriber: subscriber,
		clock:      clock.New(),
		conf:       conf,
	}, nil
}

func (d *Display) config() Config {
	d.confMu.RLock()
	defer d.confMu.RUnlock()
	return d.conf
}

// Enable subscribes to the configured topic and starts processing messages.
// Enabling an enabled display resubscribes.
func (d *Display) Enable() error {
	d.confMu.Lock()
	defer d.confMu.Unlock()
	d.enabled = true
	return d.resubscribeLocked()
}

// Disable tears down the subscription and clears all displayed state.
func (d *Display) Disable() {
	d.confMu.Lock()
	d.enabled = false
	d.unsubscribeLocked()
	d.confMu.Unlock()
	d.Clear()
}

// resubscribeLocked (re)creates the subscription for the current config.
// confMu must be held.
func (d *Display) resubscribeLocked() error {
	d.unsubscribeLocked()
	if !d.enabled || d.conf.Topic == "" {
		return nil
	}
	unsub, err := d.subscriber.Subscribe(d.conf.Topic, d.conf.QueueSize, d.handleMessage)
	if err != nil {
		subErr := &SubscriptionError{Topic: d.conf.Topic, Err: err}
		d.lastError.Store(subErr.Error())
		d.logger.Errorw("octomap subscription failed", "topic", d.conf.Topic, "error", err)
		return subErr
	}
	d.unsub = unsub
	d.logger.Debugw("subscribed to octomap topic", "topic", d.conf.Topic, "queue_size", d.conf.QueueSize)
	return nil
}

func (d *Display) unsubscribeLocked() {
	if d.unsub == nil {
		return
	}
	if err := d.unsub.Unsubscribe(); err != nil {
		d.logger.Warnw("error unsubscribing", "topic", d.conf.Topic, "error", err)
	}
	d.unsub = nil
}

// SetTopic switches the subscription to a new topic. Accumulated counters,
// status and buffers are reset; if the display is enabled it resubscribes.
func (d *Display) SetTopic(topic string) error {
	d.confMu.Lock()
	d.unsubscribeLocked()
	d.conf.Topic = topic
	d.confMu.Unlock()

	d.Reset()

	d.confMu.Lock()
	defer d.confMu.Unlock()
	return d.resubscribeLocked()
}

// SetQueueSize changes the inbound queue bound and resubscribes.
func (d *Display) SetQueueSize(n int) error {
	if n < 1 {
		return errors.New("queue size must be at least 1")
	}
	d.confMu.Lock()
	defer d.confMu.Unlock()
	d.conf.QueueSize = n
	return d.resubscribeLocked()
}

// SetMaxTreeDepth bounds traversal depth for subsequent messages. Zero means
// the full tree depth.
func (d *Display) SetMaxTreeDepth(depth int) error {
	if depth < 0 || depth > octomap.TreeMaxDepth {
		return errors.Errorf("max tree depth must be in [0, %d]", octomap.TreeMaxDepth)
	}
	d.confMu.Lock()
	defer d.confMu.Unlock()
	d.conf.MaxTreeDepth = depth
	return nil
}

// SetRenderMode selects the visible occupancy classes for subsequent
// messages.
func (d *Display) SetRenderMode(mode RenderMode) {
	d.confMu.Lock()
	defer d.confMu.Unlock()
	d.conf.RenderMode = mode
}

// SetColorMode selects voxel coloring for subsequent messages. Points
// already published keep the colors they were produced with.
func (d *Display) SetColorMode(mode ColorMode) {
	d.confMu.Lock()
	defer d.confMu.Unlock()
	d.conf.ColorMode = mode
}

// Stats returns the message counter and the last error surfaced by the
// pipeline.
func (d *Display) Stats() Stats {
	return Stats{
		MessagesReceived: d.messagesReceived.Load(),
		LastError:        d.lastError.Load(),
	}
}

// handleMessage runs the producer side for one message: pose lookup, decode,
// traversal with occlusion cull and coloring, then an atomic publish of the
// staged generation. Messages for one subscription arrive serially, so all
// staging state is touched without a lock; only the publish takes the mutex.
func (d *Display) handleMessage(msg octomap.Message) {
	d.closedMu.RLock()
	if d.closed {
		d.closedMu.RUnlock()
		return
	}
	d.activeBackgroundWorkers.Add(1)
	d.closedMu.RUnlock()
	defer d.activeBackgroundWorkers.Done()

	count := d.messagesReceived.Inc()
	d.logger.Debugw("octomap message received", "count", count, "id", msg.ID, "bytes", len(msg.Data))

	pose, err := d.transforms.Pose(msg.FrameID, msg.Stamp)
	if err != nil {
		tfErr := &TransformError{Frame: msg.FrameID, Err: err}
		d.lastError.Store(tfErr.Error())
		d.logger.Warnw("dropping octomap message", "error", tfErr)
		return
	}
	d.renderer.SetPose(pose)

	tree, err := octomap.Decode(msg)
	if err != nil {
		d.lastError.Store(err.Error())
		d.logger.Warnw("dropping octomap message", "error", err)
		return
	}

	conf := d.config()
	maxDepth := conf.MaxTreeDepth
	if maxDepth == 0 || maxDepth > tree.Depth() {
		maxDepth = tree.Depth()
	}
	boundsMin, boundsMax := tree.Bounds()

	d.procMu.Lock()
	defer d.procMu.Unlock()
	d.buf.beginGeneration(tree)
	tree.IterateLeaves(maxDepth, func(leaf octomap.Leaf) bool {
		// A root-only tree reports its single leaf at depth 0, which has
		// no bucket; there is nothing meaningful to draw for it.
		if leaf.Depth == 0 {
			return true
		}
		occupied := leaf.Node.Occupied()
		if !conf.RenderMode.enables(occupied) {
			return true
		}
		if !isShellVoxel(tree, leaf.Key, leaf.Depth, conf.RenderMode) {
			return true
		}

		pt := RenderPoint{Position: tree.KeyToCoord(leaf.Key, leaf.Depth)}
		switch conf.ColorMode {
		case ColorHeight:
			pt.Color = heightColor(pt.Position.Z, boundsMin.Z, boundsMax.Z, conf.ColorFactor)
		case ColorProbability:
			pt.Color = probabilityColor(leaf.Node.Occupancy())
		default:
			pt.Color = textureColor(leaf.Node)
		}
		d.buf.add(leaf.Depth, pt)
		return true
	})

	d.mu.Lock()
	published := d.buf.publish()
	d.mu.Unlock()
	if published {
		d.logger.Debugw("published octomap generation", "count", count)
	}
}

// Update is the consumer tick: if a generation is pending it is drained into
// the renderer, one batch per depth with that depth's voxel edge length.
// With nothing pending Update is a no-op.
func (d *Display) Update() {
	d.mu.Lock()
	buckets, sizes, ok := d.buf.take()
	d.mu.Unlock()
	if !ok {
		return
	}
	for i := range buckets {
		d.renderer.SetBatch(i+1, sizes[i], buckets[i])
	}
}

// RunUpdates ticks Update at the given interval until ctx is done. The
// display's clock drives the ticker so tests can control time.
func (d *Display) RunUpdates(ctx context.Context, interval time.Duration) {
	ticker := d.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Update()
		}
	}
}

// Clear flushes both buffer generations, the pending flag and the rendered
// points. It is valid in any state and does not touch the subscription.
func (d *Display) Clear() {
	d.procMu.Lock()
	d.mu.Lock()
	d.buf.clear()
	d.mu.Unlock()
	d.procMu.Unlock()
	d.renderer.Clear()
}

// Reset clears displayed state and accumulated counters and status.
func (d *Display) Reset() {
	d.Clear()
	d.messagesReceived.Store(0)
	d.lastError.Store("")
}

// Close tears down the subscription, waits for any in-flight message to
// finish, and clears the display. Safe to call concurrently with message
// delivery.
func (d *Display) Close(ctx context.Context) error {
	d.closedMu.Lock()
	alreadyClosed := d.closed
	d.closed = true
	d.closedMu.Unlock()
	if alreadyClosed {
		return nil
	}

	var err error
	d.confMu.Lock()
	if d.unsub != nil {
		err = multierr.Append(err, d.unsub.Unsubscribe())
		d.unsub = nil
	}
	d.enabled = false
	d.confMu.Unlock()

	d.activeBackgroundWorkers.Wait()
	d.Clear()
	return err
}
