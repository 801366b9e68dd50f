// Package mqttsub delivers octree messages from an MQTT broker to a
// display. Each subscription gets a bounded queue and a single dispatch
// goroutine, so handlers see messages one at a time in arrival order.
package mqttsub

import (
	"encoding/json"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/viam-labs/octomapviz/display"
	"github.com/viam-labs/octomapviz/octomap"
)

const (
	defaultConnectTimeout = 10 * time.Second
	opTimeout             = 5 * time.Second
)

// Options configures the broker connection.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

// Subscriber is an MQTT-backed display.Subscriber.
type Subscriber struct {
	client mqtt.Client
	logger golog.Logger
}

// New connects to the broker and returns a Subscriber. The connection auto
// reconnects; subscriptions survive reconnects because the session is kept.
func New(opts Options, logger golog.Logger) (*Subscriber, error) {
	if opts.Broker == "" {
		return nil, errors.New("broker address required")
	}
	clientID := opts.ClientID
	if clientID == "" {
		clientID = "octomapviz"
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = defaultConnectTimeout
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(time.Minute).
		SetKeepAlive(60 * time.Second).
		SetCleanSession(false).
		SetOrderMatters(true)
	if opts.Username != "" {
		clientOpts = clientOpts.SetUsername(opts.Username).SetPassword(opts.Password)
	}
	clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warnw("mqtt connection lost, reconnecting", "error", err)
	})

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.Errorf("timed out connecting to mqtt broker %q", opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "failed to connect to mqtt broker %q", opts.Broker)
	}
	return &Subscriber{client: client, logger: logger}, nil
}

// NewWithClient wraps an existing MQTT client; tests use it with a fake.
func NewWithClient(client mqtt.Client, logger golog.Logger) *Subscriber {
	return &Subscriber{client: client, logger: logger}
}

// Subscribe registers for octree envelopes on a topic. Beyond queueSize
// undelivered messages the oldest is dropped, matching the usual display
// queue semantics where fresher maps win.
func (s *Subscriber) Subscribe(topic string, queueSize int, handler func(octomap.Message)) (display.Unsubscriber, error) {
	if queueSize < 1 {
		return nil, errors.New("queue size must be at least 1")
	}
	sub := &subscription{
		client: s.client,
		logger: s.logger,
		topic:  topic,
		ch:     make(chan octomap.Message, queueSize),
	}

	token := s.client.Subscribe(topic, 1, func(_ mqtt.Client, m mqtt.Message) {
		msg, err := decodeEnvelope(m.Payload())
		if err != nil {
			s.logger.Warnw("dropping malformed octomap envelope", "topic", m.Topic(), "error", err)
			return
		}
		sub.push(msg)
	})
	if !token.WaitTimeout(opTimeout) {
		return nil, errors.Errorf("timed out subscribing to %q", topic)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "failed to subscribe to %q", topic)
	}

	sub.dispatchDone.Add(1)
	goutils.PanicCapturingGo(func() {
		defer sub.dispatchDone.Done()
		for msg := range sub.ch {
			handler(msg)
		}
	})
	return sub, nil
}

// Close disconnects from the broker, waiting briefly for in-flight work.
func (s *Subscriber) Close() error {
	s.client.Disconnect(uint(opTimeout / time.Millisecond / 20))
	return nil
}

type subscription struct {
	client mqtt.Client
	logger golog.Logger
	topic  string
	ch     chan octomap.Message

	mu     sync.Mutex
	closed bool

	dispatchDone sync.WaitGroup
}

// push enqueues a message, evicting the oldest queued one when full.
func (sub *subscription) push(msg octomap.Message) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.ch <- msg:
		return
	default:
	}
	select {
	case <-sub.ch:
		sub.logger.Debugw("octomap queue full, dropping oldest message", "topic", sub.topic)
	default:
	}
	select {
	case sub.ch <- msg:
	default:
	}
}

// Unsubscribe removes the broker subscription, then drains the dispatch
// goroutine so no handler is running when it returns.
func (sub *subscription) Unsubscribe() error {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return nil
	}
	sub.closed = true
	sub.mu.Unlock()

	var err error
	token := sub.client.Unsubscribe(sub.topic)
	if !token.WaitTimeout(opTimeout) {
		err = errors.Errorf("timed out unsubscribing from %q", sub.topic)
	} else {
		err = errors.Wrapf(token.Error(), "failed to unsubscribe from %q", sub.topic)
	}
	close(sub.ch)
	sub.dispatchDone.Wait()
	return err
}

// envelope is the JSON wire form of an octree message: metadata plus the
// base64 node stream.
type envelope struct {
	FrameID    string  `json:"frame_id"`
	Stamp      int64   `json:"stamp,omitempty"` // unix nanoseconds
	ID         string  `json:"id"`
	Binary     bool    `json:"binary,omitempty"`
	Resolution float64 `json:"resolution"`
	Data       []byte  `json:"data"`
}

func decodeEnvelope(payload []byte) (octomap.Message, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return octomap.Message{}, errors.Wrap(err, "bad octomap envelope")
	}
	return octomap.Message{
		FrameID:    env.FrameID,
		Stamp:      time.Unix(0, env.Stamp),
		ID:         env.ID,
		Binary:     env.Binary,
		Resolution: env.Resolution,
		Data:       env.Data,
	}, nil
}
