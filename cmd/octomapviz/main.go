// Package main contains a command to watch an octomap topic and log the
// point batches it produces.
package main

import (
	"context"
	"os"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/num/quat"
	"gopkg.in/yaml.v3"

	"github.com/viam-labs/octomapviz/display"
	"github.com/viam-labs/octomapviz/mqttsub"
)

var logger = golog.NewDevelopmentLogger("octomapviz")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

// Arguments for the command.
type Arguments struct {
	ConfigFile string `flag:"0,required,usage=path to YAML config"`
}

// fileConfig is the on-disk YAML shape.
type fileConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Topic          string        `yaml:"topic"`
	QueueSize      int           `yaml:"queue_size"`
	MaxTreeDepth   int           `yaml:"max_tree_depth"`
	RenderMode     string        `yaml:"render_mode"`
	ColorMode      string        `yaml:"color_mode"`
	ColorFactor    float64       `yaml:"color_factor"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) (err error) {
	var argsParsed Arguments
	if err := utils.ParseFlags(args, &argsParsed); err != nil {
		return err
	}

	raw, err := os.ReadFile(argsParsed.ConfigFile)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return errors.Wrap(err, "invalid config file")
	}

	conf := display.Config{
		Topic:        fc.Topic,
		QueueSize:    fc.QueueSize,
		MaxTreeDepth: fc.MaxTreeDepth,
		ColorFactor:  fc.ColorFactor,
	}
	if conf.RenderMode, err = parseRenderMode(fc.RenderMode); err != nil {
		return err
	}
	if conf.ColorMode, err = parseColorMode(fc.ColorMode); err != nil {
		return err
	}
	interval := fc.UpdateInterval
	if interval == 0 {
		interval = 100 * time.Millisecond
	}

	sub, err := mqttsub.New(mqttsub.Options{
		Broker:   fc.Broker,
		ClientID: fc.ClientID,
		Username: fc.Username,
		Password: fc.Password,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, sub.Close())
	}()

	disp, err := display.New(conf, &logRenderer{logger: logger}, identityTransforms{}, sub, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, disp.Close(context.Background()))
	}()

	if err := disp.Enable(); err != nil {
		return err
	}
	logger.Infow("watching octomap topic", "topic", fc.Topic, "broker", fc.Broker)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		disp.RunUpdates(gCtx, interval)
		return nil
	})
	g.Go(func() error {
		statsTicker := time.NewTicker(10 * time.Second)
		defer statsTicker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-statsTicker.C:
				stats := disp.Stats()
				logger.Infow("octomap status",
					"messages", stats.MessagesReceived, "last_error", stats.LastError)
			}
		}
	})
	return g.Wait()
}

func parseRenderMode(s string) (display.RenderMode, error) {
	switch s {
	case "", "occupied":
		return display.RenderOccupied, nil
	case "free":
		return display.RenderFree, nil
	case "all":
		return display.RenderAll, nil
	default:
		return 0, errors.Errorf("unknown render_mode %q", s)
	}
}

func parseColorMode(s string) (display.ColorMode, error) {
	switch s {
	case "", "texture":
		return display.ColorTexture, nil
	case "height":
		return display.ColorHeight, nil
	case "probability":
		return display.ColorProbability, nil
	default:
		return 0, errors.Errorf("unknown color_mode %q", s)
	}
}

// logRenderer is a PointRenderer that logs batch summaries instead of
// drawing them.
type logRenderer struct {
	logger golog.Logger
}

func (r *logRenderer) SetPose(pose display.Pose) {
	r.logger.Debugw("octomap pose", "position", pose.Position)
}

func (r *logRenderer) SetBatch(depth int, edge float64, points []display.RenderPoint) {
	if len(points) == 0 {
		return
	}
	r.logger.Infow("octomap batch", "depth", depth, "edge", edge, "points", len(points))
}

func (r *logRenderer) Clear() {
	r.logger.Debugw("octomap cleared")
}

// identityTransforms answers every frame lookup with the identity pose.
type identityTransforms struct{}

func (identityTransforms) Pose(string, time.Time) (display.Pose, error) {
	return display.Pose{Orientation: quat.Number{Real: 1}}, nil
}
