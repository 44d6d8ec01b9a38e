// Package pipeline runs depth frames through every stage, from stereo estimation to terrain
// change detection and material labeling.
package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/arsandbox/sandscape/components/camera"
	"github.com/arsandbox/sandscape/config"
	"github.com/arsandbox/sandscape/fusion"
	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/pointcloud"
	"github.com/arsandbox/sandscape/stereo"
	"github.com/arsandbox/sandscape/temporal"
	"github.com/arsandbox/sandscape/terrain"
	"github.com/arsandbox/sandscape/vision/material"
)

// Option configures optional pipeline behavior.
type Option func(*Pipeline)

// WithClock replaces the clock used to time cycles.
func WithClock(clk clock.Clock) Option {
	return func(p *Pipeline) {
		p.clk = clk
	}
}

// A Pipeline owns the per-rig state: the temporal history and the previous terrain grid. Build one
// per camera rig. A Pipeline is not safe for concurrent use; frames must be processed one at a
// time in arrival order.
type Pipeline struct {
	id          string
	cfg         *config.Config
	logger      logging.Logger
	clk         clock.Clock
	frameBudget time.Duration

	stereo     *stereo.Estimator
	fusion     *fusion.Engine
	temporal   *temporal.Filter
	projector  *pointcloud.Projector
	terrain    *terrain.Interpolator
	change     *terrain.ChangeDetector
	voxelizer  *pointcloud.Voxelizer
	classifier *material.Classifier

	lastTerrain *terrain.Grid
}

// New builds every stage from cfg. Any configuration problem is returned here; nothing later is
// fatal.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline needs a config")
	}
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	id := uuid.NewString()
	logger = logger.WithFields("rig", id)
	p := &Pipeline{
		id:          id,
		cfg:         cfg,
		logger:      logger,
		clk:         clock.New(),
		frameBudget: time.Duration(cfg.FrameBudgetMS) * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.stereo, err = stereo.NewEstimator(cfg.Stereo, logger.Sublogger("stereo")); err != nil {
		return nil, err
	}
	intrinsics := cfg.Camera.IntrinsicParams
	if p.fusion, err = fusion.NewEngine(cfg.Fusion, logger.Sublogger("fusion"),
		fusion.WithPrimaryResolution(intrinsics.Width, intrinsics.Height)); err != nil {
		return nil, err
	}
	if p.temporal, err = temporal.NewFilter(cfg.Temporal, logger.Sublogger("temporal")); err != nil {
		return nil, err
	}
	if p.projector, err = pointcloud.NewProjector(cfg.Camera.IntrinsicParams, cfg.Projection, logger.Sublogger("projection")); err != nil {
		return nil, err
	}
	if p.terrain, err = terrain.NewInterpolator(cfg.Grid, logger.Sublogger("terrain")); err != nil {
		return nil, err
	}
	if p.change, err = terrain.NewChangeDetector(cfg.Change, logger.Sublogger("change")); err != nil {
		return nil, err
	}
	if p.voxelizer, err = pointcloud.NewVoxelizer(cfg.Voxel, logger.Sublogger("voxel")); err != nil {
		return nil, err
	}
	if p.classifier, err = material.NewClassifier(cfg.Material, logger.Sublogger("material")); err != nil {
		return nil, err
	}
	return p, nil
}

// ID identifies this pipeline instance in logs.
func (p *Pipeline) ID() string {
	return p.id
}

// Reset drops the temporal history, the change baseline and the last terrain grid.
func (p *Pipeline) Reset() {
	p.temporal.Reset()
	p.change.Reset()
	p.lastTerrain = nil
}

// Process runs one cycle. It never fails: stages without input or with too little data report a
// status and the stages after them are skipped.
func (p *Pipeline) Process(frames camera.Frames) Result {
	start := p.clk.Now()
	res := Result{Timestamp: start, Status: make(map[Stage]Status, len(Stages))}
	for _, s := range Stages {
		res.Status[s] = StatusSkipped
	}
	if frames.Depth != nil && !frames.Depth.Timestamp.IsZero() {
		res.Timestamp = frames.Depth.Timestamp
	}

	if frames.Left != nil || frames.Right != nil {
		var err error
		res.Stereo, err = p.stereo.Estimate(frames.Left, frames.Right)
		p.record(&res, StageStereo, err)
	}

	fused, err := p.fusion.Fuse(frames.Depth, res.Stereo)
	p.record(&res, StageFusion, err)
	res.Fused = fused

	// a held frame was already projected and compared on the cycle that produced it
	res.Filtered = p.temporal.Apply(fused)
	if res.Filtered != nil && !p.temporal.Held() {
		res.Status[StageTemporal] = StatusOK
		res.Cloud, err = p.projector.Project(res.Filtered, frames.Color)
		p.record(&res, StageProjection, err)
	} else {
		res.Status[StageTemporal] = StatusMissingInput
	}

	if res.Cloud != nil {
		res.Terrain, err = p.terrain.Interpolate(res.Cloud)
		p.record(&res, StageTerrain, err)
	}
	if res.Terrain != nil {
		p.lastTerrain = res.Terrain
		res.Changes, err = p.change.Detect(res.Terrain)
		p.record(&res, StageChange, err)
		if res.Changes != nil {
			intrinsics := p.cfg.Camera.IntrinsicParams.Scaled(res.Filtered.Width(), res.Filtered.Height())
			res.ChangeRegion, _ = res.Changes.PixelBounds(res.Terrain, intrinsics)
		}
	} else if p.lastTerrain != nil {
		res.Terrain = p.lastTerrain
		res.TerrainStale = true
	}

	if res.Cloud != nil && p.cfg.Voxel.Enabled {
		res.Voxels, err = p.voxelizer.Voxelize(res.Cloud)
		p.record(&res, StageVoxel, err)
		if res.Voxels != nil {
			res.Materials, err = p.classifier.Classify(res.Voxels)
			p.record(&res, StageMaterial, err)
		}
	}

	res.Duration = p.clk.Since(start)
	if p.frameBudget > 0 && res.Duration > p.frameBudget {
		p.logger.Warnw("frame processing overran budget",
			"duration", res.Duration, "budget", p.frameBudget, "timestamp", res.Timestamp)
	}
	return res
}

func (p *Pipeline) record(res *Result, stage Stage, err error) {
	status := statusOf(err)
	res.Status[stage] = status
	if err != nil {
		p.logger.Debugw("no update", "stage", stage, "status", status, "timestamp", res.Timestamp, "reason", err)
	}
}

// Run processes frames from src until it returns io.EOF or ctx is done, handing each result to
// fn. Frames are processed synchronously; a slow cycle delays the next read rather than queueing.
// An error from src other than io.EOF, or from fn, stops the loop and is returned.
func (p *Pipeline) Run(ctx context.Context, src camera.Source, fn func(Result) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		frames, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to read frames")
		}
		res := p.Process(frames)
		if fn == nil {
			continue
		}
		if err := fn(res); err != nil {
			return err
		}
	}
}
