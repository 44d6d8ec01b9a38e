package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/mat"

	"github.com/arsandbox/sandscape/components/camera"
	"github.com/arsandbox/sandscape/components/camera/fake"
	"github.com/arsandbox/sandscape/components/camera/replaydepth"
	"github.com/arsandbox/sandscape/config"
	"github.com/arsandbox/sandscape/logging"
	"github.com/arsandbox/sandscape/pipeline"
	"github.com/arsandbox/sandscape/pointcloud"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String(flagConfig); path != "" {
		return config.Read(path)
	}
	cfg := config.Default()
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(c *cli.Context, cfg *config.Config) (logging.Logger, func()) {
	level := cfg.LogLevel
	if c.Bool(flagDebug) {
		level = logging.DEBUG
	}
	if path := c.String(flagLogFile); path != "" {
		logger, closer := logging.NewFileLogger("sandscape", path, 10, level)
		return logger, func() {
			goutils.UncheckedError(logger.Sync())
			goutils.UncheckedError(closer.Close())
		}
	}
	logger := logging.NewLogger("sandscape")
	logger.SetLevel(level)
	return logger, func() { goutils.UncheckedError(logger.Sync()) }
}

func openSource(c *cli.Context, cfg *config.Config, logger logging.Logger) (camera.Source, error) {
	if patterns := c.StringSlice(flagReplay); len(patterns) > 0 {
		src, err := replaydepth.NewSource(patterns, c.Bool(flagLoop), logger.Sublogger("replay"))
		if err != nil {
			return nil, err
		}
		logger.Infow("replaying depth maps", "count", src.Len())
		return src, nil
	}
	camCfg := fake.DefaultConfig()
	camCfg.Width = c.Int(flagWidth)
	camCfg.Height = c.Int(flagHeight)
	camCfg.BlockSize = min(camCfg.BlockSize, camCfg.Width, camCfg.Height)
	camCfg.BlockSpeed = 2
	camCfg.Frames = c.Int(flagFrames)
	camCfg.Seed = c.Int64(flagSeed)
	if c.Bool(flagStereo) {
		camCfg.Stereo = true
		camCfg.StereoFocalPx = cfg.Stereo.FocalLength
		camCfg.StereoBaselineM = cfg.Stereo.BaselineM
	}
	cam, err := fake.NewCamera(camCfg, clock.New())
	if err != nil {
		return nil, err
	}
	logger.Infow("rendering synthetic rig", "sensor", cam.SensorID(), "width", camCfg.Width, "height", camCfg.Height)
	return cam, nil
}

// reporter prints one line per cycle and paces cycles when a rate is set.
type reporter struct {
	c      *cli.Context
	ticker *clock.Ticker
	frames int
	last   pipeline.Result
	counts map[pipeline.Stage]map[pipeline.Status]int
}

func newReporter(c *cli.Context, clk clock.Clock) *reporter {
	r := &reporter{c: c, counts: make(map[pipeline.Stage]map[pipeline.Status]int, len(pipeline.Stages))}
	for _, stage := range pipeline.Stages {
		r.counts[stage] = map[pipeline.Status]int{}
	}
	if fps := c.Float64(flagFPS); fps > 0 {
		r.ticker = clk.Ticker(time.Duration(float64(time.Second) / fps))
	}
	return r
}

func (r *reporter) report(ctx context.Context, res pipeline.Result) error {
	r.frames++
	r.last = res
	for stage, status := range res.Status {
		r.counts[stage][status]++
	}
	fmt.Fprintf(r.c.App.Writer, "frame %d: %s\n", r.frames, summarize(res))
	if r.ticker == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ticker.C:
		return nil
	}
}

// table renders how often each stage ended in each status.
func (r *reporter) table() {
	statuses := []pipeline.Status{
		pipeline.StatusOK, pipeline.StatusMissingInput, pipeline.StatusInsufficientData,
		pipeline.StatusShapeMismatch, pipeline.StatusSkipped,
	}
	t := table.NewWriter()
	t.SetOutputMirror(r.c.App.Writer)
	header := table.Row{"Stage"}
	for _, s := range statuses {
		header = append(header, s.String())
	}
	t.AppendHeader(header)
	for _, stage := range pipeline.Stages {
		row := table.Row{string(stage)}
		for _, s := range statuses {
			row = append(row, r.counts[stage][s])
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"frames", r.frames})
	t.Render()
}

func (r *reporter) stop() {
	if r.ticker != nil {
		r.ticker.Stop()
	}
}

func summarize(res pipeline.Result) string {
	var parts []string
	for _, stage := range pipeline.Stages {
		if s := res.Status[stage]; s != pipeline.StatusOK && s != pipeline.StatusSkipped {
			parts = append(parts, fmt.Sprintf("%s=%s", stage, s))
		}
	}
	if res.Filtered != nil {
		if lo, hi := res.Filtered.ToDepthMap().MinMax(); hi > 0 {
			parts = append(parts, fmt.Sprintf("depth=%d-%dmm", lo, hi))
		}
	}
	if res.Terrain != nil {
		rows, cols := res.Terrain.Dims()
		parts = append(parts, fmt.Sprintf("terrain=%dx%d", cols, rows))
		if res.TerrainStale {
			parts = append(parts, "stale")
		}
	}
	if res.Changes != nil {
		parts = append(parts, fmt.Sprintf("changed=%d max_change=%.4fm", res.Changes.ChangedCells, res.Changes.MaxChange))
	}
	if !res.ChangeRegion.Empty() {
		parts = append(parts, "region="+res.ChangeRegion.String())
	}
	if res.Materials != nil {
		counts := res.Materials.Counts()
		names := make([]string, 0, len(counts))
		for m, n := range counts {
			names = append(names, fmt.Sprintf("%s:%d", m, n))
		}
		sort.Strings(names)
		parts = append(parts, "materials="+strings.Join(names, ","))
	}
	parts = append(parts, "took="+res.Duration.String())
	return strings.Join(parts, " ")
}

// RunAction is the corresponding action for 'run'.
func RunAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger, closeLogger := newLogger(c, cfg)
	defer closeLogger()

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	src, err := openSource(c, cfg, logger)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(src.Close)

	r := newReporter(c, clock.New())
	defer r.stop()
	if err := p.Run(c.Context, src, func(res pipeline.Result) error {
		return r.report(c.Context, res)
	}); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	r.table()

	if out := c.String(flagCloudOut); out != "" {
		if r.last.Cloud == nil {
			return errors.New("no point cloud was produced")
		}
		if err := pointcloud.WriteToPCDFile(r.last.Cloud, out); err != nil {
			return errors.Wrap(err, "failed to write point cloud")
		}
		info, err := os.Stat(out)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "wrote %d points (%s) to %s\n",
			r.last.Cloud.Size(), units.HumanSize(float64(info.Size())), out)
	}
	return nil
}

// WatchAction is the corresponding action for 'watch'. The frame source survives reconfiguration;
// the pipeline, and with it the temporal history and change baseline, is rebuilt.
func WatchAction(c *cli.Context) error {
	path := c.String(flagConfig)
	if path == "" {
		return errors.New("watch needs --config")
	}
	cfg, err := config.Read(path)
	if err != nil {
		return err
	}
	logger, closeLogger := newLogger(c, cfg)
	defer closeLogger()

	w, err := config.NewWatcher(c.Context, path, logger.Sublogger("config"))
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(w.Close)

	src, err := openSource(c, cfg, logger)
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(src.Close)

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	r := newReporter(c, clock.New())
	defer r.stop()
	for {
		runCtx, cancel := context.WithCancel(c.Context)
		done := make(chan error, 1)
		current := p
		goutils.PanicCapturingGo(func() {
			done <- current.Run(runCtx, src, func(res pipeline.Result) error {
				return r.report(runCtx, res)
			})
		})

		select {
		case err := <-done:
			cancel()
			r.table()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case newCfg := <-w.Config():
			cancel()
			<-done
			next, err := pipeline.New(newCfg, logger)
			if err != nil {
				logger.Errorw("keeping previous pipeline", "error", err)
				continue
			}
			if !c.Bool(flagDebug) {
				logger.SetLevel(newCfg.LogLevel)
			}
			logger.Infow("config changed, pipeline rebuilt", "rig", next.ID())
			p = next
		}
	}
}

// ValidateAction is the corresponding action for 'validate'.
func ValidateAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	md, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(md))
	return nil
}

// IntrinsicsAction is the corresponding action for 'intrinsics'. It prints the JSON form followed
// by the camera matrix.
func IntrinsicsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	intrinsics := cfg.Camera.IntrinsicParams
	width, height := c.Int(flagWidth), c.Int(flagHeight)
	if width != 0 || height != 0 {
		if width <= 0 || height <= 0 {
			return errors.Errorf("both --%s and --%s must be positive", flagWidth, flagHeight)
		}
		intrinsics = intrinsics.Scaled(width, height)
	}
	md, err := json.MarshalIndent(intrinsics, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(md))
	fmt.Fprintf(c.App.Writer, "camera matrix:\n%v\n", mat.Formatted(intrinsics.GetCameraMatrix()))
	return nil
}

// RecordAction is the corresponding action for 'record'.
func RecordAction(c *cli.Context) error {
	dir := c.String(flagOut)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	camCfg := fake.DefaultConfig()
	camCfg.Width = c.Int(flagWidth)
	camCfg.Height = c.Int(flagHeight)
	camCfg.BlockSize = min(camCfg.BlockSize, camCfg.Width, camCfg.Height)
	camCfg.BlockSpeed = 2
	camCfg.Color = false
	cam, err := fake.NewCamera(camCfg, clock.New())
	if err != nil {
		return err
	}
	defer goutils.UncheckedErrorFunc(cam.Close)

	n := c.Int(flagFrames)
	for i := 0; i < n; i++ {
		frames, err := cam.Next(c.Context)
		if err != nil {
			return err
		}
		fn := filepath.Join(dir, fmt.Sprintf("depth_%05d.dat.gz", i))
		if err := frames.Depth.WriteToFile(fn); err != nil {
			return errors.Wrapf(err, "failed to write %q", fn)
		}
	}
	fmt.Fprintf(c.App.Writer, "recorded %d depth maps to %s\n", n, dir)
	return nil
}
