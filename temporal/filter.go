// Package temporal removes per-frame shot noise by combining a short history of fused frames.
package temporal

import (
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/stat"

	"github.com/arsandbox/sandscape/fusion"
	"github.com/arsandbox/sandscape/logging"
)

// Mode is the per-cell statistic taken across the history.
type Mode string

// The supported statistics.
const (
	ModeMedian = Mode("median")
	ModeMean   = Mode("mean")
)

// Config are the attributes of a temporal filter.
type Config struct {
	WindowSize int `json:"window_size"`
	// MinFrames is how many frames must be held before the statistic replaces pass-through.
	MinFrames int  `json:"min_frames"`
	Mode      Mode `json:"mode"`
}

// DefaultConfig returns the filter defaults.
func DefaultConfig() Config {
	return Config{WindowSize: 5, MinFrames: 3, Mode: ModeMedian}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	var errs error
	if cfg.WindowSize < 1 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("window_size must be at least 1, got %d", cfg.WindowSize)))
	}
	if cfg.MinFrames < 1 {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("min_frames must be at least 1, got %d", cfg.MinFrames)))
	}
	if !lo.Contains([]Mode{ModeMedian, ModeMean}, cfg.Mode) {
		errs = multierr.Append(errs, goutils.NewConfigValidationError(path,
			errors.Errorf("mode must be %q or %q, got %q", ModeMedian, ModeMean, cfg.Mode)))
	}
	return errs
}

// Filter holds a bounded FIFO of fused frames and emits one denoised frame per input.
// It is not safe for concurrent use.
type Filter struct {
	cfg       Config
	minFrames int
	logger    logging.Logger

	history []*fusion.Frame
	last    *fusion.Frame
	held    bool
}

// NewFilter returns a temporal filter for the given config. A min_frames larger than the window
// is lowered to the window size.
func NewFilter(cfg Config, logger logging.Logger) (*Filter, error) {
	if err := cfg.Validate("temporal"); err != nil {
		return nil, err
	}
	minFrames := cfg.MinFrames
	if minFrames > cfg.WindowSize {
		logger.Warnw("min_frames exceeds window_size, using window_size",
			"min_frames", cfg.MinFrames, "window_size", cfg.WindowSize)
		minFrames = cfg.WindowSize
	}
	return &Filter{cfg: cfg, minFrames: minFrames, logger: logger}, nil
}

// Len returns the number of frames currently held.
func (f *Filter) Len() int {
	return len(f.history)
}

// Reset drops the history and the last output.
func (f *Filter) Reset() {
	f.history = nil
	f.last = nil
	f.held = false
}

// Held reports whether the most recent Apply returned a previous output instead of a new one.
func (f *Filter) Held() bool {
	return f.held
}

// Apply adds a frame to the history and returns the filtered result. A nil or blank frame is not
// added and the previous output is returned again; that is nil until something was emitted.
// A frame whose size differs from the history's starts a new history.
func (f *Filter) Apply(frame *fusion.Frame) *fusion.Frame {
	if frame == nil || !frame.HasData() {
		f.logger.Debug("blank frame, holding previous output")
		f.held = f.last != nil
		return f.last
	}
	f.held = false
	if len(f.history) > 0 && f.history[0].Size() != frame.Size() {
		f.logger.Debugw("frame size changed, resetting history",
			"was", f.history[0].Size(), "now", frame.Size())
		f.history = nil
	}
	f.history = append(f.history, frame)
	if len(f.history) > f.cfg.WindowSize {
		f.history = f.history[len(f.history)-f.cfg.WindowSize:]
	}

	if len(f.history) < f.minFrames {
		f.last = frame.Clone()
		return f.last
	}

	out := fusion.NewFrame(frame.Width(), frame.Height())
	out.PrimaryWeight = frame.PrimaryWeight
	out.Timestamp = frame.Timestamp
	out.SensorID = frame.SensorID
	values := make([]float64, 0, len(f.history))
	for i := range out.Data {
		values = values[:0]
		var src fusion.Source
		for _, h := range f.history {
			if v := h.Data[i]; v != 0 {
				values = append(values, v)
				src |= h.Sources[i]
			}
		}
		if len(values) == 0 {
			continue
		}
		out.Data[i] = f.combine(values)
		out.Sources[i] = src
	}
	f.last = out
	return out
}

func (f *Filter) combine(values []float64) float64 {
	if f.cfg.Mode == ModeMean {
		return stat.Mean(values, nil)
	}
	median, err := stats.Median(values)
	if err != nil {
		return 0
	}
	return median
}
