// Package cli contains the sandscape command line.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	flagConfig   = "config"
	flagDebug    = "debug"
	flagLogFile  = "log-file"
	flagFrames   = "frames"
	flagReplay   = "replay"
	flagLoop     = "loop"
	flagStereo   = "stereo"
	flagFPS      = "fps"
	flagCloudOut = "cloud-out"
	flagSeed     = "seed"
	flagWidth    = "width"
	flagHeight   = "height"
	flagOut      = "out"
)

var sourceFlags = []cli.Flag{
	&cli.IntFlag{
		Name:  flagFrames,
		Usage: "stop after `N` frames of the synthetic rig; 0 runs until interrupted",
	},
	&cli.StringSliceFlag{
		Name:  flagReplay,
		Usage: "replay depth maps matching `GLOB` instead of rendering a synthetic rig",
	},
	&cli.BoolFlag{
		Name:  flagLoop,
		Usage: "restart the replay when it ends",
	},
	&cli.BoolFlag{
		Name:  flagStereo,
		Usage: "also render a stereo pair from the synthetic rig",
	},
	&cli.IntFlag{
		Name:  flagWidth,
		Value: 320,
		Usage: "synthetic rig width in pixels",
	},
	&cli.IntFlag{
		Name:  flagHeight,
		Value: 240,
		Usage: "synthetic rig height in pixels",
	},
	&cli.Int64Flag{
		Name:  flagSeed,
		Usage: "seed for the synthetic stereo texture",
	},
	&cli.Float64Flag{
		Name:  flagFPS,
		Usage: "pace processing to at most `RATE` frames per second; 0 runs as fast as possible",
	},
}

// NewApp returns a new app with the sandscape commands, Writer set to out, and ErrWriter set to
// errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "sandscape",
		Usage:           "turn depth frames into terrain",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    flagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write JSON logs to `FILE`, rotated at 10MB",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "process frames and print a summary of each cycle",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  flagCloudOut,
						Usage: "write the last point cloud to `FILE` as PCD",
					},
				}, sourceFlags...),
				Action: RunAction,
			},
			{
				Name:   "watch",
				Usage:  "like run, rebuilding the pipeline whenever the config file changes",
				Flags:  sourceFlags,
				Action: WatchAction,
			},
			{
				Name:   "validate",
				Usage:  "check the configuration and print it with defaults filled in",
				Action: ValidateAction,
			},
			{
				Name:  "intrinsics",
				Usage: "print the depth camera intrinsics, optionally scaled to another resolution",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: flagWidth, Usage: "scale to `WIDTH` pixels"},
					&cli.IntFlag{Name: flagHeight, Usage: "scale to `HEIGHT` pixels"},
				},
				Action: IntrinsicsAction,
			},
			{
				Name:  "record",
				Usage: "render synthetic depth maps to files for later replay",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagOut, Required: true, Usage: "write depth maps into `DIR`"},
					&cli.IntFlag{Name: flagFrames, Value: 10, Usage: "number of frames to record"},
					&cli.IntFlag{Name: flagWidth, Value: 320, Usage: "width in pixels"},
					&cli.IntFlag{Name: flagHeight, Value: 240, Usage: "height in pixels"},
				},
				Action: RecordAction,
			},
		},
	}
}
