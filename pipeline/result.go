package pipeline

import (
	"image"
	"time"

	"github.com/pkg/errors"

	"github.com/arsandbox/sandscape/fusion"
	"github.com/arsandbox/sandscape/pointcloud"
	"github.com/arsandbox/sandscape/rimage"
	"github.com/arsandbox/sandscape/terrain"
	"github.com/arsandbox/sandscape/utils"
	"github.com/arsandbox/sandscape/vision/material"
)

// Stage names one step of the pipeline.
type Stage string

// The pipeline stages in the order they run.
const (
	StageStereo     = Stage("stereo")
	StageFusion     = Stage("fusion")
	StageTemporal   = Stage("temporal")
	StageProjection = Stage("projection")
	StageTerrain    = Stage("terrain")
	StageChange     = Stage("change")
	StageVoxel      = Stage("voxel")
	StageMaterial   = Stage("material")
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageStereo, StageFusion, StageTemporal, StageProjection,
	StageTerrain, StageChange, StageVoxel, StageMaterial,
}

// Status is the outcome of one stage in one cycle.
type Status int

// The outcomes a stage can have. Everything but StatusOK means the stage produced no update.
const (
	StatusOK Status = iota
	StatusMissingInput
	StatusInsufficientData
	StatusShapeMismatch
	// StatusSkipped means the stage did not run because an earlier stage produced nothing or the
	// stage is disabled.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMissingInput:
		return "missing_input"
	case StatusInsufficientData:
		return "insufficient_data"
	case StatusShapeMismatch:
		return "shape_mismatch"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// statusOf maps a stage error to its status. Only the no-update sentinels are expected here.
func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, utils.ErrMissingInput):
		return StatusMissingInput
	case errors.Is(err, utils.ErrInsufficientData):
		return StatusInsufficientData
	case errors.Is(err, utils.ErrShapeMismatch):
		return StatusShapeMismatch
	}
	return StatusSkipped
}

// Result is everything one cycle produced. A nil field means that stage had no update; Status
// says why.
type Result struct {
	Timestamp time.Time
	Stereo    *rimage.DepthMap
	Fused     *fusion.Frame
	// Filtered is the temporally filtered frame. When it is held over from an earlier cycle the
	// temporal status is missing_input and nothing after it runs again.
	Filtered *fusion.Frame
	Cloud    *pointcloud.PointCloud
	// Terrain is the newest grid. When this cycle produced none it is the last good grid and
	// TerrainStale is set.
	Terrain      *terrain.Grid
	TerrainStale bool
	Changes      *terrain.ChangeMap
	// ChangeRegion is the pixel box of the filtered frame covering every significantly changed
	// node. It is empty when nothing changed.
	ChangeRegion image.Rectangle
	Voxels       *pointcloud.VoxelGrid
	Materials    *material.Grid

	Status   map[Stage]Status
	Duration time.Duration
}

// OK reports whether the stage produced an update.
func (r *Result) OK(stage Stage) bool {
	return r.Status[stage] == StatusOK
}
