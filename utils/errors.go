package utils

import (
	"image"

	"github.com/pkg/errors"
)

// The three runtime conditions a stage can report instead of an update. None of them is fatal: a
// stage that returns one of these produced nothing this cycle and the caller keeps its previous
// output.
var (
	// ErrMissingInput is returned when a required frame or grid is absent this cycle.
	ErrMissingInput = errors.New("missing input")
	// ErrInsufficientData is returned when the valid samples fall below a usable minimum.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrShapeMismatch is returned when two frames or grids expected to align do not.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// NewMissingInputError is used when the named input is absent.
func NewMissingInputError(what string) error {
	return errors.Wrapf(ErrMissingInput, "%s", what)
}

// NewInsufficientDataError is used when fewer valid samples than needed were found.
func NewInsufficientDataError(what string, have, need int) error {
	return errors.Wrapf(ErrInsufficientData, "%s: have %d, need %d", what, have, need)
}

// NewShapeMismatchError is used when two shapes that should be identical are not.
func NewShapeMismatchError(what string, expected, actual image.Point) error {
	return errors.Wrapf(ErrShapeMismatch, "%s: expected (%d,%d) but got (%d,%d)",
		what, expected.X, expected.Y, actual.X, actual.Y)
}

// IsNoUpdate returns true if err is one of the "no update this cycle" conditions rather than a
// configuration or programming error.
func IsNoUpdate(err error) bool {
	return errors.Is(err, ErrMissingInput) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrShapeMismatch)
}
