package heatmap

import "errors"

// Fatal errors abort the whole run.
var (
	ErrSchema          = errors.New("survey schema error")
	ErrMissingField    = errors.New("survey record missing field")
	ErrDegenerateImage = errors.New("degenerate image")
)

// Per-metric errors skip one metric and let the others proceed.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrHolePattern      = errors.New("data has holes")
	ErrSingularSystem   = errors.New("singular interpolation system")
	ErrInvalidRange     = errors.New("invalid threshold range")
)

// SkipReason explains why a metric produced no heatmap
type SkipReason string

const (
	SkipNone             SkipReason = ""
	SkipInsufficientData SkipReason = "insufficient_data"
	SkipHolePattern      SkipReason = "hole_pattern"
	SkipSingularSystem   SkipReason = "singular_system"
	SkipInvalidRange     SkipReason = "invalid_range"
)

// SkipReasonFor maps a per-metric error onto its skip reason.
// Errors outside the per-metric taxonomy return SkipNone.
func SkipReasonFor(err error) SkipReason {
	switch {
	case err == nil:
		return SkipNone
	case errors.Is(err, ErrHolePattern):
		return SkipHolePattern
	case errors.Is(err, ErrSingularSystem):
		return SkipSingularSystem
	case errors.Is(err, ErrInvalidRange):
		return SkipInvalidRange
	case errors.Is(err, ErrInsufficientData):
		return SkipInsufficientData
	}
	return SkipNone
}
