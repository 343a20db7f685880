// Package mosaic estimates the mosaic spread (sigma_m) of a rotation
// experiment from the rocking curves of its reflections.
//
// Three estimators share a single contract: a closed form moment
// estimator, a maximum likelihood estimator over the observed-fraction
// model and an intensity weighted extended likelihood estimator. Callers
// choose between them and decide on fallbacks; nothing in this package
// substitutes one estimator for another.
package mosaic

import (
	"errors"
	"fmt"

	"profilemodel/internal/models"
	"profilemodel/pkg/geometry"
)

// Method records which estimator produced a mosaic spread value
type Method int

const (
	MethodNone Method = iota
	MethodStill
	MethodMoment
	MethodLikelihood
	MethodExtended
)

func (m Method) String() string {
	switch m {
	case MethodStill:
		return "still"
	case MethodMoment:
		return "moment"
	case MethodLikelihood:
		return "likelihood"
	case MethodExtended:
		return "extended"
	default:
		return "none"
	}
}

// Tiny is the floor applied to observed fractions before taking logarithms,
// and the smallest mosaic spread the fraction model accepts
const Tiny = 1e-10

var (
	// ErrInvalidParameter is returned for a trial sigma_m <= Tiny
	ErrInvalidParameter = errors.New("mosaic: sigma_m must be greater than 1e-10")

	// ErrAllFractionsDegenerate is returned when every observed fraction
	// had to be clamped to Tiny, including the case of no records at all
	ErrAllFractionsDegenerate = errors.New("mosaic: every observed fraction is degenerate")

	// ErrNoScan is returned when an estimator is run without a scan
	ErrNoScan = errors.New("mosaic: a scan is required")
)

// EstimationFailedError is returned when an optimisation based estimator
// cannot produce a value
type EstimationFailedError struct {
	Method Method
	Reason string
	Err    error
}

func (e *EstimationFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mosaic: %s estimation failed: %s: %v", e.Method, e.Reason, e.Err)
	}
	return fmt.Sprintf("mosaic: %s estimation failed: %s", e.Method, e.Reason)
}

func (e *EstimationFailedError) Unwrap() error { return e.Err }

// Input is what every estimator consumes. Reflections must already be
// filtered by zeta and carry the zeta column.
type Input struct {
	Scan        geometry.Scan
	Reflections []models.Reflection
}

// Estimate is the result of one mosaic spread estimation
type Estimate struct {
	// Sigma is the e.s.d. of the mosaic spread in radians
	Sigma float64

	// Method is the estimator that produced Sigma
	Method Method

	// Records is the number of frame-slice records used
	Records int

	// Evaluations is the number of objective evaluations (optimisers only)
	Evaluations int

	// Iterations is the number of optimiser iterations (optimisers only)
	Iterations int
}

// Estimator is implemented by every mosaic spread strategy
type Estimator interface {
	Estimate(in Input) (Estimate, error)
}
