package profile

import (
	"fmt"
	"io"
	"log"
	"runtime"
	"strings"
)

// Algorithm selects the mosaic spread strategy of the static calculator
type Algorithm int

const (
	// AlgorithmBasic runs the likelihood estimator and falls back to the
	// moment estimator when it fails
	AlgorithmBasic Algorithm = iota

	// AlgorithmExtended runs the intensity weighted likelihood estimator
	// with no fallback
	AlgorithmExtended
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmBasic:
		return "basic"
	case AlgorithmExtended:
		return "extended"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// ParseAlgorithm converts "basic" or "extended" into an Algorithm
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic", "":
		return AlgorithmBasic, nil
	case "extended":
		return AlgorithmExtended, nil
	default:
		return 0, fmt.Errorf("profile: unknown algorithm %q (want basic or extended)", s)
	}
}

// DefaultMinZeta is the smallest |zeta| a reflection may have to take part
// in mosaic spread estimation
const DefaultMinZeta = 0.05

// ProgressCallback reports progress of a multi-step computation
type ProgressCallback func(completed, total int, message string)

// Options configures the calculators
type Options struct {
	// Algorithm selects the static mosaic spread strategy
	Algorithm Algorithm

	// MinZeta is the |zeta| cut applied before mosaic estimation
	MinZeta float64

	// MaxIterations caps each optimisation; zero uses the estimator default
	MaxIterations int

	// Workers bounds the number of concurrent frames or experiments
	Workers int

	// Logger receives progress messages; nil disables logging
	Logger *log.Logger

	// Progress is called as scan-varying frames complete; may be nil
	Progress ProgressCallback
}

// DefaultOptions returns the basic algorithm with the default zeta cut,
// using every available core
func DefaultOptions() Options {
	return Options{
		Algorithm: AlgorithmBasic,
		MinZeta:   DefaultMinZeta,
		Workers:   runtime.NumCPU(),
	}
}

// Validate rejects configurations that can never be valid
func (o Options) Validate() error {
	if o.MinZeta < 0 {
		return fmt.Errorf("profile: min_zeta must be >= 0, got %g", o.MinZeta)
	}
	if o.Algorithm != AlgorithmBasic && o.Algorithm != AlgorithmExtended {
		return fmt.Errorf("profile: invalid algorithm %v", o.Algorithm)
	}
	if o.MaxIterations < 0 {
		return fmt.Errorf("profile: max iterations must be >= 0, got %d", o.MaxIterations)
	}
	return nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return 1
}

// NewLogger returns a logger writing to w with the profile prefix, or nil
// when w is nil
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, "[profile] ", log.LstdFlags|log.Lmicroseconds)
}

func (o Options) logf(format string, args ...interface{}) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	}
}
