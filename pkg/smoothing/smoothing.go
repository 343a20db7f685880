// Package smoothing provides the discrete Gaussian smoothing applied to
// per-frame profile parameters.
package smoothing

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultKernelSize is the width of the smoothing kernel in samples
const DefaultKernelSize = 51

// ErrNoSamples is returned by FillGaps when no sample is marked valid
var ErrNoSamples = errors.New("smoothing: no valid samples")

// GaussianKernel returns a normalised Gaussian kernel of odd length n with
// a standard deviation of (n-1)/6 samples
func GaussianKernel(n int) ([]float64, error) {
	if n <= 0 || n%2 == 0 {
		return nil, fmt.Errorf("smoothing: kernel size must be odd and positive, got %d", n)
	}
	if n == 1 {
		return []float64{1}, nil
	}

	mid := n / 2
	sigma := float64(mid) / 3
	kernel := make([]float64, n)
	for i := range kernel {
		d := float64(i - mid)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(kernel), kernel)
	return kernel, nil
}

// Convolve returns data convolved with an odd length kernel. Indices
// falling outside the data reuse the nearest boundary sample.
func Convolve(data, kernel []float64) ([]float64, error) {
	if len(kernel)%2 == 0 {
		return nil, fmt.Errorf("smoothing: kernel length must be odd, got %d", len(kernel))
	}
	n := len(data)
	mid := len(kernel) / 2
	out := make([]float64, n)
	for i := range out {
		r := 0.0
		for j, w := range kernel {
			k := i - mid + j
			switch {
			case k < 0:
				k = 0
			case k >= n:
				k = n - 1
			}
			r += w * data[k]
		}
		out[i] = r
	}
	return out, nil
}

// Smooth convolves data with the default Gaussian kernel
func Smooth(data []float64) ([]float64, error) {
	kernel, err := GaussianKernel(DefaultKernelSize)
	if err != nil {
		return nil, err
	}
	return Convolve(data, kernel)
}

// FillGaps returns a copy of data in which samples with valid[i] false are
// replaced by linear interpolation between the nearest valid neighbours.
// Leading and trailing gaps take the value of the closest valid sample.
func FillGaps(data []float64, valid []bool) ([]float64, error) {
	if len(valid) != len(data) {
		return nil, fmt.Errorf("smoothing: %d validity flags for %d samples", len(valid), len(data))
	}
	out := make([]float64, len(data))
	copy(out, data)

	prev := -1
	for i := range out {
		if !valid[i] {
			continue
		}
		switch {
		case prev < 0:
			for k := 0; k < i; k++ {
				out[k] = out[i]
			}
		case i-prev > 1:
			step := (out[i] - out[prev]) / float64(i-prev)
			for k := prev + 1; k < i; k++ {
				out[k] = out[prev] + step*float64(k-prev)
			}
		}
		prev = i
	}
	if prev < 0 {
		return nil, ErrNoSamples
	}
	for k := prev + 1; k < len(out); k++ {
		out[k] = out[prev]
	}
	return out, nil
}
