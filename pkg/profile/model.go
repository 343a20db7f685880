package profile

import (
	"gonum.org/v1/gonum/stat"

	"profilemodel/pkg/mosaic"
)

// Diagnostics describes how a profile model was obtained
type Diagnostics struct {
	// Reflections is the number of rows in the input table
	Reflections int `yaml:"reflections"`

	// DivergenceUsed is the number of reflections contributing to sigma_b
	DivergenceUsed int `yaml:"divergenceUsed"`

	// DivergenceSkipped is the number of degenerate reflections left out
	DivergenceSkipped int `yaml:"divergenceSkipped"`

	// ZetaAccepted is the number of reflections passing the zeta cut
	ZetaAccepted int `yaml:"zetaAccepted"`

	// MosaicRecords is the number of frame-slice records used for sigma_m
	MosaicRecords int `yaml:"mosaicRecords"`

	// Evaluations is the number of objective evaluations of the optimiser
	Evaluations int `yaml:"evaluations"`

	// Fallback holds the reason the basic algorithm fell back to the
	// moment estimator, empty when it did not
	Fallback string `yaml:"fallback,omitempty"`
}

// Model is a static profile model. It is immutable once computed.
type Model struct {
	sigmaB float64
	sigmaM float64
	method mosaic.Method
	diag   Diagnostics
}

// SigmaB returns the e.s.d. of the beam divergence in radians
func (m *Model) SigmaB() float64 { return m.sigmaB }

// SigmaM returns the e.s.d. of the mosaic spread in radians
func (m *Model) SigmaM() float64 { return m.sigmaM }

// Method returns the estimator that produced SigmaM
func (m *Model) Method() mosaic.Method { return m.method }

// Diagnostics returns how the model was obtained
func (m *Model) Diagnostics() Diagnostics { return m.diag }

// ScanVaryingModel holds smoothed per-frame profile parameters for every
// image of a scan. It is immutable once computed; accessors return copies.
type ScanVaryingModel struct {
	firstFrame int
	sigmaB     []float64
	sigmaM     []float64
	num        []int
}

// FirstFrame returns the array index of the first frame
func (m *ScanVaryingModel) FirstFrame() int { return m.firstFrame }

// Len returns the number of frames
func (m *ScanVaryingModel) Len() int { return len(m.sigmaB) }

// SigmaB returns the smoothed beam divergence per frame, radians
func (m *ScanVaryingModel) SigmaB() []float64 { return append([]float64(nil), m.sigmaB...) }

// SigmaM returns the smoothed mosaic spread per frame, radians
func (m *ScanVaryingModel) SigmaM() []float64 { return append([]float64(nil), m.sigmaM...) }

// Num returns the number of reflections used on each frame
func (m *ScanVaryingModel) Num() []int { return append([]int(nil), m.num...) }

// MeanSigmaB returns the mean of the smoothed beam divergence
func (m *ScanVaryingModel) MeanSigmaB() float64 { return mean(m.sigmaB) }

// MeanSigmaM returns the mean of the smoothed mosaic spread
func (m *ScanVaryingModel) MeanSigmaM() float64 { return mean(m.sigmaM) }

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}
