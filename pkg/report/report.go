// Package report writes a YAML summary of a computed profile model
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/soniakeys/unit"
	"gopkg.in/yaml.v3"

	"profilemodel/pkg/profile"
)

// Report is the serialised summary of one run. Angles are in degrees.
type Report struct {
	RunID       string    `yaml:"runId"`
	Created     time.Time `yaml:"created"`
	Algorithm   string    `yaml:"algorithm"`
	ScanVarying bool      `yaml:"scanVarying"`

	SigmaB float64 `yaml:"sigmaB"`
	SigmaM float64 `yaml:"sigmaM"`
	Method string  `yaml:"method,omitempty"`

	Diagnostics *profile.Diagnostics `yaml:"diagnostics,omitempty"`
	Frames      []Frame              `yaml:"frames,omitempty"`
	Truth       *Truth               `yaml:"truth,omitempty"`
}

// Frame is the smoothed model of one image
type Frame struct {
	Index       int     `yaml:"index"`
	SigmaB      float64 `yaml:"sigmaB"`
	SigmaM      float64 `yaml:"sigmaM"`
	Reflections int     `yaml:"reflections"`
}

// Truth holds the values a simulated experiment was generated with
type Truth struct {
	SigmaB float64 `yaml:"sigmaB"`
	SigmaM float64 `yaml:"sigmaM"`
}

func newReport(alg profile.Algorithm) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Created:   time.Now().UTC(),
		Algorithm: alg.String(),
	}
}

// FromModel summarises a static model
func FromModel(m *profile.Model, alg profile.Algorithm) *Report {
	r := newReport(alg)
	r.SigmaB = unit.Angle(m.SigmaB()).Deg()
	r.SigmaM = unit.Angle(m.SigmaM()).Deg()
	r.Method = m.Method().String()
	diag := m.Diagnostics()
	r.Diagnostics = &diag
	return r
}

// FromScanVarying summarises a scan-varying model; SigmaB and SigmaM hold
// the means over all frames
func FromScanVarying(m *profile.ScanVaryingModel) *Report {
	r := newReport(profile.AlgorithmBasic)
	r.ScanVarying = true
	r.SigmaB = unit.Angle(m.MeanSigmaB()).Deg()
	r.SigmaM = unit.Angle(m.MeanSigmaM()).Deg()

	sigmaB, sigmaM, num := m.SigmaB(), m.SigmaM(), m.Num()
	r.Frames = make([]Frame, m.Len())
	for i := range r.Frames {
		r.Frames[i] = Frame{
			Index:       m.FirstFrame() + i,
			SigmaB:      unit.Angle(sigmaB[i]).Deg(),
			SigmaM:      unit.Angle(sigmaM[i]).Deg(),
			Reflections: num[i],
		}
	}
	return r
}

// WithTruth records the simulated values, given in radians
func (r *Report) WithTruth(sigmaB, sigmaM float64) *Report {
	r.Truth = &Truth{
		SigmaB: unit.Angle(sigmaB).Deg(),
		SigmaM: unit.Angle(sigmaM).Deg(),
	}
	return r
}

// Encode writes the report as YAML to w
func (r *Report) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("error encoding report: %w", err)
	}
	return enc.Close()
}

// Save writes the report to path, creating the directory if needed
func (r *Report) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating report file: %w", err)
	}
	if err := r.Encode(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error closing report file: %w", err)
	}
	return nil
}

// Load reads a report written by Save
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading report: %w", err)
	}
	r := &Report{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("error parsing report: %w", err)
	}
	return r, nil
}
