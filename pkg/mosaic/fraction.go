package mosaic

import (
	"math"
)

// FractionModel gives, for a trial mosaic spread, the fraction of each
// reflection's rocking curve recorded on the frame of each record.
//
// With e1 = (tau + dphi/2)|zeta|/sqrt(2) and e2 = (tau - dphi/2)|zeta|/sqrt(2)
// the fraction is (erf(e1/sigma_m) - erf(e2/sigma_m)) / 2.
type FractionModel struct {
	e1, e2 []float64
}

// NewFractionModel builds the observed-fraction model for the reflections
// of in, keeping frames that hold at least one valid foreground pixel
func NewFractionModel(in Input) (*FractionModel, error) {
	rec, err := newRecords(in.Scan, in.Reflections, observedFrames)
	if err != nil {
		return nil, err
	}
	return newFractionModel(rec), nil
}

func newFractionModel(rec *Records) *FractionModel {
	n := rec.Len()
	m := &FractionModel{
		e1: make([]float64, n),
		e2: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		z := math.Abs(rec.Zeta[i]) / math.Sqrt2
		m.e1[i] = (rec.Tau[i] + rec.HalfWidth) * z
		m.e2[i] = (rec.Tau[i] - rec.HalfWidth) * z
	}
	return m
}

// Len returns the number of records in the model
func (m *FractionModel) Len() int { return len(m.e1) }

// fractions writes the clamped observed fraction of every record into dst
func (m *FractionModel) fractions(sigma float64, dst []float64) error {
	if !(sigma > Tiny) {
		return ErrInvalidParameter
	}
	clamped := 0
	for i := range m.e1 {
		r := (math.Erf(m.e1[i]/sigma) - math.Erf(m.e2[i]/sigma)) / 2
		if !(r >= Tiny) {
			r = Tiny
			clamped++
		}
		dst[i] = r
	}
	if clamped == len(m.e1) {
		return ErrAllFractionsDegenerate
	}
	return nil
}

// LogFraction returns the logarithm of the observed fraction of every
// record for the trial mosaic spread sigma (radians). Fractions below Tiny
// are clamped to Tiny first, so every value lies in [log(Tiny), 0].
func (m *FractionModel) LogFraction(sigma float64) ([]float64, error) {
	out := make([]float64, len(m.e1))
	if err := m.fractions(sigma, out); err != nil {
		return nil, err
	}
	for i, r := range out {
		out[i] = math.Log(r)
	}
	return out, nil
}

// sumLogFraction is LogFraction summed over all records without the
// intermediate allocation of the logarithms
func (m *FractionModel) sumLogFraction(sigma float64, buf []float64) (float64, error) {
	if err := m.fractions(sigma, buf); err != nil {
		return 0, err
	}
	sum := 0.0
	for _, r := range buf {
		sum += math.Log(r)
	}
	return sum, nil
}
