package message

import (
	"errors"
	"fmt"
	"slices"
)

// ErrLengthMismatch indicates sample series of different non-zero lengths.
var ErrLengthMismatch = errors.New("sample series length mismatch")

// Sample is one measurement series: the scattering vector q, the intensity and the
// optional uncertainty of every point, identified by ID.
//
// A Sample is immutable; accessors return copies.
type Sample struct {
	id          string
	q           []float64
	intensity   []float64
	uncertainty []float64
}

// NewSample validates and copies the series. All non-empty series must share one length;
// the uncertainty series may be empty.
func NewSample(id string, q, intensity, uncertainty []float64) (*Sample, error) {
	n := -1
	for _, s := range [][]float64{q, intensity, uncertainty} {
		if len(s) == 0 {
			continue
		}
		if n >= 0 && len(s) != n {
			return nil, fmt.Errorf("%w: sample %q has q=%d intensity=%d uncertainty=%d",
				ErrLengthMismatch, id, len(q), len(intensity), len(uncertainty))
		}
		n = len(s)
	}

	return &Sample{
		id:          id,
		q:           cloneSeries(q),
		intensity:   cloneSeries(intensity),
		uncertainty: cloneSeries(uncertainty),
	}, nil
}

// EmptySample returns a Sample with no identifier and empty series.
func EmptySample() *Sample {
	return &Sample{}
}

// ID returns the sample identifier.
func (s *Sample) ID() string { return s.id }

// Q returns a copy of the scattering vector series.
func (s *Sample) Q() []float64 { return slices.Clone(s.q) }

// Intensity returns a copy of the intensity series.
func (s *Sample) Intensity() []float64 { return slices.Clone(s.intensity) }

// Uncertainty returns a copy of the uncertainty series, empty when absent.
func (s *Sample) Uncertainty() []float64 { return slices.Clone(s.uncertainty) }

// HasUncertainty reports whether the uncertainty series is present.
func (s *Sample) HasUncertainty() bool { return len(s.uncertainty) > 0 }

// Len returns the number of points.
func (s *Sample) Len() int {
	return max(len(s.q), len(s.intensity), len(s.uncertainty))
}

// Equal reports whether both samples hold the same identifier and series.
func (s *Sample) Equal(o *Sample) bool {
	if s == nil || o == nil {
		return s == o
	}

	return s.id == o.id &&
		slices.Equal(s.q, o.q) &&
		slices.Equal(s.intensity, o.intensity) &&
		slices.Equal(s.uncertainty, o.uncertainty)
}

func (s *Sample) String() string {
	return fmt.Sprintf("Sample(%s, points=%d)", s.id, s.Len())
}

func cloneSeries(s []float64) []float64 {
	if s == nil {
		return []float64{}
	}

	return slices.Clone(s)
}
