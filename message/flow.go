package message

import (
	"fmt"
	"maps"
)

// FlowMetadata is the per-sample peak bookkeeping that travels with a sample through
// the processing pipeline. Peak maps are keyed by peak index; keys need not be
// contiguous.
//
// A FlowMetadata is immutable; accessors return copies.
type FlowMetadata struct {
	sample      string
	processed   map[int]float64
	unprocessed map[int]float64
	current     map[int]float64
}

// NewFlowMetadata copies the given peak maps. Nil maps become empty maps.
func NewFlowMetadata(sample string, processed, unprocessed, current map[int]float64) *FlowMetadata {
	return &FlowMetadata{
		sample:      sample,
		processed:   clonePeaks(processed),
		unprocessed: clonePeaks(unprocessed),
		current:     clonePeaks(current),
	}
}

// EmptyFlowMetadata returns a FlowMetadata with no sample name and empty peak maps.
func EmptyFlowMetadata() *FlowMetadata {
	return NewFlowMetadata("", nil, nil, nil)
}

// Sample returns the sample name the metadata belongs to.
func (f *FlowMetadata) Sample() string { return f.sample }

// ProcessedPeaks returns a copy of the processed peak map.
func (f *FlowMetadata) ProcessedPeaks() map[int]float64 { return maps.Clone(f.processed) }

// UnprocessedPeaks returns a copy of the unprocessed peak map.
func (f *FlowMetadata) UnprocessedPeaks() map[int]float64 { return maps.Clone(f.unprocessed) }

// Current returns a copy of the current peak map.
func (f *FlowMetadata) Current() map[int]float64 { return maps.Clone(f.current) }

// IsEmpty reports whether the metadata has no sample name and no peaks.
func (f *FlowMetadata) IsEmpty() bool {
	return f.sample == "" && len(f.processed) == 0 && len(f.unprocessed) == 0 && len(f.current) == 0
}

// Equal reports whether both values hold the same name and peaks.
func (f *FlowMetadata) Equal(o *FlowMetadata) bool {
	if f == nil || o == nil {
		return f == o
	}

	return f.sample == o.sample &&
		maps.Equal(f.processed, o.processed) &&
		maps.Equal(f.unprocessed, o.unprocessed) &&
		maps.Equal(f.current, o.current)
}

func (f *FlowMetadata) String() string {
	return fmt.Sprintf("FlowMetadata(%s, processed=%d, unprocessed=%d, current=%d)",
		f.sample, len(f.processed), len(f.unprocessed), len(f.current))
}

func clonePeaks(m map[int]float64) map[int]float64 {
	if m == nil {
		return map[int]float64{}
	}

	return maps.Clone(m)
}
