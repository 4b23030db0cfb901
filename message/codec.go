package message

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-saxs/payload"
	"github.com/arloliu/go-saxs/protocol"
)

// Field keys, primary first then the legacy alias.
var (
	idKeys          = []string{"ID", "id"}
	qKeys           = []string{"Q", "q"}
	intensityKeys   = []string{"I", "intensity"}
	uncertaintyKeys = []string{"Err", "error"}

	sampleNameKeys  = []string{"Sample", "sample"}
	processedKeys   = []string{"ProcessedPeaks", "processed_peaks"}
	unprocessedKeys = []string{"UnprocessedPeaks", "unprocessed_peaks"}
	currentKeys     = []string{"Current", "current"}

	envelopeSampleKeys = []string{"Sample", "sample"}
	envelopeFlowKeys   = []string{"FlowMetadata", "flow_metadata", "flowmetadata"}
)

// Build constructs the message described by header from the decompressed payload.
//
// Control requests and unknown message types are returned as raw messages without
// decoding the payload. A Combined payload missing either part gets an empty Sample or
// an empty FlowMetadata in its place. Payloads that cannot be decoded, or samples whose series lengths
// differ, fail with a ProtocolError wrapping ErrMalformedPayload.
func Build(header protocol.Header, data []byte) (*Message, error) {
	msg := &Message{
		Type:        header.Type,
		Version:     header.Version,
		Compression: header.Compression,
		Raw:         data,
	}

	if msg.Kind() == RawKind {
		return msg, nil
	}

	m, err := payload.Decode(data)
	if err != nil {
		return nil, malformed(header.Type, err)
	}

	switch msg.Kind() {
	case SampleKind:
		msg.Sample, err = SampleFromMap(m)
	case FlowMetadataKind:
		msg.FlowMetadata, err = FlowMetadataFromMap(m)
	case CombinedKind:
		msg.Sample, msg.FlowMetadata, err = combinedFromMap(m)
	}
	if err != nil {
		return nil, malformed(header.Type, err)
	}

	return msg, nil
}

// SampleFromMap builds a Sample from a decoded map. Missing series are empty.
func SampleFromMap(m payload.Map) (*Sample, error) {
	id, err := stringField(m, idKeys)
	if err != nil {
		return nil, err
	}

	var series [3][]float64
	for i, keys := range [][]string{qKeys, intensityKeys, uncertaintyKeys} {
		v, _ := m.Lookup(keys...)
		series[i], err = payload.ToFloat64Slice(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", keys[0], err)
		}
	}

	return NewSample(id, series[0], series[1], series[2])
}

// FlowMetadataFromMap builds a FlowMetadata from a decoded map. Missing peak maps are empty.
func FlowMetadataFromMap(m payload.Map) (*FlowMetadata, error) {
	name, err := stringField(m, sampleNameKeys)
	if err != nil {
		return nil, err
	}

	var peaks [3]map[int]float64
	for i, keys := range [][]string{processedKeys, unprocessedKeys, currentKeys} {
		v, _ := m.Lookup(keys...)
		peaks[i], err = payload.ToIntFloatMap(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", keys[0], err)
		}
	}

	return NewFlowMetadata(name, peaks[0], peaks[1], peaks[2]), nil
}

func combinedFromMap(m payload.Map) (*Sample, *FlowMetadata, error) {
	s := EmptySample()
	if sv, ok := m.Lookup(envelopeSampleKeys...); ok && sv != nil {
		sm, err := payload.ToMap(sv)
		if err != nil {
			return nil, nil, fmt.Errorf("field Sample: %w", err)
		}
		if s, err = SampleFromMap(sm); err != nil {
			return nil, nil, err
		}
	}

	fv, ok := m.Lookup(envelopeFlowKeys...)
	if !ok || fv == nil {
		return s, EmptyFlowMetadata(), nil
	}
	fm, err := payload.ToMap(fv)
	if err != nil {
		return nil, nil, fmt.Errorf("field FlowMetadata: %w", err)
	}
	f, err := FlowMetadataFromMap(fm)
	if err != nil {
		return nil, nil, err
	}

	return s, f, nil
}

func stringField(m payload.Map, keys []string) (string, error) {
	v, _ := m.Lookup(keys...)
	s, err := payload.ToString(v)
	if err != nil {
		return "", fmt.Errorf("field %s: %w", keys[0], err)
	}

	return s, nil
}

func malformed(t protocol.MessageType, err error) error {
	return protocol.NewProtocolError(protocol.ErrMalformedPayload, "%s: %v", t, err)
}

// Encode serializes the content of msg into an uncompressed payload.
//
// Field names follow the reference producer: ID, Q, I, Err for samples; sample,
// processed_peaks, unprocessed_peaks, current for flow metadata; and sample,
// flow_metadata for the combined envelope. Raw messages return Raw unchanged.
func Encode(msg *Message) ([]byte, error) {
	var m payload.Map

	switch msg.Kind() {
	case SampleKind:
		if msg.Sample == nil {
			return nil, errors.New("sample message without sample")
		}
		m = SampleToMap(msg.Sample)
	case FlowMetadataKind:
		if msg.FlowMetadata == nil {
			return nil, errors.New("flow metadata message without flow metadata")
		}
		m = FlowMetadataToMap(msg.FlowMetadata)
	case CombinedKind:
		if msg.Sample == nil {
			return nil, errors.New("combined message without sample")
		}
		flow := msg.FlowMetadata
		if flow == nil {
			flow = EmptyFlowMetadata()
		}
		m = payload.NewMap(
			envelopeSampleKeys[1], SampleToMap(msg.Sample),
			envelopeFlowKeys[1], FlowMetadataToMap(flow),
		)
	default:
		return msg.Raw, nil
	}

	return payload.Encode(m)
}

// SampleToMap returns the producer representation of s.
func SampleToMap(s *Sample) payload.Map {
	return payload.NewMap(
		idKeys[0], s.id,
		qKeys[0], s.q,
		intensityKeys[0], s.intensity,
		uncertaintyKeys[0], s.uncertainty,
	)
}

// FlowMetadataToMap returns the producer representation of f.
func FlowMetadataToMap(f *FlowMetadata) payload.Map {
	return payload.NewMap(
		sampleNameKeys[1], f.sample,
		processedKeys[1], f.processed,
		unprocessedKeys[1], f.unprocessed,
		currentKeys[1], f.current,
	)
}
