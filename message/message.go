package message

import (
	"fmt"

	"github.com/arloliu/go-saxs/payload"
	"github.com/arloliu/go-saxs/protocol"
)

// Kind identifies which content variant of a Message is populated.
type Kind int

const (
	// RawKind is a message whose payload is kept uninterpreted: control requests and
	// message types unknown to this protocol version.
	RawKind Kind = iota
	// SampleKind is a message carrying a Sample only.
	SampleKind
	// FlowMetadataKind is a message carrying a FlowMetadata only.
	FlowMetadataKind
	// CombinedKind is a message carrying both a Sample and its FlowMetadata.
	CombinedKind
)

func (k Kind) String() string {
	switch k {
	case SampleKind:
		return "sample"
	case FlowMetadataKind:
		return "flow_metadata"
	case CombinedKind:
		return "combined"
	default:
		return "raw"
	}
}

// Message is one decoded frame.
//
// Type, Version and Compression are copied from the frame header. Raw always holds the
// decompressed payload bytes; Sample and FlowMetadata are set according to Type.
type Message struct {
	Type         protocol.MessageType
	Version      uint16
	Compression  protocol.CompressionType
	Sample       *Sample
	FlowMetadata *FlowMetadata
	Raw          []byte
}

// Kind returns the populated content variant.
func (m *Message) Kind() Kind {
	switch m.Type {
	case protocol.SampleType:
		return SampleKind
	case protocol.FlowMetadataType:
		return FlowMetadataKind
	case protocol.CombinedType:
		return CombinedKind
	default:
		return RawKind
	}
}

// IsControl reports whether m is a control request.
func (m *Message) IsControl() bool { return m.Type == protocol.ControlRequestType }

// Control decodes the raw payload of a control request or unknown message as a map.
func (m *Message) Control() (payload.Map, error) {
	if m.Kind() != RawKind {
		return nil, fmt.Errorf("message of type %s is not a raw message", m.Type)
	}

	return payload.Decode(m.Raw)
}

// NewSampleMessage returns an uncompressed Sample message.
func NewSampleMessage(s *Sample) *Message {
	return &Message{Type: protocol.SampleType, Version: protocol.Version, Sample: s}
}

// NewFlowMetadataMessage returns an uncompressed FlowMetadata message.
func NewFlowMetadataMessage(f *FlowMetadata) *Message {
	return &Message{Type: protocol.FlowMetadataType, Version: protocol.Version, FlowMetadata: f}
}

// NewCombinedMessage returns an uncompressed Combined message.
func NewCombinedMessage(s *Sample, f *FlowMetadata) *Message {
	return &Message{Type: protocol.CombinedType, Version: protocol.Version, Sample: s, FlowMetadata: f}
}

// NewRawMessage returns a message of msgType whose payload is sent as is.
func NewRawMessage(msgType protocol.MessageType, raw []byte) *Message {
	return &Message{Type: msgType, Version: protocol.Version, Raw: raw}
}

func (m *Message) String() string {
	switch m.Kind() {
	case SampleKind:
		return fmt.Sprintf("%s{%s}", m.Type, m.Sample)
	case FlowMetadataKind:
		return fmt.Sprintf("%s{%s}", m.Type, m.FlowMetadata)
	case CombinedKind:
		return fmt.Sprintf("%s{%s, %s}", m.Type, m.Sample, m.FlowMetadata)
	default:
		return fmt.Sprintf("%s{%d bytes}", m.Type, len(m.Raw))
	}
}
