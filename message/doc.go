// Package message defines the typed SAXS stream messages and converts them to and
// from decoded payload maps.
//
// A Message carries exactly one content variant selected by its wire message type:
// a Sample, a FlowMetadata, both (Combined), or the raw payload bytes for control
// requests and message types this package does not know.
package message
