// Package payload converts msgpack payloads to and from an ordered key-value Map.
//
// Decoding keeps the key order of the wire representation, decodes nested maps as Map
// and arrays as []any, and widens numbers to int64, uint64 and float64. The coercion
// helpers turn those generic values into the concrete shapes used by the message
// package.
package payload
