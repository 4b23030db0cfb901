// Package command implements the command channel from consumer to producer.
//
// Commands are msgpack maps sent on the producer's stdin, each prefixed with its 4-byte
// little-endian length. The consumer side sends commands and performs the startup
// handshake; the producer side reads commands with a Reader.
package command
