// Package stream reads and writes sequences of SAXS frames.
//
// A Reader pulls exactly-sized chunks from a byte stream, verifies and decompresses each
// frame and builds the typed message. Frames are returned strictly in the order they were
// written. A Writer is the producer-side counterpart that frames, compresses and
// checksums messages, one Write call per frame.
//
// Neither Reader nor Writer supports concurrent readers or writers on the same stream.
package stream
