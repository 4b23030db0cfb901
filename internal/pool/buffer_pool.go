package pool

import (
	"bytes"
	"sync"
)

// maxPooledBuffer is the largest buffer capacity kept for reuse; bigger buffers are
// left to the garbage collector so one huge frame does not pin memory.
const maxPooledBuffer = 1 << 20

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// GetBuffer returns an empty buffer from the pool.
//
// Return back the buffer to the pool with PutBuffer.
func GetBuffer() *bytes.Buffer {
	buf, _ := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	return buf
}

// PutBuffer returns buf to the pool. buf cannot be accessed afterwards.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}
