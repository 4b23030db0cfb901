package command

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/go-saxs/payload"
	"github.com/arloliu/go-saxs/protocol"
)

// MaxCommandSize bounds the declared length of a single command.
const MaxCommandSize = 1 << 20

// Reader reads length-prefixed commands on the producer side.
//
// Reader is NOT goroutine-safe.
type Reader struct {
	r      io.Reader
	lenBuf [protocol.LengthPrefixSize]byte
}

// NewReader returns a Reader reading commands from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadCommand reads one command. It returns io.EOF when the input is closed between
// commands and a ProtocolError wrapping ErrIncompletePayload when it is closed inside one.
func (cr *Reader) ReadCommand() (payload.Map, error) {
	n, err := io.ReadFull(cr.r, cr.lenBuf[:])
	switch {
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, protocol.NewProtocolError(protocol.ErrIncompletePayload,
			"command length prefix: got %d of %d bytes", n, protocol.LengthPrefixSize)
	case err != nil:
		return nil, fmt.Errorf("read command length: %w", err)
	}

	size := binary.LittleEndian.Uint32(cr.lenBuf[:])
	if size > MaxCommandSize {
		return nil, protocol.NewProtocolError(protocol.ErrPayloadTooLarge, "command of %d bytes", size)
	}

	body := make([]byte, size)
	if n, err = io.ReadFull(cr.r, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, protocol.NewProtocolError(protocol.ErrIncompletePayload,
				"command body: got %d of %d bytes", n, size)
		}

		return nil, fmt.Errorf("read command body: %w", err)
	}

	cmd, err := payload.Decode(body)
	if err != nil {
		return nil, protocol.NewProtocolError(protocol.ErrMalformedPayload, "command: %v", err)
	}

	return cmd, nil
}

// Name returns the "cmd" field of a command, or "" when absent.
func Name(cmd payload.Map) string {
	v, _ := cmd.Lookup("cmd", "Cmd")
	s, _ := payload.ToString(v)

	return s
}
