// Package wire implements the length-prefixed framing that carries every
// message exchanged between master and worker and between ring peers: a
// 4-byte big-endian payload length followed by that many payload bytes,
// whose first byte is a message type tag (see package protocol).
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameLength bounds the receive buffer. The dominant frames are
// SET_ROBOTS and FINAL_POSITIONS, worst case a whole population's worth
// of LONG-encoded agents on a single worker: 5 header bytes + P*24.
const MaxFrameLength = 5 + 1_000_000*24

// Reader reads length-prefixed frames off a stream. It is not safe for
// concurrent use by multiple goroutines.
type Reader struct {
	r io.Reader
}

// NewReader wraps r as a frame reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadFrame blocks until one full frame is available and returns its
// payload (header stripped). A closed stream or an invalid (zero or
// negative as interpreted, i.e. absurdly large) length header is fatal
// and returned as an error — there is no recovery at this layer.
func (fr *Reader) ReadFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 {
		return nil, fmt.Errorf("read frame: zero-length frame")
	}
	if length > MaxFrameLength {
		return nil, fmt.Errorf("read frame: length %d exceeds max frame length %d", length, MaxFrameLength)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", length, err)
	}
	return payload, nil
}

// Writer writes length-prefixed frames to a stream. It is not safe for
// concurrent use by multiple goroutines.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w as a frame writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteFrame writes the 4-byte length header followed by payload. It
// does not retry: io.Writer reports any short write as an error, and
// that error is returned.
func (fw *Writer) WriteFrame(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("write frame: empty payload")
	}
	if len(payload) > MaxFrameLength {
		return fmt.Errorf("write frame: length %d exceeds max frame length %d", len(payload), MaxFrameLength)
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if _, err := fw.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := fw.w.Write(payload); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}
