package wire

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteFrame([]byte{0x01, 0x02, 0x03}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.WriteFrame([]byte{0xAA}); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	r := NewReader(&buf)
	got, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("frame 1 = %v, want [1 2 3]", got)
	}
	got, err = r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, []byte{0xAA}) {
		t.Fatalf("frame 2 = %v, want [170]", got)
	}
}

func TestReadFrameOneAtATimeFromPartialStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_ = w.WriteFrame([]byte{1, 2, 3, 4, 5})

	full := buf.Bytes()
	// Feed the reader byte-by-byte to exercise retry-on-short-read.
	pr, pw := io.Pipe()
	go func() {
		for _, b := range full {
			_, _ = pw.Write([]byte{b})
		}
		_ = pw.Close()
	}()

	r := NewReader(pr)
	got, err := r.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("got %v, want [1 2 3 4 5]", got)
	}
}

func TestReadFrameZeroLengthIsFatal(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})
	r := NewReader(buf)
	if _, err := r.ReadFrame(); err == nil {
		t.Fatal("expected error for zero-length frame")
	}
}

func TestReadFrameClosedStreamIsFatal(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0})
	r := NewReader(buf)
	if _, err := r.ReadFrame(); err == nil {
		t.Fatal("expected error for truncated stream")
	}
}

func TestWriteFrameRejectsEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteFrame(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}
