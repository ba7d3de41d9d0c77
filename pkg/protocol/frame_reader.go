// Kunhua Huang 2026

package protocol

import (
	"errors"
	"fmt"
	"io"
)

const defaultReadChunk = 4 * 1024

// FrameReader reassembles frames from a byte stream. Bytes left over after a
// frame stay buffered for the next call, so several frames delivered by one
// Read are returned one at a time.
type FrameReader struct {
	r          io.Reader
	maxPayload uint32
	buf        []byte
	chunk      []byte
}

func NewFrameReader(r io.Reader, maxPayload uint32, chunkSize int) *FrameReader {
	if chunkSize <= 0 {
		chunkSize = defaultReadChunk
	}

	return &FrameReader{
		r:          r,
		maxPayload: maxPayload,
		chunk:      make([]byte, chunkSize),
	}
}

// Next blocks until a full frame is buffered and returns its payload.
//
// io.EOF is returned only on a clean close between frames. A close in the
// middle of a frame yields ErrFraming.
func (fr *FrameReader) Next() ([]byte, error) {
	for {
		payload, n, err := TryDecode(fr.buf, fr.maxPayload)
		if err != nil {
			return nil, err
		}

		if n > 0 {
			fr.consume(n)
			return payload, nil
		}

		read, err := fr.r.Read(fr.chunk)
		if read > 0 {
			fr.buf = append(fr.buf, fr.chunk[:read]...)
		}

		if err != nil {
			if read > 0 {
				// decode what arrived with the error first
				if payload, n, derr := TryDecode(fr.buf, fr.maxPayload); derr == nil && n > 0 {
					fr.consume(n)
					return payload, nil
				}
			}

			if errors.Is(err, io.EOF) && len(fr.buf) > 0 {
				return nil, fmt.Errorf("%w: stream closed with %d bytes of an incomplete frame", ErrFraming, len(fr.buf))
			}
			return nil, err
		}
	}
}

// Buffered reports how many bytes are waiting for a complete frame.
func (fr *FrameReader) Buffered() int {
	return len(fr.buf)
}

func (fr *FrameReader) consume(n int) {
	remaining := copy(fr.buf, fr.buf[n:])
	fr.buf = fr.buf[:remaining]
}

// WriteFrame writes payload as a single frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if _, err := w.Write(Encode(payload)); err != nil {
		return fmt.Errorf("write frame error: %w", err)
	}
	return nil
}
