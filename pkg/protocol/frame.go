// Kunhua Huang 2026

package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// LengthFieldSize is the width of the big-endian length prefix.
	LengthFieldSize = 4

	DefaultMaxMessageSize uint32 = 4 * 1024 * 1024
)

var (
	ErrMessageTooLarge = errors.New("message too large")
	ErrFraming         = errors.New("framing error")
)

// Frame layout
//
//	 0  1  2  3  4 ...
//	+--+--+--+--+--------------------+
//	|  Length   |  Payload (Length)  |
//	+--+--+--+--+--------------------+
//
// Length is big-endian and counts payload bytes only.

// Encode prepends the length prefix to payload.
func Encode(payload []byte) []byte {
	buf := make([]byte, LengthFieldSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:LengthFieldSize], uint32(len(payload)))
	copy(buf[LengthFieldSize:], payload)
	return buf
}

// TryDecode extracts the first complete frame from buf.
//
// It returns consumed == 0 and a nil error when buf does not yet hold a
// whole frame. Otherwise payload is a copy of the frame body and consumed is
// the number of bytes the caller must drop from the front of buf. A declared
// length above maxPayload fails with ErrMessageTooLarge before the body has
// arrived; maxPayload == 0 disables the check.
func TryDecode(buf []byte, maxPayload uint32) (payload []byte, consumed int, err error) {
	if len(buf) < LengthFieldSize {
		return nil, 0, nil
	}

	length := binary.BigEndian.Uint32(buf[0:LengthFieldSize])
	if maxPayload > 0 && length > maxPayload {
		return nil, 0, fmt.Errorf("%w: declared %d bytes, limit %d", ErrMessageTooLarge, length, maxPayload)
	}

	if uint64(len(buf)) < uint64(LengthFieldSize)+uint64(length) {
		return nil, 0, nil
	}
	total := LengthFieldSize + int(length)

	payload = make([]byte, length)
	copy(payload, buf[LengthFieldSize:total])

	return payload, total, nil
}
