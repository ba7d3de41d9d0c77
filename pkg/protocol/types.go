// Kunhua Huang 2026

package protocol

import (
	"fmt"
	"strings"
)

// CodecType names the payload encoding agreed with the remote peer.
type CodecType string

const (
	CodecTypeText     CodecType = "text"
	CodecTypeJSON     CodecType = "json"
	CodecTypeProtobuf CodecType = "protobuf"
)

func ParseCodecType(s string) (CodecType, error) {
	switch CodecType(strings.ToLower(strings.TrimSpace(s))) {
	case "", CodecTypeText:
		return CodecTypeText, nil
	case CodecTypeJSON:
		return CodecTypeJSON, nil
	case CodecTypeProtobuf, "proto", "pb":
		return CodecTypeProtobuf, nil
	default:
		return "", fmt.Errorf("unknown codec %q", s)
	}
}

type CompressType string

const (
	CompressTypeNone CompressType = "none"
	CompressTypeGzip CompressType = "gzip"
)

func ParseCompressType(s string) (CompressType, error) {
	switch CompressType(strings.ToLower(strings.TrimSpace(s))) {
	case "", CompressTypeNone:
		return CompressTypeNone, nil
	case CompressTypeGzip:
		return CompressTypeGzip, nil
	default:
		return "", fmt.Errorf("unknown compression %q", s)
	}
}
