// Kunhua Huang 2025

package codec

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sync"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

// Compressor transforms whole payloads. Frames are small and independent, so
// there is no streaming state between them.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Name() string
}

// GzipCompressor gzips payloads. Decompress refuses to inflate past
// MaxDecompressedSize so a small frame cannot expand into a huge request.
type GzipCompressor struct {
	Level               int
	MaxDecompressedSize int

	writers sync.Pool
}

var _ Compressor = (*GzipCompressor)(nil)

func NewGzipCompressor(level int) *GzipCompressor {
	return &GzipCompressor{Level: level, MaxDecompressedSize: int(protocol.DefaultMaxMessageSize)}
}

func (c *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, ok := c.writers.Get().(*gzip.Writer)
	if ok {
		w.Reset(&buf)
	} else {
		var err error
		if w, err = gzip.NewWriterLevel(&buf, c.Level); err != nil {
			return nil, fmt.Errorf("gzip writer: %w", err)
		}
	}
	defer c.writers.Put(w)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}

	return buf.Bytes(), nil
}

func (c *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()

	limit := c.MaxDecompressedSize
	if limit <= 0 {
		limit = int(protocol.DefaultMaxMessageSize)
	}

	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}
	if len(out) > limit {
		return nil, fmt.Errorf("%w: inflated payload exceeds %d bytes", protocol.ErrMessageTooLarge, limit)
	}

	return out, nil
}

func (c *GzipCompressor) Name() string {
	return "gzip"
}

// compressorFor returns the compressor for typ, nil for none.
func compressorFor(typ protocol.CompressType) (Compressor, error) {
	switch typ {
	case "", protocol.CompressTypeNone:
		return nil, nil
	case protocol.CompressTypeGzip:
		return NewGzipCompressor(gzip.DefaultCompression), nil
	default:
		return nil, fmt.Errorf("compression %s is not supported", typ)
	}
}

// CompressedCodec compresses everything an inner codec writes and
// decompresses everything before it reads.
type CompressedCodec struct {
	codec      Codec
	compressor Compressor
}

var _ Codec = (*CompressedCodec)(nil)

func NewCompressedCodec(codec Codec, compressor Compressor) Codec {
	return &CompressedCodec{
		codec:      codec,
		compressor: compressor,
	}
}

func (c *CompressedCodec) DecodeRequest(payload []byte) (*protocol.Request, error) {
	data, err := c.decompress(payload)
	if err != nil {
		return nil, err
	}
	return c.codec.DecodeRequest(data)
}

func (c *CompressedCodec) EncodeResponse(resp *protocol.Response) ([]byte, error) {
	data, err := c.codec.EncodeResponse(resp)
	if err != nil {
		return nil, err
	}
	return c.compressor.Compress(data)
}

func (c *CompressedCodec) EncodeRequest(command string, args []byte) ([]byte, error) {
	data, err := c.codec.EncodeRequest(command, args)
	if err != nil {
		return nil, err
	}
	return c.compressor.Compress(data)
}

func (c *CompressedCodec) DecodeResponse(payload []byte) (*protocol.Response, error) {
	data, err := c.decompress(payload)
	if err != nil {
		return nil, err
	}
	return c.codec.DecodeResponse(data)
}

func (c *CompressedCodec) decompress(payload []byte) ([]byte, error) {
	data, err := c.compressor.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return data, nil
}

func (c *CompressedCodec) Name() string {
	return c.codec.Name() + "+" + c.compressor.Name()
}
