// Kunhua Huang 2025

package codec

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

var (
	// ErrInvalidPayload marks a frame whose payload cannot be read as a request.
	ErrInvalidPayload = errors.New("invalid payload")
	ErrEmptyCommand   = fmt.Errorf("%w: no command specified", ErrInvalidPayload)
)

// Codec maps frame payloads to requests and responses. The server side uses
// DecodeRequest/EncodeResponse, the client side the other pair.
type Codec interface {
	DecodeRequest(payload []byte) (*protocol.Request, error)
	EncodeResponse(resp *protocol.Response) ([]byte, error)
	EncodeRequest(command string, args []byte) ([]byte, error)
	DecodeResponse(payload []byte) (*protocol.Response, error)
	Name() string
}

var registry = struct {
	codecs map[protocol.CodecType]Codec
	sync.RWMutex
}{
	codecs: make(map[protocol.CodecType]Codec),
}

func Register(typ protocol.CodecType, codec Codec) {
	registry.Lock()
	defer registry.Unlock()

	if codec == nil {
		panic(fmt.Sprintf("codec: Register codec is nil for type %s", typ))
	}

	if _, exists := registry.codecs[typ]; exists {
		panic(fmt.Sprintf("codec: Register called twice for type %s", typ))
	}

	registry.codecs[typ] = codec
}

func Get(typ protocol.CodecType) Codec {
	registry.RLock()
	defer registry.RUnlock()

	return registry.codecs[typ]
}

func GetOrDefault(typ protocol.CodecType) Codec {
	codec := Get(typ)
	if codec == nil {
		codec = Get(protocol.CodecTypeText)
	}
	return codec
}

func List() []protocol.CodecType {
	registry.RLock()
	defer registry.RUnlock()

	types := make([]protocol.CodecType, 0, len(registry.codecs))
	for typ := range registry.codecs {
		types = append(types, typ)
	}
	return types
}

// New returns the codec for typ, wrapped in compression unless compress is
// none.
func New(typ protocol.CodecType, compress protocol.CompressType) (Codec, error) {
	c := Get(typ)
	if c == nil {
		return nil, fmt.Errorf("codec %s is not registered", typ)
	}

	compressor, err := compressorFor(compress)
	if err != nil {
		return nil, err
	}
	if compressor == nil {
		return c, nil
	}

	return NewCompressedCodec(c, compressor), nil
}
