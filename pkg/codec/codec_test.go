package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

func TestRegistryHasBuiltins(t *testing.T) {
	for _, typ := range []protocol.CodecType{protocol.CodecTypeText, protocol.CodecTypeJSON, protocol.CodecTypeProtobuf} {
		assert.NotNil(t, Get(typ), typ)
	}
	assert.Equal(t, "text", GetOrDefault("missing").Name())
	assert.Len(t, List(), 3)
}

func TestNewWrapsCompression(t *testing.T) {
	c, err := New(protocol.CodecTypeJSON, protocol.CompressTypeGzip)
	require.NoError(t, err)
	assert.Equal(t, "json+gzip", c.Name())

	c, err = New(protocol.CodecTypeText, protocol.CompressTypeNone)
	require.NoError(t, err)
	assert.Equal(t, "text", c.Name())

	_, err = New("yaml", protocol.CompressTypeNone)
	assert.Error(t, err)
}

func TestTextDecodeRequest(t *testing.T) {
	c := NewTextCodec()

	req, err := c.DecodeRequest([]byte("ECHO hello"))
	require.NoError(t, err)
	assert.Equal(t, "ECHO", req.Command)
	assert.Equal(t, []byte("hello"), req.Args)

	req, err = c.DecodeRequest([]byte("PING"))
	require.NoError(t, err)
	assert.Equal(t, "PING", req.Command)
	assert.Empty(t, req.Args)

	req, err = c.DecodeRequest([]byte("echo  two spaces"))
	require.NoError(t, err)
	assert.Equal(t, []byte(" two spaces"), req.Args, "only one separator is consumed")

	req, err = c.DecodeRequest([]byte("ECHO\r\nhello"))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), req.Args, "CRLF is one separator")

	_, err = c.DecodeRequest([]byte("  \r\n"))
	assert.ErrorIs(t, err, ErrEmptyCommand)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestTextResponses(t *testing.T) {
	c := NewTextCodec()

	payload, err := c.EncodeResponse(protocol.NewSuccessResponse(1, []byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(payload))

	payload, err = c.EncodeResponse(protocol.NewErrorResponse(2,
		protocol.NewError(protocol.ErrorCodeUnknownCommand, `unknown command "ping"`)))
	require.NoError(t, err)
	assert.Equal(t, `ERR UNKNOWN_COMMAND unknown command "ping"`, string(payload))

	resp, err := c.DecodeResponse(payload)
	require.NoError(t, err)
	require.True(t, resp.IsError())
	assert.Equal(t, int32(protocol.ErrorCodeUnknownCommand), resp.Error.Code)
	assert.Equal(t, `unknown command "ping"`, resp.Error.Message)

	reqPayload, err := c.EncodeRequest("ECHO", []byte("hi there"))
	require.NoError(t, err)
	assert.Equal(t, "ECHO hi there", string(reqPayload))
}

func TestTextSuccessThatLooksLikeError(t *testing.T) {
	c := NewTextCodec()

	for _, data := range []string{"ERR is the first word of this log line", `\already escaped`, "ERR", "plain"} {
		payload, err := c.EncodeResponse(protocol.NewSuccessResponse(1, []byte(data)))
		require.NoError(t, err)

		resp, err := c.DecodeResponse(payload)
		require.NoError(t, err)
		require.True(t, resp.IsSuccess(), data)
		assert.Equal(t, data, string(resp.Data))
	}

	payload, err := c.EncodeResponse(protocol.NewSuccessResponse(1, []byte("ERR not an error")))
	require.NoError(t, err)
	assert.Equal(t, `\ERR not an error`, string(payload))
}

func TestJSONDecodeRequest(t *testing.T) {
	c := NewJSONCodec()

	req, err := c.DecodeRequest([]byte(`{"command":"spawn","actor_class":"Cube"}`))
	require.NoError(t, err)
	assert.Equal(t, "spawn", req.Command)
	assert.JSONEq(t, `{"command":"spawn","actor_class":"Cube"}`, string(req.Args))

	_, err = c.DecodeRequest([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = c.DecodeRequest([]byte(`{"code":"x"}`))
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = c.DecodeRequest([]byte(`{"command":7}`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestJSONResponses(t *testing.T) {
	c := NewJSONCodec()

	payload, err := c.EncodeResponse(protocol.NewSuccessResponse(3, []byte(`{"message":"pong"}`)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"result":{"message":"pong"}}`, string(payload))

	payload, err = c.EncodeResponse(protocol.NewSuccessResponse(4, []byte("plain text")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":4,"result":"plain text"}`, string(payload))

	resp, err := c.DecodeResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, "plain text", string(resp.Data))

	payload, err = c.EncodeResponse(protocol.NewErrorResponse(5, protocol.NewError(protocol.ErrorCodeHandlerFailure, "boom")))
	require.NoError(t, err)

	var wire struct {
		ID    uint64         `json:"id"`
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(payload, &wire))
	assert.Equal(t, uint64(5), wire.ID)
	assert.Equal(t, "HANDLER_FAILURE", wire.Error["kind"])

	resp, err = c.DecodeResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, int32(protocol.ErrorCodeHandlerFailure), resp.Error.Code)
}

func TestJSONEncodeRequest(t *testing.T) {
	c := NewJSONCodec()

	payload, err := c.EncodeRequest("spawn", []byte(`{"actor_class":"Cube"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"spawn","actor_class":"Cube"}`, string(payload))

	payload, err = c.EncodeRequest("echo", []byte("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"echo","args":"hello"}`, string(payload))

	payload, err = c.EncodeRequest("ping", []byte("null"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"command":"ping"}`, string(payload))
}

func TestProtobufRequestAndResponse(t *testing.T) {
	c := NewProtobufCodec()

	payload, err := c.EncodeRequest("spawn", []byte(`{"actor_class":"Cube","scale":[1,2,3]}`))
	require.NoError(t, err)

	req, err := c.DecodeRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, "spawn", req.Command)
	assert.JSONEq(t, `{"command":"spawn","actor_class":"Cube","scale":[1,2,3]}`, string(req.Args))

	out, err := c.EncodeResponse(protocol.NewSuccessResponse(9, []byte(`{"ok":true}`)))
	require.NoError(t, err)

	resp, err := c.DecodeResponse(out)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), resp.ID)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Data))

	out, err = c.EncodeResponse(protocol.NewErrorResponse(10, protocol.NewError(protocol.ErrorCodeUnknownCommand, "nope")))
	require.NoError(t, err)

	resp, err = c.DecodeResponse(out)
	require.NoError(t, err)
	require.True(t, resp.IsError())
	assert.Equal(t, int32(protocol.ErrorCodeUnknownCommand), resp.Error.Code)
	assert.Equal(t, "nope", resp.Error.Message)

	_, err = c.DecodeRequest([]byte{0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestGzipCodecRoundTrip(t *testing.T) {
	c, err := New(protocol.CodecTypeText, protocol.CompressTypeGzip)
	require.NoError(t, err)

	payload, err := c.EncodeRequest("ECHO", []byte("compressed"))
	require.NoError(t, err)
	assert.NotEqual(t, "ECHO compressed", string(payload))

	req, err := c.DecodeRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, "ECHO", req.Command)
	assert.Equal(t, []byte("compressed"), req.Args)

	_, err = c.DecodeRequest([]byte("not gzip"))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestGzipDecompressLimit(t *testing.T) {
	gz := &GzipCompressor{Level: 1, MaxDecompressedSize: 8}

	data, err := gz.Compress(make([]byte, 64))
	require.NoError(t, err)

	_, err = gz.Decompress(data)
	assert.ErrorIs(t, err, protocol.ErrMessageTooLarge)
}
