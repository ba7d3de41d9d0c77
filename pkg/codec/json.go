// Kunhua Huang 2025

package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

// JSONCodec carries requests as a JSON object with a "command" member. The
// whole object is handed to the handler as Args.
//
//	request:  {"command": "spawn", "actor_class": "Cube"}
//	success:  {"id": 3, "result": <handler output>}
//	failure:  {"id": 3, "error": {"code": 5, "kind": "UNKNOWN_COMMAND", "message": "..."}}
//
// Handler output that is valid JSON is embedded as is, anything else is sent
// as a JSON string.
type JSONCodec struct{}

var _ Codec = (*JSONCodec)(nil)

func NewJSONCodec() Codec {
	return &JSONCodec{}
}

type wireError struct {
	Code    int32  `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type wireSuccess struct {
	ID     uint64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result"`
}

type wireFailure struct {
	ID    uint64     `json:"id,omitempty"`
	Error *wireError `json:"error"`
}

type wireResponse struct {
	ID     uint64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *wireError      `json:"error,omitempty"`
}

func (c *JSONCodec) DecodeRequest(payload []byte) (*protocol.Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: expected JSON object: %v", ErrInvalidPayload, err)
	}

	raw, ok := fields["command"]
	if !ok {
		return nil, ErrEmptyCommand
	}

	var command string
	if err := json.Unmarshal(raw, &command); err != nil {
		return nil, fmt.Errorf("%w: command must be a string", ErrInvalidPayload)
	}

	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	return protocol.NewRequest(command, payload), nil
}

func (c *JSONCodec) EncodeResponse(resp *protocol.Response) ([]byte, error) {
	if resp.IsError() {
		return json.Marshal(wireFailure{ID: resp.ID, Error: toWireError(resp.Error)})
	}

	result, err := jsonResult(resp.Data)
	if err != nil {
		return nil, err
	}

	return json.Marshal(wireSuccess{ID: resp.ID, Result: result})
}

func (c *JSONCodec) EncodeRequest(command string, args []byte) ([]byte, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	name, err := json.Marshal(command)
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &fields); err != nil {
			// not an object, ship it under "args"
			fields = map[string]json.RawMessage{}
			value, err := jsonResult(args)
			if err != nil {
				return nil, err
			}
			fields["args"] = value
		}
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	fields["command"] = name

	return json.Marshal(fields)
}

func (c *JSONCodec) DecodeResponse(payload []byte) (*protocol.Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if wire.Error != nil {
		return protocol.NewErrorResponse(wire.ID, fromWireError(wire.Error)), nil
	}

	return protocol.NewSuccessResponse(wire.ID, unwrapJSONString(wire.Result)), nil
}

func (c *JSONCodec) Name() string {
	return "json"
}

func toWireError(e *protocol.Error) *wireError {
	return &wireError{
		Code:    e.Code,
		Kind:    e.Kind(),
		Message: e.Message,
		Details: e.Details,
	}
}

func fromWireError(w *wireError) *protocol.Error {
	return &protocol.Error{
		Code:    w.Code,
		Message: w.Message,
		Details: w.Details,
	}
}

// jsonResult embeds data as raw JSON when it already is JSON.
func jsonResult(data []byte) (json.RawMessage, error) {
	if len(data) == 0 {
		return json.RawMessage("null"), nil
	}
	if json.Valid(data) {
		return json.RawMessage(data), nil
	}

	quoted, err := json.Marshal(string(data))
	if err != nil {
		return nil, fmt.Errorf("marshal result failed: %w", err)
	}
	return quoted, nil
}

func unwrapJSONString(raw json.RawMessage) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	return []byte(raw)
}

func init() {
	Register(protocol.CodecTypeJSON, NewJSONCodec())
}
