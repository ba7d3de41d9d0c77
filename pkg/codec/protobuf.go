package codec

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

// ProtobufCodec carries the same envelope as JSONCodec inside a
// google.protobuf.Struct message. Handlers still receive Args as JSON so they
// do not depend on the deployment's codec.
type ProtobufCodec struct{}

var _ Codec = (*ProtobufCodec)(nil)

func NewProtobufCodec() Codec {
	return &ProtobufCodec{}
}

func (c *ProtobufCodec) DecodeRequest(payload []byte) (*protocol.Request, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal struct: %v", ErrInvalidPayload, err)
	}

	field, ok := msg.GetFields()["command"]
	if !ok {
		return nil, ErrEmptyCommand
	}

	if _, isString := field.GetKind().(*structpb.Value_StringValue); !isString {
		return nil, fmt.Errorf("%w: command must be a string", ErrInvalidPayload)
	}

	command := field.GetStringValue()
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	args, err := protojson.Marshal(&msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	return protocol.NewRequest(command, args), nil
}

func (c *ProtobufCodec) EncodeResponse(resp *protocol.Response) ([]byte, error) {
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if resp.ID != 0 {
		msg.Fields["id"] = structpb.NewNumberValue(float64(resp.ID))
	}

	if resp.IsError() {
		errValue, err := structpb.NewStruct(map[string]any{
			"code":    float64(resp.Error.Code),
			"kind":    resp.Error.Kind(),
			"message": resp.Error.Message,
			"details": resp.Error.Details,
		})
		if err != nil {
			return nil, fmt.Errorf("build error struct: %w", err)
		}
		msg.Fields["error"] = structpb.NewStructValue(errValue)
	} else {
		msg.Fields["result"] = toValue(resp.Data)
	}

	return proto.Marshal(msg)
}

func (c *ProtobufCodec) EncodeRequest(command string, args []byte) ([]byte, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	msg := &structpb.Struct{}
	if len(args) == 0 || protojson.Unmarshal(args, msg) != nil {
		msg = &structpb.Struct{Fields: map[string]*structpb.Value{}}
		if len(args) > 0 {
			msg.Fields["args"] = toValue(args)
		}
	}
	if msg.Fields == nil {
		msg.Fields = map[string]*structpb.Value{}
	}
	msg.Fields["command"] = structpb.NewStringValue(command)

	return proto.Marshal(msg)
}

func (c *ProtobufCodec) DecodeResponse(payload []byte) (*protocol.Response, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal struct: %v", ErrInvalidPayload, err)
	}

	fields := msg.GetFields()
	id := uint64(fields["id"].GetNumberValue())

	if errValue, ok := fields["error"]; ok {
		e := errValue.GetStructValue().GetFields()
		return protocol.NewErrorResponse(id, &protocol.Error{
			Code:    int32(e["code"].GetNumberValue()),
			Message: e["message"].GetStringValue(),
			Details: e["details"].GetStringValue(),
		}), nil
	}

	data, err := fromValue(fields["result"])
	if err != nil {
		return nil, err
	}
	return protocol.NewSuccessResponse(id, data), nil
}

func (c *ProtobufCodec) Name() string {
	return "protobuf"
}

func toValue(data []byte) *structpb.Value {
	if len(data) == 0 {
		return structpb.NewNullValue()
	}

	if json.Valid(data) {
		var v structpb.Value
		if err := protojson.Unmarshal(data, &v); err == nil {
			return &v
		}
	}
	return structpb.NewStringValue(string(data))
}

func fromValue(v *structpb.Value) ([]byte, error) {
	switch kind := v.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return nil, nil
	case *structpb.Value_StringValue:
		return []byte(kind.StringValue), nil
	default:
		data, err := protojson.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal result failed: %w", err)
		}
		return data, nil
	}
}

func init() {
	Register(protocol.CodecTypeProtobuf, NewProtobufCodec())
}
