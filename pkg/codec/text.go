// Kunhua Huang 2026

package codec

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

const (
	textErrorPrefix = "ERR "
	textEscape      = '\\'
)

// TextCodec speaks a plain textual protocol: a request is the command
// name, one separator (space, tab, newline or CRLF) and the raw arguments.
// A successful response is the handler output verbatim, except that output
// starting with "ERR " or a backslash gets one leading backslash. A
// failure is "ERR <CODE_NAME> <message>".
type TextCodec struct{}

var _ Codec = (*TextCodec)(nil)

func NewTextCodec() Codec {
	return &TextCodec{}
}

func (c *TextCodec) DecodeRequest(payload []byte) (*protocol.Request, error) {
	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, ErrEmptyCommand
	}

	var command, args []byte
	if i := bytes.IndexAny(trimmed, " \t\r\n"); i >= 0 {
		command, args = trimmed[:i], trimmed[i+1:]
		if trimmed[i] == '\r' && len(args) > 0 && args[0] == '\n' {
			args = args[1:]
		}
	} else {
		command = trimmed
	}

	return protocol.NewRequest(string(command), args), nil
}

func (c *TextCodec) EncodeResponse(resp *protocol.Response) ([]byte, error) {
	if resp.IsSuccess() {
		if bytes.HasPrefix(resp.Data, []byte(textErrorPrefix)) || bytes.HasPrefix(resp.Data, []byte{textEscape}) {
			return append([]byte{textEscape}, resp.Data...), nil
		}
		return resp.Data, nil
	}

	msg := resp.Error.Message
	if resp.Error.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, resp.Error.Details)
	}

	return []byte(textErrorPrefix + resp.Error.Kind() + " " + msg), nil
}

func (c *TextCodec) EncodeRequest(command string, args []byte) ([]byte, error) {
	if strings.TrimSpace(command) == "" {
		return nil, ErrEmptyCommand
	}

	if len(args) == 0 {
		return []byte(command), nil
	}

	buf := make([]byte, 0, len(command)+1+len(args))
	buf = append(buf, command...)
	buf = append(buf, ' ')
	buf = append(buf, args...)
	return buf, nil
}

func (c *TextCodec) DecodeResponse(payload []byte) (*protocol.Response, error) {
	if len(payload) > 0 && payload[0] == textEscape {
		return protocol.NewSuccessResponse(0, payload[1:]), nil
	}
	if !bytes.HasPrefix(payload, []byte(textErrorPrefix)) {
		return protocol.NewSuccessResponse(0, payload), nil
	}

	kind, msg, _ := strings.Cut(string(payload[len(textErrorPrefix):]), " ")
	code, ok := protocol.CodeFromName(kind)
	if !ok {
		// not one of ours, treat the whole tail as the message
		msg = strings.TrimSpace(kind + " " + msg)
	}

	return protocol.NewErrorResponse(0, protocol.NewError(code, msg)), nil
}

func (c *TextCodec) Name() string {
	return "text"
}

func init() {
	Register(protocol.CodecTypeText, NewTextCodec())
}
