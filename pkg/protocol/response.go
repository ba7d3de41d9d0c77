package protocol

import "fmt"

// Response answers the request with the same ID on the same connection.
// Exactly one of Data and Error is meaningful.
type Response struct {
	ID    uint64
	Data  []byte
	Error *Error
}

func NewSuccessResponse(requestID uint64, data []byte) *Response {
	return &Response{ID: requestID, Data: data}
}

func NewErrorResponse(requestID uint64, err *Error) *Response {
	if err == nil {
		err = NewError(ErrorCodeUnknown, "unspecified error")
	}
	return &Response{ID: requestID, Error: err}
}

func (r *Response) IsSuccess() bool {
	return r.Error == nil || r.Error.Code == ErrorCodeOK
}

func (r *Response) IsError() bool {
	return !r.IsSuccess()
}

// Err returns the carried error as an error value, nil on success.
func (r *Response) Err() error {
	if r.IsSuccess() {
		return nil
	}
	return r.Error
}

func (r *Response) String() string {
	if r.IsError() {
		return fmt.Sprintf("Response{ID=%d, Error=%s}", r.ID, r.Error)
	}
	return fmt.Sprintf("Response{ID=%d, DataLen=%d}", r.ID, len(r.Data))
}
