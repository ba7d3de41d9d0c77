package protocol

import (
	"fmt"
	"time"
)

// Request is one decoded command received on a connection.
type Request struct {
	// ID is the sequence number of the request on its connection, starting at 1.
	ID         uint64
	Command    string
	Args       []byte
	ConnID     string
	RemoteAddr string
	ReceivedAt time.Time
}

func NewRequest(command string, args []byte) *Request {
	return &Request{
		Command:    command,
		Args:       args,
		ReceivedAt: time.Now(),
	}
}

func (r *Request) String() string {
	return fmt.Sprintf(
		"Request{ID=%d, Command=%s, Conn=%s, ArgsLen=%d}",
		r.ID, r.Command, r.ConnID, len(r.Args),
	)
}
