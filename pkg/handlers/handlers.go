// Kunhua Huang 2026

// Package handlers holds the commands every bridge answers regardless of
// what the host registers.
package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ecstasoy/editorbridge/pkg/dispatcher"
	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

const (
	CommandPing = "ping"
	CommandEcho = "echo"
	CommandHelp = "help"
)

type pingReply struct {
	Result    string  `json:"result"`
	Timestamp float64 `json:"timestamp"`
}

type helpReply struct {
	Commands []string `json:"commands"`
}

// RegisterBuiltins installs ping, echo and help on r.
func RegisterBuiltins(r *dispatcher.Registry) error {
	builtins := map[string]dispatcher.Handler{
		CommandPing: Ping(time.Now),
		CommandEcho: Echo(),
		CommandHelp: Help(r),
	}

	for name, h := range builtins {
		if err := r.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

// Ping answers {"result":"pong","timestamp":<unix seconds>}.
func Ping(now func() time.Time) dispatcher.HandlerFunc {
	return func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		t := now()
		return json.Marshal(pingReply{
			Result:    "pong",
			Timestamp: float64(t.UnixNano()) / float64(time.Second),
		})
	}
}

// Echo returns the request arguments unchanged.
func Echo() dispatcher.HandlerFunc {
	return func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		return req.Args, nil
	}
}

// Help lists the commands registered on r at call time.
func Help(r *dispatcher.Registry) dispatcher.HandlerFunc {
	return func(ctx context.Context, req *protocol.Request) ([]byte, error) {
		return json.Marshal(helpReply{Commands: r.Commands()})
	}
}
