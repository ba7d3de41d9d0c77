//go:build !linux

package tcp

import (
	"context"
	"net"
)

// listen falls back to the net package; backlog is left to the OS.
func listen(ctx context.Context, address string, _ int) (net.Listener, error) {
	lc := net.ListenConfig{}
	return lc.Listen(ctx, "tcp", address)
}
