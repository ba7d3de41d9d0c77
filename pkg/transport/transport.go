// Kunhua Huang 2026

package transport

import (
	"context"
	"net"
)

// Peer identifies the remote end of a control connection.
type Peer struct {
	ID         string
	RemoteAddr string
}

// Handler turns one request payload into one response payload. A returned
// error is fatal for the connection; command-level failures belong in the
// response payload.
type Handler func(ctx context.Context, peer Peer, payload []byte) ([]byte, error)

// Observer receives connection lifecycle events from a server. Methods are
// called from accept and connection goroutines and must not block.
type Observer interface {
	ConnectionOpened(id, remoteAddr string)
	ConnectionClosed(id string)
	ConnectionRejected(remoteAddr string)
	AcceptError(err error)
	FrameError(kind string)
}

type NopObserver struct{}

func (NopObserver) ConnectionOpened(string, string) {}
func (NopObserver) ConnectionClosed(string)         {}
func (NopObserver) ConnectionRejected(string)       {}
func (NopObserver) AcceptError(error)               {}
func (NopObserver) FrameError(string)               {}

// Observers fans every event out to each observer in order.
type Observers []Observer

func (o Observers) ConnectionOpened(id, remoteAddr string) {
	for _, ob := range o {
		ob.ConnectionOpened(id, remoteAddr)
	}
}

func (o Observers) ConnectionClosed(id string) {
	for _, ob := range o {
		ob.ConnectionClosed(id)
	}
}

func (o Observers) ConnectionRejected(remoteAddr string) {
	for _, ob := range o {
		ob.ConnectionRejected(remoteAddr)
	}
}

func (o Observers) AcceptError(err error) {
	for _, ob := range o {
		ob.AcceptError(err)
	}
}

func (o Observers) FrameError(kind string) {
	for _, ob := range o {
		ob.FrameError(kind)
	}
}

// ClientTransport sends one framed payload and waits for the framed reply.
type ClientTransport interface {
	Dial(ctx context.Context, addr string) error
	Send(ctx context.Context, payload []byte) ([]byte, error)
	Close() error
	IsConnected() bool
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}
