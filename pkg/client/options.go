package client

import (
	"time"

	"github.com/ecstasoy/editorbridge/pkg/loadbalancer"
	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/registry"
)

type clientOptions struct {
	codecType    protocol.CodecType
	compressType protocol.CompressType
	codecSet     bool

	dialTimeout    time.Duration
	callTimeout    time.Duration
	keepAlive      time.Duration
	maxMessageSize uint32

	maxRetries    int
	retryInterval time.Duration

	discovery    registry.Discovery
	loadBalancer loadbalancer.LoadBalancer
}

func defaultOptions() *clientOptions {
	return &clientOptions{
		codecType:     protocol.CodecTypeText,
		compressType:  protocol.CompressTypeNone,
		dialTimeout:   5 * time.Second,
		callTimeout:   30 * time.Second,
		keepAlive:     30 * time.Second,
		retryInterval: 100 * time.Millisecond,

		loadBalancer: loadbalancer.NewRoundRobin(),
	}
}

type Option func(*clientOptions)

// WithCodec fixes the payload encoding. Without it a discovered instance's
// advertised codec is used, falling back to text.
func WithCodec(codec protocol.CodecType, compress protocol.CompressType) Option {
	return func(o *clientOptions) {
		o.codecType = codec
		o.compressType = compress
		o.codecSet = true
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		o.callTimeout = timeout
	}
}

func WithDialTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		o.dialTimeout = timeout
	}
}

// WithRetry resends a call after a transport failure. Commands that are not
// idempotent may then run twice on the host.
func WithRetry(maxRetries int, interval time.Duration) Option {
	return func(o *clientOptions) {
		o.maxRetries = maxRetries
		o.retryInterval = interval
	}
}

func WithDiscovery(discovery registry.Discovery) Option {
	return func(o *clientOptions) {
		o.discovery = discovery
	}
}

func WithLoadBalancer(lb loadbalancer.LoadBalancer) Option {
	return func(o *clientOptions) {
		o.loadBalancer = lb
	}
}

// WithKeepAlive sets the TCP keepalive period of the session. Zero or less
// disables keepalive probes.
func WithKeepAlive(period time.Duration) Option {
	return func(o *clientOptions) {
		o.keepAlive = period
	}
}

// WithMaxMessageSize bounds reply frames. Zero keeps the protocol default.
func WithMaxMessageSize(size uint32) Option {
	return func(o *clientOptions) {
		o.maxMessageSize = size
	}
}
