// Kunhua Huang 2026

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ecstasoy/editorbridge/pkg/codec"
	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/registry"
	"github.com/ecstasoy/editorbridge/pkg/transport"
	"github.com/ecstasoy/editorbridge/pkg/transport/tcp"
)

var ErrDiscoveryRequired = errors.New("discovery is required")

// Client drives one control session against a bridge. Calls are serialized;
// the bridge answers them in order on the same connection.
type Client struct {
	opts      *clientOptions
	codec     codec.Codec
	transport *tcp.Client
	instance  *registry.ServiceInstance
}

// Dial connects to the bridge at address.
func Dial(ctx context.Context, address string, opts ...Option) (*Client, error) {
	options := defaultOptions()
	for _, o := range opts {
		o(options)
	}

	return dial(ctx, address, options, nil)
}

// DialService finds an announced bridge for service through the configured
// discovery and connects to the instance picked by the load balancer.
func DialService(ctx context.Context, service string, opts ...Option) (*Client, error) {
	options := defaultOptions()
	for _, o := range opts {
		o(options)
	}

	if options.discovery == nil {
		return nil, ErrDiscoveryRequired
	}

	instances, err := options.discovery.GetInstances(ctx, service)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", service, err)
	}

	instance, err := options.loadBalancer.Pick(ctx, instances)
	if err != nil {
		return nil, fmt.Errorf("pick %s instance: %w", service, err)
	}

	if !options.codecSet && instance.Codec != "" {
		codecType, err := protocol.ParseCodecType(instance.Codec)
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", instance.ID, err)
		}
		compressType, err := protocol.ParseCompressType(instance.Metadata["compress"])
		if err != nil {
			return nil, fmt.Errorf("instance %s: %w", instance.ID, err)
		}
		options.codecType, options.compressType = codecType, compressType
	}

	return dial(ctx, instance.Endpoint(), options, instance)
}

func dial(ctx context.Context, address string, options *clientOptions, instance *registry.ServiceInstance) (*Client, error) {
	c, err := codec.New(options.codecType, options.compressType)
	if err != nil {
		return nil, err
	}

	topts := []transport.ClientOption{
		transport.WithDialTimeout(options.dialTimeout),
		transport.WithReadTimeout(options.callTimeout),
		transport.WithWriteTimeout(options.callTimeout),
		transport.WithKeepAlive(options.keepAlive > 0, options.keepAlive),
		transport.WithRetry(options.maxRetries, options.retryInterval),
	}
	if options.maxMessageSize > 0 {
		topts = append(topts, transport.WithClientMaxMessageSize(options.maxMessageSize))
	}

	t := tcp.NewClient(address, topts...)
	if err := t.Dial(ctx, ""); err != nil {
		return nil, err
	}

	return &Client{
		opts:      options,
		codec:     c,
		transport: t,
		instance:  instance,
	}, nil
}

// Call sends command with raw args and returns the raw result. Error
// responses come back as errors wrapping *protocol.Error.
func (c *Client) Call(ctx context.Context, command string, args []byte) ([]byte, error) {
	payload, err := c.codec.EncodeRequest(command, args)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok && c.opts.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.callTimeout)
		defer cancel()
	}

	// a failed exchange drops the session; open a new one for this call
	if !c.transport.IsConnected() && c.opts.maxRetries == 0 {
		if err := c.transport.Dial(ctx, ""); err != nil && !c.transport.IsConnected() {
			return nil, err
		}
	}

	var reply []byte
	if c.opts.maxRetries > 0 {
		reply, err = c.transport.SendWithRetry(ctx, payload)
	} else {
		reply, err = c.transport.Send(ctx, payload)
	}
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", command, err)
	}

	resp, err := c.codec.DecodeResponse(reply)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.IsError() {
		return nil, unmapError(resp)
	}

	return resp.Data, nil
}

// CallJSON marshals args, calls command and unmarshals the result into out
// when out is non-nil.
func (c *Client) CallJSON(ctx context.Context, command string, args, out any) error {
	var raw []byte
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("marshal args: %w", err)
		}
		raw = b
	}

	result, err := c.Call(ctx, command, raw)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("unmarshal %s result: %w", command, err)
	}
	return nil
}

// Ping calls the built-in ping command.
func (c *Client) Ping(ctx context.Context) error {
	var reply struct {
		Result string `json:"result"`
	}
	if err := c.CallJSON(ctx, "ping", nil, &reply); err != nil {
		return err
	}
	if reply.Result != "pong" {
		return fmt.Errorf("unexpected ping reply %q", reply.Result)
	}
	return nil
}

func (c *Client) Endpoint() string {
	if addr := c.transport.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Instance is the discovered instance, nil for a client made with Dial.
func (c *Client) Instance() *registry.ServiceInstance {
	return c.instance
}

func (c *Client) Close() error {
	return c.transport.Close()
}
