// Kunhua Huang 2026

// bridgectl sends one command to a running bridge and prints the reply.
//
//	bridgectl --addr 127.0.0.1:8080 echo hello
//	bridgectl --etcd 127.0.0.1:2379 --codec json spawn '{"actor_class":"Cube"}'
//	bridgectl --etcd 127.0.0.1:2379 --watch
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/ecstasoy/editorbridge/pkg/client"
	"github.com/ecstasoy/editorbridge/pkg/loadbalancer"
	"github.com/ecstasoy/editorbridge/pkg/protocol"
	"github.com/ecstasoy/editorbridge/pkg/registry"
	"github.com/ecstasoy/editorbridge/pkg/registry/etcd"
)

type options struct {
	addr     string
	codec    string
	compress string
	timeout  time.Duration
	retries  int

	etcdEndpoints []string
	keyPrefix     string
	service       string
	balancer      string
	watch         bool
}

func main() {
	var o options

	pflag.StringVarP(&o.addr, "addr", "a", "127.0.0.1:8080", "bridge address")
	pflag.StringVar(&o.codec, "codec", "", "payload codec: text, json or protobuf (default: advertised or text)")
	pflag.StringVar(&o.compress, "compress", "", "payload compression: none or gzip")
	pflag.DurationVarP(&o.timeout, "timeout", "t", 10*time.Second, "call timeout")
	pflag.IntVar(&o.retries, "retries", 0, "resend after transport failures")
	pflag.StringSliceVar(&o.etcdEndpoints, "etcd", nil, "discover the bridge through these etcd endpoints")
	pflag.StringVar(&o.keyPrefix, "key-prefix", "/editorbridge/services", "etcd key prefix")
	pflag.StringVar(&o.service, "service", "editorbridge", "announced service name")
	pflag.StringVar(&o.balancer, "balancer", "round-robin", "instance selection: round-robin, random or local-first")
	pflag.BoolVarP(&o.watch, "watch", "w", false, "print announcement changes instead of calling")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: bridgectl [flags] COMMAND [ARGS]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o, pflag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "bridgectl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, args []string) error {
	var discovery registry.Discovery
	if len(o.etcdEndpoints) > 0 {
		cfg := etcd.DefaultConfig()
		cfg.Endpoints = o.etcdEndpoints
		cfg.KeyPrefix = o.keyPrefix

		d, err := etcd.New(cfg)
		if err != nil {
			return err
		}
		defer d.Close()
		discovery = d
	}

	if o.watch {
		if discovery == nil {
			return errors.New("--watch needs --etcd")
		}
		return watch(ctx, discovery, o.service)
	}

	if len(args) == 0 {
		pflag.Usage()
		return errors.New("missing command")
	}

	c, err := connect(ctx, o, discovery)
	if err != nil {
		return err
	}
	defer c.Close()

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var payload []byte
	if len(args) > 1 {
		payload = []byte(strings.Join(args[1:], " "))
	}

	reply, err := c.Call(callCtx, args[0], payload)
	if err != nil {
		return err
	}

	fmt.Println(string(reply))
	return nil
}

func connect(ctx context.Context, o options, discovery registry.Discovery) (*client.Client, error) {
	opts := []client.Option{
		client.WithTimeout(o.timeout),
		client.WithRetry(o.retries, 200*time.Millisecond),
	}

	if o.codec != "" || o.compress != "" {
		codecType, err := protocol.ParseCodecType(o.codec)
		if err != nil {
			return nil, err
		}
		compressType, err := protocol.ParseCompressType(o.compress)
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.WithCodec(codecType, compressType))
	}

	if discovery == nil {
		return client.Dial(ctx, o.addr, opts...)
	}

	lb, err := loadbalancer.New(o.balancer)
	if err != nil {
		return nil, err
	}

	opts = append(opts, client.WithDiscovery(discovery), client.WithLoadBalancer(lb))
	return client.DialService(ctx, o.service, opts...)
}

func watch(ctx context.Context, discovery registry.Discovery, service string) error {
	instances, err := discovery.GetInstances(ctx, service)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		fmt.Printf("%-6s %s %s codec=%s\n", "UP", inst.ID, inst.Endpoint(), inst.Codec)
	}

	w, err := discovery.Watch(ctx, service)
	if err != nil {
		return err
	}
	defer w.Stop()

	for {
		ev, err := w.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, registry.ErrWatcherStopped) {
				return nil
			}
			return err
		}

		if ev.Instance == nil {
			fmt.Printf("%-6s\n", ev.Type)
			continue
		}
		fmt.Printf("%-6s %s %s codec=%s\n", ev.Type, ev.Instance.ID, ev.Instance.Endpoint(), ev.Instance.Codec)
	}
}
