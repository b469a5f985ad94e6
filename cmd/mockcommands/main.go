// mockcommands is a development upstream for the flashlight service.
//
// It listens for TCP clients and, on each connection, cycles pink, on,
// sky blue, off forever, one command per interval, written as compact JSON
// with no delimiter. When a client disconnects the server exits, so a
// service restart also needs a mock restart.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nerrad567/flashlight-core/internal/bridges/upstream"
	"github.com/nerrad567/flashlight-core/internal/infrastructure/config"
	"github.com/nerrad567/flashlight-core/internal/infrastructure/logging"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the command-line flags.
type options struct {
	addr      string
	interval  time.Duration
	keepAlive bool
	logLevel  string
	ready     func(addr string)
}

func parseFlags(args []string) (options, error) {
	opts := options{}

	flagSet := pflag.NewFlagSet("mockcommands", pflag.ContinueOnError)
	flagSet.StringVar(&opts.addr, "addr", "127.0.0.1:9999", "listen address")
	flagSet.DurationVar(&opts.interval, "interval", upstream.DefaultMockInterval, "pause between commands")
	flagSet.BoolVar(&opts.keepAlive, "keep-alive", false, "keep serving after a client disconnects")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if opts.interval <= 0 {
		return opts, fmt.Errorf("--interval must be positive")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	return serve(ctx, opts, stdout)
}

func serve(ctx context.Context, opts options, stdout io.Writer) error {
	log := logging.NewWithWriter(config.LoggingConfig{
		Level:  opts.logLevel,
		Format: "text",
	}, version, stdout).With("component", "mockcommands")

	server, err := upstream.NewMockServer(upstream.MockServerConfig{
		Address:          opts.addr,
		Interval:         opts.interval,
		StopOnDisconnect: !opts.keepAlive,
	})
	if err != nil {
		return err
	}
	server.SetLogger(log)

	log.Info("mock upstream listening", "address", server.Addr(), "interval", opts.interval)
	if opts.ready != nil {
		opts.ready(server.Addr())
	}

	if err := server.Serve(ctx); err != nil {
		return err
	}
	log.Info("mock upstream stopped")
	return nil
}
