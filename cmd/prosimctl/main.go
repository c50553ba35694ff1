// Command prosimctl talks to ProSim737 from the command line.
//
//	prosimctl [flags] info
//	prosimctl [flags] datarefs [-live]
//	prosimctl [flags] read NAME
//	prosimctl [flags] watch NAME...
//	prosimctl [flags] write NAME VALUE...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prosimgo/pkg/config"
	"prosimgo/pkg/prosim"
	"prosimgo/pkg/prosim/comsdk"
	"prosimgo/pkg/prosim/mocksdk"
)

type options struct {
	configPath string
	host       string
	provider   string
	interval   time.Duration
	pause      time.Duration
	timeout    time.Duration
	count      int
}

// newSDK opens the vendor backend; tests swap it for a mock.
var newSDK = openSDK

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("prosimctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.configPath, "config", "configs/prosim.yaml", "Path to the config file")
	fs.StringVar(&opts.host, "host", "", "Simulator host (overrides sim.host)")
	fs.StringVar(&opts.provider, "provider", "", "prosim or mock (overrides sim.provider)")
	fs.DurationVar(&opts.interval, "interval", 100*time.Millisecond, "Update interval for read and watch")
	fs.DurationVar(&opts.pause, "pause", time.Second, "Pause between values for write, and between prints for read")
	fs.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Connect timeout")
	fs.IntVar(&opts.count, "count", 0, "Stop read or watch after this many values (0 = until interrupted)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: prosimctl [flags] info|datarefs [-live]|read NAME|watch NAME...|write NAME VALUE...")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	if err := execute(ctx, &opts, fs.Args(), stdout); err != nil {
		fmt.Fprintf(stderr, "prosimctl: %v\n", err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func execute(ctx context.Context, opts *options, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	cmdFn, ok := commands[cmd]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	sdk, release, err := newSDK(cfg)
	if err != nil {
		return err
	}
	defer release()

	client := prosim.NewClient(sdk,
		prosim.WithOnConnect(func() { fmt.Fprintln(out, "Prosim is connected!") }),
		prosim.WithOnDisconnect(func() { fmt.Fprintln(out, "Prosim is DISCONNECTED!") }),
	)
	defer client.Close()

	connectCtx, cancel := context.WithTimeout(ctx, opts.timeout)
	err = client.Connect(connectCtx, cfg.Sim.Host, true)
	cancel()
	if err != nil {
		return fmt.Errorf("connect %s: %w", cfg.Sim.Host, err)
	}

	return cmdFn(ctx, client, opts, rest, out)
}

// loadConfig reads the config file when present; flags override it.
func loadConfig(opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if _, err := os.Stat(opts.configPath); err == nil {
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.host != "" {
		cfg.Sim.Host = opts.host
	}
	if opts.provider != "" {
		cfg.Sim.Provider = opts.provider
	}
	return cfg, nil
}

func openSDK(cfg *config.Config) (prosim.SDK, func(), error) {
	if cfg.Sim.Provider == "mock" {
		mc := mocksdk.DefaultConfig()
		if cfg.Sim.Mock.Catalog != "" {
			entries, err := mocksdk.LoadCatalog(cfg.Sim.Mock.Catalog)
			if err != nil {
				return nil, nil, err
			}
			mc.Catalog = entries
		}
		return mocksdk.New(mc), func() {}, nil
	}

	path := cfg.Sim.SDKPath
	if path == "" {
		found, err := comsdk.FindSDK()
		if err != nil {
			return nil, nil, err
		}
		path = found
	}
	sdk, err := comsdk.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return sdk, sdk.Release, nil
}
