package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prosimgo/internal/api"
	"prosimgo/pkg/config"
	"prosimgo/pkg/logging"
	"prosimgo/pkg/probe"
	"prosimgo/pkg/prosim"
	"prosimgo/pkg/publish"
	"prosimgo/pkg/version"
)

var (
	configPath = flag.String("config", "configs/prosim.yaml", "Path to the config file")
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
)

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("ProSim bridge started", "version", version.Version)

	backend, err := initializeSDK(appCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize sim backend: %w", err)
	}
	defer backend.release()

	var pub *publish.Publisher
	results := probe.Run(ctx, startupProbes(appCfg, backend, &pub))
	if pub != nil {
		defer pub.Close()
	}
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	hub := api.NewHub()
	client := prosim.NewClient(backend.sdk, clientOptions(hub, pub)...)
	defer client.Close()

	if appCfg.Sim.Synchronous {
		connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := client.Connect(connectCtx, appCfg.Sim.Host, true); err != nil {
			slog.Warn("Initial connect failed, supervisor will retry", "host", appCfg.Sim.Host, "error", err)
		}
		connectCancel()
	}

	sup := prosim.NewSupervisor(client, supervisorConfig(appCfg))
	defer startSupervisor(ctx, sup)()

	return runServer(ctx, appCfg, client, hub)
}

// startSupervisor runs sup in the background. The returned stop func blocks
// until Run has returned, so no reconnect can race the client shutdown.
func startSupervisor(ctx context.Context, sup *prosim.Supervisor) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func startupProbes(cfg *config.Config, backend *simBackend, pub **publish.Publisher) []probe.Probe {
	var probes []probe.Probe
	if cfg.Sim.Provider != "mock" {
		probes = append(probes, probe.Probe{
			Name:  "ProSim SDK",
			Check: func(context.Context) error { return backend.fallback },
		})
	}
	if cfg.NATS.Enabled {
		probes = append(probes, probe.Probe{
			Name:     "NATS",
			Critical: true,
			Check: func(context.Context) error {
				p, err := publish.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
				*pub = p
				return err
			},
		})
	}
	return probes
}

func clientOptions(hub *api.Hub, pub *publish.Publisher) []prosim.Option {
	opts := []prosim.Option{prosim.WithChangeObserver(hub.Broadcast)}
	if pub == nil {
		return opts
	}
	state := func(st prosim.State) func() {
		return func() {
			if err := pub.PublishState(st); err != nil {
				slog.Warn("Failed to publish link state", "state", st, "error", err)
			}
		}
	}
	return append(opts,
		prosim.WithChangeObserver(pub.Observer()),
		prosim.WithOnConnect(state(prosim.StateConnected)),
		prosim.WithOnDisconnect(state(prosim.StateDisconnected)),
	)
}

func supervisorConfig(cfg *config.Config) prosim.SupervisorConfig {
	sc := prosim.SupervisorConfig{
		Host:          cfg.Sim.Host,
		RetryInterval: cfg.Sim.ReconnectInterval.Std(),
	}
	for _, w := range cfg.Sim.Watch {
		sc.Watch = append(sc.Watch, prosim.Watch{Name: w.Name, Interval: w.Interval.Std()})
	}
	return sc
}

func runServer(ctx context.Context, cfg *config.Config, client *prosim.Client, hub *api.Hub) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	srv := api.NewServer(cfg.Server.Address, api.NewDataRefHandler(client), hub, func() {
		select {
		case quit <- syscall.SIGTERM:
		default:
		}
	})

	ln, err := api.Listen(cfg.Server.Address, cfg.Server.MaxConnections)
	if err != nil {
		return err
	}
	return runServerLifecycle(ctx, srv, ln, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, ln net.Listener, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", ln.Addr().String())
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
