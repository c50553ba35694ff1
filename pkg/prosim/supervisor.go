package prosim

import (
	"context"
	"log/slog"
	"time"
)

// Watch names a dataref the supervisor activates on every connection.
type Watch struct {
	Name     string
	Interval time.Duration
}

// SupervisorConfig holds the reconnect settings.
type SupervisorConfig struct {
	Host          string
	RetryInterval time.Duration
	// PollInterval is how often the connection state is checked.
	PollInterval time.Duration
	Watch        []Watch
}

// Supervisor keeps a Client connected: it issues non-blocking connects while
// offline and re-activates the watch list after each connection.
type Supervisor struct {
	client *Client
	cfg    SupervisorConfig
	logger *slog.Logger

	lastAttempt  time.Time
	lastState    State
	lastConnects uint64
}

// NewSupervisor creates a supervisor for client.
func NewSupervisor(client *Client, cfg SupervisorConfig) *Supervisor {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	return &Supervisor{
		client:    client,
		cfg:       cfg,
		logger:    slog.Default().With("component", "supervisor"),
		lastState: StateDisconnected,
	}
}

// Run loops until ctx is done.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Supervisor) tick(ctx context.Context) {
	state, connects := s.client.link()
	prev := s.lastState
	s.lastState = state

	switch state {
	case StateConnected:
		// A drop and reconnect between two polls still counts as a new connection.
		if connects != s.lastConnects {
			s.lastConnects = connects
			s.online()
		}
	default:
		if prev == StateConnected {
			s.logger.Warn("Simulator link lost, reconnecting", "host", s.cfg.Host)
		}
		if time.Since(s.lastAttempt) < s.cfg.RetryInterval {
			return
		}
		s.lastAttempt = time.Now()
		if err := s.client.Connect(ctx, s.cfg.Host, false); err != nil {
			s.logger.Debug("Connect attempt failed", "host", s.cfg.Host, "error", err)
		}
	}
}

func (s *Supervisor) online() {
	if info, err := s.client.Info(); err != nil {
		s.logger.Warn("Failed to read licensing info", "error", err)
	} else {
		s.logger.Info("Simulator online", "mode", info.Mode, "licensee", info.Licensee, "features", info.Features)
	}

	for _, w := range s.cfg.Watch {
		if err := s.client.Activate(w.Name, w.Interval, nil); err != nil {
			s.logger.Warn("Failed to activate watched dataref", "name", w.Name, "error", err)
			continue
		}
		s.logger.Debug("Watched dataref activated", "name", w.Name, "interval", w.Interval)
	}
}
