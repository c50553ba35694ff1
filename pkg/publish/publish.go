// Package publish forwards dataref changes and link state to NATS.
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"prosimgo/pkg/prosim"
)

const source = "prosimd"

// ChangeEvent is published to <prefix>.<dataref name>.
type ChangeEvent struct {
	ID     string    `json:"id"`
	Source string    `json:"source"`
	Name   string    `json:"name"`
	Value  any       `json:"value"`
	Time   time.Time `json:"time"`
}

// StateEvent is published to <prefix>.state.
type StateEvent struct {
	ID     string       `json:"id"`
	Source string       `json:"source"`
	State  prosim.State `json:"state"`
	Time   time.Time    `json:"time"`
}

// Publisher publishes binding events on a NATS connection.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// Connect dials NATS and returns a Publisher for subjects under prefix.
// Extra options are applied after the defaults.
func Connect(url, prefix string, opts ...nats.Option) (*Publisher, error) {
	if prefix == "" {
		prefix = "prosim"
	}
	logger := slog.Default().With("component", "publish")

	base := []nats.Option{
		nats.Name(source),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("NATS error", "error", err)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("Connected to NATS", "url", nc.ConnectedUrl(), "prefix", prefix)

	return &Publisher{nc: nc, prefix: prefix, logger: logger}, nil
}

// Subject returns the subject a dataref's changes are published to.
// Dataref dots become subject tokens; characters NATS reserves are replaced.
func Subject(prefix, name string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '*', '>':
			return '_'
		}
		return r
	}, name)
	return prefix + "." + clean
}

// Publish sends one change event.
func (p *Publisher) Publish(ch prosim.Change) error {
	ev := ChangeEvent{
		ID:     uuid.New().String(),
		Source: source,
		Name:   ch.Name,
		Value:  ch.Value,
		Time:   ch.Time,
	}
	return p.send(Subject(p.prefix, ch.Name), ev)
}

// PublishState sends a link state event.
func (p *Publisher) PublishState(st prosim.State) error {
	ev := StateEvent{
		ID:     uuid.New().String(),
		Source: source,
		State:  st,
		Time:   time.Now(),
	}
	return p.send(p.prefix+".state", ev)
}

// Observer adapts Publish to a prosim change observer; failures are logged.
func (p *Publisher) Observer() prosim.ChangeFunc {
	return func(ch prosim.Change) {
		if err := p.Publish(ch); err != nil {
			p.logger.Warn("Failed to publish change", "name", ch.Name, "error", err)
		}
	}
}

func (p *Publisher) send(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close flushes pending events and closes the connection.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}
