package prosim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"prosimgo/pkg/logging"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used by the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithOnConnect registers a callback run after the registry has been rebuilt.
func WithOnConnect(fn func()) Option {
	return func(c *Client) { c.onConnect = fn }
}

// WithOnDisconnect registers a callback run when the simulator link drops.
func WithOnDisconnect(fn func()) Option {
	return func(c *Client) { c.onDisconnect = fn }
}

// WithChangeObserver adds a callback that sees every dataref change.
// It may be given more than once.
func WithChangeObserver(fn ChangeFunc) Option {
	return func(c *Client) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

type activation struct {
	sub      Subscription
	interval time.Duration
}

func (a *activation) close() {
	if a != nil && a.sub != nil {
		_ = a.sub.Close()
	}
}

// Client binds an SDK to a dataref registry and per-dataref activations.
type Client struct {
	sdk      SDK
	registry *Registry
	logger   *slog.Logger

	onConnect    func()
	onDisconnect func()
	observers    []ChangeFunc

	mu       sync.Mutex
	state    State
	subs     map[string]*activation
	connects uint64 // bumped on every vendor connect
}

// NewClient wraps sdk and registers the connection handlers with it.
func NewClient(sdk SDK, opts ...Option) *Client {
	c := &Client{
		sdk:      sdk,
		registry: NewRegistry(),
		logger:   slog.Default().With("component", "prosim"),
		state:    StateDisconnected,
		subs:     make(map[string]*activation),
	}
	for _, opt := range opts {
		opt(c)
	}
	sdk.SetHandlers(Handlers{
		OnConnect:    c.handleConnect,
		OnDisconnect: c.handleDisconnect,
	})
	return c
}

// Connect asks the SDK to connect to host. With synchronous set it blocks until
// the SDK reports the link, or until ctx ends.
func (c *Client) Connect(ctx context.Context, host string, synchronous bool) error {
	if host == "" {
		return errors.New("connect: empty host")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == StateDisconnected {
		c.state = StateConnecting
	}
	c.mu.Unlock()

	if !synchronous {
		if err := c.sdk.Connect(host, false); err != nil {
			c.resetConnecting()
			return fmt.Errorf("connect %s: %w", host, err)
		}
		return nil
	}

	errc := make(chan error, 1)
	go func() {
		err := c.sdk.Connect(host, true)
		if err != nil {
			// Also covers a caller that stopped waiting.
			c.resetConnecting()
		}
		errc <- err
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("connect %s: %w", host, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) resetConnecting() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnecting {
		c.state = StateDisconnected
	}
}

// Disconnect closes the SDK link and releases every activation.
func (c *Client) Disconnect() error {
	err := c.sdk.Disconnect()
	c.handleDisconnect()
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// Close disconnects from the simulator.
func (c *Client) Close() error {
	return c.Disconnect()
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// link returns the state together with the number of connects seen so far.
func (c *Client) link() (State, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.connects
}

func (c *Client) handleConnect() {
	descs, err := c.sdk.DataRefDescriptions()
	if err != nil {
		c.logger.Error("Failed to fetch dataref descriptions", "error", err)
	}

	c.mu.Lock()
	old := c.subs
	c.subs = make(map[string]*activation)
	c.registry.Replace(toDescriptors(descs))
	c.state = StateConnected
	c.connects++
	c.mu.Unlock()

	for _, act := range old {
		act.close()
	}

	c.logger.Info("ProSim connected", "datarefs", len(descs))
	if c.onConnect != nil {
		c.onConnect()
	}
}

func (c *Client) handleDisconnect() {
	c.mu.Lock()
	wasConnected := c.state == StateConnected
	old := c.subs
	c.subs = make(map[string]*activation)
	for name := range old {
		_ = c.registry.setActivation(name, false, 0)
	}
	c.state = StateDisconnected
	c.mu.Unlock()

	for _, act := range old {
		act.close()
	}

	if !wasConnected {
		return
	}
	c.logger.Info("ProSim disconnected")
	if c.onDisconnect != nil {
		c.onDisconnect()
	}
}

func toDescriptors(descs []Description) []Descriptor {
	out := make([]Descriptor, 0, len(descs))
	for _, d := range descs {
		out = append(out, NewDescriptor(d))
	}
	return out
}

// DataRefs returns the registry contents sorted by name.
func (c *Client) DataRefs() []Descriptor {
	return c.registry.List()
}

// DataRef returns the registered descriptor for name.
func (c *Client) DataRef(name string) (Descriptor, error) {
	return c.registry.Lookup(name)
}

// AvailableDataRefs queries the SDK directly without touching the registry.
func (c *Client) AvailableDataRefs() ([]Descriptor, error) {
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}
	descs, err := c.sdk.DataRefDescriptions()
	if err != nil {
		return nil, fmt.Errorf("list datarefs: %w", err)
	}
	return toDescriptors(descs), nil
}

// Refresh rebuilds the registry from the SDK. Activations whose dataref is
// still reported are kept; the rest are released.
func (c *Client) Refresh() error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	descs, err := c.sdk.DataRefDescriptions()
	if err != nil {
		return fmt.Errorf("refresh datarefs: %w", err)
	}
	next := toDescriptors(descs)

	c.mu.Lock()
	known := make(map[string]bool, len(next))
	for i := range next {
		known[next[i].Name] = true
		if act, ok := c.subs[next[i].Name]; ok {
			next[i].Active = true
			next[i].Interval = act.interval
		}
	}
	var dropped []*activation
	for name, act := range c.subs {
		if !known[name] {
			dropped = append(dropped, act)
			delete(c.subs, name)
		}
	}
	c.registry.Replace(next)
	c.mu.Unlock()

	for _, act := range dropped {
		act.close()
	}
	c.logger.Debug("Dataref registry refreshed", "datarefs", len(next), "dropped", len(dropped))
	return nil
}

// Activate subscribes to a registered dataref. The simulator sends the value
// every interval; zero requests write-only access. Activating an active
// dataref replaces its subscription.
func (c *Client) Activate(name string, interval time.Duration, onChange ChangeFunc) error {
	if interval < 0 || interval > MaxInterval {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}
	if _, err := c.registry.Lookup(name); err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	old := c.subs[name]
	act := &activation{interval: interval}
	c.subs[name] = act
	c.mu.Unlock()

	sub, err := c.sdk.Subscribe(name, interval, func(v any) {
		c.dispatch(name, act, v, onChange)
	})

	c.mu.Lock()
	if err != nil {
		if c.subs[name] == act {
			if old != nil {
				c.subs[name] = old
			} else {
				delete(c.subs, name)
			}
		}
		c.mu.Unlock()
		return fmt.Errorf("activate %q: %w", name, err)
	}
	if cur := c.subs[name]; cur != act {
		// Superseded by a newer activation, or dropped by a reconnect or Deactivate.
		connected := c.state == StateConnected
		c.mu.Unlock()
		_ = sub.Close()
		switch {
		case !connected:
			return ErrNotConnected
		case cur == nil:
			return fmt.Errorf("%w: %q was released while activating", ErrNotActive, name)
		}
		return nil
	}
	act.sub = sub
	_ = c.registry.setActivation(name, true, interval)
	c.mu.Unlock()

	old.close()
	c.logger.Debug("Dataref activated", "name", name, "interval", interval)
	return nil
}

// Deactivate releases the subscription of an active dataref.
func (c *Client) Deactivate(name string) error {
	if _, err := c.registry.Lookup(name); err != nil {
		return err
	}

	c.mu.Lock()
	act, ok := c.subs[name]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotActive, name)
	}
	delete(c.subs, name)
	_ = c.registry.setActivation(name, false, 0)
	c.mu.Unlock()

	act.close()
	return nil
}

func (c *Client) dispatch(name string, act *activation, v any, onChange ChangeFunc) {
	c.mu.Lock()
	current := c.subs[name] == act
	c.mu.Unlock()
	if !current {
		return
	}

	ch := Change{Name: name, Value: v, Time: time.Now()}
	logging.Trace(c.logger, "Dataref changed", "name", name, "value", v)
	if onChange != nil {
		onChange(ch)
	}
	for _, obs := range c.observers {
		obs(ch)
	}
}

func (c *Client) subscription(name string) (Subscription, error) {
	if _, err := c.registry.Lookup(name); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	act, ok := c.subs[name]
	if !ok || act.sub == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotActive, name)
	}
	return act.sub, nil
}

// Value returns the last value the simulator sent for name.
// It is nil until the first update arrives.
func (c *Client) Value(name string) (any, error) {
	sub, err := c.subscription(name)
	if err != nil {
		return nil, err
	}
	return sub.Value()
}

// Float returns the value of name as float64.
func (c *Client) Float(name string) (float64, error) {
	v, err := c.typed(name, TypeFloat64)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// Int returns the value of name as int64.
func (c *Client) Int(name string) (int64, error) {
	v, err := c.typed(name, TypeInt64)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Bool returns the value of name as bool.
func (c *Client) Bool(name string) (bool, error) {
	v, err := c.typed(name, TypeBool)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// String returns the value of name formatted as text.
func (c *Client) String(name string) (string, error) {
	v, err := c.Value(name)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("read %q: %w: no value yet", name, ErrTypeCoercion)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

func (c *Client) typed(name string, t DataType) (any, error) {
	v, err := c.Value(name)
	if err != nil {
		return nil, err
	}
	out, err := t.Coerce(v)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", name, err)
	}
	return out, nil
}

// SetValue writes v to an active, writable dataref after coercing it to the
// dataref type.
func (c *Client) SetValue(name string, v any) error {
	d, err := c.registry.Lookup(name)
	if err != nil {
		return err
	}
	if !d.CanWrite {
		return fmt.Errorf("%w: %q", ErrNotWritable, name)
	}
	coerced, err := d.Type.Coerce(v)
	if err != nil {
		return fmt.Errorf("set %q: %w", name, err)
	}
	sub, err := c.subscription(name)
	if err != nil {
		return err
	}
	if err := sub.SetValue(coerced); err != nil {
		return fmt.Errorf("set %q: %w", name, err)
	}
	return nil
}

// Info returns the simulator licensing information.
func (c *Client) Info() (LicenseInfo, error) {
	if c.State() != StateConnected {
		return LicenseInfo{}, ErrNotConnected
	}
	info, err := c.sdk.LicensingInfo()
	if err != nil {
		return LicenseInfo{}, fmt.Errorf("licensing info: %w", err)
	}
	return info, nil
}
