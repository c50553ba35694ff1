// Package mocksdk is an in-process stand-in for the ProSim SDK.
// It serves a catalog of datarefs and delivers value updates on its own
// goroutines, the way the vendor library does from its background threads.
package mocksdk

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"time"

	"prosimgo/pkg/prosim"
)

var (
	errNotConnected = errors.New("mocksdk: not connected")
	errUnreachable  = errors.New("mocksdk: host unreachable")
)

// Config holds the behaviour of the mock simulator.
type Config struct {
	Catalog      []Entry
	ConnectDelay time.Duration
	// Unreachable makes every connect fail (blocking) or never complete (non-blocking).
	Unreachable bool
	License     prosim.LicenseInfo
}

// DefaultConfig returns a config serving DefaultCatalog.
func DefaultConfig() Config {
	return Config{
		Catalog: DefaultCatalog(),
		License: prosim.LicenseInfo{
			Mode:     "Professional",
			Features: []string{"MCP", "FMC", "IOS"},
			Licensee: "Mock Simulator",
		},
	}
}

type value struct {
	entry Entry
	cur   any
}

// SDK implements prosim.SDK.
type SDK struct {
	mu          sync.Mutex
	cfg         Config
	handlers    prosim.Handlers
	connected   bool
	unreachable bool
	host        string
	order       []string
	values      map[string]*value
	subs        map[*subscription]struct{}
	rng         *rand.Rand
}

// New creates a mock SDK.
func New(cfg Config) *SDK {
	s := &SDK{
		cfg:         cfg,
		unreachable: cfg.Unreachable,
		values:      make(map[string]*value, len(cfg.Catalog)),
		subs:        make(map[*subscription]struct{}),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, e := range cfg.Catalog {
		if _, dup := s.values[e.Name]; !dup {
			s.order = append(s.order, e.Name)
		}
		s.values[e.Name] = &value{entry: e, cur: e.Value}
	}
	return s
}

// SetHandlers implements prosim.SDK.
func (s *SDK) SetHandlers(h prosim.Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = h
}

// SetUnreachable toggles whether connects succeed.
func (s *SDK) SetUnreachable(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreachable = v
}

// Connect implements prosim.SDK.
func (s *SDK) Connect(host string, synchronous bool) error {
	if host == "" {
		return errors.New("mocksdk: empty host")
	}
	s.mu.Lock()
	unreachable := s.unreachable
	s.mu.Unlock()

	if synchronous {
		if unreachable {
			return errUnreachable
		}
		s.establish(host)
		return nil
	}
	if !unreachable {
		go s.establish(host)
	}
	return nil
}

func (s *SDK) establish(host string) {
	if s.cfg.ConnectDelay > 0 {
		time.Sleep(s.cfg.ConnectDelay)
	}

	s.mu.Lock()
	if s.connected || s.unreachable {
		s.mu.Unlock()
		return
	}
	s.connected = true
	s.host = host
	onConnect := s.handlers.OnConnect
	s.mu.Unlock()

	if onConnect != nil {
		onConnect()
	}
}

// Disconnect implements prosim.SDK.
func (s *SDK) Disconnect() error {
	s.Drop()
	return nil
}

// Drop simulates the simulator going away.
func (s *SDK) Drop() {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = false
	s.host = ""
	subs := s.subs
	s.subs = make(map[*subscription]struct{})
	onDisconnect := s.handlers.OnDisconnect
	s.mu.Unlock()

	for sub := range subs {
		sub.stop()
	}
	if onDisconnect != nil {
		onDisconnect()
	}
}

// Connected reports whether the mock link is up.
func (s *SDK) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Host returns the host of the live link.
func (s *SDK) Host() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.host
}

// DataRefDescriptions implements prosim.SDK.
func (s *SDK) DataRefDescriptions() ([]prosim.Description, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, errNotConnected
	}
	out := make([]prosim.Description, 0, len(s.order))
	for _, name := range s.order {
		e := s.values[name].entry
		out = append(out, prosim.Description{
			Name:        e.Name,
			Description: e.Description,
			CanRead:     e.CanRead,
			CanWrite:    e.CanWrite,
			DataType:    e.DataType,
			DataUnit:    e.Unit,
		})
	}
	return out, nil
}

// LicensingInfo implements prosim.SDK.
func (s *SDK) LicensingInfo() (prosim.LicenseInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return prosim.LicenseInfo{}, errNotConnected
	}
	info := s.cfg.License
	info.Features = append([]string(nil), info.Features...)
	return info, nil
}

// Subscribe implements prosim.SDK.
func (s *SDK) Subscribe(name string, interval time.Duration, onChange func(any)) (prosim.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, errNotConnected
	}
	if _, ok := s.values[name]; !ok {
		return nil, fmt.Errorf("mocksdk: no dataref %q", name)
	}

	sub := &subscription{
		sdk:      s,
		name:     name,
		interval: interval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	s.subs[sub] = struct{}{}
	if interval > 0 {
		go sub.loop()
	}
	return sub, nil
}

// Set changes a value from the simulator side, as a cockpit switch would.
func (s *SDK) Set(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.values[name]
	if !ok {
		return fmt.Errorf("mocksdk: no dataref %q", name)
	}
	val.cur = v
	return nil
}

// Get returns the simulator-side value of name.
func (s *SDK) Get(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.values[name]
	if !ok {
		return nil, fmt.Errorf("mocksdk: no dataref %q", name)
	}
	return val.cur, nil
}

// sample advances drift on read-only numeric values and returns the current value.
func (s *SDK) sample(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	val := s.values[name]
	e := val.entry
	if e.Drift > 0 && !e.CanWrite {
		if f, ok := val.cur.(float64); ok {
			val.cur = f + (s.rng.Float64()*2-1)*e.Drift
		}
	}
	return val.cur
}

func (s *SDK) write(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return errNotConnected
	}
	val := s.values[name]
	if !val.entry.CanWrite {
		return fmt.Errorf("mocksdk: dataref %q is read-only", name)
	}
	val.cur = v
	return nil
}

func (s *SDK) release(sub *subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
}

type subscription struct {
	sdk      *SDK
	name     string
	interval time.Duration
	onChange func(any)

	mu        sync.Mutex
	last      any
	delivered bool

	done     chan struct{}
	stopOnce sync.Once
}

func (s *subscription) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *subscription) poll() {
	v := s.sdk.sample(s.name)

	s.mu.Lock()
	changed := !s.delivered || !reflect.DeepEqual(v, s.last)
	s.last = v
	s.delivered = true
	s.mu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}
	if changed && s.onChange != nil {
		s.onChange(v)
	}
}

// Value returns the last value delivered by the simulator, nil before the first update.
func (s *subscription) Value() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}

// SetValue writes to the simulator.
func (s *subscription) SetValue(v any) error {
	select {
	case <-s.done:
		return errors.New("mocksdk: subscription closed")
	default:
	}
	return s.sdk.write(s.name, v)
}

// Close stops updates.
func (s *subscription) Close() error {
	s.stop()
	s.sdk.release(s)
	return nil
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() { close(s.done) })
}
