// Package comsdk drives the ProSim737 SDK through its COM registration.
//
// ProSimSDK.dll is a .NET assembly; once registered with
// `regasm ProSimSDK.dll /codebase` its classes are reachable through
// IDispatch late binding. COM events cannot be sunk that way, so the
// connection flag and subscribed values are polled instead.
package comsdk

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"prosimgo/pkg/logging"
	"prosimgo/pkg/prosim"
)

const (
	// ConnectProgID is the COM class of the SDK connection object.
	ConnectProgID = "ProSimSDK.ProSimConnect"

	statePollInterval = 250 * time.Millisecond
)

// CandidatePaths lists where ProSimSDK.dll is looked for, in order.
// PROSIM_SDK_PATH comes first when set.
func CandidatePaths() []string {
	var paths []string
	if p := os.Getenv("PROSIM_SDK_PATH"); p != "" {
		paths = append(paths, p)
	}
	return append(paths,
		`C:\ProSim-AR\ProSim737\ProSimSDK.dll`,
		`C:\Program Files\ProSim-AR\ProSim737\ProSimSDK.dll`,
		`C:\Program Files (x86)\ProSim-AR\ProSim737\ProSimSDK.dll`,
		filepath.Join("lib", "ProSimSDK.dll"),
	)
}

// FindSDK returns the first candidate path that exists.
func FindSDK() (string, error) {
	for _, p := range CandidatePaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: ProSimSDK.dll not found", prosim.ErrSDKLoad)
}

// SDK implements prosim.SDK over COM.
type SDK struct {
	path   string
	thread *comThread
	conn   *ole.IDispatch
	logger *slog.Logger

	mu        sync.Mutex
	handlers  prosim.Handlers
	connected bool

	stopCh    chan struct{}
	closeOnce sync.Once
}

// Load checks the assembly at path and creates the SDK connection object.
// Every failure wraps prosim.ErrSDKLoad.
func Load(path string) (*SDK, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", prosim.ErrSDKLoad, err)
	}

	thread, err := startThread()
	if err != nil {
		return nil, fmt.Errorf("%w: COM init: %w", prosim.ErrSDKLoad, err)
	}

	s := &SDK{
		path:   path,
		thread: thread,
		logger: slog.Default().With("component", "comsdk"),
		stopCh: make(chan struct{}),
	}

	err = thread.do(func() error {
		unknown, err := oleutil.CreateObject(ConnectProgID)
		if err != nil {
			return err
		}
		defer unknown.Release()
		disp, err := unknown.QueryInterface(ole.IID_IDispatch)
		if err != nil {
			return err
		}
		s.conn = disp
		return nil
	})
	if err != nil {
		thread.stop()
		return nil, fmt.Errorf("%w: create %s: %w", prosim.ErrSDKLoad, ConnectProgID, err)
	}

	go s.watch()
	s.logger.Info("ProSim SDK loaded", "path", path)
	return s, nil
}

// Path returns the assembly the SDK was loaded from.
func (s *SDK) Path() string {
	return s.path
}

// Release stops polling and frees the COM objects.
func (s *SDK) Release() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		_ = s.thread.do(func() error {
			s.conn.Release()
			return nil
		})
		s.thread.stop()
	})
}

// SetHandlers implements prosim.SDK.
func (s *SDK) SetHandlers(h prosim.Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = h
}

// Connect implements prosim.SDK.
func (s *SDK) Connect(host string, synchronous bool) error {
	err := s.thread.do(func() error {
		_, err := oleutil.CallMethod(s.conn, "Connect", host, synchronous)
		return err
	})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if synchronous {
		s.syncState()
	}
	return nil
}

// Disconnect implements prosim.SDK.
func (s *SDK) Disconnect() error {
	err := s.thread.do(func() error {
		_, err := oleutil.CallMethod(s.conn, "Disconnect")
		return err
	})
	s.syncState()
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

func (s *SDK) watch() {
	ticker := time.NewTicker(statePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.syncState()
		}
	}
}

// syncState reads the connection flag and raises a handler on each edge.
func (s *SDK) syncState() {
	var up bool
	err := s.thread.do(func() error {
		up = getBool(s.conn, "isConnected")
		return nil
	})
	if err != nil {
		return
	}

	s.mu.Lock()
	if up == s.connected {
		s.mu.Unlock()
		return
	}
	s.connected = up
	h := s.handlers
	s.mu.Unlock()

	if up && h.OnConnect != nil {
		h.OnConnect()
	}
	if !up && h.OnDisconnect != nil {
		h.OnDisconnect()
	}
}

// DataRefDescriptions implements prosim.SDK.
func (s *SDK) DataRefDescriptions() ([]prosim.Description, error) {
	var out []prosim.Description
	err := s.thread.do(func() error {
		v, err := oleutil.CallMethod(s.conn, "getDataRefDescriptions")
		if err != nil {
			return err
		}
		defer func() { _ = v.Clear() }()
		list := v.ToIDispatch()
		if list == nil {
			return errors.New("description list is nil")
		}
		return forEach(list, func(item *ole.IDispatch) {
			out = append(out, prosim.Description{
				Name:        getString(item, "Name"),
				Description: getString(item, "Description"),
				CanRead:     getBool(item, "CanRead"),
				CanWrite:    getBool(item, "CanWrite"),
				DataType:    getString(item, "DataType"),
				DataUnit:    getString(item, "DataUnit"),
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("getDataRefDescriptions: %w", err)
	}
	return out, nil
}

// LicensingInfo implements prosim.SDK.
func (s *SDK) LicensingInfo() (prosim.LicenseInfo, error) {
	var info prosim.LicenseInfo
	err := s.thread.do(func() error {
		v, err := oleutil.CallMethod(s.conn, "getLicensingInfo")
		if err != nil {
			return err
		}
		defer func() { _ = v.Clear() }()
		d := v.ToIDispatch()
		if d == nil {
			return errors.New("licensing info is nil")
		}
		info.Mode = getString(d, "Mode")
		info.Licensee = getString(d, "Licensee")

		fv, err := oleutil.GetProperty(d, "Features")
		if err != nil {
			return nil
		}
		defer func() { _ = fv.Clear() }()
		if feats := fv.ToIDispatch(); feats != nil {
			return forEachValue(feats, func(f any) {
				info.Features = append(info.Features, fmt.Sprint(f))
			})
		}
		return nil
	})
	if err != nil {
		return prosim.LicenseInfo{}, fmt.Errorf("getLicensingInfo: %w", err)
	}
	return info, nil
}

// Subscribe implements prosim.SDK. The dataref is created through the
// connection's CreateDataRef factory, the COM counterpart of
// `new DataRef(name, interval, connection)`.
func (s *SDK) Subscribe(name string, interval time.Duration, onChange func(any)) (prosim.Subscription, error) {
	if interval < 0 || interval > prosim.MaxInterval {
		return nil, fmt.Errorf("%w: %v", prosim.ErrInvalidInterval, interval)
	}
	sub := &subscription{
		sdk:      s,
		name:     name,
		interval: interval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	err := s.thread.do(func() error {
		v, err := oleutil.CallMethod(s.conn, "CreateDataRef", name, int32(interval.Milliseconds()))
		if err != nil {
			return err
		}
		d := v.ToIDispatch()
		if d == nil {
			return errors.New("dataref object is nil")
		}
		sub.disp = d
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("CreateDataRef %q: %w", name, err)
	}
	if interval > 0 {
		go sub.loop()
	}
	return sub, nil
}

type subscription struct {
	sdk      *SDK
	disp     *ole.IDispatch
	name     string
	interval time.Duration
	onChange func(any)

	mu        sync.Mutex
	last      any
	delivered bool

	done      chan struct{}
	closeOnce sync.Once
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
	v, err := s.read()
	if err != nil {
		logging.Trace(s.sdk.logger, "DataRef poll failed", "name", s.name, "error", err)
		return
	}

	s.mu.Lock()
	changed := !s.delivered || !reflect.DeepEqual(v, s.last)
	s.last = v
	s.delivered = true
	s.mu.Unlock()

	if changed && s.onChange != nil {
		s.onChange(v)
	}
}

func (s *subscription) read() (any, error) {
	var out any
	err := s.sdk.thread.do(func() error {
		v, err := getProp(s.disp, "value")
		out = v
		return err
	})
	return out, err
}

// Value returns the value last received from the simulator.
func (s *subscription) Value() (any, error) {
	if s.interval == 0 {
		return nil, nil
	}
	return s.read()
}

// SetValue writes v to the simulator.
func (s *subscription) SetValue(v any) error {
	return s.sdk.thread.do(func() error {
		_, err := oleutil.PutProperty(s.disp, "value", v)
		return err
	})
}

// Close stops polling and releases the dataref object.
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.sdk.thread.do(func() error {
			s.disp.Release()
			return nil
		})
	})
	return nil
}
