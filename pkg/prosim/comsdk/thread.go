package comsdk

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/go-ole/go-ole"
)

var errThreadStopped = errors.New("comsdk: COM thread stopped")

// comThread serialises every COM call onto one locked OS thread, since the
// objects live in a single-threaded apartment.
type comThread struct {
	calls    chan func()
	done     chan struct{}
	stopOnce sync.Once
}

func startThread() (*comThread, error) {
	t := &comThread{
		calls: make(chan func()),
		done:  make(chan struct{}),
	}
	ready := make(chan error, 1)
	go t.run(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return t, nil
}

func (t *comThread) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		ready <- err
		return
	}
	defer ole.CoUninitialize()
	ready <- nil

	for {
		select {
		case fn := <-t.calls:
			fn()
		case <-t.done:
			return
		}
	}
}

// do runs fn on the COM thread and waits for it.
func (t *comThread) do(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case t.calls <- func() { errc <- safeCall(fn) }:
	case <-t.done:
		return errThreadStopped
	}
	return <-errc
}

// safeCall runs fn and reports a panic from go-ole's invoke as an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("comsdk: COM call panicked: %v", r)
		}
	}()
	return fn()
}

func (t *comThread) stop() {
	t.stopOnce.Do(func() { close(t.done) })
}
