package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/behrlich/tcmud/internal/device"
	"github.com/behrlich/tcmud/internal/errs"
	"github.com/behrlich/tcmud/internal/interfaces"
)

type stubRegistry struct {
	handler interfaces.Handler
	ok      bool
}

func (s stubRegistry) Find(string) (interfaces.Handler, bool) { return s.handler, s.ok }

type closeTrackingHandler struct {
	closed bool
}

func (h *closeTrackingHandler) Name() string    { return "stub" }
func (h *closeTrackingHandler) Subtype() string { return "stub" }
func (h *closeTrackingHandler) Open(interfaces.Device) error { return nil }
func (h *closeTrackingHandler) Close(interfaces.Device) error {
	h.closed = true
	return nil
}
func (h *closeTrackingHandler) Submit(interfaces.Device, []byte, []interfaces.IOVec) (interfaces.CommandResult, error) {
	return interfaces.CommandResult{Success: true}, nil
}

func TestRemoveUntrackedDeviceIsNoop(t *testing.T) {
	m := New(stubRegistry{}, nil, nil)
	err := m.Remove(context.Background(), "uio99")
	require.NoError(t, err)
}

func TestRemoveIsExactMatchNotPrefix(t *testing.T) {
	m := New(stubRegistry{}, nil, nil)

	// A device named "uio1" must not be found/removed by a lookup for
	// "uio10" or "uio" — the bug in the original prefix-matching
	// remove_device this implementation deliberately does not carry.
	handler := &closeTrackingHandler{}
	r, w, err := pipeFds(t)
	require.NoError(t, err)
	dev := device.New("uio1", "stub/x", r, make([]byte, 64))
	dev.Handler = handler

	m.mu.Lock()
	m.devices["uio1"] = dev
	m.mu.Unlock()

	err = m.Remove(context.Background(), "uio10")
	require.NoError(t, err)
	require.Equal(t, 1, m.Count(), "exact-match miss must not remove an unrelated device")

	_ = w // keep the write end alive for the duration of the test
}

func TestRemoveExactMatchUnblocksWorker(t *testing.T) {
	m := New(stubRegistry{}, nil, nil)
	handler := &closeTrackingHandler{}
	r, w, err := pipeFds(t)
	require.NoError(t, err)
	defer unix.Close(w)

	dev := device.New("uio1", "stub/x", r, make([]byte, 64))
	dev.Handler = handler

	m.mu.Lock()
	m.devices["uio1"] = dev
	m.mu.Unlock()

	// Stand in for the worker goroutine's own completion signal: a real
	// worker.Run closes dev.Done as its very last step.
	go func() {
		<-dev.Ctx.Done()
		close(dev.Done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err = m.Remove(ctx, "uio1")
	require.NoError(t, err)
}

func TestAddDuplicateDeviceReturnsStructuredError(t *testing.T) {
	m := New(stubRegistry{}, nil, nil)
	r, w, err := pipeFds(t)
	require.NoError(t, err)
	defer unix.Close(w)

	dev := device.New("uio1", "stub/x", r, make([]byte, 64))
	m.mu.Lock()
	m.devices["uio1"] = dev
	m.mu.Unlock()

	addErr := m.Add(context.Background(), "uio1", "tcm-user+stub/x")
	require.Error(t, addErr)
	require.True(t, errs.IsCode(addErr, errs.ErrCodeDeviceExists))
}

func TestAddNoHandlerReturnsStructuredError(t *testing.T) {
	m := New(stubRegistry{ok: false}, nil, nil)
	addErr := m.Add(context.Background(), "uio2", "tcm-user+missing/x")
	require.Error(t, addErr)
	require.True(t, errs.IsCode(addErr, errs.ErrCodeHandlerNotFound))
}

func TestShutdownWithNoDevicesReturnsImmediately(t *testing.T) {
	m := New(stubRegistry{}, nil, nil)
	done := make(chan struct{})
	go func() {
		m.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return for an empty device table")
	}
}

// pipeFds returns a pipe's read and write file descriptors, standing in for
// a uio notify fd in tests that don't touch real hardware.
func pipeFds(t *testing.T) (r, w int, err error) {
	t.Helper()
	var fds [2]int
	if e := unix.Pipe(fds[:]); e != nil {
		return 0, 0, e
	}
	return fds[0], fds[1], nil
}
