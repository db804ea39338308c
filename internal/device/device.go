// Package device holds the per-device record a worker and its Handler share:
// the mapped ring, the notify fd, and a slot for handler-private state.
package device

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/behrlich/tcmud/internal/interfaces"
	"github.com/behrlich/tcmud/internal/uapi"
)

// Device is one live tcm-user-backed UIO device. It implements
// interfaces.Device so handler code never needs to import this package.
type Device struct {
	uioName   string
	cfgString string

	NotifyFd int
	RingMap  []byte
	Mailbox  *uapi.Mailbox
	Handler  interfaces.Handler

	Ctx    context.Context
	Cancel context.CancelFunc
	Done   chan struct{}

	private   atomic.Value
	closeOnce sync.Once
	closeErr  error
}

// New constructs a Device. The caller is responsible for having already
// opened notifyFd and mmap'd ringMap; New only wires them together.
func New(uioName, cfgString string, notifyFd int, ringMap []byte) *Device {
	ctx, cancel := context.WithCancel(context.Background())
	return &Device{
		uioName:   uioName,
		cfgString: cfgString,
		NotifyFd:  notifyFd,
		RingMap:   ringMap,
		Mailbox:   uapi.NewMailbox(ringMap),
		Ctx:       ctx,
		Cancel:    cancel,
		Done:      make(chan struct{}),
	}
}

func (d *Device) UioName() string  { return d.uioName }
func (d *Device) CfgString() string { return d.cfgString }

func (d *Device) SetPrivate(v any) { d.private.Store(boxedAny{v}) }

func (d *Device) Private() any {
	v := d.private.Load()
	if v == nil {
		return nil
	}
	return v.(boxedAny).v
}

// CloseNotifyFd closes NotifyFd exactly once, however many times it is
// called — the worker's cleanup path and a concurrent Remove-triggered
// unblock both call it, and only the first close should count.
func (d *Device) CloseNotifyFd(log interfaces.Logger) {
	d.closeOnce.Do(func() {
		d.closeErr = unix.Close(d.NotifyFd)
		if d.closeErr != nil && log != nil {
			log.Warnf("close notify fd failed uio=%s: %v", d.uioName, d.closeErr)
		}
	})
}

// boxedAny lets a nil interface{} be stored in an atomic.Value, which
// otherwise requires a consistent concrete type across Store calls.
type boxedAny struct{ v any }

var _ interfaces.Device = (*Device)(nil)
