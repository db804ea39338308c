// Package manager implements device lifecycle: add, remove, and shutdown,
// each acquiring or releasing a device's resources in a fixed order and
// unwinding cleanly on any failure — the Go counterpart of tcmu-runner's
// add_device/remove_device/sighandler trio.
package manager

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/behrlich/tcmud/internal/constants"
	"github.com/behrlich/tcmud/internal/device"
	"github.com/behrlich/tcmud/internal/errs"
	"github.com/behrlich/tcmud/internal/interfaces"
	"github.com/behrlich/tcmud/internal/worker"
)

// Registry is the subset of internal/registry.Registry the manager needs.
type Registry interface {
	Find(cfgString string) (interfaces.Handler, bool)
}

// Manager owns the table of live devices and drives their lifecycle.
type Manager struct {
	registry Registry
	log      interfaces.Logger
	obs      interfaces.Observer

	mu      sync.Mutex
	devices map[string]*device.Device
	wg      sync.WaitGroup
}

func New(registry Registry, log interfaces.Logger, obs interfaces.Observer) *Manager {
	return &Manager{
		registry: registry,
		log:      log,
		obs:      obs,
		devices:  make(map[string]*device.Device),
	}
}

// Add brings a newly-announced device up: strip the cfgstring prefix,
// resolve a handler, open the uio char device, mmap its ring, open the
// handler, and start a worker. Every acquired resource is released, in reverse order, if any
// later step fails.
func (m *Manager) Add(ctx context.Context, uioName, rawCfgString string) error {
	m.mu.Lock()
	if _, exists := m.devices[uioName]; exists {
		m.mu.Unlock()
		return errs.NewDeviceError("ADD_DEVICE", uioName, errs.ErrCodeDeviceExists, "device already tracked")
	}
	m.mu.Unlock()

	cfgString := rawCfgString
	if len(cfgString) > constants.CfgStringPrefixLen {
		cfgString = cfgString[constants.CfgStringPrefixLen:]
	}

	handler, ok := m.registry.Find(cfgString)
	if !ok {
		return errs.NewDeviceError("ADD_DEVICE", uioName, errs.ErrCodeHandlerNotFound, fmt.Sprintf("no handler for cfgstring %q", cfgString))
	}

	devPath := fmt.Sprintf("%s/%s", constants.UioDevDir, uioName)
	fd, err := unix.Open(devPath, unix.O_RDWR, 0)
	if err != nil {
		return wrapDeviceErr("ADD_DEVICE", uioName, err)
	}

	mapLen, err := readMapSize(uioName)
	if err != nil {
		unix.Close(fd)
		return wrapDeviceErr("ADD_DEVICE", uioName, err)
	}

	ring, err := unix.Mmap(fd, 0, mapLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return wrapDeviceErr("ADD_DEVICE", uioName, err)
	}

	dev := device.New(uioName, cfgString, fd, ring)
	dev.Handler = handler

	if err := handler.Open(dev); err != nil {
		unix.Munmap(ring)
		unix.Close(fd)
		return wrapDeviceErr("ADD_DEVICE", uioName, err)
	}

	m.mu.Lock()
	m.devices[uioName] = dev
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		worker.Run(dev, m.obs, m.log)
		m.mu.Lock()
		delete(m.devices, uioName)
		m.mu.Unlock()
	}()

	if m.log != nil {
		m.log.Infof("device added uio=%s subtype=%s", uioName, handler.Subtype())
	}
	return nil
}

// Remove looks up uioName by exact equality — not the original's buggy
// prefix match — cancels its worker, and waits for it to finish cleanup
// before returning. A not-found device is logged, not an error: a device
// can legitimately be removed twice if REMOVED_DEVICE races Remove itself
// against a worker that exited on its own.
func (m *Manager) Remove(ctx context.Context, uioName string) error {
	m.mu.Lock()
	dev, ok := m.devices[uioName]
	m.mu.Unlock()
	if !ok {
		if m.log != nil {
			m.log.Infof("remove: device not tracked uio=%s", uioName)
		}
		return nil
	}

	worker.Unblock(dev, m.log)

	select {
	case <-dev.Done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if m.log != nil {
		m.log.Infof("device removed uio=%s", uioName)
	}
	return nil
}

// Shutdown cancels every live device's worker and waits (bounded by
// constants.ShutdownDrainTimeout) for them all to finish.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	devs := make([]*device.Device, 0, len(m.devices))
	for _, d := range m.devices {
		devs = append(devs, d)
	}
	m.mu.Unlock()

	for _, d := range devs {
		worker.Unblock(d, m.log)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(constants.ShutdownDrainTimeout):
		if m.log != nil {
			m.log.Warnf("shutdown: timed out waiting for %d device(s) to drain", len(devs))
		}
	}
}

// Count reports how many devices are currently tracked.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.devices)
}

func readMapSize(uioName string) (int, error) {
	path := fmt.Sprintf("%s/%s/%s", constants.SysfsUioClassDir, uioName, constants.Map0SizeRelPath)

	deadline := time.Now().Add(constants.SysfsMapSizeRetryTimeout)
	var lastErr error
	for {
		data, err := os.ReadFile(path)
		if err == nil {
			s := strings.TrimSpace(string(data))
			n, perr := strconv.ParseUint(trimHexPrefix(s), hexBase(s), 64)
			if perr != nil {
				return 0, perr
			}
			return int(n), nil
		}
		lastErr = err
		if time.Now().After(deadline) {
			return 0, lastErr
		}
		time.Sleep(constants.SysfsMapSizeRetryInterval)
	}
}

func trimHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

func hexBase(s string) int {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return 16
	}
	return 10
}

// wrapDeviceErr wraps a syscall/handler failure with tcmud's error taxonomy
// (mapping its errno if it has one) and attaches the device it happened to.
func wrapDeviceErr(op, uioName string, err error) *errs.Error {
	e := errs.WrapError(op, err)
	e.UioName = uioName
	return e
}
