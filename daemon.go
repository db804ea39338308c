// Package tcmud implements a userspace backstore daemon for the Linux
// target_core_user (TCMU) kernel module: it watches the generic-netlink
// control plane for device add/remove events, maps each device's
// shared-memory command ring, and dispatches SCSI commands to pluggable
// subtype handlers loaded as Go plugins.
package tcmud

import (
	"context"

	"github.com/behrlich/tcmud/handler"
	"github.com/behrlich/tcmud/internal/ctrl"
	"github.com/behrlich/tcmud/internal/interfaces"
	"github.com/behrlich/tcmud/internal/logging"
	"github.com/behrlich/tcmud/internal/manager"
	"github.com/behrlich/tcmud/internal/registry"
)

// Options configures a Daemon.
type Options struct {
	// HandlerDir is scanned for "handler_*" plugin files at startup.
	HandlerDir string

	Logger interfaces.Logger
}

// Daemon wires the registry, manager, and control listener together and
// drives them for the process's lifetime.
type Daemon struct {
	registry *registry.Registry
	manager  *manager.Manager
	listener *ctrl.Listener
	metrics  *Metrics
	log      interfaces.Logger
}

// New registers the bundled mem and file handlers, loads any additional
// plugins from opts.HandlerDir, dials the control-plane listener, and
// returns a Daemon ready to Run. Any failure here is setup-fatal.
func New(opts Options) (*Daemon, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Default()
	}

	reg := registry.New()
	reg.Register(handler.NewMem())
	reg.Register(handler.NewFile())
	if opts.HandlerDir != "" {
		n, err := reg.LoadAll(opts.HandlerDir, log)
		if err != nil {
			return nil, WrapError("NEW_DAEMON", err)
		}
		log.Infof("loaded %d handler(s) from %s", n, opts.HandlerDir)
	}

	metrics := NewMetrics()
	obs := NewMetricsObserver(metrics)
	mgr := manager.New(reg, log, obs)

	listener, err := ctrl.Dial(log)
	if err != nil {
		return nil, WrapError("NEW_DAEMON", err)
	}

	return &Daemon{registry: reg, manager: mgr, listener: listener, metrics: metrics, log: log}, nil
}

// Registry exposes the handler registry, primarily so callers (and tests)
// can Register a handler statically instead of loading it as a plugin.
func (d *Daemon) Registry() *registry.Registry { return d.registry }

// Metrics returns the daemon's live Metrics; Snapshot() it for a point-in-
// time copy.
func (d *Daemon) Metrics() *Metrics { return d.metrics }

// DeviceCount reports how many devices are currently tracked.
func (d *Daemon) DeviceCount() int { return d.manager.Count() }

// Run serves the control plane until ctx is canceled or the netlink socket
// errors, dispatching ADDED_DEVICE/REMOVED_DEVICE events to the manager.
// Serve itself returns nil on ctx cancellation; on return for any reason
// Run calls Shutdown to drain live devices before returning to the caller.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.Shutdown()
	return d.listener.Serve(ctx, daemonEventHandler{d})
}

// Shutdown cancels every live device's worker, waits for them to finish
// cleanup, and closes the control-plane socket. Safe to call more than
// once: unblocking a worker and closing the socket are both idempotent, and
// a later call only waits again for any workers still running.
func (d *Daemon) Shutdown() {
	d.manager.Shutdown()
	d.listener.Close()
}

type daemonEventHandler struct{ d *Daemon }

func (h daemonEventHandler) OnAdded(ctx context.Context, uioName, cfgString string) {
	if err := h.d.manager.Add(ctx, uioName, cfgString); err != nil {
		h.d.log.Errorf("add device failed: %v", err)
	}
}

func (h daemonEventHandler) OnRemoved(ctx context.Context, uioName string) {
	if err := h.d.manager.Remove(ctx, uioName); err != nil {
		h.d.log.Errorf("remove device failed: %v", err)
	}
}
