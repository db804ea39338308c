// Package interfaces provides internal interface definitions for tcmud.
// These are separate from the top-level package to avoid circular imports
// between the public package and the internal packages that need the same
// contracts (registry, ring, worker, manager).
package interfaces

// Device is the view of a live TCMU device that a Handler is allowed to see.
// It deliberately exposes no lifecycle methods (Open/Close belong to the
// manager, not the handler) — a Handler only ever reads the fields it needs
// to service a command.
type Device interface {
	UioName() string
	CfgString() string

	// SetPrivate/Private let a Handler stash its own per-device state
	// (e.g. an *os.File for a file-backed store) without tcmud needing to
	// know its shape.
	SetPrivate(v any)
	Private() any
}

// IOVec is a single scatter/gather entry, already rewritten from a
// mailbox-relative offset to an absolute slice of the device's mapped ring.
type IOVec []byte

// CommandResult is what a Handler returns for a submitted CDB.
type CommandResult struct {
	// Success, when true, reports SAM_STAT_GOOD to the kernel. When false,
	// the ring dispatcher synthesizes a CHECK CONDITION / ILLEGAL REQUEST /
	// INVALID COMMAND OPERATION CODE sense response.
	Success bool
}

// Handler is the contract every subtype plugin (file, mem, ...) implements.
// It is the Go analog of tcmu-runner's dlopen'd `handler_struct` ABI: a
// plugin built with -buildmode=plugin exports a package-level
// `var Handler interfaces.Handler` symbol satisfying this interface.
type Handler interface {
	// Name is a short human label ("file", "mem"), used only in logging.
	Name() string

	// Subtype is the cfgstring prefix this handler answers to, e.g. the
	// "file" in a cfgstring of "file/path/to/backing-store".
	Subtype() string

	// Open is called once when a device naming this handler's subtype is
	// added. It should parse dev.CfgString(), acquire whatever backing
	// resource it names, and stash state with dev.SetPrivate.
	Open(dev Device) error

	// Close releases whatever Open acquired. Called exactly once, when the
	// device's worker exits. It is not called if Open returned an error.
	Close(dev Device) error

	// Submit services one CDB against iov, the rewritten scatter/gather
	// list for this command's data transfer.
	Submit(dev Device, cdb []byte, iov []IOVec) (CommandResult, error)
}

// Logger mirrors the subset of internal/logging's interface a handler or
// ring component needs, without importing the concrete package.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Observer collects dispatch-loop metrics. Implementations must be safe for
// concurrent use — every live device's worker goroutine calls into the same
// Observer.
type Observer interface {
	ObserveCommand(cdbLen int, iovBytes uint64, latencyNs uint64, success bool)
	ObservePad()
	ObserveCheckCondition()
	ObserveNotify()
	ObserveDrainBatch(entries int)
}
