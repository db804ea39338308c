package constants

import "time"

// Sysfs/device-naming constants used during device add/remove.
const (
	// CfgStringPrefixLen is the length of the "tcm-user+" prefix the kernel
	// prepends to a cfgstring before handing it to userspace.
	CfgStringPrefixLen = 9

	// UioDevDir is where uio character devices appear.
	UioDevDir = "/dev"

	// SysfsUioClassDir is the sysfs directory holding per-uio-device
	// metadata (name file, map size file).
	SysfsUioClassDir = "/sys/class/uio"

	// Map0SizeRelPath is the path, relative to a uio device's sysfs
	// directory, of the file giving its mmap region length in bytes.
	Map0SizeRelPath = "maps/map0/size"
)

// NotifyTokenLen is the size of the token written to / read from a device's
// notify fd to wake (or acknowledge waking) its worker. The content of the
// token is not interpreted; only its arrival matters.
const NotifyTokenLen = 4

// Handler plugin discovery.
const (
	// HandlerFilePrefix is the filename prefix a subtype plugin's .so must
	// carry to be discovered by the registry's directory scan.
	HandlerFilePrefix = "handler_"

	// HandlerSymbolName is the exported symbol every plugin must provide.
	HandlerSymbolName = "Handler"
)

// Netlink control-plane timing.
//
// handle_device_events races a freshly-added device's worker against the
// kernel publishing ADDED_DEVICE: the control message can arrive before
// /sys/class/uio/<name>/maps/map0/size is populated. A short, bounded retry
// absorbs that window without an unconditional sleep on every add.
const (
	// SysfsMapSizeRetryInterval is how often to re-read map0/size if it is
	// momentarily absent right after ADDED_DEVICE.
	SysfsMapSizeRetryInterval = 10 * time.Millisecond

	// SysfsMapSizeRetryTimeout bounds the total time spent waiting for
	// map0/size to appear before treating the add as failed.
	SysfsMapSizeRetryTimeout = 500 * time.Millisecond
)

// ShutdownDrainTimeout bounds how long Manager.Shutdown waits for in-flight
// workers to finish their cleanup before giving up and returning anyway.
const ShutdownDrainTimeout = 2 * time.Second
