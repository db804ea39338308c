// Package ctrl implements the control-plane listener: a generic-netlink
// client joined to the TCM-USER family's "config" multicast group, the Go
// equivalent of tcmu-runner's libnl3-based handle_netlink loop.
package ctrl

import (
	"context"
	"fmt"
	"sync"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"

	"github.com/behrlich/tcmud/internal/interfaces"
	"github.com/behrlich/tcmud/internal/uapi"
)

// EventHandler receives decoded control-plane events.
type EventHandler interface {
	OnAdded(ctx context.Context, uioName, cfgString string)
	OnRemoved(ctx context.Context, uioName string)
}

// Listener wraps a generic-netlink connection joined to the TCM-USER
// family's config multicast group.
type Listener struct {
	conn *genetlink.Conn
	log  interfaces.Logger

	closeOnce sync.Once
	closeErr  error
}

// Dial resolves the TCM-USER family and joins its config multicast group.
func Dial(log interfaces.Logger) (*Listener, error) {
	conn, err := genetlink.Dial(nil)
	if err != nil {
		return nil, fmt.Errorf("ctrl: dial genetlink: %w", err)
	}

	family, err := conn.GetFamily(uapi.FamilyName)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ctrl: resolve family %s: %w", uapi.FamilyName, err)
	}

	groupID := uint32(0)
	found := false
	for _, g := range family.Groups {
		if g.Name == uapi.MulticastConfig {
			groupID = g.ID
			found = true
			break
		}
	}
	if !found {
		conn.Close()
		return nil, fmt.Errorf("ctrl: family %s has no %q multicast group", uapi.FamilyName, uapi.MulticastConfig)
	}

	if err := conn.JoinGroup(groupID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ctrl: join group %d: %w", groupID, err)
	}

	return &Listener{conn: conn, log: log}, nil
}

// Close releases the underlying netlink socket. Safe to call more than
// once — only the first call does anything.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() { l.closeErr = l.conn.Close() })
	return l.closeErr
}

// Serve receives control messages until ctx is canceled or the underlying
// socket errors. A blocked Receive does not notice ctx cancellation on its
// own, so a watcher goroutine force-closes the connection when ctx is done —
// the same force-unblock technique worker.Unblock uses on a device's notify
// fd. A malformed individual message (unknown command, missing attribute)
// is logged and skipped — only a receive error on the socket itself is
// returned, matching the setup-fatal/control-message-malformed split in the
// error taxonomy.
func (l *Listener) Serve(ctx context.Context, h EventHandler) error {
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
		case <-stopWatch:
		}
	}()

	for {
		msgs, _, err := l.conn.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("ctrl: receive: %w", err)
		}

		for _, msg := range msgs {
			l.dispatch(ctx, msg, h)
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, msg genetlink.Message, h EventHandler) {
	ad, err := netlink.NewAttributeDecoder(msg.Data)
	if err != nil {
		l.warnf("decode attributes: %v", err)
		return
	}

	var uioName, cfgString string
	var minor uint32
	var sawMinor, sawDevice bool

	for ad.Next() {
		switch ad.Type() {
		case uapi.AttrMinor:
			minor = ad.Uint32()
			sawMinor = true
		case uapi.AttrDevice:
			cfgString = ad.String()
			sawDevice = true
		}
	}
	if err := ad.Err(); err != nil {
		l.warnf("attribute decode error: %v", err)
		return
	}

	switch msg.Header.Command {
	case uapi.CmdAddedDevice:
		if !sawMinor || !sawDevice {
			l.warnf("ADDED_DEVICE missing required attribute(s)")
			return
		}
		uioName = fmt.Sprintf("uio%d", minor)
		h.OnAdded(ctx, uioName, cfgString)
	case uapi.CmdRemovedDevice:
		if !sawMinor || !sawDevice {
			l.warnf("REMOVED_DEVICE missing required attribute(s)")
			return
		}
		uioName = fmt.Sprintf("uio%d", minor)
		h.OnRemoved(ctx, uioName)
	default:
		l.warnf("unrecognized control command %d", msg.Header.Command)
	}
}

func (l *Listener) warnf(format string, args ...any) {
	if l.log != nil {
		l.log.Warnf("ctrl: "+format, args...)
	}
}
