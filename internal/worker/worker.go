// Package worker runs the per-device notify loop: block on the device's
// notify fd, drain the ring on wakeup, and tear everything down on exit —
// cancellation, notify-fd read error, or short read alike.
package worker

import (
	"golang.org/x/sys/unix"

	"github.com/behrlich/tcmud/internal/constants"
	"github.com/behrlich/tcmud/internal/device"
	"github.com/behrlich/tcmud/internal/interfaces"
	"github.com/behrlich/tcmud/internal/ring"
	"github.com/behrlich/tcmud/internal/uapi"
)

// ringDevice adapts *device.Device to ring.Device.
type ringDevice struct{ *device.Device }

func (d ringDevice) Ring() []byte               { return d.RingMap[uapi.MailboxHeaderLen:] }
func (d ringDevice) MailboxView() *uapi.Mailbox { return d.Mailbox }
func (d ringDevice) Notify() error {
	var token [constants.NotifyTokenLen]byte
	_, err := unix.Write(d.NotifyFd, token[:])
	return err
}

// Run blocks servicing dev until its context is canceled or the notify fd
// returns a short read / error. It always runs the full cleanup sequence —
// handler Close, ring unmap, notify-fd close — exactly once, on every exit
// path, mirroring tcmu-runner's pthread_cleanup_push/thread_cleanup pair.
func Run(dev *device.Device, obs interfaces.Observer, log interfaces.Logger) {
	defer close(dev.Done)
	defer cleanup(dev, log)

	rd := ringDevice{dev}

	// Drain once immediately: a device can be added with commands already
	// queued before the first notification arrives.
	if _, err := ring.Drain(rd, dev.Handler, obs, log); err != nil && log != nil {
		log.Warnf("initial drain failed uio=%s: %v", dev.UioName(), err)
	}

	for {
		select {
		case <-dev.Ctx.Done():
			return
		default:
		}

		n, err := readNotify(dev.NotifyFd)
		if err != nil {
			if log != nil {
				log.Infof("notify read ended uio=%s: %v", dev.UioName(), err)
			}
			return
		}
		if n < constants.NotifyTokenLen {
			if log != nil {
				log.Infof("short notify read uio=%s: %d bytes", dev.UioName(), n)
			}
			return
		}

		if _, err := ring.Drain(rd, dev.Handler, obs, log); err != nil && log != nil {
			log.Warnf("drain failed uio=%s: %v", dev.UioName(), err)
		}
	}
}

// readNotify blocks on dev.NotifyFd for a 4-byte token. It is a direct
// unix.Read; cancellation is achieved by the manager closing NotifyFd on
// Device.Cancel, which unblocks this read with EBADF — the Go analog of
// pthread_cancel hitting a cancellation point.
func readNotify(fd int) (int, error) {
	var buf [constants.NotifyTokenLen]byte
	return unix.Read(fd, buf[:])
}

func cleanup(dev *device.Device, log interfaces.Logger) {
	if dev.Handler != nil {
		if err := dev.Handler.Close(dev); err != nil && log != nil {
			log.Warnf("handler close failed uio=%s: %v", dev.UioName(), err)
		}
	}
	if len(dev.RingMap) > 0 {
		if err := unix.Munmap(dev.RingMap); err != nil && log != nil {
			log.Warnf("munmap failed uio=%s: %v", dev.UioName(), err)
		}
	}
	dev.CloseNotifyFd(log)
}

// Unblock forces a blocked Run loop to return promptly by closing the
// notify fd, the same effect pthread_cancel has on a thread parked in
// read(2). Safe to call concurrently with Run's own cleanup — the fd is
// closed exactly once.
func Unblock(dev *device.Device, log interfaces.Logger) {
	dev.Cancel()
	dev.CloseNotifyFd(log)
}
