// Package ring implements the shared-memory command ring dispatch algorithm:
// walk unconsumed entries between cmd_tail and cmd_head, dispatch CMD
// entries to a Handler, skip PAD entries, synthesize CHECK CONDITION sense
// data for anything a Handler could not service, advance cmd_tail, and poke
// the kernel exactly once if any work was done.
package ring

import (
	"time"

	"github.com/behrlich/tcmud/handler"
	"github.com/behrlich/tcmud/internal/interfaces"
	"github.com/behrlich/tcmud/internal/uapi"
)

// Device is the subset of device state Drain needs.
type Device interface {
	interfaces.Device
	Ring() []byte
	MailboxView() *uapi.Mailbox
	Notify() error
}

// Drain walks every unconsumed entry in dev's ring once, dispatching CMD
// entries to h and skipping PAD entries. It returns whether any entry was
// consumed (Drain itself pokes the kernel via dev.Notify iff this is true)
// and the first unexpected error encountered — a Handler.Submit error is never fatal to
// the drain, only logged and turned into a CHECK CONDITION response.
func Drain(dev Device, h interfaces.Handler, obs interfaces.Observer, log interfaces.Logger) (bool, error) {
	mb := dev.MailboxView()
	ring := dev.Ring()

	head := mb.CmdHead()
	tail := mb.CmdTail()
	cmdrSize := mb.CmdrSize()

	if head == tail {
		return false, nil
	}

	did := false
	entries := 0
	for tail != head {
		hdr := uapi.ReadEntryHdr(ring[tail:])
		entryLen := hdr.Len()
		if entryLen == 0 || entryLen > cmdrSize {
			// A corrupt length would loop forever; treat the rest of the
			// ring as consumed rather than spin.
			tail = head
			did = true
			break
		}

		switch hdr.Op() {
		case uapi.OpCmd:
			dispatchOne(dev, h, obs, log, ring[tail:tail+entryLen])
			entries++
		case uapi.OpPad:
			if obs != nil {
				obs.ObservePad()
			}
		default:
			if obs != nil {
				obs.ObservePad()
			}
		}

		did = true
		tail = (tail + entryLen) % cmdrSize
	}

	if entries > 0 && obs != nil {
		obs.ObserveDrainBatch(entries)
	}

	if did {
		mb.SetCmdTail(tail)
		if err := dev.Notify(); err != nil {
			return did, err
		}
		if obs != nil {
			obs.ObserveNotify()
		}
	}

	return did, nil
}

func dispatchOne(dev Device, h interfaces.Handler, obs interfaces.Observer, log interfaces.Logger, entry []byte) {
	req := uapi.ReadCmdEntryReq(entry)
	cdb := dev.Ring()[req.CdbOff:]
	if n := handler.CdbLen(cdb); n < len(cdb) {
		cdb = cdb[:n]
	}

	iov := make([]interfaces.IOVec, len(req.Iovs))
	var totalBytes uint64
	for i, v := range req.Iovs {
		iov[i] = interfaces.IOVec(dev.Ring()[v.Base : v.Base+v.Len])
		totalBytes += v.Len
	}

	start := time.Now()
	result, err := h.Submit(dev, cdb, iov)
	latency := time.Since(start)

	success := err == nil && result.Success
	if err != nil && log != nil {
		log.Warnf("handler submit failed uio=%s: %v", dev.UioName(), err)
	}

	var status uint8
	var sense [uapi.SenseBufferLen]byte
	if success {
		status = uapi.SAMStatGood
	} else {
		status = uapi.SAMStatCheckCondition
		sense = uapi.CheckConditionSense()
		if obs != nil {
			obs.ObserveCheckCondition()
		}
	}

	uapi.WriteCmdResponse(entry, status, sense)

	if obs != nil {
		obs.ObserveCommand(len(cdb), totalBytes, uint64(latency.Nanoseconds()), success)
	}
}
