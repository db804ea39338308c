package uapi

import (
	"encoding/binary"
	"sync/atomic"
	"unsafe"
)

// MailboxHeaderLen is the fixed header tcmud reads and writes atomically at
// the start of every device's mapped ring. It mirrors struct tcmu_mailbox:
//
//	struct tcmu_mailbox {
//	  __u32 version;
//	  __u32 flags;
//	  __u32 cmdr_off;
//	  __u32 cmdr_size;
//	  __u32 cmd_head;
//	  __u32 cmd_tail;
//	};
const MailboxHeaderLen = 24

// offsets into the mapped ring, matching struct tcmu_mailbox field order.
const (
	mbVersion  = 0
	mbFlags    = 4
	mbCmdrOff  = 8
	mbCmdrSize = 12
	mbCmdHead  = 16
	mbCmdTail  = 20
)

// Mailbox is a thin, pointer-free view over a live mmap'd ring. Every method
// reads or writes the underlying bytes directly; there is no copy step,
// because the mailbox lives in shared memory the kernel also writes.
type Mailbox struct {
	ring []byte
}

// NewMailbox wraps ring, the full mmap'd region for one device. Panics if
// ring is shorter than MailboxHeaderLen — a caller error, not a runtime one.
func NewMailbox(ring []byte) *Mailbox {
	if len(ring) < MailboxHeaderLen {
		panic("uapi: ring too small for mailbox header")
	}
	return &Mailbox{ring: ring}
}

func (m *Mailbox) u32ptr(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&m.ring[off]))
}

func (m *Mailbox) CmdrOff() uint32  { return atomic.LoadUint32(m.u32ptr(mbCmdrOff)) }
func (m *Mailbox) CmdrSize() uint32 { return atomic.LoadUint32(m.u32ptr(mbCmdrSize)) }

// CmdHead is loaded with acquire semantics: the kernel writes new entries
// before advancing cmd_head, so an acquire load guarantees this reader sees
// a fully-written entry once it observes the updated head.
func (m *Mailbox) CmdHead() uint32 { return atomic.LoadUint32(m.u32ptr(mbCmdHead)) }

// CmdTail returns the consumer's own last-published position.
func (m *Mailbox) CmdTail() uint32 { return atomic.LoadUint32(m.u32ptr(mbCmdTail)) }

// SetCmdTail is a release store: every response byte for the entries being
// retired must be written before this call, so the kernel never observes an
// advanced tail pointing at a half-written response.
func (m *Mailbox) SetCmdTail(v uint32) { atomic.StoreUint32(m.u32ptr(mbCmdTail), v) }

// CmdRing returns the ring area (the bytes after the mailbox header where
// entries live), sized to CmdrSize.
func (m *Mailbox) CmdRing() []byte {
	off := MailboxHeaderLen + m.CmdrOff()
	return m.ring[off : off+m.CmdrSize()]
}

// EntryHdr is the common header every ring entry (CMD or PAD) starts with:
//
//	struct tcmu_cmd_entry_hdr {
//	  __u32 len_op; // low 8 bits: opcode, remaining bits: entry length
//	  __u16 cmd_id;
//	  __u8  kflags;
//	  __u8  uflags;
//	};
type EntryHdr struct {
	LenOp   uint32
	CmdID   uint16
	KFlags  uint8
	UFlags  uint8
}

var _ [8]byte = [unsafe.Sizeof(EntryHdr{})]byte{}

// Op returns the entry's opcode (OpCmd or OpPad).
func (h EntryHdr) Op() uint8 { return uint8(h.LenOp & 0xff) }

// Len returns the entry's total length in bytes, including this header.
func (h EntryHdr) Len() uint32 { return h.LenOp >> 8 }

// ReadEntryHdr decodes the header at the start of buf.
func ReadEntryHdr(buf []byte) EntryHdr {
	return EntryHdr{
		LenOp:  binary.LittleEndian.Uint32(buf[0:4]),
		CmdID:  binary.LittleEndian.Uint16(buf[4:6]),
		KFlags: buf[6],
		UFlags: buf[7],
	}
}

// CmdEntryFixedLen is the portion of a CMD entry before its variable-length
// iovec array: header, cdb_off, iov_cnt. The response overlay
// (scsi_status + sense buffer) also starts at this offset, over the iovec
// array, matching struct tcmu_cmd_entry's req/rsp union as tcmu-runner lays
// it out in practice (request fields read before dispatch, response fields
// overwritten in place after).
const CmdEntryFixedLen = 8 /* hdr */ + 4 /* cdb_off */ + 4 /* iov_cnt */

// IOV is one scatter/gather slot as stored on the wire: a mailbox-relative
// byte offset and a length. tcmud rewrites these into absolute slices of
// the mapped ring before handing them to a Handler.
type IOV struct {
	Base uint64
	Len  uint64
}

const ioVLen = 16

// CmdEntryReq holds the fields of a CMD entry needed to dispatch it.
type CmdEntryReq struct {
	CdbOff uint32
	IovCnt uint32
	Iovs   []IOV
}

// ReadCmdEntryReq decodes the fixed request fields and iovec array from a
// CMD entry occupying buf (buf[0:hdr.Len()]).
func ReadCmdEntryReq(buf []byte) CmdEntryReq {
	req := CmdEntryReq{
		CdbOff: binary.LittleEndian.Uint32(buf[8:12]),
		IovCnt: binary.LittleEndian.Uint32(buf[12:16]),
	}
	req.Iovs = make([]IOV, req.IovCnt)
	off := CmdEntryFixedLen
	for i := range req.Iovs {
		req.Iovs[i] = IOV{
			Base: binary.LittleEndian.Uint64(buf[off : off+8]),
			Len:  binary.LittleEndian.Uint64(buf[off+8 : off+16]),
		}
		off += ioVLen
	}
	return req
}

// WriteCmdResponse overwrites the response overlay of the CMD entry at buf
// in place: scsi_status followed by a fixed-size sense buffer. Overlay
// begins immediately after cdb_off/iov_cnt, mirroring tcmu-runner writing
// entry->rsp.scsi_status and entry->rsp.sense_buffer directly over the
// request fields it no longer needs.
func WriteCmdResponse(buf []byte, scsiStatus uint8, sense [SenseBufferLen]byte) {
	rsp := buf[CmdEntryFixedLen:]
	rsp[0] = scsiStatus
	copy(rsp[4:4+SenseBufferLen], sense[:])
}

// CheckConditionSense builds the fixed ILLEGAL REQUEST / INVALID COMMAND
// OPERATION CODE sense buffer written for a command no Handler could
// service.
func CheckConditionSense() [SenseBufferLen]byte {
	var sense [SenseBufferLen]byte
	sense[0] = SenseResponseCode
	sense[2] = SenseKeyIllegalReq
	sense[7] = SenseAddlLength
	sense[12] = SenseASCInvalidOp
	sense[13] = SenseASCQInvalidOp
	return sense
}
