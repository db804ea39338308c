// Package handler holds shared SCSI command-parsing helpers and the two
// bundled subtype handlers (mem, file), grounded on the CDB-length and
// LBA/transfer-length conventions of coreos/go-tcmu's SCSICmd and on
// tcmu-runner's own command dispatch.
package handler

import (
	"encoding/binary"
	"fmt"

	"github.com/behrlich/tcmud/internal/interfaces"
)

// SCSI opcodes this package's handlers recognize.
const (
	OpTestUnitReady = 0x00
	OpRead6         = 0x08
	OpWrite6        = 0x0a
	OpInquiry       = 0x12
	OpModeSense6    = 0x1a
	OpReadCapacity10 = 0x25
	OpRead10        = 0x28
	OpWrite10       = 0x2a
	OpSynchronizeCache10 = 0x35
)

// CdbLen returns the CDB length implied by its first (opcode) byte, per
// SPC-4 §4.2.5.1.
func CdbLen(cdb []byte) int {
	opcode := cdb[0]
	switch {
	case opcode <= 0x1f:
		return 6
	case opcode <= 0x5f:
		return 10
	case opcode == 0x7f:
		return int(cdb[7]) + 8
	case opcode >= 0x80 && opcode <= 0x9f:
		return 16
	case opcode >= 0xa0 && opcode <= 0xbf:
		return 12
	default:
		return 10
	}
}

// LBA extracts the logical block address from a CDB, sized according to
// CdbLen.
func LBA(cdb []byte) uint64 {
	order := binary.BigEndian
	switch CdbLen(cdb) {
	case 6:
		// 21-bit LBA: low 5 bits of byte 1, then bytes 2 and 3.
		return uint64(cdb[1]&0x1f)<<16 | uint64(cdb[2])<<8 | uint64(cdb[3])
	case 10, 12:
		return uint64(order.Uint32(cdb[2:6]))
	case 16:
		return order.Uint64(cdb[2:10])
	default:
		return 0
	}
}

// XferLen extracts the requested transfer length in blocks from a CDB.
func XferLen(cdb []byte) uint32 {
	order := binary.BigEndian
	switch CdbLen(cdb) {
	case 6:
		return uint32(cdb[4])
	case 10:
		return uint32(order.Uint16(cdb[7:9]))
	case 12:
		return order.Uint32(cdb[6:10])
	case 16:
		return order.Uint32(cdb[10:14])
	default:
		return 0
	}
}

// IovecWriter presents a command's scatter/gather list as a single
// io.Writer, advancing across iovec boundaries — the write side used when
// answering a READ command (data flows handler -> kernel buffer).
type IovecWriter struct {
	iov    []interfaces.IOVec
	vi, vo int
}

func NewIovecWriter(iov []interfaces.IOVec) *IovecWriter { return &IovecWriter{iov: iov} }

func (w *IovecWriter) Write(b []byte) (int, error) {
	written := 0
	for len(b) > 0 {
		if w.vi == len(w.iov) {
			return written, fmt.Errorf("handler: iovec exhausted, %d bytes unwritten", len(b))
		}
		n := copy(w.iov[w.vi][w.vo:], b)
		written += n
		b = b[n:]
		w.vo += n
		if w.vo == len(w.iov[w.vi]) {
			w.vi++
			w.vo = 0
		}
	}
	return written, nil
}

// IovecReader is the read-side counterpart, used when answering a WRITE
// command (data flows kernel buffer -> handler).
type IovecReader struct {
	iov    []interfaces.IOVec
	vi, vo int
}

func NewIovecReader(iov []interfaces.IOVec) *IovecReader { return &IovecReader{iov: iov} }

func (r *IovecReader) Read(b []byte) (int, error) {
	read := 0
	for len(b) > 0 {
		if r.vi == len(r.iov) {
			if read == 0 {
				return 0, fmt.Errorf("handler: iovec exhausted")
			}
			return read, nil
		}
		n := copy(b, r.iov[r.vi][r.vo:])
		read += n
		b = b[n:]
		r.vo += n
		if r.vo == len(r.iov[r.vi]) {
			r.vi++
			r.vo = 0
		}
	}
	return read, nil
}
