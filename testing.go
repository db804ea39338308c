package tcmud

import (
	"encoding/binary"
	"sync"

	"github.com/behrlich/tcmud/internal/interfaces"
	"github.com/behrlich/tcmud/internal/uapi"
)

// MockHandler is a test double implementing interfaces.Handler, tracking
// every call made against it for assertions. Useful for exercising the ring
// dispatcher and device lifecycle without a real plugin.
type MockHandler struct {
	mu sync.Mutex

	name, subtype string
	openErr       error
	closeErr      error
	result        interfaces.CommandResult
	submitErr     error

	opened     bool
	closed     bool
	submitted  [][]byte
}

func NewMockHandler(name, subtype string) *MockHandler {
	return &MockHandler{name: name, subtype: subtype, result: interfaces.CommandResult{Success: true}}
}

func (m *MockHandler) Name() string    { return m.name }
func (m *MockHandler) Subtype() string { return m.subtype }

func (m *MockHandler) Open(dev interfaces.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = true
	return m.openErr
}

func (m *MockHandler) Close(dev interfaces.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

func (m *MockHandler) Submit(dev interfaces.Device, cdb []byte, iov []interfaces.IOVec) (interfaces.CommandResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(cdb))
	copy(cp, cdb)
	m.submitted = append(m.submitted, cp)
	return m.result, m.submitErr
}

// SetResult configures what every subsequent Submit call returns.
func (m *MockHandler) SetResult(result interfaces.CommandResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result, m.submitErr = result, err
}

func (m *MockHandler) SubmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submitted)
}

func (m *MockHandler) WasOpened() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opened
}

func (m *MockHandler) WasClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ interfaces.Handler = (*MockHandler)(nil)

// TestRing is an in-process stand-in for a device's mmap'd ring, letting
// ring-dispatcher tests build CMD/PAD entries without a real UIO device.
type TestRing struct {
	Buf []byte
}

// NewTestRing allocates a ring whose command-ring area is cmdrSize bytes,
// immediately following the mailbox header.
func NewTestRing(cmdrSize uint32) *TestRing {
	buf := make([]byte, uapi.MailboxHeaderLen+cmdrSize)
	binary.LittleEndian.PutUint32(buf[8:], 0)
	binary.LittleEndian.PutUint32(buf[12:], cmdrSize)
	return &TestRing{Buf: buf}
}

// CmdRing returns the bytes after the mailbox header, where entries live.
func (r *TestRing) CmdRing() []byte { return r.Buf[uapi.MailboxHeaderLen:] }

// SetCmdHead publishes a new cmd_head, as if the kernel had appended entries.
func (r *TestRing) SetCmdHead(v uint32) {
	binary.LittleEndian.PutUint32(r.Buf[16:], v)
}

// WriteCmd writes a CMD entry containing cdb at byte offset off within the
// command ring, returning the entry's total length.
func (r *TestRing) WriteCmd(off uint32, cdb []byte) uint32 {
	ring := r.CmdRing()
	cdbOff := off + uapi.CmdEntryFixedLen + 4 + uapi.SenseBufferLen
	entryLen := cdbOff - off + uint32(len(cdb))
	entry := ring[off : off+entryLen]
	binary.LittleEndian.PutUint32(entry[0:4], (entryLen<<8)|uapi.OpCmd)
	binary.LittleEndian.PutUint32(entry[8:12], cdbOff-off)
	binary.LittleEndian.PutUint32(entry[12:16], 0)
	copy(ring[cdbOff:], cdb)
	return entryLen
}

// WritePad writes a PAD entry of the given length at off.
func (r *TestRing) WritePad(off, length uint32) {
	binary.LittleEndian.PutUint32(r.CmdRing()[off:off+4], (length<<8)|uapi.OpPad)
}
