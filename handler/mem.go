package handler

import (
	"strconv"
	"strings"
	"sync"

	"github.com/behrlich/tcmud/internal/interfaces"
	"github.com/behrlich/tcmud/internal/queue"
)

// memShardSize balances lock granularity against per-device shard-array
// size; 64KB shards give a 256MB device 4096 shards, matching the sharding
// granularity the teacher backend uses for the same reason: parallel I/O
// from many devices without one lock serializing everything.
const memShardSize = 64 * 1024

// memState is the per-device private state a Mem handler stashes on the
// Device via SetPrivate.
type memState struct {
	data   []byte
	shards []sync.RWMutex
}

// Mem is a RAM-backed subtype handler. Its cfgstring is
// "mem/<size-in-bytes>", e.g. "mem/67108864" for a 64MB disk.
type Mem struct{}

func NewMem() *Mem { return &Mem{} }

func (h *Mem) Name() string    { return "mem" }
func (h *Mem) Subtype() string { return "mem" }

func (h *Mem) Open(dev interfaces.Device) error {
	size, err := parseMemSize(dev.CfgString())
	if err != nil {
		return err
	}
	numShards := (size + memShardSize - 1) / memShardSize
	dev.SetPrivate(&memState{
		data:   make([]byte, size),
		shards: make([]sync.RWMutex, numShards),
	})
	return nil
}

func (h *Mem) Close(dev interfaces.Device) error {
	dev.SetPrivate(nil)
	return nil
}

func (h *Mem) Submit(dev interfaces.Device, cdb []byte, iov []interfaces.IOVec) (interfaces.CommandResult, error) {
	st, ok := dev.Private().(*memState)
	if !ok || st == nil {
		return interfaces.CommandResult{Success: false}, nil
	}

	switch cdb[0] {
	case OpTestUnitReady, OpSynchronizeCache10:
		return interfaces.CommandResult{Success: true}, nil
	case OpInquiry, OpModeSense6, OpReadCapacity10:
		// Minimal devices answer these with zeroed data rather than
		// refusing outright; a kernel-facing real handler would fill in
		// vendor/product/LBA fields here.
		w := NewIovecWriter(iov)
		blank := make([]byte, totalLen(iov))
		w.Write(blank)
		return interfaces.CommandResult{Success: true}, nil
	case OpRead6, OpRead10:
		off := int64(LBA(cdb)) * 512
		n := int64(XferLen(cdb)) * 512
		st.read(off, n, NewIovecWriter(iov))
		return interfaces.CommandResult{Success: true}, nil
	case OpWrite6, OpWrite10:
		off := int64(LBA(cdb)) * 512
		n := int64(XferLen(cdb)) * 512
		st.write(off, n, NewIovecReader(iov))
		return interfaces.CommandResult{Success: true}, nil
	default:
		return interfaces.CommandResult{Success: false}, nil
	}
}

func (s *memState) shardRange(off, length int64) (start, end int) {
	start = int(off / memShardSize)
	end = int((off + length - 1) / memShardSize)
	if end >= len(s.shards) {
		end = len(s.shards) - 1
	}
	return start, end
}

func (s *memState) read(off, length int64, w *IovecWriter) {
	if off >= int64(len(s.data)) {
		return
	}
	if off+length > int64(len(s.data)) {
		length = int64(len(s.data)) - off
	}
	start, end := s.shardRange(off, length)
	for i := start; i <= end; i++ {
		s.shards[i].RLock()
	}
	w.Write(s.data[off : off+length])
	for i := start; i <= end; i++ {
		s.shards[i].RUnlock()
	}
}

func (s *memState) write(off, length int64, r *IovecReader) {
	if off >= int64(len(s.data)) {
		return
	}
	if off+length > int64(len(s.data)) {
		length = int64(len(s.data)) - off
	}
	start, end := s.shardRange(off, length)
	for i := start; i <= end; i++ {
		s.shards[i].Lock()
	}
	buf := queue.GetBuffer(uint32(length))
	n, _ := r.Read(buf)
	copy(s.data[off:off+length], buf[:n])
	queue.PutBuffer(buf)
	for i := start; i <= end; i++ {
		s.shards[i].Unlock()
	}
}

func parseMemSize(cfgString string) (int64, error) {
	parts := strings.SplitN(cfgString, "/", 2)
	sizeStr := cfgString
	if len(parts) == 2 {
		sizeStr = parts[1]
	}
	return strconv.ParseInt(sizeStr, 10, 64)
}

func totalLen(iov []interfaces.IOVec) int {
	n := 0
	for _, v := range iov {
		n += len(v)
	}
	return n
}

var _ interfaces.Handler = (*Mem)(nil)
