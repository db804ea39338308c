package handler

import (
	"os"
	"strings"

	"github.com/behrlich/tcmud/internal/interfaces"
	"github.com/behrlich/tcmud/internal/queue"
)

// File is a subtype handler backed by a regular file on the handler host's
// filesystem. Its cfgstring is "file/<path>", e.g.
// "file//var/lib/tcmud/disk0.img".
type File struct{}

func NewFile() *File { return &File{} }

func (h *File) Name() string    { return "file" }
func (h *File) Subtype() string { return "file" }

func (h *File) Open(dev interfaces.Device) error {
	path, err := parseFilePath(dev.CfgString())
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	dev.SetPrivate(f)
	return nil
}

func (h *File) Close(dev interfaces.Device) error {
	f, ok := dev.Private().(*os.File)
	if !ok || f == nil {
		return nil
	}
	dev.SetPrivate(nil)
	return f.Close()
}

func (h *File) Submit(dev interfaces.Device, cdb []byte, iov []interfaces.IOVec) (interfaces.CommandResult, error) {
	f, ok := dev.Private().(*os.File)
	if !ok || f == nil {
		return interfaces.CommandResult{Success: false}, nil
	}

	switch cdb[0] {
	case OpTestUnitReady, OpSynchronizeCache10:
		if cdb[0] == OpSynchronizeCache10 {
			if err := f.Sync(); err != nil {
				return interfaces.CommandResult{Success: false}, nil
			}
		}
		return interfaces.CommandResult{Success: true}, nil
	case OpInquiry, OpModeSense6, OpReadCapacity10:
		w := NewIovecWriter(iov)
		w.Write(make([]byte, totalLen(iov)))
		return interfaces.CommandResult{Success: true}, nil
	case OpRead6, OpRead10:
		off := int64(LBA(cdb)) * 512
		n := uint32(XferLen(cdb)) * 512
		buf := queue.GetBuffer(n)
		defer queue.PutBuffer(buf)
		if _, err := f.ReadAt(buf, off); err != nil {
			return interfaces.CommandResult{Success: false}, nil
		}
		NewIovecWriter(iov).Write(buf)
		return interfaces.CommandResult{Success: true}, nil
	case OpWrite6, OpWrite10:
		off := int64(LBA(cdb)) * 512
		n := uint32(XferLen(cdb)) * 512
		buf := queue.GetBuffer(n)
		defer queue.PutBuffer(buf)
		m, _ := NewIovecReader(iov).Read(buf)
		if _, err := f.WriteAt(buf[:m], off); err != nil {
			return interfaces.CommandResult{Success: false}, nil
		}
		return interfaces.CommandResult{Success: true}, nil
	default:
		return interfaces.CommandResult{Success: false}, nil
	}
}

func parseFilePath(cfgString string) (string, error) {
	parts := strings.SplitN(cfgString, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", &pathError{cfgString}
	}
	return parts[1], nil
}

type pathError struct{ cfgString string }

func (e *pathError) Error() string {
	return "handler: malformed file cfgstring: " + e.cfgString
}

var _ interfaces.Handler = (*File)(nil)
