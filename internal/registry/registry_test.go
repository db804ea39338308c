package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/behrlich/tcmud/internal/interfaces"
)

type stubHandler struct {
	name, subtype string
}

func (s *stubHandler) Name() string    { return s.name }
func (s *stubHandler) Subtype() string { return s.subtype }
func (s *stubHandler) Open(interfaces.Device) error  { return nil }
func (s *stubHandler) Close(interfaces.Device) error { return nil }
func (s *stubHandler) Submit(interfaces.Device, []byte, []interfaces.IOVec) (interfaces.CommandResult, error) {
	return interfaces.CommandResult{Success: true}, nil
}

func TestFindExactSubtypeMatch(t *testing.T) {
	r := New()
	r.Register(&stubHandler{name: "mem", subtype: "mem"})
	r.Register(&stubHandler{name: "file", subtype: "file"})

	h, ok := r.Find("file/var/lib/tcmud/backing.img")
	require.True(t, ok)
	require.Equal(t, "file", h.Name())
}

func TestFindNoMatch(t *testing.T) {
	r := New()
	r.Register(&stubHandler{name: "mem", subtype: "mem"})

	_, ok := r.Find("nonexistent/thing")
	require.False(t, ok)
}

func TestFindWithoutSlashUsesWholeString(t *testing.T) {
	r := New()
	r.Register(&stubHandler{name: "mem", subtype: "mem"})

	h, ok := r.Find("mem")
	require.True(t, ok)
	require.Equal(t, "mem", h.Subtype())
}

func TestLen(t *testing.T) {
	r := New()
	require.Equal(t, 0, r.Len())
	r.Register(&stubHandler{name: "mem", subtype: "mem"})
	require.Equal(t, 1, r.Len())
}
