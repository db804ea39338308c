package handler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/behrlich/tcmud/internal/interfaces"
	"github.com/stretchr/testify/require"
)

func newBackingFile(t *testing.T, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "disk.img")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
	return path
}

func TestFileOpenRejectsMalformedCfgString(t *testing.T) {
	h := NewFile()
	dev := &fakeDevice{cfgString: "file"}
	require.Error(t, h.Open(dev))
}

func TestFileOpenMissingFile(t *testing.T) {
	h := NewFile()
	dev := &fakeDevice{cfgString: "file//does/not/exist"}
	require.Error(t, h.Open(dev))
}

func TestFileWriteThenRead(t *testing.T) {
	path := newBackingFile(t, 65536)
	h := NewFile()
	dev := &fakeDevice{cfgString: "file/" + path}
	require.NoError(t, h.Open(dev))
	defer h.Close(dev)

	payload := make([]byte, 512)
	for i := range payload {
		payload[i] = byte(i * 3)
	}
	writeCdb := []byte{OpWrite10, 0, 0, 0, 0, 0, 0, 0, 1, 0}
	res, err := h.Submit(dev, writeCdb, []interfaces.IOVec{payload})
	require.NoError(t, err)
	require.True(t, res.Success)

	readCdb := []byte{OpRead10, 0, 0, 0, 0, 0, 0, 0, 1, 0}
	out := make([]byte, 512)
	res, err = h.Submit(dev, readCdb, []interfaces.IOVec{out})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, payload, out)
}

func TestFileCloseClearsPrivateAndClosesFd(t *testing.T) {
	path := newBackingFile(t, 4096)
	h := NewFile()
	dev := &fakeDevice{cfgString: "file/" + path}
	require.NoError(t, h.Open(dev))
	f := dev.Private().(*os.File)
	require.NoError(t, h.Close(dev))
	require.Nil(t, dev.Private())
	require.Error(t, f.Close())
}

func TestFileSynchronizeCache(t *testing.T) {
	path := newBackingFile(t, 4096)
	h := NewFile()
	dev := &fakeDevice{cfgString: "file/" + path}
	require.NoError(t, h.Open(dev))
	defer h.Close(dev)
	res, err := h.Submit(dev, []byte{OpSynchronizeCache10, 0, 0, 0, 0, 0, 0, 0, 0, 0}, nil)
	require.NoError(t, err)
	require.True(t, res.Success)
}
