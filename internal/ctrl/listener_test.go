package ctrl

import (
	"context"
	"testing"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/tcmud/internal/uapi"
)

type recordingHandler struct {
	added   []string
	removed []string
}

func (r *recordingHandler) OnAdded(_ context.Context, uioName, cfgString string) {
	r.added = append(r.added, uioName+":"+cfgString)
}

func (r *recordingHandler) OnRemoved(_ context.Context, uioName string) {
	r.removed = append(r.removed, uioName)
}

func encodeAttrs(t *testing.T, minor uint32, device string) []byte {
	t.Helper()
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(uapi.AttrMinor, minor)
	ae.String(uapi.AttrDevice, device)
	b, err := ae.Encode()
	require.NoError(t, err)
	return b
}

func TestDispatchAddedDevice(t *testing.T) {
	l := &Listener{}
	h := &recordingHandler{}

	msg := genetlink.Message{
		Header: genetlink.Header{Command: uapi.CmdAddedDevice},
		Data:   encodeAttrs(t, 3, "tcm-user+mem/0x1000"),
	}

	l.dispatch(context.Background(), msg, h)

	require.Equal(t, []string{"uio3:tcm-user+mem/0x1000"}, h.added)
}

func TestDispatchRemovedDevice(t *testing.T) {
	l := &Listener{}
	h := &recordingHandler{}

	msg := genetlink.Message{
		Header: genetlink.Header{Command: uapi.CmdRemovedDevice},
		Data:   encodeAttrs(t, 7, "tcm-user+mem/0x1000"),
	}

	l.dispatch(context.Background(), msg, h)

	require.Equal(t, []string{"uio7"}, h.removed)
}

func TestDispatchRemovedDeviceMissingDeviceAttributeIsSkipped(t *testing.T) {
	l := &Listener{}
	h := &recordingHandler{}

	ae := netlink.NewAttributeEncoder()
	ae.Uint32(uapi.AttrMinor, 7)
	data, err := ae.Encode()
	require.NoError(t, err)

	msg := genetlink.Message{
		Header: genetlink.Header{Command: uapi.CmdRemovedDevice},
		Data:   data,
	}

	l.dispatch(context.Background(), msg, h)

	require.Empty(t, h.removed, "missing TCMU_ATTR_DEVICE must not call OnRemoved")
}

func TestDispatchAddedDeviceMissingAttributeIsSkipped(t *testing.T) {
	l := &Listener{}
	h := &recordingHandler{}

	ae := netlink.NewAttributeEncoder()
	ae.Uint32(uapi.AttrMinor, 1)
	data, err := ae.Encode()
	require.NoError(t, err)

	msg := genetlink.Message{
		Header: genetlink.Header{Command: uapi.CmdAddedDevice},
		Data:   data,
	}

	l.dispatch(context.Background(), msg, h)

	require.Empty(t, h.added, "missing TCMU_ATTR_DEVICE must not call OnAdded")
}

func TestDispatchUnknownCommandIsIgnored(t *testing.T) {
	l := &Listener{}
	h := &recordingHandler{}

	msg := genetlink.Message{Header: genetlink.Header{Command: 99}}
	l.dispatch(context.Background(), msg, h)

	require.Empty(t, h.added)
	require.Empty(t, h.removed)
}
