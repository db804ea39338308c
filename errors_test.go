package tcmud

import (
	"syscall"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("ADD_DEVICE", ErrCodeInvalidCfgString, "missing subtype")

	if err.Op != "ADD_DEVICE" {
		t.Errorf("Expected Op=ADD_DEVICE, got %s", err.Op)
	}
	if err.Code != ErrCodeInvalidCfgString {
		t.Errorf("Expected Code=ErrCodeInvalidCfgString, got %s", err.Code)
	}

	expected := "tcmud: missing subtype (op=ADD_DEVICE)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestDeviceError(t *testing.T) {
	err := NewDeviceError("REMOVE_DEVICE", "uio3", ErrCodeDeviceNotFound, "no such device")

	if err.UioName != "uio3" {
		t.Errorf("Expected UioName=uio3, got %s", err.UioName)
	}

	expected := "tcmud: no such device (op=REMOVE_DEVICE)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestWrapErrorMapsErrno(t *testing.T) {
	err := WrapError("MMAP", syscall.ENOENT)

	if err.Code != ErrCodeDeviceNotFound {
		t.Errorf("Expected Code=ErrCodeDeviceNotFound, got %s", err.Code)
	}
	if err.Errno != syscall.ENOENT {
		t.Errorf("Expected Errno=ENOENT, got %v", err.Errno)
	}
}

func TestWrapErrorNilIsNil(t *testing.T) {
	if err := WrapError("ADD_DEVICE", nil); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("NETLINK_RECV", ErrCodeMalformedControl, "missing TCMU_ATTR_DEVICE")

	if !IsCode(err, ErrCodeMalformedControl) {
		t.Errorf("Expected IsCode to match ErrCodeMalformedControl")
	}
	if IsCode(err, ErrCodeDeviceFatal) {
		t.Errorf("Expected IsCode not to match ErrCodeDeviceFatal")
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := NewError("ADD_DEVICE", ErrCodeDeviceExists, "already tracked")
	b := NewError("ADD_DEVICE", ErrCodeDeviceExists, "different message")

	if !a.Is(b) {
		t.Errorf("Expected errors with the same Code to match via Is")
	}
}
