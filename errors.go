package tcmud

import "github.com/behrlich/tcmud/internal/errs"

// Error, ErrorCode, and the taxonomy below are re-exported from
// internal/errs so that internal/manager — which the rest of this package
// depends on — can construct the same structured errors without an import
// cycle back through the root package.
type (
	Error     = errs.Error
	ErrorCode = errs.ErrorCode
)

const (
	ErrCodeSetupFatal       = errs.ErrCodeSetupFatal
	ErrCodeDeviceFatal      = errs.ErrCodeDeviceFatal
	ErrCodeMalformedControl = errs.ErrCodeMalformedControl
	ErrCodeWorkerIO         = errs.ErrCodeWorkerIO
	ErrCodeDeviceNotFound   = errs.ErrCodeDeviceNotFound
	ErrCodeDeviceExists     = errs.ErrCodeDeviceExists
	ErrCodeHandlerNotFound  = errs.ErrCodeHandlerNotFound
	ErrCodeInvalidCfgString = errs.ErrCodeInvalidCfgString
	ErrCodePermissionDenied = errs.ErrCodePermissionDenied
)

var (
	NewError       = errs.NewError
	NewDeviceError = errs.NewDeviceError
	WrapError      = errs.WrapError
	IsCode         = errs.IsCode
)
