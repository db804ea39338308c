package tcmud

import "github.com/behrlich/tcmud/internal/constants"

// Re-exported for callers of the public API that don't need the internal
// package directly.
const (
	CfgStringPrefixLen      = constants.CfgStringPrefixLen
	NotifyTokenLen          = constants.NotifyTokenLen
	HandlerFilePrefix       = constants.HandlerFilePrefix
	HandlerSymbolName       = constants.HandlerSymbolName
	ShutdownDrainTimeout    = constants.ShutdownDrainTimeout
)
