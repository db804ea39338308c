// Package uapi mirrors the parts of the Linux target_core_user (TCMU) kernel
// ABI this daemon needs: the shared-memory ring layout, command opcodes, and
// the generic-netlink control-plane vocabulary.
package uapi

// Ring entry opcodes, the low byte of an entry header's len_op field.
const (
	OpCmd = 1
	OpPad = 2
)

// SCSI status codes written back into a command entry's response overlay.
// Only the two tcmud actually produces are named.
const (
	SAMStatGood           = 0x00
	SAMStatCheckCondition = 0x02
)

// Fixed-format sense data tcmud synthesizes for a command a Handler could
// not service: CHECK CONDITION / ILLEGAL REQUEST / INVALID COMMAND
// OPERATION CODE. Byte offsets match SPC-4 fixed sense format.
const (
	SenseResponseCode  = 0x70 // byte 0: current errors, fixed format
	SenseKeyIllegalReq = 0x05 // byte 2: ILLEGAL REQUEST
	SenseAddlLength    = 0x0a // byte 7: additional sense length
	SenseASCInvalidOp  = 0x20 // byte 12: INVALID COMMAND OPERATION CODE
	SenseASCQInvalidOp = 0x00 // byte 13
)

// SenseBufferLen is the fixed sense buffer size reserved per command entry.
const SenseBufferLen = 18

// Generic netlink control-plane vocabulary for the "TCM-USER" family.
const (
	FamilyName      = "TCM-USER"
	MulticastConfig = "config"

	CmdAddedDevice   = 1
	CmdRemovedDevice = 2

	AttrDevice = 1 // string: device cfgstring ("tcm-user+<subtype>/...")
	AttrMinor  = 2 // u32: uio minor number
)

// CfgStringPrefixLen is the length of the "tcm-user+" prefix the kernel
// prepends to a device's cfgstring before handing it to userspace.
const CfgStringPrefixLen = len("tcm-user+")

// UioNamePrefix is the prefix every TCMU-backed UIO device's
// /sys/class/uio/<name>/name file must begin with.
const UioNamePrefix = "tcm-user"
