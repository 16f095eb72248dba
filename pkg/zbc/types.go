// Package zbc implements a file-backed zoned block storage device that
// supports the Zone Domains and Zone Realms command-set extensions. It is
// meant to be driven by a small host (see cmd/zbc-go) that plays the role a
// SCSI target framework would play in production: resolve a cfgstring, open
// a Device, and feed it Commands.
package zbc

import "math"

// DeviceType selects the broad personality of the emulated device.
type DeviceType uint8

const (
	NonZoned DeviceType = iota
	HMZoned
	HAZoned
	ZoneDomains
)

func (t DeviceType) String() string {
	switch t {
	case NonZoned:
		return "non-zoned"
	case HMZoned:
		return "host-managed"
	case HAZoned:
		return "host-aware"
	case ZoneDomains:
		return "zone-domains"
	default:
		return "unknown"
	}
}

// ZoneType is the static write discipline of a zone.
type ZoneType uint8

const (
	TypeGap ZoneType = iota
	TypeConventional
	TypeSWR
	TypeSWP
	TypeSOBR
)

func (t ZoneType) String() string {
	switch t {
	case TypeGap:
		return "gap"
	case TypeConventional:
		return "conventional"
	case TypeSWR:
		return "swr"
	case TypeSWP:
		return "swp"
	case TypeSOBR:
		return "sobr"
	default:
		return "unknown"
	}
}

// IsSequential reports whether the type carries a write pointer discipline.
func (t ZoneType) IsSequential() bool {
	return t == TypeSWR || t == TypeSWP || t == TypeSOBR
}

// classIndex returns the slot index used by realm activation flags and
// per-type slots: {Conventional, SOBR, SWR, SWP}. Gap has no slot.
func (t ZoneType) classIndex() int {
	switch t {
	case TypeConventional:
		return 0
	case TypeSOBR:
		return 1
	case TypeSWR:
		return 2
	case TypeSWP:
		return 3
	default:
		return -1
	}
}

// NrActivationClasses is the number of realm-activatable type slots.
const NrActivationClasses = 4

// ZoneCondition is the dynamic write-state of a zone.
type ZoneCondition uint8

const (
	CondNotWP ZoneCondition = iota
	CondEmpty
	CondImpOpen
	CondExpOpen
	CondClosed
	CondInactive
	CondReadOnly
	CondFull
	CondOffline
)

func (c ZoneCondition) String() string {
	switch c {
	case CondNotWP:
		return "not-wp"
	case CondEmpty:
		return "empty"
	case CondImpOpen:
		return "implicit-open"
	case CondExpOpen:
		return "explicit-open"
	case CondClosed:
		return "closed"
	case CondInactive:
		return "inactive"
	case CondReadOnly:
		return "read-only"
	case CondFull:
		return "full"
	case CondOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// WPInfinity is the sentinel write-pointer value meaning "not applicable".
const WPInfinity uint64 = math.MaxUint64

// NilIndex marks the head/tail/link end of a zone list. It is distinct from
// the (0,0) prev/next pair, which marks a zone not linked into any list at
// all; a singleton list member has prev == next == NilIndex.
const NilIndex uint32 = math.MaxUint32

// ListKind identifies one of the four persistent zone lists.
type ListKind uint8

const (
	ListImpOpen ListKind = iota
	ListExpOpen
	ListClosed
	ListSeqActive // Empty or Full zones of sequential/SOBR type
	nrLists
)
