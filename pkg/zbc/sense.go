package zbc

// Status is the command-level outcome the dispatcher returns to its
// caller, mirroring the three-way split a SCSI target handler reports:
// success, "not handled here" (let the framework's default path run), or
// a sense pair.
type Status uint8

const (
	StatusOK Status = iota
	StatusNotHandled
	StatusCheckCondition
)

// SenseKey is the SCSI sense key a SenseCode is reported under.
type SenseKey uint8

const (
	SenseNoSense        SenseKey = 0x00
	SenseNotReady       SenseKey = 0x02
	SenseMediumError    SenseKey = 0x03
	SenseIllegalRequest SenseKey = 0x05
	SenseAbortedCommand SenseKey = 0x0B
)

// SenseCode names one ASC/ASCQ pair from spec.md §6.4.
type SenseCode uint16

const (
	SenseLBAOutOfRange SenseCode = iota
	SenseInvalidFieldInCDB
	SenseInvalidFieldInParameterList
	SenseParameterListLengthError
	SenseUnalignedWrite
	SenseWriteBoundaryViolation
	SenseReadBoundaryViolation
	SenseAttemptToReadInvalidData
	SenseAttemptToAccessGapZone
	SenseZoneIsInactive
	SenseZoneIsOffline
	SenseZoneIsReadOnly
	SenseInsufficientZoneResources
	SenseReadError
	SenseWriteError
	SenseInternalTargetFailure
)

var senseTable = map[SenseCode]struct {
	Key     SenseKey
	ASC     byte
	ASCQ    byte
	Message string
}{
	SenseLBAOutOfRange:                  {SenseIllegalRequest, 0x21, 0x00, "logical block address out of range"},
	SenseInvalidFieldInCDB:              {SenseIllegalRequest, 0x24, 0x00, "invalid field in cdb"},
	SenseInvalidFieldInParameterList:    {SenseIllegalRequest, 0x26, 0x00, "invalid field in parameter list"},
	SenseParameterListLengthError:       {SenseIllegalRequest, 0x1A, 0x00, "parameter list length error"},
	SenseUnalignedWrite:                 {SenseIllegalRequest, 0x21, 0x04, "unaligned write command"},
	SenseWriteBoundaryViolation:         {SenseIllegalRequest, 0x21, 0x03, "write boundary violation"},
	SenseReadBoundaryViolation:          {SenseIllegalRequest, 0x21, 0x02, "read boundary violation"},
	SenseAttemptToReadInvalidData:       {SenseMediumError, 0x21, 0x06, "attempt to read invalid data"},
	SenseAttemptToAccessGapZone:         {SenseIllegalRequest, 0x21, 0x0B, "attempt to access gap zone"},
	SenseZoneIsInactive:                 {SenseIllegalRequest, 0x21, 0x0D, "zone is inactive"},
	SenseZoneIsOffline:                  {SenseIllegalRequest, 0x21, 0x05, "zone is offline"},
	SenseZoneIsReadOnly:                 {SenseIllegalRequest, 0x21, 0x08, "zone is read only"},
	SenseInsufficientZoneResources:      {SenseAbortedCommand, 0x55, 0x0D, "insufficient zone resources"},
	SenseReadError:                      {SenseMediumError, 0x11, 0x00, "unrecovered read error"},
	SenseWriteError:                     {SenseMediumError, 0x0C, 0x00, "write error"},
	SenseInternalTargetFailure:          {SenseAbortedCommand, 0x44, 0x00, "internal target failure"},
}

// Sense is a fully resolved sense-key/ASC/ASCQ triple ready for the host
// framework to format into a CHECK CONDITION response.
type Sense struct {
	Code    SenseCode
	Key     SenseKey
	ASC     byte
	ASCQ    byte
	Message string
}

// NewSense resolves a SenseCode into a Sense.
func NewSense(code SenseCode) Sense {
	e := senseTable[code]
	return Sense{Code: code, Key: e.Key, ASC: e.ASC, ASCQ: e.ASCQ, Message: e.Message}
}

// deferredSenseDepth is the number of recent sense pairs a device keeps
// around for REQUEST SENSE to retrieve after the fact, grounded on the
// original handler's ZBC_DEFERRED_SENSE_BUF_SIZE ring buffer.
const deferredSenseDepth = 4

// senseQueue is a small fixed-size ring buffer of recently issued sense
// pairs, oldest overwritten first.
type senseQueue struct {
	buf  [deferredSenseDepth]Sense
	n    int
	next int
}

func (q *senseQueue) push(s Sense) {
	q.buf[q.next] = s
	q.next = (q.next + 1) % deferredSenseDepth
	if q.n < deferredSenseDepth {
		q.n++
	}
}

// pop returns the oldest pending sense and removes it, or false if empty.
func (q *senseQueue) pop() (Sense, bool) {
	if q.n == 0 {
		return Sense{}, false
	}
	idx := (q.next - q.n + deferredSenseDepth) % deferredSenseDepth
	s := q.buf[idx]
	q.n--
	return s, true
}
