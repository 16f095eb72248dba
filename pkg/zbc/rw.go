package zbc

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// metaSize returns the current metadata-region size, used to translate an
// LBA into a backing-file byte offset past the metadata image.
func (m *Metadata) metaSize() int64 {
	return int64(len(m.raw))
}

// offsetForLBA translates an LBA into a backing-file byte offset, per
// §4.9: per-domain for Zone Domains devices, flat otherwise.
func (m *Metadata) offsetForLBA(lba uint64) (int64, error) {
	if m.Cfg.Type != ZoneDomains {
		return m.metaSize() + int64(lba)*int64(m.Cfg.LBASize), nil
	}
	for _, d := range m.Domains {
		if lba >= d.Start && lba <= d.End {
			return m.metaSize() + int64(lba-d.Start)*int64(m.Cfg.LBASize), nil
		}
	}
	return 0, fmt.Errorf("zbc: lba %d not in any domain", lba)
}

// zoneForLBA returns the index of the zone containing lba, or false if lba
// is out of range.
func (m *Metadata) zoneForLBA(lba uint64) (uint32, bool) {
	if len(m.Zones) == 0 {
		return 0, false
	}
	zsize := m.Cfg.ZoneSize
	if m.Cfg.Type != ZoneDomains {
		idx := lba / zsize
		if idx >= uint64(len(m.Zones)) {
			return 0, false
		}
		return uint32(idx), true
	}
	for i, z := range m.Zones {
		if lba >= z.Start && lba < z.Start+z.Length {
			return uint32(i), true
		}
	}
	return 0, false
}

// ReadLBAs validates and executes a read of nrLBAs starting at lba into
// iov, per §4.9's read-path precondition checks, returning a Sense on
// protocol violation.
func (m *Metadata) ReadLBAs(lba uint64, nrLBAs uint64, iov []IOVec) (*Sense, error) {
	total := m.totalLBAs()
	if lba+nrLBAs > total {
		s := NewSense(SenseLBAOutOfRange)
		return &s, nil
	}
	if uint64(IOVecLength(iov)) != nrLBAs*uint64(m.Cfg.LBASize) {
		s := NewSense(SenseInternalTargetFailure)
		return &s, nil
	}

	cur := lba
	written := uint64(0)
	for cur < lba+nrLBAs {
		zi, ok := m.zoneForLBA(cur)
		if !ok {
			s := NewSense(SenseLBAOutOfRange)
			return &s, nil
		}
		z := m.Zones[zi]
		zoneEnd := z.Start + z.Length
		span := zoneEnd - cur
		if remaining := lba + nrLBAs - cur; span > remaining {
			span = remaining
		}

		if s := checkReadZone(z, m.Cfg.WPCheck); s != nil {
			return s, nil
		}
		if m.Cfg.WPCheck && z.Type == TypeSWR && lba+nrLBAs > zoneEnd {
			s := NewSense(SenseReadBoundaryViolation)
			return &s, nil
		}

		wp := z.WP
		readEnd := cur + span
		dataEnd := readEnd
		straddles := m.Cfg.WPCheck && z.Type.IsSequential() && wp != WPInfinity && cur < wp && readEnd > wp
		aboveWP := m.Cfg.WPCheck && z.Type.IsSequential() && wp != WPInfinity && cur >= wp

		if straddles {
			s := NewSense(SenseAttemptToReadInvalidData)
			return &s, nil
		}
		if aboveWP {
			s := NewSense(SenseAttemptToReadInvalidData)
			return &s, nil
		}
		if !m.Cfg.WPCheck && z.Type.IsSequential() && wp != WPInfinity && cur >= wp {
			dataEnd = cur // zero-fill entirely, wp-check disabled still zero-fills above wp
		} else if !m.Cfg.WPCheck && z.Type.IsSequential() && wp != WPInfinity && readEnd > wp {
			dataEnd = wp
		}

		off, err := m.offsetForLBA(cur)
		if err != nil {
			return nil, err
		}
		dataLBAs := dataEnd - cur
		if dataLBAs > 0 {
			buf := make([]byte, dataLBAs*uint64(m.Cfg.LBASize))
			if _, err := unix.Pread(int(m.file.Fd()), buf, off); err != nil {
				s := NewSense(SenseReadError)
				return &s, nil
			}
			CopyToIOVec(iov, int(written*uint64(m.Cfg.LBASize)), buf)
		}
		if zeroLBAs := span - dataLBAs; zeroLBAs > 0 {
			zero := make([]byte, zeroLBAs*uint64(m.Cfg.LBASize))
			CopyToIOVec(iov, int((written+dataLBAs)*uint64(m.Cfg.LBASize)), zero)
		}

		written += span
		cur += span
	}
	return nil, nil
}

func checkReadZone(z Zone, wpCheck bool) *Sense {
	switch z.Cond {
	case CondOffline:
		s := NewSense(SenseZoneIsOffline)
		return &s
	case CondInactive:
		if wpCheck && z.Type != TypeConventional && z.Type != TypeSWP {
			s := NewSense(SenseZoneIsInactive)
			return &s
		}
	}
	if z.Type == TypeGap && wpCheck {
		s := NewSense(SenseAttemptToAccessGapZone)
		return &s
	}
	return nil
}

// WriteLBAs validates and executes a write of nrLBAs starting at lba from
// iov, per §4.9's write-path precondition checks. A write may span more
// than one zone; each touched zone is checked and written independently,
// so a write spanning adjoining zones of the same type (e.g. two
// Conventional zones) is not rejected merely for crossing a zone
// boundary. SWR and SOBR zones are the exception: since their own write
// pointer never spans past their own end, a write whose full extent runs
// past the first touched SWR/SOBR zone's end is rejected up front with
// WRITE_BOUNDARY_VIOLATION rather than silently continuing into the next
// zone.
func (m *Metadata) WriteLBAs(lba uint64, nrLBAs uint64, iov []IOVec) (*Sense, error) {
	total := m.totalLBAs()
	if lba+nrLBAs > total {
		s := NewSense(SenseLBAOutOfRange)
		return &s, nil
	}
	if uint64(IOVecLength(iov)) != nrLBAs*uint64(m.Cfg.LBASize) {
		s := NewSense(SenseInternalTargetFailure)
		return &s, nil
	}

	cur := lba
	written := uint64(0)
	for cur < lba+nrLBAs {
		zi, ok := m.zoneForLBA(cur)
		if !ok {
			s := NewSense(SenseLBAOutOfRange)
			return &s, nil
		}
		z := &m.Zones[zi]
		zoneEnd := z.Start + z.Length
		if (z.Type == TypeSWR || z.Type == TypeSOBR) && lba+nrLBAs > zoneEnd {
			s := NewSense(SenseWriteBoundaryViolation)
			return &s, nil
		}
		span := zoneEnd - cur
		if remaining := lba + nrLBAs - cur; span > remaining {
			span = remaining
		}
		if s := checkWriteZone(*z, cur); s != nil {
			return s, nil
		}

		off, err := m.offsetForLBA(cur)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, span*uint64(m.Cfg.LBASize))
		CopyFromIOVec(iov, int(written*uint64(m.Cfg.LBASize)), buf)
		if _, err := unix.Pwrite(int(m.file.Fd()), buf, off); err != nil {
			s := NewSense(SenseWriteError)
			return &s, nil
		}

		if z.Type.IsSequential() {
			if err := m.AdjustWritePointer(zi, cur, span); err != nil {
				s := NewSense(SenseInsufficientZoneResources)
				return &s, nil
			}
		}

		written += span
		cur += span
	}
	return nil, nil
}

func checkWriteZone(z Zone, lba uint64) *Sense {
	switch z.Cond {
	case CondOffline:
		s := NewSense(SenseZoneIsOffline)
		return &s
	case CondInactive:
		s := NewSense(SenseZoneIsInactive)
		return &s
	case CondReadOnly:
		s := NewSense(SenseZoneIsReadOnly)
		return &s
	}
	if z.Type == TypeGap {
		s := NewSense(SenseAttemptToAccessGapZone)
		return &s
	}
	if z.Cond == CondFull && z.Type == TypeSWR {
		s := NewSense(SenseInvalidFieldInCDB)
		return &s
	}
	switch z.Type {
	case TypeSWR:
		if lba != z.WP {
			s := NewSense(SenseUnalignedWrite)
			return &s
		}
	case TypeSOBR:
		if lba > z.WP && z.WP != WPInfinity {
			s := NewSense(SenseUnalignedWrite)
			return &s
		}
	}
	return nil
}

func (m *Metadata) totalLBAs() uint64 {
	if len(m.Zones) == 0 {
		return 0
	}
	last := m.Zones[len(m.Zones)-1]
	return last.Start + last.Length
}
