package zbc

import "fmt"

// ImplicitOpen transitions zone idx to ImpOpen, enforcing the SWR open
// budget: if the device already has MaxOpenZones SWR zones open and idx
// is itself SWR, the oldest SWR implicit open is evicted (implicit-closed)
// to make room, per §4.6. SWP/SOBR opens never charge the budget.
func (m *Metadata) ImplicitOpen(idx uint32) error {
	z := &m.Zones[idx]
	if z.Cond == CondImpOpen {
		return nil
	}
	if z.Type == TypeSWR && m.countOpenSWR() >= m.Cfg.MaxOpenZones && m.Cfg.MaxOpenZones > 0 {
		if victim, ok := m.oldestImplicitSWR(); ok {
			if err := m.Close(victim); err != nil {
				return err
			}
		} else {
			m.Stats.FailedImpOpens++
			return fmt.Errorf("zbc: insufficient zone resources for implicit open")
		}
	}
	m.unlinkIfListed(idx)
	z.Cond = CondImpOpen
	AddTail(m, &m.Lists[ListImpOpen], idx)
	m.trackOpenPeak()
	return nil
}

// ExplicitOpen transitions zone idx to ExpOpen. A zone already ExpOpen is a
// no-op (idempotence, §8). If idx is currently ImpOpen it is first
// implicit-closed in place (condition replaced, no list churn beyond the
// move). Exceeding the SWR open budget returns an error; the dispatcher
// maps that to INSUFFICIENT_ZONE_RESOURCES.
func (m *Metadata) ExplicitOpen(idx uint32) error {
	z := &m.Zones[idx]
	if z.Cond == CondExpOpen {
		return nil
	}
	if z.Type == TypeSWR && z.Cond != CondImpOpen && m.countOpenSWR() >= m.Cfg.MaxOpenZones && m.Cfg.MaxOpenZones > 0 {
		m.Stats.FailedExpOpens++
		return fmt.Errorf("zbc: insufficient zone resources for explicit open")
	}
	if z.WP == WPInfinity {
		z.WP = z.Start
	}
	m.unlinkIfListed(idx)
	z.Cond = CondExpOpen
	AddTail(m, &m.Lists[ListExpOpen], idx)
	m.trackOpenPeak()
	return nil
}

// Close transitions zone idx to Empty (if wp == start) or Closed otherwise.
// Idempotent on a zone already Closed or Empty.
func (m *Metadata) Close(idx uint32) error {
	z := &m.Zones[idx]
	if z.Cond == CondClosed || z.Cond == CondEmpty {
		return nil
	}
	m.unlinkIfListed(idx)
	if z.WP == z.Start {
		z.Cond = CondEmpty
		AddTail(m, &m.Lists[ListSeqActive], idx)
	} else {
		z.Cond = CondClosed
		AddHead(m, &m.Lists[ListClosed], idx)
	}
	return nil
}

// Finish transitions zone idx to Full, parking the write pointer at the
// zone end (or WPInfinity for SOBR zones, which do not report a WP when
// full). Idempotent on a zone already Full.
func (m *Metadata) Finish(idx uint32) error {
	z := &m.Zones[idx]
	if z.Cond == CondFull {
		return nil
	}
	m.unlinkIfListed(idx)
	if z.Type == TypeSOBR {
		z.WP = WPInfinity
	} else {
		z.WP = z.Start + z.Length
	}
	z.Cond = CondFull
	AddTail(m, &m.Lists[ListSeqActive], idx)
	return nil
}

// Reset transitions zone idx back to its just-formatted state: NotWP for
// Conventional zones, Empty (wp = start) for sequential/SOBR zones.
// Idempotent on a zone already in that state.
func (m *Metadata) Reset(idx uint32) error {
	z := &m.Zones[idx]
	if z.Type == TypeConventional {
		if z.Cond == CondNotWP {
			return nil
		}
		z.WP = WPInfinity
		z.Cond = CondNotWP
		return nil
	}
	if z.Cond == CondEmpty {
		return nil
	}
	m.unlinkIfListed(idx)
	z.WP = z.Start
	z.Cond = CondEmpty
	z.RWP = false
	AddTail(m, &m.Lists[ListSeqActive], idx)
	return nil
}

// Sequentialize clears the non-seq flag on an SWP zone. It returns an
// error for a zone of any other type.
func (m *Metadata) Sequentialize(idx uint32) error {
	z := &m.Zones[idx]
	if z.Type != TypeSWP {
		return fmt.Errorf("zbc: sequentialize: zone %d is not SWP", idx)
	}
	z.NonSeq = false
	return nil
}

// AdjustWritePointer advances zone idx's write pointer after writing count
// LBAs at lba, opening the zone first if it is not yet open, and
// finishing it if the pointer reaches the zone end. The non_seq flag is
// intentionally never set here (see SPEC_FULL.md §12).
func (m *Metadata) AdjustWritePointer(idx uint32, lba, count uint64) error {
	z := &m.Zones[idx]
	if z.Cond != CondImpOpen && z.Cond != CondExpOpen {
		if err := m.ImplicitOpen(idx); err != nil {
			return err
		}
	}
	z = &m.Zones[idx]
	switch z.Type {
	case TypeSWR:
		z.WP += count
	case TypeSWP, TypeSOBR:
		if end := lba + count; end > z.WP {
			z.WP = end
		}
	}
	if z.WP >= z.Start+z.Length {
		return m.Finish(idx)
	}
	return nil
}

func (m *Metadata) unlinkIfListed(idx uint32) {
	z := &m.Zones[idx]
	if z.Prev == 0 && z.Next == 0 {
		return
	}
	switch z.Cond {
	case CondImpOpen:
		Remove(m, &m.Lists[ListImpOpen], idx)
	case CondExpOpen:
		Remove(m, &m.Lists[ListExpOpen], idx)
	case CondClosed:
		Remove(m, &m.Lists[ListClosed], idx)
	case CondEmpty, CondFull:
		Remove(m, &m.Lists[ListSeqActive], idx)
	}
}

func (m *Metadata) countOpenSWR() uint32 {
	var n uint32
	for _, idx := range m.listIndices(ListImpOpen) {
		if m.Zones[idx].Type == TypeSWR {
			n++
		}
	}
	for _, idx := range m.listIndices(ListExpOpen) {
		if m.Zones[idx].Type == TypeSWR {
			n++
		}
	}
	return n
}

func (m *Metadata) oldestImplicitSWR() (uint32, bool) {
	head, ok := First(m.Lists[ListImpOpen])
	for ok {
		if m.Zones[head].Type == TypeSWR {
			return head, true
		}
		head, ok = Next(m, head)
	}
	return 0, false
}

func (m *Metadata) trackOpenPeak() {
	n := m.countOpenSWR()
	if n > m.Stats.PeakOpenZones {
		m.Stats.PeakOpenZones = n
	}
}

// listIndices walks list k and returns its member zone indices. Used by
// stats/budget accounting, not hot read/write paths.
func (m *Metadata) listIndices(k ListKind) []uint32 {
	var out []uint32
	idx, ok := First(m.Lists[k])
	for ok {
		out = append(out, idx)
		idx, ok = Next(m, idx)
	}
	return out
}

// zoneTargetsForAll returns the zone indices the ALL bit should touch for
// the given CLOSE/OPEN/FINISH/RESET/SEQUENTIALIZE ZONE service action,
// drawn from the specific list(s) that command walks rather than every
// zone on the device: walking the whole array would hand Conventional,
// Gap, Inactive, and Offline zones to transition functions that were never
// meant to see them and corrupt their list membership.
func (m *Metadata) zoneTargetsForAll(sa byte) []uint32 {
	switch sa {
	case SAClose:
		return append(m.listIndices(ListImpOpen), m.listIndices(ListExpOpen)...)
	case SAOpen:
		return m.listIndices(ListClosed)
	case SAFinish:
		t := append(m.listIndices(ListImpOpen), m.listIndices(ListExpOpen)...)
		return append(t, m.listIndices(ListClosed)...)
	case SAReset:
		t := append(m.listIndices(ListSeqActive), m.listIndices(ListImpOpen)...)
		t = append(t, m.listIndices(ListExpOpen)...)
		return append(t, m.listIndices(ListClosed)...)
	case SASequentialize:
		var t []uint32
		for _, idx := range m.listIndices(ListClosed) {
			if m.Zones[idx].Type == TypeSWP {
				t = append(t, idx)
			}
		}
		return t
	}
	return nil
}
