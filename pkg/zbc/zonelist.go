package zbc

import "fmt"

// ZoneList is an intrusive doubly-linked list over a Metadata's zone array,
// addressed by zone index rather than pointer so it survives an unmap and
// remap of the backing file. Head/Tail/Size live in the persistent header
// (see meta.go) so the list itself never allocates.
type ZoneList struct {
	Head uint32
	Tail uint32
	Size uint32
}

func emptyZoneList() ZoneList {
	return ZoneList{Head: NilIndex, Tail: NilIndex, Size: 0}
}

// zoneLinks is the subset of a Zone the list primitive touches.
type zoneLinks interface {
	links(i uint32) (prev, next uint32)
	setLinks(i uint32, prev, next uint32)
}

// AddHead links zone idx at the front of the list.
func AddHead(zones zoneLinks, l *ZoneList, idx uint32) {
	if l.Head == NilIndex {
		zones.setLinks(idx, NilIndex, NilIndex)
		l.Head, l.Tail = idx, idx
	} else {
		zones.setLinks(idx, NilIndex, l.Head)
		oldHeadPrev, oldHeadNext := zones.links(l.Head)
		_ = oldHeadPrev
		zones.setLinks(l.Head, idx, oldHeadNext)
		l.Head = idx
	}
	l.Size++
}

// AddTail links zone idx at the back of the list.
func AddTail(zones zoneLinks, l *ZoneList, idx uint32) {
	if l.Tail == NilIndex {
		zones.setLinks(idx, NilIndex, NilIndex)
		l.Head, l.Tail = idx, idx
	} else {
		zones.setLinks(idx, l.Tail, NilIndex)
		oldTailPrev, _ := zones.links(l.Tail)
		zones.setLinks(l.Tail, oldTailPrev, idx)
		l.Tail = idx
	}
	l.Size++
}

// Remove unlinks zone idx from the list it is assumed to belong to and
// marks it "not in any list" via the (0,0) sentinel.
func Remove(zones zoneLinks, l *ZoneList, idx uint32) {
	prev, next := zones.links(idx)
	if prev == NilIndex {
		l.Head = next
	} else {
		pprev, _ := zones.links(prev)
		zones.setLinks(prev, pprev, next)
	}
	if next == NilIndex {
		l.Tail = prev
	} else {
		_, nnext := zones.links(next)
		zones.setLinks(next, prev, nnext)
	}
	zones.setLinks(idx, 0, 0)
	if l.Size > 0 {
		l.Size--
	}
}

// First returns the head of the list and whether the list is non-empty.
func First(l ZoneList) (uint32, bool) {
	if l.Head == NilIndex {
		return 0, false
	}
	return l.Head, true
}

// Next returns the successor of zone idx within whichever list it belongs
// to, or (0, false) if idx is the tail.
func Next(zones zoneLinks, idx uint32) (uint32, bool) {
	_, next := zones.links(idx)
	if next == NilIndex {
		return 0, false
	}
	return next, true
}

// CheckZoneList validates head/tail/size coherence and the absence of
// cycles longer than nrZones, per §4.3's integrity check.
func CheckZoneList(zones zoneLinks, l ZoneList, nrZones uint32) error {
	if l.Size == 0 {
		if l.Head != NilIndex || l.Tail != NilIndex {
			return fmt.Errorf("zonelist: empty list has non-nil head/tail")
		}
		return nil
	}
	if l.Head >= nrZones || l.Tail >= nrZones {
		return fmt.Errorf("zonelist: head/tail index out of range")
	}
	seen := uint32(0)
	cur := l.Head
	prev := uint32(NilIndex)
	for {
		if seen > nrZones {
			return fmt.Errorf("zonelist: cycle detected (exceeded %d links)", nrZones)
		}
		p, n := zones.links(cur)
		if p != prev {
			return fmt.Errorf("zonelist: zone %d prev link inconsistent", cur)
		}
		seen++
		if n == NilIndex {
			if cur != l.Tail {
				return fmt.Errorf("zonelist: list tail mismatch at zone %d", cur)
			}
			break
		}
		if n >= nrZones {
			return fmt.Errorf("zonelist: zone %d next link out of range", cur)
		}
		prev = cur
		cur = n
	}
	if seen != l.Size {
		return fmt.Errorf("zonelist: size %d does not match linked population %d", l.Size, seen)
	}
	return nil
}
