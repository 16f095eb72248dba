package zbc

import "fmt"

// ActivationError is one of the precondition-failure bits a ZONE
// ACTIVATE/QUERY result header can carry. These are not sense errors: the
// command itself returns OK and the caller inspects the results buffer
// (§7).
type ActivationError uint8

const (
	ActErrNone ActivationError = iota
	ActErrUnsupp
	ActErrNotEmpty
	ActErrNotInactive
	ActErrRealmAlign
	ActErrMultiDomains
)

// ActivationRequest captures the inputs common to the 16- and 32-byte
// ZONE ACTIVATE/QUERY CDB variants; the dispatcher is responsible for
// parsing either CDB shape into this struct.
type ActivationRequest struct {
	StartLBA uint64
	NrZones  uint32
	All      bool
	DomainID uint32
	NOZSRC   bool
	AllocLen uint32
}

// ActivationResult is one 24-byte deactivate-or-activate descriptor.
type ActivationResult struct {
	ZoneID  uint64
	NrZones uint32
	Type    ZoneType
	Cond    ZoneCondition
}

// ActivationOutcome is the full result of a dry-run or applied activation.
type ActivationOutcome struct {
	Descriptors    []ActivationResult
	Error          ActivationError
	ZIWUP          uint64
	ZonesProcessed uint32
}

type activationPlan struct {
	realmIdx  int
	deactOff  uint32
	deactLen  uint32
	actOff    uint32
	actLen    uint32
	newType   ZoneType
	deactDesc ActivationResult
	actDesc   ActivationResult
}

// planActivation is the pure half of the engine (§9 design note): it
// inspects req against the current realm/zone graph and returns the full
// set of edits it would make, without mutating anything. ZONE QUERY calls
// this directly; ZONE ACTIVATE calls it then, if the plan is error-free,
// applies it.
func (m *Metadata) planActivation(req ActivationRequest) (ActivationOutcome, []activationPlan, error) {
	if int(req.DomainID) >= len(m.Domains) {
		return ActivationOutcome{}, nil, fmt.Errorf("zbc: activate: domain id %d out of range", req.DomainID)
	}
	target := &m.Domains[req.DomainID]

	start, nr := req.StartLBA, req.NrZones
	if req.All {
		start, nr = target.Start, target.NrZones
	}
	if nr == 0 || nr > uint32(len(m.Zones)) {
		return ActivationOutcome{}, nil, fmt.Errorf("zbc: activate: invalid zone count %d", nr)
	}
	if start%m.Cfg.ZoneSize != 0 {
		return ActivationOutcome{}, nil, fmt.Errorf("zbc: activate: start lba %d not zone-aligned", start)
	}
	rangeEnd := start + uint64(nr)*m.Cfg.ZoneSize - m.Cfg.ZoneSize
	if start < target.Start || rangeEnd > target.End {
		return ActivationOutcome{Error: ActErrMultiDomains, ZIWUP: start}, nil, nil
	}

	nrRealms := uint32(len(m.Realms))
	if nrRealms == 0 {
		return ActivationOutcome{}, nil, fmt.Errorf("zbc: activate: device has no realms")
	}
	sliceZones := target.NrZones / nrRealms
	if sliceZones == 0 {
		return ActivationOutcome{}, nil, fmt.Errorf("zbc: activate: degenerate domain/realm geometry")
	}

	offsetInDomain := (start - target.Start) / m.Cfg.ZoneSize
	if m.Cfg.RealmsEnabled && offsetInDomain%uint64(sliceZones) != 0 {
		return ActivationOutcome{Error: ActErrRealmAlign, ZIWUP: start}, nil, nil
	}
	startRealm := int(offsetInDomain / uint64(sliceZones))
	newType := target.Type

	var plans []activationPlan
	remaining := nr
	offsetWithinRealm := uint32(offsetInDomain % uint64(sliceZones))
	for ri := startRealm; remaining > 0 && ri < int(nrRealms); ri++ {
		realm := &m.Realms[ri]
		length := sliceZones - offsetWithinRealm
		if length > remaining {
			length = remaining
		}
		p, actErr, ziwup := m.checkCanActivate(realm, ri, offsetWithinRealm, length, newType, req.All)
		if actErr != ActErrNone {
			return ActivationOutcome{Error: actErr, ZIWUP: ziwup, ZonesProcessed: nr - remaining}, nil, nil
		}
		plans = append(plans, p)
		remaining -= length
		offsetWithinRealm = 0
	}

	return m.assemblePlan(plans, nr), plans, nil
}

// checkCanActivate evaluates one realm slice's activation preconditions
// and, if they pass, computes its deactivate/activate descriptor pair.
func (m *Metadata) checkCanActivate(realm *Realm, realmIdx int, offset, length uint32, newType ZoneType, all bool) (activationPlan, ActivationError, uint64) {
	if !realm.canActivateAs(newType) {
		return activationPlan{}, ActErrUnsupp, realm.Slots[newType.classIndex()].Start
	}
	old := realm.CurrentType
	if disallowedActivationPair(old, newType) {
		return activationPlan{}, ActErrUnsupp, realm.Slots[newType.classIndex()].Start
	}

	newSlot := realm.Slots[newType.classIndex()]
	oldSlot := realm.Slots[old.classIndex()]
	if newSlot.Length == 0 || oldSlot.Length == 0 {
		return activationPlan{}, ActErrUnsupp, newSlot.Start
	}

	deactOff, deactLen := offset, length
	if length == newSlot.Length && offset == 0 {
		deactOff, deactLen = 0, oldSlot.Length
	} else if deactLen > oldSlot.Length-deactOff {
		deactLen = oldSlot.Length - deactOff
	}

	for z := oldSlot.StartZone + deactOff; z < oldSlot.StartZone+deactOff+deactLen; z++ {
		zone := &m.Zones[z]
		if zone.Type == TypeConventional {
			continue // conventional zones carry no WP state, always deactivatable
		}
		if !deactivatableCondition(zone.Cond, all) {
			return activationPlan{}, ActErrNotEmpty, zone.Start
		}
	}
	for z := newSlot.StartZone + offset; z < newSlot.StartZone+offset+length; z++ {
		zone := &m.Zones[z]
		if zone.Type == TypeConventional {
			continue
		}
		c := zone.Cond
		ok := c == CondInactive || c == CondEmpty
		if !all {
			ok = ok || c == CondReadOnly || c == CondOffline
		}
		if !ok {
			return activationPlan{}, ActErrNotInactive, zone.Start
		}
	}

	deactDesc := ActivationResult{ZoneID: m.Zones[oldSlot.StartZone+deactOff].Start, NrZones: deactLen, Type: old, Cond: CondInactive}
	actCond := CondEmpty
	if newType == TypeConventional {
		actCond = CondNotWP
	}
	actDesc := ActivationResult{ZoneID: m.Zones[newSlot.StartZone+offset].Start, NrZones: length, Type: newType, Cond: actCond}

	return activationPlan{
		realmIdx: realmIdx,
		deactOff: deactOff, deactLen: deactLen,
		actOff: offset, actLen: length,
		newType:   newType,
		deactDesc: deactDesc,
		actDesc:   actDesc,
	}, ActErrNone, 0
}

func disallowedActivationPair(old, new_ ZoneType) bool {
	conv := func(a, b ZoneType) bool { return (old == a && new_ == b) || (old == b && new_ == a) }
	return conv(TypeConventional, TypeSOBR) || conv(TypeSWR, TypeSWP)
}

func deactivatableCondition(c ZoneCondition, all bool) bool {
	if all {
		switch c {
		case CondEmpty, CondFull, CondClosed, CondImpOpen, CondExpOpen, CondInactive:
			return true
		}
		return false
	}
	return c == CondEmpty || c == CondInactive
}

// assemblePlan orders the descriptor stream per §4.8 step 5: pairs are
// recorded low-ID-first/high-ID-second as encountered, then all "firsts"
// are emitted before any "seconds".
func (m *Metadata) assemblePlan(plans []activationPlan, nr uint32) ActivationOutcome {
	var firsts, seconds []ActivationResult
	for _, p := range plans {
		a, b := p.deactDesc, p.actDesc
		if a.ZoneID <= b.ZoneID {
			firsts = append(firsts, a)
			seconds = append(seconds, b)
		} else {
			firsts = append(firsts, b)
			seconds = append(seconds, a)
		}
	}
	return ActivationOutcome{Descriptors: append(firsts, seconds...), ZonesProcessed: nr}
}

// Query computes the descriptor stream for req without mutating state.
func (m *Metadata) Query(req ActivationRequest) (ActivationOutcome, error) {
	outcome, _, err := m.planActivation(req)
	return outcome, err
}

// Activate computes the same plan Query would, and if it is error-free,
// applies every realm's deactivate/activate edits and updates each
// realm's current type.
func (m *Metadata) Activate(req ActivationRequest) (ActivationOutcome, error) {
	outcome, plans, err := m.planActivation(req)
	if err != nil || outcome.Error != ActErrNone {
		return outcome, err
	}
	for _, p := range plans {
		realm := &m.Realms[p.realmIdx]
		oldSlot := realm.Slots[realm.CurrentType.classIndex()]
		for z := oldSlot.StartZone + p.deactOff; z < oldSlot.StartZone+p.deactOff+p.deactLen; z++ {
			m.unlinkIfListed(z)
			zone := &m.Zones[z]
			zone.Cond = CondInactive
			zone.WP = WPInfinity
		}
		newSlot := realm.Slots[p.newType.classIndex()]
		for z := newSlot.StartZone + p.actOff; z < newSlot.StartZone+p.actOff+p.actLen; z++ {
			zone := &m.Zones[z]
			zone.Type = p.newType
			if p.newType == TypeConventional {
				zone.Cond = CondNotWP
				zone.WP = WPInfinity
			} else {
				zone.Cond = CondEmpty
				zone.WP = zone.Start
				AddTail(m, &m.Lists[ListSeqActive], z)
			}
		}
		realm.CurrentType = p.newType
	}
	return outcome, nil
}

// PackActivationOutcome serializes an ActivationOutcome into the 64-byte
// header + 24-byte-descriptor wire format.
func PackActivationOutcome(o ActivationOutcome) []byte {
	var errBits uint16
	if o.Error != ActErrNone {
		errBits = 1 << uint(o.Error-1)
	}
	totalBytes := uint32(len(o.Descriptors)) * activationDescSize
	hdr := reportHeader(totalBytes, false, o.ZIWUP)
	putUint16(hdr[4:6], errBits)
	putUint32(hdr[16:20], o.ZonesProcessed)
	buf := hdr
	for _, d := range o.Descriptors {
		rec := make([]byte, activationDescSize)
		putUint64(rec[0:8], d.ZoneID)
		putUint32(rec[8:12], d.NrZones)
		rec[12] = uint8(d.Type)
		rec[13] = uint8(d.Cond)
		buf = append(buf, rec...)
	}
	return buf
}
