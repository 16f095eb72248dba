package zbc

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Format rewrites the backing file's metadata image, truncating the file
// to hold the metadata region plus the payload region, and builds the
// initial domain/realm/zone graph for cfg. It is used both for the initial
// FORMAT UNIT and for MUTATE/SANITIZE reformats (see device.go).
func Format(f *os.File, cfg DevConfig) (*Metadata, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("zbc: format: %w", err)
	}
	profile := LookupFeatureProfile(cfg.Type, cfg.Model)
	if profile == nil {
		return nil, fmt.Errorf("zbc: format: no feature profile for %s/%s", cfg.Type, cfg.Model)
	}
	geo, err := ComputeGeometry(cfg, profile)
	if err != nil {
		return nil, fmt.Errorf("zbc: format: %w", err)
	}

	m := &Metadata{file: f, Cfg: cfg}
	m.FormatID = uuid.New()
	m.FSNOZ = geo.FSNOZ
	for i := range m.Lists {
		m.Lists[i] = emptyZoneList()
	}
	m.Cfg.MaxOpenZones = geo.MaxOpenZones

	if cfg.Type == ZoneDomains {
		buildZoneDomainsGraph(m, cfg, profile, geo)
	} else {
		buildFlatGraph(m, cfg, profile, geo)
	}

	injectFaults(m, profile)

	metaSize := MetaSize(uint32(len(m.Realms)), uint32(len(m.Zones)))
	payloadSize := int64(len(m.Zones)) * int64(cfg.ZoneSize) * int64(cfg.LBASize)
	totalSize := metaSize + payloadSize
	if err := f.Truncate(0); err != nil {
		return nil, fmt.Errorf("zbc: format: truncate(0): %w", err)
	}
	if err := unix.Ftruncate(int(f.Fd()), totalSize); err != nil {
		return nil, fmt.Errorf("zbc: format: truncate: %w", err)
	}
	m.Cfg.CapacityBytes = uint64(payloadSize)

	data, err := mmapMeta(f, metaSize)
	if err != nil {
		return nil, err
	}
	m.raw = data

	if err := m.Flush(); err != nil {
		m.unmap()
		return nil, err
	}
	return m, nil
}

// buildFlatGraph formats a non-Zone-Domains device: a single conventional
// region (ConvZones, always NotWP) followed by the sequential region in
// profile.InitialSMRType, all zones the same fixed size.
func buildFlatGraph(m *Metadata, cfg DevConfig, profile *FeatureProfile, geo Geometry) {
	nrZones := geo.NrZones
	m.Zones = make([]Zone, nrZones)
	zoneLBAs := cfg.ZoneSize

	var lba uint64
	for i := uint32(0); i < nrZones; i++ {
		z := Zone{Start: lba, Length: zoneLBAs, Prev: 0, Next: 0}
		if i < cfg.ConvZones {
			z.Type = TypeConventional
			z.Cond = CondNotWP
			z.WP = WPInfinity
		} else {
			z.Type = profile.InitialSMRType
			z.Cond = profile.InitialSMRCond
			z.WP = initialWP(z.Type, z.Cond, z.Start, z.Length)
		}
		m.Zones[i] = z
		lba += zoneLBAs
		linkInitialZone(m, uint32(i), z)
	}
	m.Domains = nil
}

// buildZoneDomainsGraph lays the Conventional domain (if any) followed by
// the active SMR-type domain, splits both into NrRealms equal slices, and
// marks the top/bottom NrBotCMRRealms/NrTopCMRRealms realms as Conventional
// at format time. Interior realms start at their profile's default active
// type, with every other type-slot's zones Inactive.
func buildZoneDomainsGraph(m *Metadata, cfg DevConfig, profile *FeatureProfile, geo Geometry) {
	zoneLBAs := cfg.ZoneSize
	m.Realms = make([]Realm, geo.NrRealms)

	nrTop := profile.NrTopCMRRealms
	nrBot := profile.NrBotCMRRealms
	if nrBot+nrTop > geo.NrRealms {
		nrBot, nrTop = geo.NrRealms, 0
	}

	var lba uint64
	var zones []Zone

	var cmrDomain, smrDomain *Domain
	if geo.NrZonesCMR > 0 {
		d := Domain{Start: lba, Type: TypeConventional}
		for i := uint32(0); i < geo.NrZonesCMR; i++ {
			zones = append(zones, Zone{Start: lba, Length: zoneLBAs, Type: TypeConventional, Cond: CondNotWP, WP: WPInfinity})
			lba += zoneLBAs
		}
		d.End = lba - 1
		d.NrZones = geo.NrZonesCMR
		m.Domains = append(m.Domains, d)
		cmrDomain = &m.Domains[len(m.Domains)-1]
		if geo.NrZonesSMR > 0 && profile.DomainGapZones > 0 {
			for g := uint32(0); g < profile.DomainGapZones; g++ {
				zones = append(zones, Zone{Start: lba, Length: zoneLBAs, Type: TypeGap, Cond: CondNotWP, WP: WPInfinity})
				lba += zoneLBAs
			}
		}
	}

	smrZoneBase := uint32(len(zones))
	if geo.NrZonesSMR > 0 {
		d := Domain{Start: lba, Type: profile.InitialSMRType, SMR: true}
		for i := uint32(0); i < geo.NrZonesSMR; i++ {
			zones = append(zones, Zone{Start: lba, Length: zoneLBAs, Type: profile.InitialSMRType, Cond: CondInactive, WP: WPInfinity})
			lba += zoneLBAs
		}
		d.End = lba - 1
		d.NrZones = geo.NrZonesSMR
		m.Domains = append(m.Domains, d)
		smrDomain = &m.Domains[len(m.Domains)-1]
	}

	cmrZoneBase := uint32(0)
	for ri := uint32(0); ri < geo.NrRealms; ri++ {
		r := &m.Realms[ri]
		r.Number = ri
		r.ActvFlags = actvFlagsBits(profile)

		fixedConv := ri < nrBot || ri >= geo.NrRealms-nrTop
		if cmrDomain != nil {
			idx := TypeConventional.classIndex()
			start := cmrZoneBase + ri*geo.NrCMRRealmZones
			r.Slots[idx] = RealmSlot{
				Start:     cmrDomain.Start + uint64(ri*geo.NrCMRRealmZones)*zoneLBAs,
				Length:    geo.NrCMRRealmZones,
				StartZone: start,
			}
		}
		if smrDomain != nil {
			idx := profile.InitialSMRType.classIndex()
			start := smrZoneBase + ri*geo.NrSMRRealmZones
			r.Slots[idx] = RealmSlot{
				Start:     smrDomain.Start + uint64(ri*geo.NrSMRRealmZones)*zoneLBAs,
				Length:    geo.NrSMRRealmZones,
				StartZone: start,
			}
		}

		if fixedConv && cmrDomain != nil {
			r.CurrentType = TypeConventional
			if smrDomain != nil {
				deactivateSlot(zones, r.Slots[profile.InitialSMRType.classIndex()])
			}
		} else {
			r.CurrentType = profile.InitialSMRType
			activateSlot(zones, r.Slots[profile.InitialSMRType.classIndex()], profile.InitialSMRType, profile.InitialSMRCond)
			if cmrDomain != nil {
				deactivateSlot(zones, r.Slots[TypeConventional.classIndex()])
			}
		}
	}

	m.Zones = zones
	for i := range m.Zones {
		linkInitialZone(m, uint32(i), m.Zones[i])
	}
}

func actvFlagsBits(p *FeatureProfile) uint8 {
	var bits uint8
	for i, ok := range p.ActvAllowed {
		if ok {
			bits |= 1 << uint(i)
		}
	}
	return bits
}

func deactivateSlot(zones []Zone, slot RealmSlot) {
	for i := uint32(0); i < slot.Length; i++ {
		z := &zones[slot.StartZone+i]
		z.Cond = CondInactive
		z.WP = WPInfinity
	}
}

func activateSlot(zones []Zone, slot RealmSlot, t ZoneType, cond ZoneCondition) {
	for i := uint32(0); i < slot.Length; i++ {
		z := &zones[slot.StartZone+i]
		z.Type = t
		z.Cond = cond
		z.WP = initialWP(t, cond, z.Start, z.Length)
	}
}

func initialWP(t ZoneType, cond ZoneCondition, start, length uint64) uint64 {
	switch cond {
	case CondEmpty:
		return start
	case CondFull:
		if t == TypeSOBR {
			return WPInfinity
		}
		return start + length
	default:
		return WPInfinity
	}
}

// linkInitialZone places a freshly formatted zone into the correct list
// (Empty/Full seq-active, or none) based on its starting condition.
func linkInitialZone(m *Metadata, idx uint32, z Zone) {
	m.Zones[idx].Prev, m.Zones[idx].Next = 0, 0
	if z.Type.IsSequential() && (z.Cond == CondEmpty || z.Cond == CondFull) {
		AddTail(m, &m.Lists[ListSeqActive], idx)
	}
}

// injectFaults marks profile-configured runs of zones ReadOnly/Offline.
// Each run's offset counts from the first zone of the device (Gap zones in
// the run are skipped); a run is applied once, not repeated per domain,
// and is not resized between CMR and SMR ranges.
func injectFaults(m *Metadata, profile *FeatureProfile) {
	mark := func(offset, count uint32, cond ZoneCondition) {
		for i := offset; i < offset+count && int(i) < len(m.Zones); i++ {
			z := &m.Zones[i]
			if z.Type == TypeGap {
				continue
			}
			z.Cond = cond
			z.WP = WPInfinity
			if z.Prev != 0 || z.Next != 0 {
				Remove(m, zoneListFor(m, i), i)
			}
		}
	}
	if profile.FaultROCount > 0 {
		mark(profile.FaultROOffset, profile.FaultROCount, CondReadOnly)
	}
	if profile.FaultOfflineCount > 0 {
		mark(profile.FaultOfflineOffset, profile.FaultOfflineCount, CondOffline)
	}
}

// zoneListFor returns the list a zone at idx currently belongs to, by
// matching its condition, so fault injection can unlink it safely.
func zoneListFor(m *Metadata, idx uint32) *ZoneList {
	switch m.Zones[idx].Cond {
	case CondImpOpen:
		return &m.Lists[ListImpOpen]
	case CondExpOpen:
		return &m.Lists[ListExpOpen]
	case CondClosed:
		return &m.Lists[ListClosed]
	default:
		return &m.Lists[ListSeqActive]
	}
}
