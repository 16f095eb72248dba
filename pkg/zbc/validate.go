package zbc

import "fmt"

// Validate runs the full set of checks in §4.4 against a loaded Metadata.
// It never mutates m; callers that need a clean post-crash state should
// canonicalize (e.g. close every implicitly open zone) separately.
func (m *Metadata) Validate() error {
	if err := m.validateHeader(); err != nil {
		return err
	}
	if err := m.validateGeometry(); err != nil {
		return err
	}
	if err := m.validateDomains(); err != nil {
		return err
	}
	if err := m.validateZones(); err != nil {
		return err
	}
	if err := m.validateRealms(); err != nil {
		return err
	}
	return m.validateLists()
}

func (m *Metadata) validateHeader() error {
	if err := m.Cfg.Validate(); err != nil {
		return fmt.Errorf("validate: header: %w", err)
	}
	if !IsLBASizeValid(m.Cfg.LBASize) {
		return fmt.Errorf("validate: header: bad lba size %d", m.Cfg.LBASize)
	}
	return nil
}

func (m *Metadata) validateGeometry() error {
	profile := LookupFeatureProfile(m.Cfg.Type, m.Cfg.Model)
	if profile == nil {
		return fmt.Errorf("validate: geometry: no feature profile for %s/%s", m.Cfg.Type, m.Cfg.Model)
	}
	if !IsZoneSizeValid(m.Cfg.ZoneSize) {
		return fmt.Errorf("validate: geometry: zone size %d not power of two", m.Cfg.ZoneSize)
	}
	if m.Cfg.SMRGainPct <= 100 {
		return fmt.Errorf("validate: geometry: smr gain %d%% must exceed 100%%", m.Cfg.SMRGainPct)
	}
	if m.Cfg.Type == ZoneDomains {
		zoneBytes := m.Cfg.ZoneSize * uint64(m.Cfg.LBASize)
		if zoneBytes == 0 || m.Cfg.RealmSize%zoneBytes != 0 {
			return fmt.Errorf("validate: geometry: realm size %d not a multiple of zone size %d", m.Cfg.RealmSize, zoneBytes)
		}
		if m.Cfg.RealmSize < 2*zoneBytes {
			return fmt.Errorf("validate: geometry: realm size smaller than 2 zones")
		}
	}
	expect := MetaSize(uint32(len(m.Realms)), uint32(len(m.Zones)))
	if expect <= 0 {
		return fmt.Errorf("validate: geometry: computed non-positive metadata size")
	}
	return nil
}

func (m *Metadata) validateDomains() error {
	var prevEnd int64 = -1
	for i, d := range m.Domains {
		if int64(d.Start) <= prevEnd {
			return fmt.Errorf("validate: domain %d overlaps or is out of order", i)
		}
		if d.Start%m.Cfg.ZoneSize != 0 {
			return fmt.Errorf("validate: domain %d start not zone-size aligned", i)
		}
		if (d.End+1)%m.Cfg.ZoneSize != 0 {
			return fmt.Errorf("validate: domain %d end not zone-size aligned", i)
		}
		nr := (d.End - d.Start + 1) / m.Cfg.ZoneSize
		if uint64(d.NrZones) != nr {
			return fmt.Errorf("validate: domain %d zone count mismatch: header %d, computed %d", i, d.NrZones, nr)
		}
		prevEnd = int64(d.End)
	}
	return nil
}

func (m *Metadata) validateZones() error {
	var prevEnd uint64
	for i, z := range m.Zones {
		if i > 0 && z.Start != prevEnd {
			return fmt.Errorf("validate: zone %d not contiguous with previous zone end", i)
		}
		prevEnd = z.Start + z.Length
		if err := validateZoneCondition(z, m.Cfg.Type); err != nil {
			return fmt.Errorf("validate: zone %d: %w", i, err)
		}
	}
	return nil
}

func validateZoneCondition(z Zone, dt DeviceType) error {
	switch z.Type {
	case TypeGap:
		if z.Cond != CondNotWP || z.WP != WPInfinity {
			return fmt.Errorf("gap zone must be NotWP with wp=infinity")
		}
	case TypeConventional:
		if z.Cond != CondNotWP && z.Cond != CondInactive && z.Cond != CondOffline && z.Cond != CondReadOnly {
			return fmt.Errorf("conventional zone has illegal condition %s", z.Cond)
		}
		if z.Cond == CondNotWP && z.WP != WPInfinity {
			return fmt.Errorf("not-wp zone must have wp=infinity")
		}
	case TypeSWR, TypeSWP, TypeSOBR:
		switch z.Cond {
		case CondEmpty:
			if z.WP != z.Start {
				return fmt.Errorf("empty zone wp must equal start")
			}
		case CondFull:
			if z.Type == TypeSOBR {
				if z.WP != WPInfinity {
					return fmt.Errorf("full sobr zone must have wp=infinity")
				}
			} else if z.WP != z.Start+z.Length {
				return fmt.Errorf("full zone wp must equal start+length")
			}
		case CondInactive:
			if dt != ZoneDomains {
				return fmt.Errorf("inactive condition only legal on zone-domains devices")
			}
			if z.WP != WPInfinity {
				return fmt.Errorf("inactive zone must have wp=infinity")
			}
		case CondImpOpen, CondExpOpen:
			if z.WP < z.Start || z.WP >= z.Start+z.Length {
				return fmt.Errorf("open zone wp out of [start, start+len)")
			}
		case CondClosed, CondReadOnly, CondOffline:
			// no further constraint beyond type-appropriateness
		default:
			return fmt.Errorf("sequential zone has illegal condition %s", z.Cond)
		}
	}
	return nil
}

func (m *Metadata) validateRealms() error {
	for i, r := range m.Realms {
		if r.Number != uint32(i) {
			return fmt.Errorf("validate: realm %d: number field is %d", i, r.Number)
		}
		activeSlots := 0
		for ci, slot := range r.Slots {
			if slot.Length == 0 {
				continue
			}
			if int(slot.StartZone)+int(slot.Length) > len(m.Zones) {
				return fmt.Errorf("validate: realm %d slot %d out of zone-array range", i, ci)
			}
			anyActive := false
			for z := slot.StartZone; z < slot.StartZone+slot.Length; z++ {
				if m.Zones[z].Cond != CondInactive && m.Zones[z].Cond != CondOffline && m.Zones[z].Cond != CondReadOnly {
					anyActive = true
				}
			}
			if anyActive {
				activeSlots++
			}
		}
		if activeSlots > 1 {
			return fmt.Errorf("validate: realm %d has %d active type-slots, want at most 1", i, activeSlots)
		}
	}
	return nil
}

func (m *Metadata) validateLists() error {
	nrZones := uint32(len(m.Zones))
	for k := ListKind(0); k < nrLists; k++ {
		if err := CheckZoneList(m, m.Lists[k], nrZones); err != nil {
			return fmt.Errorf("validate: list %d: %w", k, err)
		}
	}

	counts := make(map[ListKind]int)
	for i, z := range m.Zones {
		switch z.Cond {
		case CondImpOpen:
			counts[ListImpOpen]++
		case CondExpOpen:
			counts[ListExpOpen]++
		case CondClosed:
			counts[ListClosed]++
		case CondEmpty, CondFull:
			if z.Type.IsSequential() {
				counts[ListSeqActive]++
			}
		}
		_ = i
	}
	for k, c := range counts {
		if int(m.Lists[k].Size) != c {
			return fmt.Errorf("validate: list %d size %d does not match scanned population %d", k, m.Lists[k].Size, c)
		}
	}
	return nil
}
