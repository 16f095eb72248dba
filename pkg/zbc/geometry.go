package zbc

import "fmt"

// Geometry is the set of derived counts and layout decisions the formatter
// and validator both need, computed from a resolved DevConfig and its
// feature profile.
type Geometry struct {
	ZoneBytes  uint64
	NrZonesCMR uint32 // conventional-side zones (CMR domains), ZD only
	NrZonesSMR uint32 // sequential-side zones (SMR domains), ZD only
	NrZones    uint32 // total, all domain types, including gap zones
	NrRealms   uint32
	NrCMRRealmZones uint32 // zones per realm on the CMR side
	NrSMRRealmZones uint32 // zones per realm on the SMR side
	MaxOpenZones    uint32
	FSNOZ           uint32

	// CMR2SMR[i] and SMR2CMR[i] rescale a 1-based zone offset within a
	// realm from one side's zone count to the other's.
	CMR2SMR []uint32
	SMR2CMR []uint32
}

// ComputeGeometry derives a Geometry for cfg under profile. It does not
// mutate cfg; the formatter is responsible for clamping cfg fields (e.g.
// MaxOpenZones) to the computed geometry.
func ComputeGeometry(cfg DevConfig, profile *FeatureProfile) (Geometry, error) {
	if profile == nil {
		return Geometry{}, fmt.Errorf("geometry: nil feature profile")
	}
	var g Geometry
	g.ZoneBytes = cfg.ZoneSize * uint64(cfg.LBASize)
	if g.ZoneBytes == 0 {
		return Geometry{}, fmt.Errorf("geometry: zero-size zone")
	}

	if cfg.Type != ZoneDomains {
		if cfg.CapacityBytes == 0 {
			return Geometry{}, fmt.Errorf("geometry: zero capacity")
		}
		total := cfg.CapacityBytes / g.ZoneBytes
		if total == 0 {
			return Geometry{}, fmt.Errorf("geometry: capacity smaller than one zone")
		}
		g.NrZones = uint32(total)
		if cfg.ConvZones > g.NrZones {
			return Geometry{}, fmt.Errorf("geometry: conv zones %d exceed total %d", cfg.ConvZones, g.NrZones)
		}
		g.MaxOpenZones = cfg.MaxOpenZones
		if max := g.NrZones / 2; g.MaxOpenZones > max && max > 0 {
			g.MaxOpenZones = max
		}
		return g, nil
	}

	// Zone Domains: realm size determines realm zone counts on each side.
	if cfg.RealmSize == 0 {
		return Geometry{}, fmt.Errorf("geometry: zero realm size")
	}
	// Logical (CMR-equivalent) realm size is unaffected by smr-gain; the
	// physical (SMR) side packs more zones into the same byte range.
	g.NrCMRRealmZones = uint32(cfg.RealmSize / g.ZoneBytes)
	if g.NrCMRRealmZones < 2 {
		return Geometry{}, fmt.Errorf("geometry: realm holds fewer than 2 zones")
	}
	g.NrSMRRealmZones = uint32(uint64(g.NrCMRRealmZones) * uint64(cfg.SMRGainPct) / 100)
	if g.NrSMRRealmZones < g.NrCMRRealmZones {
		g.NrSMRRealmZones = g.NrCMRRealmZones
	}

	if cfg.CapacityBytes == 0 {
		return Geometry{}, fmt.Errorf("geometry: zero capacity")
	}
	logicalCMRCapacity := cfg.CapacityBytes * 100 / uint64(cfg.SMRGainPct)
	g.NrRealms = uint32(logicalCMRCapacity / cfg.RealmSize)
	if g.NrRealms == 0 {
		return Geometry{}, fmt.Errorf("geometry: capacity too small for one realm")
	}

	g.NrZonesCMR = g.NrRealms * g.NrCMRRealmZones
	g.NrZonesSMR = g.NrRealms * g.NrSMRRealmZones

	nrEnabledDomains := 0
	if g.NrZonesCMR > 0 {
		nrEnabledDomains++
	}
	if g.NrZonesSMR > 0 {
		nrEnabledDomains++
	}
	gapZones := uint32(0)
	if nrEnabledDomains > 1 {
		gapZones = uint32(nrEnabledDomains-1) * profile.DomainGapZones
	}
	g.NrZones = g.NrZonesCMR + g.NrZonesSMR + gapZones

	g.MaxOpenZones = cfg.MaxOpenZones
	if max := g.NrZonesSMR / 2; g.MaxOpenZones > max && max > 0 {
		g.MaxOpenZones = max
	}

	if cfg.MaxActivate == 0 {
		g.FSNOZ = g.NrSMRRealmZones
	} else {
		g.FSNOZ = cfg.MaxActivate
	}

	g.CMR2SMR = resizeMap(g.NrCMRRealmZones, g.NrSMRRealmZones)
	g.SMR2CMR = resizeMap(g.NrSMRRealmZones, g.NrCMRRealmZones)
	return g, nil
}

// resizeMap builds a from-length-indexed table where element i (0-based,
// representing the (i+1)-th zone of the "from" side) holds the linearly
// rescaled 1-based position in the "to" side, clamped to be at least 1.
func resizeMap(fromLen, toLen uint32) []uint32 {
	m := make([]uint32, fromLen)
	if fromLen == 0 {
		return m
	}
	for i := uint32(0); i < fromLen; i++ {
		scaled := uint64(i+1) * uint64(toLen) / uint64(fromLen)
		if scaled < 1 {
			scaled = 1
		}
		m[i] = uint32(scaled)
	}
	return m
}
