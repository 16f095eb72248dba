package zbc

import "testing"

func TestComputeGeometryFlatDevice(t *testing.T) {
	cfg := devConfigForProfile(HMZoned, Model1PcntB)
	profile := LookupFeatureProfile(cfg.Type, cfg.Model)
	if profile == nil {
		t.Fatal("no feature profile for HM/1PCNT_B")
	}
	geo, err := ComputeGeometry(cfg, profile)
	if err != nil {
		t.Fatalf("compute geometry: %v", err)
	}
	if geo.NrZones != uint32(cfg.CapacityBytes/geo.ZoneBytes) {
		t.Fatalf("nr zones = %d", geo.NrZones)
	}
	if geo.MaxOpenZones == 0 {
		t.Fatal("max open zones should be non-zero")
	}
}

func TestComputeGeometryZoneDomains(t *testing.T) {
	cfg := devConfigForProfile(ZoneDomains, ModelZDSOBR)
	profile := LookupFeatureProfile(cfg.Type, cfg.Model)
	geo, err := ComputeGeometry(cfg, profile)
	if err != nil {
		t.Fatalf("compute geometry: %v", err)
	}
	if geo.NrRealms == 0 {
		t.Fatal("expected at least one realm")
	}
	if geo.NrSMRRealmZones < geo.NrCMRRealmZones {
		t.Fatalf("smr realm zones (%d) < cmr realm zones (%d)", geo.NrSMRRealmZones, geo.NrCMRRealmZones)
	}
	wantZones := geo.NrZonesCMR + geo.NrZonesSMR
	if profile.NrBotCMRRealms+profile.NrTopCMRRealms == 0 && geo.NrZonesCMR > 0 && geo.NrZonesSMR > 0 {
		wantZones += profile.DomainGapZones
	}
	if geo.NrZones != wantZones {
		t.Fatalf("nr zones = %d, want %d", geo.NrZones, wantZones)
	}
}

func TestResizeMapMonotonic(t *testing.T) {
	m := resizeMap(4, 6)
	if len(m) != 4 {
		t.Fatalf("len = %d", len(m))
	}
	for i := 1; i < len(m); i++ {
		if m[i] < m[i-1] {
			t.Fatalf("resize map not monotonic: %v", m)
		}
	}
	if m[len(m)-1] != 6 {
		t.Fatalf("last entry = %d, want 6", m[len(m)-1])
	}
}

func TestResizeMapClampsToAtLeastOne(t *testing.T) {
	m := resizeMap(10, 1)
	for i, v := range m {
		if v < 1 {
			t.Fatalf("entry %d = %d, want >= 1", i, v)
		}
	}
}

func TestComputeGeometryRejectsZeroCapacity(t *testing.T) {
	cfg := devConfigForProfile(HMZoned, Model1PcntB)
	cfg.CapacityBytes = 0
	profile := LookupFeatureProfile(cfg.Type, cfg.Model)
	if _, err := ComputeGeometry(cfg, profile); err == nil {
		t.Fatal("expected error for zero capacity")
	}
}
