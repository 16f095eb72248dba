package zbc

import "testing"

func TestOpenCanonicalizesImplicitOpenZonesAfterCrash(t *testing.T) {
	cfg := devConfigForProfile(HMZoned, Model1PcntB)
	cfg.Path = newTempBackingFile(t)

	dev, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	zi := firstSWRZoneIndex(t, dev.Meta)
	if err := dev.Meta.AdjustWritePointer(zi, dev.Meta.Zones[zi].Start, 2); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if dev.Meta.Zones[zi].Cond != CondImpOpen {
		t.Fatalf("cond = %v, want implicit-open before crash", dev.Meta.Zones[zi].Cond)
	}
	if err := dev.Meta.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	// Simulate an unclean shutdown: skip Close (no canonicalization there)
	// and reopen the same backing file directly.
	if err := dev.Meta.unmap(); err != nil {
		t.Fatalf("unmap: %v", err)
	}
	t.Cleanup(func() { dev.Meta.file.Close() })

	dev2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer dev2.Close()
	if dev2.Meta.Zones[zi].Cond == CondImpOpen {
		t.Fatal("implicit-open zone was not canonicalized on reopen")
	}
}

func TestMutateSwitchesTypeAndModel(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	newCfg := devConfigForProfile(HAZoned, Model1PcntB)
	newCfg.Path = dev.Meta.Cfg.Path

	if err := dev.Mutate(newCfg); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if dev.Meta.Cfg.Type != HAZoned {
		t.Fatalf("type = %v, want host-aware", dev.Meta.Cfg.Type)
	}
	for _, z := range dev.Meta.Zones {
		if z.Type == TypeSWP && z.Cond != CondEmpty {
			t.Fatalf("swp zone cond = %v, want empty after mutate", z.Cond)
		}
	}
}

func TestMutateNoOpWhenTypeAndModelUnchanged(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	zi := firstSWRZoneIndex(t, dev.Meta)
	if err := dev.Meta.AdjustWritePointer(zi, dev.Meta.Zones[zi].Start, 4); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	wpBefore := dev.Meta.Zones[zi].WP

	same := dev.Meta.Cfg
	if err := dev.Mutate(same); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if dev.Meta.Zones[zi].WP != wpBefore {
		t.Fatal("no-op mutate (same type/model) reformatted the device")
	}
}

func TestSanitizeResetsZoneState(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	zi := firstSWRZoneIndex(t, dev.Meta)
	if err := dev.Meta.AdjustWritePointer(zi, dev.Meta.Zones[zi].Start, 4); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	dev.Meta.Stats.PeakOpenZones = 10

	if err := dev.Sanitize(); err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if dev.Meta.Zones[zi].WP != dev.Meta.Zones[zi].Start {
		t.Fatalf("wp = %d, want reset to start", dev.Meta.Zones[zi].WP)
	}
	if dev.Meta.Stats.PeakOpenZones != 0 {
		t.Fatalf("stats.PeakOpenZones = %d, want reset to 0", dev.Meta.Stats.PeakOpenZones)
	}
}

func TestDeferredSenseQueueFIFO(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	s1 := Sense{Code: SenseLBAOutOfRange}
	s2 := Sense{Code: SenseUnalignedWrite}
	dev.RecordSense(s1)
	dev.RecordSense(s2)

	got1, ok := dev.NextDeferredSense()
	if !ok || got1.Code != SenseLBAOutOfRange {
		t.Fatalf("first popped = %+v, ok=%v", got1, ok)
	}
	got2, ok := dev.NextDeferredSense()
	if !ok || got2.Code != SenseUnalignedWrite {
		t.Fatalf("second popped = %+v, ok=%v", got2, ok)
	}
	if _, ok := dev.NextDeferredSense(); ok {
		t.Fatal("expected empty queue after draining both entries")
	}
}

// TestActivationRoundTripScenario exercises a full activate-then-write
// flow on a zone domains device: activate a realm's bottom-CMR slice into
// SWR, then confirm the new zones behave like ordinary SWR zones.
func TestActivationRoundTripScenario(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(ZoneDomains, ModelZD1CMRBot))
	m := dev.Meta
	realm := m.Realms[0]
	swrSlot := realm.Slots[TypeSWR.classIndex()]

	var domainID uint32
	for i, d := range m.Domains {
		if d.Type == TypeSWR {
			domainID = uint32(i)
			break
		}
	}
	req := ActivationRequest{StartLBA: swrSlot.Start, NrZones: swrSlot.Length, DomainID: domainID}
	if _, err := m.Activate(req); err != nil {
		t.Fatalf("activate: %v", err)
	}

	buf := make([]byte, int(m.Cfg.LBASize))
	if sense, err := m.WriteLBAs(swrSlot.Start, 1, flatIOVec(buf)); err != nil || sense != nil {
		t.Fatalf("write to newly-activated swr zone: sense=%v err=%v", sense, err)
	}
}
