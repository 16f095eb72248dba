package zbc

import "testing"

// firstSWRZoneIndex returns the first zone index typed SWR.
func firstSWRZoneIndex(t *testing.T, m *Metadata) uint32 {
	t.Helper()
	for i, z := range m.Zones {
		if z.Type == TypeSWR {
			return uint32(i)
		}
	}
	t.Fatal("no SWR zone in fixture")
	return 0
}

func TestAdjustWritePointerAdvancesAndOpensImplicitly(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	z := m.Zones[zi]

	if err := m.AdjustWritePointer(zi, z.Start, 4); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if m.Zones[zi].Cond != CondImpOpen {
		t.Fatalf("cond = %v, want implicit-open", m.Zones[zi].Cond)
	}
	if m.Zones[zi].WP != z.Start+4 {
		t.Fatalf("wp = %d, want %d", m.Zones[zi].WP, z.Start+4)
	}
}

func TestAdjustWritePointerFinishesAtZoneEnd(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	z := m.Zones[zi]

	if err := m.AdjustWritePointer(zi, z.Start, z.Length); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if m.Zones[zi].Cond != CondFull {
		t.Fatalf("cond = %v, want full", m.Zones[zi].Cond)
	}
	if m.Zones[zi].WP != z.Start+z.Length {
		t.Fatalf("wp = %d, want %d", m.Zones[zi].WP, z.Start+z.Length)
	}
}

func TestImplicitOpenEvictsOldestUnderBudget(t *testing.T) {
	cfg := devConfigForProfile(HMZoned, Model1PcntB)
	cfg.MaxOpenZones = 2
	dev := openTestDevice(t, cfg)
	m := dev.Meta

	var swrZones []uint32
	for i, z := range m.Zones {
		if z.Type == TypeSWR {
			swrZones = append(swrZones, uint32(i))
		}
	}
	if len(swrZones) < 3 {
		t.Fatalf("need at least 3 SWR zones, fixture has %d", len(swrZones))
	}

	if err := m.ImplicitOpen(swrZones[0]); err != nil {
		t.Fatalf("open 0: %v", err)
	}
	if err := m.ImplicitOpen(swrZones[1]); err != nil {
		t.Fatalf("open 1: %v", err)
	}
	if err := m.ImplicitOpen(swrZones[2]); err != nil {
		t.Fatalf("open 2 (should evict oldest): %v", err)
	}
	if m.Zones[swrZones[0]].Cond == CondImpOpen {
		t.Fatal("oldest implicit-open zone was not evicted")
	}
	if m.Zones[swrZones[2]].Cond != CondImpOpen {
		t.Fatal("newest zone should be implicit-open")
	}
}

func TestExplicitOpenIdempotent(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)

	if err := m.ExplicitOpen(zi); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := m.ExplicitOpen(zi); err != nil {
		t.Fatalf("second open (should be no-op): %v", err)
	}
	if m.Zones[zi].Cond != CondExpOpen {
		t.Fatalf("cond = %v, want explicit-open", m.Zones[zi].Cond)
	}
}

func TestCloseEmptyVsClosed(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)

	if err := m.Close(zi); err != nil {
		t.Fatalf("close untouched zone: %v", err)
	}
	if m.Zones[zi].Cond != CondEmpty {
		t.Fatalf("cond = %v, want empty (wp untouched)", m.Zones[zi].Cond)
	}

	if err := m.AdjustWritePointer(zi, m.Zones[zi].Start, 2); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if err := m.Close(zi); err != nil {
		t.Fatalf("close partially written zone: %v", err)
	}
	if m.Zones[zi].Cond != CondClosed {
		t.Fatalf("cond = %v, want closed", m.Zones[zi].Cond)
	}
}

func TestResetReturnsToInitialState(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	start := m.Zones[zi].Start

	if err := m.AdjustWritePointer(zi, start, 4); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if err := m.Reset(zi); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if m.Zones[zi].Cond != CondEmpty || m.Zones[zi].WP != start {
		t.Fatalf("zone after reset = %+v", m.Zones[zi])
	}
}

func TestSequentializeOnlyAppliesToSWP(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HAZoned, Model1PcntB))
	m := dev.Meta
	var swpIdx uint32 = 0
	found := false
	for i, z := range m.Zones {
		if z.Type == TypeSWP {
			swpIdx = uint32(i)
			found = true
			break
		}
	}
	if !found {
		t.Fatal("fixture has no SWP zone")
	}
	m.Zones[swpIdx].NonSeq = true
	if err := m.Sequentialize(swpIdx); err != nil {
		t.Fatalf("sequentialize: %v", err)
	}
	if m.Zones[swpIdx].NonSeq {
		t.Fatal("non-seq flag not cleared")
	}

	convIdx := uint32(0)
	for i, z := range m.Zones {
		if z.Type == TypeConventional {
			convIdx = uint32(i)
			break
		}
	}
	if err := m.Sequentialize(convIdx); err == nil {
		t.Fatal("expected error sequentializing a conventional zone")
	}
}
