package zbc

import "testing"

// TestCloseAllOnlyTouchesOpenZones guards against the ALL bit sweeping
// every zone index on the device: CLOSE ALL must only walk the
// implicit/explicit-open zones, never the conventional zones that forbid
// the Closed condition.
func TestCloseAllOnlyTouchesOpenZones(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	if err := m.ImplicitOpen(zi); err != nil {
		t.Fatalf("implicit open: %v", err)
	}
	convCond := m.Zones[0].Cond

	cdb := make([]byte, 16)
	cdb[0] = OpZBCOut
	cdb[1] = SAClose
	cdb[14] = 0x01 // ALL
	resp := dev.Dispatch(Command{CDB: cdb})
	if resp.Status != StatusOK {
		t.Fatalf("close all: status=%v sense=%v", resp.Status, resp.Sense)
	}

	if m.Zones[0].Cond != convCond {
		t.Fatalf("conventional zone 0 cond changed to %v by CLOSE ALL", m.Zones[0].Cond)
	}
	if m.Zones[zi].Cond != CondClosed && m.Zones[zi].Cond != CondEmpty {
		t.Fatalf("swr zone %d cond = %v, want closed/empty after CLOSE ALL", zi, m.Zones[zi].Cond)
	}
}

// TestOpenAllOnlyTouchesClosedZones guards the same bug for OPEN ALL,
// which must only walk the closed-zone list.
func TestOpenAllOnlyTouchesClosedZones(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	// Write two LBAs first so wp > start and the Close below yields Closed
	// rather than Empty.
	if err := m.AdjustWritePointer(zi, m.Zones[zi].Start, 2); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if err := m.Close(zi); err != nil {
		t.Fatalf("close: %v", err)
	}
	convCond := m.Zones[0].Cond

	cdb := make([]byte, 16)
	cdb[0] = OpZBCOut
	cdb[1] = SAOpen
	cdb[14] = 0x01 // ALL
	resp := dev.Dispatch(Command{CDB: cdb})
	if resp.Status != StatusOK {
		t.Fatalf("open all: status=%v sense=%v", resp.Status, resp.Sense)
	}

	if m.Zones[0].Cond != convCond {
		t.Fatalf("conventional zone 0 cond changed to %v by OPEN ALL", m.Zones[0].Cond)
	}
	if m.Zones[zi].Cond != CondExpOpen {
		t.Fatalf("swr zone %d cond = %v, want exp-open after OPEN ALL", zi, m.Zones[zi].Cond)
	}
}
