package zbc

import "testing"

func TestWriteThenReadRoundTrip(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	z := m.Zones[zi]

	data := make([]byte, 4*int(m.Cfg.LBASize))
	for i := range data {
		data[i] = byte(i)
	}
	if sense, err := m.WriteLBAs(z.Start, 4, flatIOVec(data)); err != nil || sense != nil {
		t.Fatalf("write: sense=%v err=%v", sense, err)
	}

	out := make([]byte, len(data))
	if sense, err := m.ReadLBAs(z.Start, 4, flatIOVec(out)); err != nil || sense != nil {
		t.Fatalf("read: sense=%v err=%v", sense, err)
	}
	for i := range data {
		if out[i] != data[i] {
			t.Fatalf("byte %d: got %d, want %d", i, out[i], data[i])
		}
	}
}

func TestWriteRejectsUnalignedSWRWrite(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	z := m.Zones[zi]

	buf := make([]byte, int(m.Cfg.LBASize))
	sense, err := m.WriteLBAs(z.Start+1, 1, flatIOVec(buf))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if sense == nil || sense.Code != SenseUnalignedWrite {
		t.Fatalf("sense = %v, want unaligned write", sense)
	}
}

func TestReadAboveWritePointerWithWPCheck(t *testing.T) {
	cfg := devConfigForProfile(HMZoned, Model1PcntB)
	cfg.WPCheck = true
	dev := openTestDevice(t, cfg)
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	z := m.Zones[zi]

	buf := make([]byte, int(m.Cfg.LBASize))
	sense, err := m.ReadLBAs(z.Start, 1, flatIOVec(buf))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if sense == nil || sense.Code != SenseAttemptToReadInvalidData {
		t.Fatalf("sense = %v, want attempt-to-read-invalid-data", sense)
	}
}

func TestReadAboveWritePointerZeroFillsWithoutWPCheck(t *testing.T) {
	cfg := devConfigForProfile(HMZoned, Model1PcntB)
	cfg.WPCheck = false
	dev := openTestDevice(t, cfg)
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	z := m.Zones[zi]

	buf := make([]byte, int(m.Cfg.LBASize))
	for i := range buf {
		buf[i] = 0xFF
	}
	sense, err := m.ReadLBAs(z.Start, 1, flatIOVec(buf))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if sense != nil {
		t.Fatalf("unexpected sense: %v", sense)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want 0 (zero-filled above wp)", i, b)
		}
	}
}

func TestWriteRejectsLBAOutOfRange(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	buf := make([]byte, int(m.Cfg.LBASize))
	sense, err := m.WriteLBAs(m.totalLBAs(), 1, flatIOVec(buf))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if sense == nil || sense.Code != SenseLBAOutOfRange {
		t.Fatalf("sense = %v, want lba-out-of-range", sense)
	}
}

func TestWriteSpanningAdjoiningConventionalZonesSucceeds(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	if m.Cfg.ConvZones < 2 {
		t.Fatal("test needs at least two conventional zones")
	}
	z0 := m.Zones[0]
	nrLBAs := z0.Length + 1 // crosses into zone 1

	data := make([]byte, nrLBAs*uint64(m.Cfg.LBASize))
	for i := range data {
		data[i] = byte(i)
	}
	if sense, err := m.WriteLBAs(z0.Start, nrLBAs, flatIOVec(data)); err != nil || sense != nil {
		t.Fatalf("write: sense=%v err=%v", sense, err)
	}

	out := make([]byte, len(data))
	if sense, err := m.ReadLBAs(z0.Start, nrLBAs, flatIOVec(out)); err != nil || sense != nil {
		t.Fatalf("read: sense=%v err=%v", sense, err)
	}
	for i := range data {
		if out[i] != data[i] {
			t.Fatalf("byte %d: got %d, want %d", i, out[i], data[i])
		}
	}
}

func TestWriteRejectsSWRWriteCrossingZoneEnd(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	z := m.Zones[zi]
	if zi+1 >= uint32(len(m.Zones)) || m.Zones[zi+1].Type != TypeSWR {
		t.Fatal("test needs a second adjoining SWR zone")
	}

	nrLBAs := z.Length + 1 // crosses into the next SWR zone
	data := make([]byte, nrLBAs*uint64(m.Cfg.LBASize))
	sense, err := m.WriteLBAs(z.Start, nrLBAs, flatIOVec(data))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if sense == nil || sense.Code != SenseWriteBoundaryViolation {
		t.Fatalf("sense = %v, want write-boundary-violation", sense)
	}
	if m.Zones[zi].Cond != CondEmpty || m.Zones[zi+1].Cond != CondEmpty {
		t.Fatalf("rejected write must not mutate either zone: got %v/%v", m.Zones[zi].Cond, m.Zones[zi+1].Cond)
	}
}

func TestReadRejectsSWRReadCrossingZoneEndWithWPCheck(t *testing.T) {
	cfg := devConfigForProfile(HMZoned, Model1PcntB)
	cfg.WPCheck = true
	dev := openTestDevice(t, cfg)
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	z := m.Zones[zi]
	if zi+1 >= uint32(len(m.Zones)) || m.Zones[zi+1].Type != TypeSWR {
		t.Fatal("test needs a second adjoining SWR zone")
	}

	nrLBAs := z.Length + 1 // crosses into the next SWR zone
	buf := make([]byte, nrLBAs*uint64(m.Cfg.LBASize))
	sense, err := m.ReadLBAs(z.Start, nrLBAs, flatIOVec(buf))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if sense == nil || sense.Code != SenseReadBoundaryViolation {
		t.Fatalf("sense = %v, want read-boundary-violation", sense)
	}
}

func TestWriteToOfflineZoneFails(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, ModelFaulty))
	m := dev.Meta
	profile := LookupFeatureProfile(m.Cfg.Type, m.Cfg.Model)
	zi := profile.FaultOfflineOffset
	z := m.Zones[zi]

	buf := make([]byte, int(m.Cfg.LBASize))
	sense, err := m.WriteLBAs(z.Start, 1, flatIOVec(buf))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if sense == nil || sense.Code != SenseZoneIsOffline {
		t.Fatalf("sense = %v, want zone-is-offline", sense)
	}
}
