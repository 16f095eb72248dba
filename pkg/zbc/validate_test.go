package zbc

import "testing"

func TestValidateRejectsNonContiguousZones(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	m.Zones[1].Start += m.Cfg.ZoneSize
	if err := m.Validate(); err == nil {
		t.Fatal("expected validate to reject a non-contiguous zone")
	}
}

func TestValidateRejectsEmptyZoneWithBadWP(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	m.Zones[zi].WP = m.Zones[zi].Start + 1
	if err := m.Validate(); err == nil {
		t.Fatal("expected validate to reject an empty zone whose wp != start")
	}
}

func TestValidateRejectsInactiveConditionOnFlatDevice(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	zi := firstSWRZoneIndex(t, m)
	m.Zones[zi].Cond = CondInactive
	m.Zones[zi].WP = WPInfinity
	if err := m.Validate(); err == nil {
		t.Fatal("expected validate to reject inactive condition on a non-zone-domains device")
	}
}

func TestValidateRejectsTwoActiveSlotsInOneRealm(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(ZoneDomains, ModelZDSOBR))
	m := dev.Meta
	realm := m.Realms[0]
	sobrSlot := realm.Slots[TypeSOBR.classIndex()]
	convSlot := realm.Slots[TypeConventional.classIndex()]

	for z := convSlot.StartZone; z < convSlot.StartZone+convSlot.Length; z++ {
		m.Zones[z].Cond = CondNotWP
		m.Zones[z].WP = WPInfinity
	}
	for z := sobrSlot.StartZone; z < sobrSlot.StartZone+sobrSlot.Length; z++ {
		m.Zones[z].Cond = CondEmpty
		m.Zones[z].WP = m.Zones[z].Start
	}
	if err := m.Validate(); err == nil {
		t.Fatal("expected validate to reject a realm with two active type-slots")
	}
}

func TestValidateRejectsListSizeMismatch(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(HMZoned, Model1PcntB))
	m := dev.Meta
	m.Lists[ListImpOpen].Size++
	if err := m.Validate(); err == nil {
		t.Fatal("expected validate to reject a list whose recorded size doesn't match the scanned population")
	}
}

func TestValidateRejectsBadRealmNumber(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(ZoneDomains, ModelZDSOBR))
	m := dev.Meta
	if len(m.Realms) < 2 {
		t.Fatal("fixture needs at least 2 realms")
	}
	m.Realms[1].Number = 99
	if err := m.Validate(); err == nil {
		t.Fatal("expected validate to reject a realm whose Number field doesn't match its index")
	}
}
