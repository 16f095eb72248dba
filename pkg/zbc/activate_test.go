package zbc

import "testing"

// TestActivateRoundTripSwitchesRealmType exercises a realm whose fixed
// bottom-CMR slice starts Conventional and can be activated to SWR: the
// Conventional<->SOBR and SWR<->SWP pairs are permanently disallowed (the
// original handler enforces this regardless of a realm's ActvAllowed
// bitmap), so this uses ZD_1CMR_BOT, not ZD_SOBR, to pick a legal pair.
func TestActivateRoundTripSwitchesRealmType(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(ZoneDomains, ModelZD1CMRBot))
	m := dev.Meta
	if len(m.Realms) == 0 {
		t.Fatal("no realms")
	}
	if m.Realms[0].CurrentType != TypeConventional {
		t.Fatalf("realm 0 current type = %v, want conventional (fixed bottom realm)", m.Realms[0].CurrentType)
	}
	realm := m.Realms[0]
	swrSlot := realm.Slots[TypeSWR.classIndex()]
	convSlot := realm.Slots[TypeConventional.classIndex()]

	// ZONE ACTIVATE's domain id names the domain being activated *into*.
	var domainID uint32
	for i, d := range m.Domains {
		if d.Type == TypeSWR {
			domainID = uint32(i)
			break
		}
	}

	req := ActivationRequest{
		StartLBA: swrSlot.Start,
		NrZones:  swrSlot.Length,
		DomainID: domainID,
	}
	outcome, err := m.Activate(req)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if outcome.Error != ActErrNone {
		t.Fatalf("activation error = %v", outcome.Error)
	}
	if m.Realms[0].CurrentType != TypeSWR {
		t.Fatalf("realm current type = %v, want swr", m.Realms[0].CurrentType)
	}
	for z := convSlot.StartZone; z < convSlot.StartZone+convSlot.Length; z++ {
		if m.Zones[z].Cond != CondInactive {
			t.Fatalf("conv zone %d cond = %v, want inactive", z, m.Zones[z].Cond)
		}
	}
	for z := swrSlot.StartZone; z < swrSlot.StartZone+swrSlot.Length; z++ {
		if m.Zones[z].Cond != CondEmpty {
			t.Fatalf("swr zone %d cond = %v, want empty", z, m.Zones[z].Cond)
		}
	}
}

func TestActivateRejectsUnalignedRealmStart(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(ZoneDomains, ModelZDSOBR))
	m := dev.Meta
	realm := m.Realms[0]
	convSlot := realm.Slots[TypeConventional.classIndex()]

	var domainID uint32
	for i, d := range m.Domains {
		if d.Type == TypeConventional {
			domainID = uint32(i)
			break
		}
	}

	req := ActivationRequest{
		StartLBA: convSlot.Start + m.Cfg.ZoneSize, // mid-realm, not realm-aligned
		NrZones:  1,
		DomainID: domainID,
	}
	outcome, err := m.Query(req)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if outcome.Error != ActErrRealmAlign {
		t.Fatalf("error = %v, want realm-align", outcome.Error)
	}
}

func TestQueryDoesNotMutateState(t *testing.T) {
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

	before := m.Realms[0].CurrentType
	req := ActivationRequest{StartLBA: swrSlot.Start, NrZones: swrSlot.Length, DomainID: domainID}
	outcome, err := m.Query(req)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if outcome.Error != ActErrNone {
		t.Fatalf("query error = %v", outcome.Error)
	}
	if m.Realms[0].CurrentType != before {
		t.Fatalf("query mutated realm current type: %v -> %v", before, m.Realms[0].CurrentType)
	}
}

// TestActivateDescriptorOrdering uses ZD_1CMR_BOT_TOP with a 2-realm
// fixture, where NrBotCMRRealms=1 and NrTopCMRRealms=1 pin both realms
// Conventional: activating the whole SWR domain switches both realms at
// once, giving two deactivate/activate pairs to check the ordering of.
func TestActivateDescriptorOrdering(t *testing.T) {
	dev := openTestDevice(t, devConfigForProfile(ZoneDomains, ModelZD1CMRBotTop))
	m := dev.Meta
	for i, r := range m.Realms {
		if r.CurrentType != TypeConventional {
			t.Fatalf("realm %d current type = %v, want conventional (fixed top/bottom fixture)", i, r.CurrentType)
		}
	}
	var domainID uint32
	for i, d := range m.Domains {
		if d.Type == TypeSWR {
			domainID = uint32(i)
			break
		}
	}
	req := ActivationRequest{All: true, DomainID: domainID}
	outcome, err := m.Query(req)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if outcome.Error != ActErrNone {
		t.Fatalf("query error = %v", outcome.Error)
	}
	n := len(outcome.Descriptors)
	if n == 0 || n%2 != 0 {
		t.Fatalf("descriptor count = %d, want a positive even count", n)
	}
	firsts := outcome.Descriptors[:n/2]
	for i := 1; i < len(firsts); i++ {
		if firsts[i].ZoneID < firsts[i-1].ZoneID {
			t.Fatalf("firsts not ascending: %v", firsts)
		}
	}
}
