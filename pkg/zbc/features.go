package zbc

// FeatureProfile describes one supported (device-type, model) combination:
// the initial zone layout a format produces, which realm activations are
// legal, and which optional controls the profile exposes. Grounded on the
// zbc_opt_feat[] table in the dh-smr handler this emulator reimplements.
type FeatureProfile struct {
	Name   string
	Type   DeviceType
	Model  string

	InitialCMRType ZoneType
	InitialCMRCond ZoneCondition
	InitialSMRType ZoneType
	InitialSMRCond ZoneCondition
	InitialAllSMR  bool

	// ActvAllowed[classIndex(t)] is true if a realm may be activated as t.
	ActvAllowed [NrActivationClasses]bool

	NoZAControl        bool
	NoURControl        bool
	NoNOZSRC           bool
	NoReportRealms     bool
	MaxActivateControl bool
	InitialWPCheck     bool

	FaultROCount        uint32
	FaultROOffset       uint32
	FaultOfflineCount   uint32
	FaultOfflineOffset  uint32

	NrBotCMRRealms uint32
	NrTopCMRRealms uint32
	DomainGapZones uint32
}

// feature catalog keys, mirroring the original source's model identifiers.
const (
	ModelGeneric     = "GENERIC"
	ModelNoCMR       = "NO_CMR"
	Model1PcntB      = "1PCNT_B"
	Model2PcntBT     = "2PCNT_BT"
	ModelFaulty      = "FAULTY"
	ModelZD          = "ZONE_DOM"
	ModelZD1CMRBot   = "ZD_1CMR_BOT"
	ModelZD1CMRBotSWP = "ZD_1CMR_BOT_SWP"
	ModelZD1CMRBotTop = "ZD_1CMR_BOT_TOP"
	ModelZD1CMRBTSMR  = "ZD_1CMR_BT_SMR"
	ModelZDSOBR       = "ZD_SOBR"
	ModelZDSOBRSWP    = "ZD_SOBR_SWP"
	ModelZDSOBREmpty  = "ZD_SOBR_EMPTY"
	ModelZD1SOBRBTTop = "ZD_1SOBR_BT_TOP"
	ModelZDBareBone   = "ZD_BARE_BONE"
	ModelZDFaulty     = "ZD_FAULTY"
	ModelZDSOBRFaulty = "ZD_SOBR_FAULTY"
)

var featureCatalog = buildFeatureCatalog()

func buildFeatureCatalog() map[DeviceType]map[string]*FeatureProfile {
	all := []*FeatureProfile{
		{
			Name: "generic non-zoned", Type: NonZoned, Model: ModelGeneric,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
		},
		{
			Name: "host-managed, no CMR", Type: HMZoned, Model: ModelNoCMR,
			InitialAllSMR:  true,
			InitialSMRType: TypeSWR, InitialSMRCond: CondEmpty,
			ActvAllowed: [4]bool{false, false, true, false},
			NoZAControl: true, NoURControl: true, NoNOZSRC: true, NoReportRealms: true,
		},
		{
			Name: "host-managed, 1% bottom CMR", Type: HMZoned, Model: Model1PcntB,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSWR, InitialSMRCond: CondEmpty,
			ActvAllowed: [4]bool{false, false, true, false},
			NoZAControl: true, NoURControl: true, NoNOZSRC: true, NoReportRealms: true,
			NrBotCMRRealms: 1,
		},
		{
			Name: "host-managed, 2% bottom+top CMR", Type: HMZoned, Model: Model2PcntBT,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSWR, InitialSMRCond: CondEmpty,
			ActvAllowed: [4]bool{false, false, true, false},
			NoZAControl: true, NoURControl: true, NoNOZSRC: true, NoReportRealms: true,
			NrBotCMRRealms: 1, NrTopCMRRealms: 1,
		},
		{
			Name: "host-managed, fault injected", Type: HMZoned, Model: ModelFaulty,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSWR, InitialSMRCond: CondEmpty,
			ActvAllowed: [4]bool{false, false, true, false},
			NoZAControl: true, NoURControl: true, NoNOZSRC: true, NoReportRealms: true,
			NrBotCMRRealms: 1,
			FaultROCount: 2, FaultROOffset: 4,
			FaultOfflineCount: 1, FaultOfflineOffset: 8,
		},
		{
			Name: "host-aware, no CMR", Type: HAZoned, Model: ModelNoCMR,
			InitialAllSMR:  true,
			InitialSMRType: TypeSWP, InitialSMRCond: CondEmpty,
			ActvAllowed: [4]bool{false, false, false, true},
			NoZAControl: true, NoURControl: true, NoNOZSRC: true, NoReportRealms: true,
			InitialWPCheck: false,
		},
		{
			Name: "host-aware, 1% bottom CMR", Type: HAZoned, Model: Model1PcntB,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSWP, InitialSMRCond: CondEmpty,
			ActvAllowed: [4]bool{false, false, false, true},
			NoZAControl: true, NoURControl: true, NoNOZSRC: true, NoReportRealms: true,
			NrBotCMRRealms: 1,
		},
		{
			Name: "host-aware, 2% bottom+top CMR", Type: HAZoned, Model: Model2PcntBT,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSWP, InitialSMRCond: CondEmpty,
			ActvAllowed: [4]bool{false, false, false, true},
			NoZAControl: true, NoURControl: true, NoNOZSRC: true, NoReportRealms: true,
			NrBotCMRRealms: 1, NrTopCMRRealms: 1,
		},
		{
			Name: "zone domains, bare", Type: ZoneDomains, Model: ModelZD,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSWR, InitialSMRCond: CondInactive,
			ActvAllowed: [4]bool{true, true, true, true},
			DomainGapZones: 1,
		},
		{
			Name: "zone domains, 1 bottom CMR realm", Type: ZoneDomains, Model: ModelZD1CMRBot,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSWR, InitialSMRCond: CondInactive,
			ActvAllowed: [4]bool{true, false, true, false},
			NrBotCMRRealms: 1, DomainGapZones: 1,
		},
		{
			Name: "zone domains, 1 bottom CMR realm, SWP", Type: ZoneDomains, Model: ModelZD1CMRBotSWP,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSWP, InitialSMRCond: CondInactive,
			ActvAllowed: [4]bool{true, false, false, true},
			NrBotCMRRealms: 1, DomainGapZones: 1,
		},
		{
			Name: "zone domains, 1 bottom+top CMR realm", Type: ZoneDomains, Model: ModelZD1CMRBotTop,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSWR, InitialSMRCond: CondInactive,
			ActvAllowed: [4]bool{true, false, true, false},
			NrBotCMRRealms: 1, NrTopCMRRealms: 1, DomainGapZones: 1,
		},
		{
			Name: "zone domains, 1 bottom CMR realm, all-SMR", Type: ZoneDomains, Model: ModelZD1CMRBTSMR,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSWR, InitialSMRCond: CondInactive,
			InitialAllSMR: true,
			ActvAllowed:   [4]bool{true, false, true, false},
			NrBotCMRRealms: 1, DomainGapZones: 1,
		},
		{
			Name: "zone domains, SOBR", Type: ZoneDomains, Model: ModelZDSOBR,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSOBR, InitialSMRCond: CondInactive,
			ActvAllowed: [4]bool{true, true, false, false},
			DomainGapZones: 1,
		},
		{
			Name: "zone domains, SOBR+SWP", Type: ZoneDomains, Model: ModelZDSOBRSWP,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSOBR, InitialSMRCond: CondInactive,
			ActvAllowed: [4]bool{true, true, false, true},
			DomainGapZones: 1,
		},
		{
			Name: "zone domains, SOBR starts empty", Type: ZoneDomains, Model: ModelZDSOBREmpty,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSOBR, InitialSMRCond: CondEmpty,
			ActvAllowed: [4]bool{true, true, false, false},
			DomainGapZones: 1,
		},
		{
			Name: "zone domains, 1 SOBR bottom+top realm", Type: ZoneDomains, Model: ModelZD1SOBRBTTop,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSOBR, InitialSMRCond: CondInactive,
			ActvAllowed: [4]bool{true, true, false, false},
			NrBotCMRRealms: 1, NrTopCMRRealms: 1, DomainGapZones: 1,
		},
		{
			Name: "zone domains, bare bones (no ZA/UR control)", Type: ZoneDomains, Model: ModelZDBareBone,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSWR, InitialSMRCond: CondInactive,
			ActvAllowed: [4]bool{true, false, true, false},
			NoZAControl: true, NoURControl: true, NoNOZSRC: true, NoReportRealms: true,
			DomainGapZones: 1,
		},
		{
			Name: "zone domains, fault injected", Type: ZoneDomains, Model: ModelZDFaulty,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSWR, InitialSMRCond: CondInactive,
			ActvAllowed: [4]bool{true, false, true, false},
			FaultROCount: 2, FaultROOffset: 4,
			FaultOfflineCount: 1, FaultOfflineOffset: 8,
			DomainGapZones: 1,
		},
		{
			Name: "zone domains, SOBR, fault injected", Type: ZoneDomains, Model: ModelZDSOBRFaulty,
			InitialCMRType: TypeConventional, InitialCMRCond: CondNotWP,
			InitialSMRType: TypeSOBR, InitialSMRCond: CondInactive,
			ActvAllowed: [4]bool{true, true, false, false},
			FaultROCount: 1, FaultROOffset: 2,
			FaultOfflineCount: 1, FaultOfflineOffset: 6,
			DomainGapZones: 1,
		},
	}

	cat := make(map[DeviceType]map[string]*FeatureProfile)
	featureCatalogOrder = make(map[DeviceType][]string)
	for _, p := range all {
		if cat[p.Type] == nil {
			cat[p.Type] = make(map[string]*FeatureProfile)
		}
		cat[p.Type][p.Model] = p
		featureCatalogOrder[p.Type] = append(featureCatalogOrder[p.Type], p.Model)
	}
	return cat
}

// featureCatalogOrder records each type's models in catalog declaration
// order: the table's index space for the MUTATE parameter list's compact
// model byte (the original handler encodes models as small integers, not
// strings). Populated by buildFeatureCatalog, not a map range, so the same
// byte always resolves to the same model name across runs.
var featureCatalogOrder map[DeviceType][]string

// LookupFeatureProfile returns the catalog row for (t, model), or nil.
func LookupFeatureProfile(t DeviceType, model string) *FeatureProfile {
	byModel := featureCatalog[t]
	if byModel == nil {
		return nil
	}
	return byModel[model]
}

// zoneTypesForClass returns the activation-target zone types in classIndex
// order; Gap is not among them.
func zoneTypesForClass() [NrActivationClasses]ZoneType {
	return [NrActivationClasses]ZoneType{TypeConventional, TypeSOBR, TypeSWR, TypeSWP}
}
