package zbc

import "fmt"

// DevConfig is the resolved, value-typed configuration of one device,
// produced either by ParseCfgString or built directly by a caller that
// already knows what it wants (tests, the CLI's flag-based overrides).
type DevConfig struct {
	Path string

	Type  DeviceType
	Model string

	CapacityBytes uint64
	LBASize       uint32 // 512 or 4096
	ZoneSize      uint64 // LBAs, power of two
	RealmSize     uint64 // bytes, multiple of ZoneSize, >= 2*ZoneSize

	ConvZones    uint32
	MaxOpenZones uint32

	SMRGainPct uint32 // percent, > 100

	MaxActivate uint32 // zones; 0 = unlimited

	WPCheck      bool
	RealmsEnabled bool

	// Raw holds the original cfgstring this config was resolved from, so a
	// reformatted file can detect drift and the formatter can stamp it into
	// the persistent header.
	Raw string
}

// DefaultDevConfig returns the defaults spelled out for the cfgstring
// grammar: Zone-Domains, SOBR-no-CMR model, 512-byte LBAs, 256-MiB zones,
// unspecified conventional-zone count, 128 open zones, 2560-MiB realms,
// 1.25 SMR gain, unlimited max-activate, URSWRZ unset, realms enabled.
func DefaultDevConfig() DevConfig {
	const mib = 1 << 20
	return DevConfig{
		Type:          ZoneDomains,
		Model:         ModelZDSOBR,
		LBASize:       512,
		ZoneSize:      (256 * mib) / 512,
		MaxOpenZones:  128,
		RealmSize:     2560 * mib,
		SMRGainPct:    125,
		MaxActivate:   0,
		WPCheck:       true,
		RealmsEnabled: true,
	}
}

// IsLBASizeValid reports whether size is one of the two supported LBA
// sizes.
func IsLBASizeValid(size uint32) bool {
	return size == 512 || size == 4096
}

// IsZoneSizeValid reports whether size (in LBAs) is a non-zero power of two.
func IsZoneSizeValid(size uint64) bool {
	return size != 0 && size&(size-1) == 0
}

// Validate checks the structural constraints from §3.1 that need no loaded
// geometry to evaluate, plus that (Type, Model) names a feature-catalog
// row.
func (c DevConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("devconfig: empty backing path")
	}
	if !IsLBASizeValid(c.LBASize) {
		return fmt.Errorf("devconfig: invalid lba size %d", c.LBASize)
	}
	if !IsZoneSizeValid(c.ZoneSize) {
		return fmt.Errorf("devconfig: zone size %d is not a power of two", c.ZoneSize)
	}
	if c.Type == ZoneDomains {
		zoneBytes := c.ZoneSize * uint64(c.LBASize)
		if c.RealmSize < 2*zoneBytes {
			return fmt.Errorf("devconfig: realm size %d smaller than 2 zones (%d)", c.RealmSize, 2*zoneBytes)
		}
		if c.CapacityBytes != 0 && c.RealmSize > c.CapacityBytes/2 {
			return fmt.Errorf("devconfig: realm size %d exceeds half capacity %d", c.RealmSize, c.CapacityBytes)
		}
		if zoneBytes == 0 || c.RealmSize%zoneBytes != 0 {
			return fmt.Errorf("devconfig: realm size %d not a multiple of zone size %d", c.RealmSize, zoneBytes)
		}
	}
	if c.SMRGainPct <= 100 {
		return fmt.Errorf("devconfig: smr gain %d%% must exceed 100%%", c.SMRGainPct)
	}
	if LookupFeatureProfile(c.Type, c.Model) == nil {
		return fmt.Errorf("devconfig: unknown model %q for device type %s", c.Model, c.Type)
	}
	return nil
}
