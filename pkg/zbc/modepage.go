package zbc

import "fmt"

// Mode page codes recognized by MODE SENSE/SELECT, per §4.11.
const (
	PageRWRecovery  = 0x01
	PageCache       = 0x08
	PageControl     = 0x0A
	PageZoneDomains = 0x3D
	SubpageZoneDomains = 0x08
)

// ModeSense returns the page data for page/subpage, or an error if the
// combination is unrecognized. No mode parameter header is prepended,
// here or by the dispatcher, which copies the page data as is.
func (m *Metadata) ModeSense(page, subpage uint8) ([]byte, error) {
	switch {
	case page == PageRWRecovery:
		return modeRWRecoveryPage(), nil
	case page == PageCache:
		return modeCachePage(), nil
	case page == PageControl:
		return modeControlPage(), nil
	case page == PageZoneDomains && subpage == SubpageZoneDomains:
		return m.modeZoneDomainsPage(), nil
	}
	return nil, fmt.Errorf("zbc: mode sense: unsupported page %#x/%#x", page, subpage)
}

func modeRWRecoveryPage() []byte {
	b := make([]byte, 12)
	b[0] = PageRWRecovery
	b[1] = 10
	return b
}

func modeCachePage() []byte {
	b := make([]byte, 20)
	b[0] = PageCache
	b[1] = 18
	b[2] = 0x04 // WCE=1
	return b
}

func modeControlPage() []byte {
	b := make([]byte, 12)
	b[0] = PageControl
	b[1] = 10
	return b
}

// modeZoneDomainsPage packs the vendor 0x3D/0x08 page: FSNOZ (4 bytes),
// URSWRZ-inverse bit, MAX ACTIVATE (4 bytes).
func (m *Metadata) modeZoneDomainsPage() []byte {
	b := make([]byte, 16)
	b[0] = PageZoneDomains | 0x40 // SPF bit set: subpage present
	b[1] = SubpageZoneDomains
	putUint16(b[2:4], uint16(len(b)-4))
	putUint32(b[4:8], m.FSNOZ)
	if !m.Cfg.WPCheck {
		b[8] |= 0x01 // URSWRZ
	}
	putUint32(b[12:16], m.Cfg.MaxActivate)
	return b
}

// ModeSelect applies a MODE SELECT to the vendor Zone Domains page,
// gating fields the feature profile declares uncontrollable.
func (m *Metadata) ModeSelect(page, subpage uint8, data []byte) error {
	if page != PageZoneDomains || subpage != SubpageZoneDomains {
		return fmt.Errorf("zbc: mode select: unsupported page %#x/%#x", page, subpage)
	}
	if len(data) < 16 {
		return fmt.Errorf("zbc: mode select: parameter list too short")
	}
	profile := LookupFeatureProfile(m.Cfg.Type, m.Cfg.Model)
	if profile == nil {
		return fmt.Errorf("zbc: mode select: no feature profile")
	}
	if !profile.NoZAControl {
		m.FSNOZ = getUint32(data[4:8])
	}
	if !profile.NoURControl {
		m.Cfg.WPCheck = data[8]&0x01 == 0
	}
	if profile.MaxActivateControl {
		m.Cfg.MaxActivate = getUint32(data[12:16])
	}
	return nil
}
