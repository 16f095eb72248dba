package zbc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// magic identifies a formatted backing file: 'H','Z','B','C'.
const metaMagic uint32 = 0x485A4243
const metaVersion uint32 = 1

// byteOrder is the fixed serialization order for the metadata image. The
// image is not portable across architectures regardless of which order is
// picked (spec §6.2); LittleEndian is chosen for concreteness, the same
// simplification pkg/verity/superblock.go makes for its own superblock.
var byteOrder = binary.LittleEndian

const maxDomains = NrActivationClasses

// Domain is a contiguous LBA range owned by a single zone type.
type Domain struct {
	Start   uint64
	End     uint64
	NrZones uint32
	Type    ZoneType
	SMR     bool
}

// RealmSlot describes one type-class's zone range within a realm.
type RealmSlot struct {
	Start     uint64 // LBA, within that type's domain
	Length    uint32 // zones
	StartZone uint32 // index into Metadata.Zones
}

// Realm is a slice of per-type zone ranges activatable as exactly one type
// at a time.
type Realm struct {
	Number      uint32
	CurrentType ZoneType
	ActvFlags   uint8 // bitmask, bit i = classIndex i is a legal activation target
	Restrictions uint8
	Slots       [NrActivationClasses]RealmSlot
}

func (r *Realm) canActivateAs(t ZoneType) bool {
	idx := t.classIndex()
	if idx < 0 {
		return false
	}
	return r.ActvFlags&(1<<uint(idx)) != 0
}

// Zone is one addressable zone in the device's LBA space.
type Zone struct {
	Start  uint64
	Length uint64
	WP     uint64
	Prev   uint32
	Next   uint32
	Type   ZoneType
	Cond   ZoneCondition
	NonSeq bool
	RWP    bool // reset-write-pointer-recommended
}

// Metadata is the in-memory view of the persistent metadata image: header
// fields, the domain/realm/zone arrays, and the raw mmap'd bytes they are
// (de)serialized into. It is the single source of truth for a Device.
type Metadata struct {
	file *os.File
	raw  []byte // mmap'd metadata region, rounded to the page size

	Cfg DevConfig

	FormatID uuid.UUID
	FSNOZ    uint32

	Lists   [int(nrLists)]ZoneList
	Domains []Domain
	Realms  []Realm
	Zones   []Zone

	Stats Stats
}

// Stats holds operator-visible counters (RECEIVE DIAGNOSTIC stats page).
type Stats struct {
	PeakOpenZones     uint32
	PeakEmptyConsumed  uint32
	FailedExpOpens    uint32
	FailedImpOpens    uint32
	NrEmptyZones      uint32

	// Declared but never incremented, per the Open Question decision in
	// SPEC_FULL.md §12: the original handler never wires these either.
	SubOptWriteCmds   uint32
	CmdsAboveOptLim   uint32
	MaxNonSeqZones    uint32
}

func (m *Metadata) links(i uint32) (prev, next uint32) {
	z := &m.Zones[i]
	return z.Prev, z.Next
}

func (m *Metadata) setLinks(i uint32, prev, next uint32) {
	z := &m.Zones[i]
	z.Prev, z.Next = prev, next
}

func (m *Metadata) listFor(k ListKind) *ZoneList { return &m.Lists[k] }

// onDiskHeader mirrors the fixed portion of the image described in §6.2.
// Every field is fixed-size so encoding/binary can (de)serialize it
// directly, the same discipline pkg/verity/superblock.go uses for its
// on-disk superblock.
type onDiskHeader struct {
	Magic      uint32
	Version    uint32
	HeaderSize uint32
	Type       uint8
	_          [3]byte
	Model      [32]byte
	Cfgstring  [256]byte

	CapacityBytes uint64
	LBASize       uint32
	_             [4]byte
	ZoneSize      uint64
	RealmSize     uint64

	ConvZones    uint32
	MaxOpenZones uint32
	SMRGainPct   uint32
	MaxActivate  uint32

	WPCheck       uint8
	RealmsEnabled uint8
	_             [2]byte

	NrZones   uint32
	NrRealms  uint32
	NrDomains uint32
	FSNOZ     uint32

	FormatID [16]byte

	Lists   [int(nrLists)]onDiskZoneList
	Domains [maxDomains]onDiskDomain
	Stats   onDiskStats
}

type onDiskZoneList struct{ Head, Tail, Size uint32 }

type onDiskDomain struct {
	Start   uint64
	End     uint64
	NrZones uint32
	Type    uint8
	SMR     uint8
	_       [2]byte
}

type onDiskRealmSlot struct {
	Start     uint64
	Length    uint32
	StartZone uint32
}

type onDiskRealm struct {
	Number       uint32
	CurrentType  uint8
	ActvFlags    uint8
	Restrictions uint8
	_            uint8
	Slots        [NrActivationClasses]onDiskRealmSlot
}

type onDiskZone struct {
	Start, Length, WP uint64
	Prev, Next        uint32
	Type              uint8
	Cond              uint8
	NonSeq            uint8
	RWP               uint8
}

type onDiskStats struct {
	PeakOpenZones     uint32
	PeakEmptyConsumed uint32
	FailedExpOpens    uint32
	FailedImpOpens    uint32
	NrEmptyZones      uint32
	SubOptWriteCmds   uint32
	CmdsAboveOptLim   uint32
	MaxNonSeqZones    uint32
}

var headerSize = binary.Size(onDiskHeader{})
var realmRecSize = binary.Size(onDiskRealm{})
var zoneRecSize = binary.Size(onDiskZone{})

func init() {
	if headerSize < 0 || realmRecSize < 0 || zoneRecSize < 0 {
		panic("zbc: on-disk struct contains a variable-size field")
	}
}

// MetaSize returns the total metadata-region size (bytes), rounded up to
// the host page size, for the given realm/zone counts.
func MetaSize(nrRealms, nrZones uint32) int64 {
	raw := int64(headerSize) + int64(nrRealms)*int64(realmRecSize) + int64(nrZones)*int64(zoneRecSize)
	page := int64(unix.Getpagesize())
	if raw%page != 0 {
		raw += page - raw%page
	}
	return raw
}

// serialize packs the header, realm array and zone array into m.raw.
func (m *Metadata) serialize() error {
	var h onDiskHeader
	h.Magic = metaMagic
	h.Version = metaVersion
	h.HeaderSize = uint32(headerSize)
	h.Type = uint8(m.Cfg.Type)
	copy(h.Model[:], m.Cfg.Model)
	copy(h.Cfgstring[:], m.Cfg.Raw)
	h.CapacityBytes = m.Cfg.CapacityBytes
	h.LBASize = m.Cfg.LBASize
	h.ZoneSize = m.Cfg.ZoneSize
	h.RealmSize = m.Cfg.RealmSize
	h.ConvZones = m.Cfg.ConvZones
	h.MaxOpenZones = m.Cfg.MaxOpenZones
	h.SMRGainPct = m.Cfg.SMRGainPct
	h.MaxActivate = m.Cfg.MaxActivate
	h.WPCheck = boolToU8(m.Cfg.WPCheck)
	h.RealmsEnabled = boolToU8(m.Cfg.RealmsEnabled)
	h.NrZones = uint32(len(m.Zones))
	h.NrRealms = uint32(len(m.Realms))
	h.NrDomains = uint32(len(m.Domains))
	h.FSNOZ = m.FSNOZ
	copy(h.FormatID[:], m.FormatID[:])
	for i := range m.Lists {
		h.Lists[i] = onDiskZoneList{Head: m.Lists[i].Head, Tail: m.Lists[i].Tail, Size: m.Lists[i].Size}
	}
	for i := 0; i < maxDomains && i < len(m.Domains); i++ {
		d := m.Domains[i]
		h.Domains[i] = onDiskDomain{Start: d.Start, End: d.End, NrZones: d.NrZones, Type: uint8(d.Type), SMR: boolToU8(d.SMR)}
	}
	h.Stats = onDiskStats(onDiskStats{
		PeakOpenZones: m.Stats.PeakOpenZones, PeakEmptyConsumed: m.Stats.PeakEmptyConsumed,
		FailedExpOpens: m.Stats.FailedExpOpens, FailedImpOpens: m.Stats.FailedImpOpens,
		NrEmptyZones: m.Stats.NrEmptyZones, SubOptWriteCmds: m.Stats.SubOptWriteCmds,
		CmdsAboveOptLim: m.Stats.CmdsAboveOptLim, MaxNonSeqZones: m.Stats.MaxNonSeqZones,
	})

	var buf bytes.Buffer
	if err := binary.Write(&buf, byteOrder, &h); err != nil {
		return fmt.Errorf("zbc: serialize header: %w", err)
	}
	for i := range m.Realms {
		r := &m.Realms[i]
		var dr onDiskRealm
		dr.Number = r.Number
		dr.CurrentType = uint8(r.CurrentType)
		dr.ActvFlags = r.ActvFlags
		dr.Restrictions = r.Restrictions
		for s := range r.Slots {
			dr.Slots[s] = onDiskRealmSlot{Start: r.Slots[s].Start, Length: r.Slots[s].Length, StartZone: r.Slots[s].StartZone}
		}
		if err := binary.Write(&buf, byteOrder, &dr); err != nil {
			return fmt.Errorf("zbc: serialize realm %d: %w", i, err)
		}
	}
	for i := range m.Zones {
		z := &m.Zones[i]
		dz := onDiskZone{
			Start: z.Start, Length: z.Length, WP: z.WP,
			Prev: z.Prev, Next: z.Next,
			Type: uint8(z.Type), Cond: uint8(z.Cond),
			NonSeq: boolToU8(z.NonSeq), RWP: boolToU8(z.RWP),
		}
		if err := binary.Write(&buf, byteOrder, &dz); err != nil {
			return fmt.Errorf("zbc: serialize zone %d: %w", i, err)
		}
	}
	if buf.Len() > len(m.raw) {
		return fmt.Errorf("zbc: serialized metadata (%d bytes) exceeds mapped region (%d bytes)", buf.Len(), len(m.raw))
	}
	copy(m.raw, buf.Bytes())
	for i := buf.Len(); i < len(m.raw); i++ {
		m.raw[i] = 0
	}
	return nil
}

// deserialize parses m.raw into the header fields and the realm/zone
// arrays. It does not run the validator; callers run validate.go
// separately so Open can choose read-only-then-remap semantics.
func deserialize(raw []byte) (*Metadata, error) {
	r := bytes.NewReader(raw)
	var h onDiskHeader
	if err := binary.Read(r, byteOrder, &h); err != nil {
		return nil, fmt.Errorf("zbc: read header: %w", err)
	}
	if h.Magic != metaMagic {
		return nil, fmt.Errorf("zbc: bad magic %#x", h.Magic)
	}
	if h.Version != metaVersion {
		return nil, fmt.Errorf("zbc: unsupported version %d", h.Version)
	}
	if int(h.HeaderSize) != headerSize {
		return nil, fmt.Errorf("zbc: header size mismatch: on-disk %d, expected %d", h.HeaderSize, headerSize)
	}

	m := &Metadata{raw: raw}
	m.Cfg = DevConfig{
		Type:          DeviceType(h.Type),
		Model:         cstring(h.Model[:]),
		Raw:           cstring(h.Cfgstring[:]),
		CapacityBytes: h.CapacityBytes,
		LBASize:       h.LBASize,
		ZoneSize:      h.ZoneSize,
		RealmSize:     h.RealmSize,
		ConvZones:     h.ConvZones,
		MaxOpenZones:  h.MaxOpenZones,
		SMRGainPct:    h.SMRGainPct,
		MaxActivate:   h.MaxActivate,
		WPCheck:       h.WPCheck != 0,
		RealmsEnabled: h.RealmsEnabled != 0,
	}
	m.FSNOZ = h.FSNOZ
	copy(m.FormatID[:], h.FormatID[:])
	for i := range m.Lists {
		m.Lists[i] = ZoneList{Head: h.Lists[i].Head, Tail: h.Lists[i].Tail, Size: h.Lists[i].Size}
	}
	m.Domains = make([]Domain, 0, h.NrDomains)
	for i := uint32(0); i < h.NrDomains && i < maxDomains; i++ {
		d := h.Domains[i]
		m.Domains = append(m.Domains, Domain{Start: d.Start, End: d.End, NrZones: d.NrZones, Type: ZoneType(d.Type), SMR: d.SMR != 0})
	}
	m.Stats = Stats{
		PeakOpenZones: h.Stats.PeakOpenZones, PeakEmptyConsumed: h.Stats.PeakEmptyConsumed,
		FailedExpOpens: h.Stats.FailedExpOpens, FailedImpOpens: h.Stats.FailedImpOpens,
		NrEmptyZones: h.Stats.NrEmptyZones, SubOptWriteCmds: h.Stats.SubOptWriteCmds,
		CmdsAboveOptLim: h.Stats.CmdsAboveOptLim, MaxNonSeqZones: h.Stats.MaxNonSeqZones,
	}

	m.Realms = make([]Realm, h.NrRealms)
	for i := range m.Realms {
		var dr onDiskRealm
		if err := binary.Read(r, byteOrder, &dr); err != nil {
			return nil, fmt.Errorf("zbc: read realm %d: %w", i, err)
		}
		rl := Realm{Number: dr.Number, CurrentType: ZoneType(dr.CurrentType), ActvFlags: dr.ActvFlags, Restrictions: dr.Restrictions}
		for s := range rl.Slots {
			rl.Slots[s] = RealmSlot{Start: dr.Slots[s].Start, Length: dr.Slots[s].Length, StartZone: dr.Slots[s].StartZone}
		}
		m.Realms[i] = rl
	}

	m.Zones = make([]Zone, h.NrZones)
	for i := range m.Zones {
		var dz onDiskZone
		if err := binary.Read(r, byteOrder, &dz); err != nil {
			return nil, fmt.Errorf("zbc: read zone %d: %w", i, err)
		}
		m.Zones[i] = Zone{
			Start: dz.Start, Length: dz.Length, WP: dz.WP,
			Prev: dz.Prev, Next: dz.Next,
			Type: ZoneType(dz.Type), Cond: ZoneCondition(dz.Cond),
			NonSeq: dz.NonSeq != 0, RWP: dz.RWP != 0,
		}
	}
	return m, nil
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// openMetaFile opens and stats the backing file; it does not map it.
// needsFormat reports whether the caller must run the formatter before the
// image can be trusted: file missing or empty, a header that cannot be
// read or has the wrong magic/version, a file size that differs from the
// metadata-plus-payload size the header's own geometry implies, or a
// stored cfgstring that differs from cfg's.
func openMetaFile(cfg DevConfig) (f *os.File, needsFormat bool, err error) {
	f, err = os.OpenFile(cfg.Path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, false, fmt.Errorf("zbc: open backing file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, fmt.Errorf("zbc: stat backing file: %w", err)
	}
	if fi.Size() == 0 {
		return f, true, nil
	}
	// Peek just the header to compare magic/cfgstring without committing to
	// a particular metadata size yet.
	peek := make([]byte, headerSize)
	if _, err := f.ReadAt(peek, 0); err != nil {
		return f, true, nil
	}
	h, err := peekHeader(peek)
	if err != nil {
		return f, true, nil
	}
	want := MetaSize(h.NrRealms, h.NrZones) + int64(h.NrZones)*int64(h.ZoneSize)*int64(h.LBASize)
	if fi.Size() != want {
		return f, true, nil
	}
	if cstring(h.Cfgstring[:]) != cfg.Raw {
		return f, true, nil
	}
	return f, false, nil
}

// peekHeader reads only the fixed header, without the variable-length
// realm/zone arrays that follow it.
func peekHeader(raw []byte) (*onDiskHeader, error) {
	r := bytes.NewReader(raw)
	var h onDiskHeader
	if err := binary.Read(r, byteOrder, &h); err != nil {
		return nil, err
	}
	if h.Magic != metaMagic {
		return nil, fmt.Errorf("zbc: bad magic %#x", h.Magic)
	}
	if h.Version != metaVersion {
		return nil, fmt.Errorf("zbc: unsupported version %d", h.Version)
	}
	return &h, nil
}

// mmapMeta maps the first size bytes of f read-write.
func mmapMeta(f *os.File, size int64) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("zbc: mmap: %w", err)
	}
	return data, nil
}

// Flush durably persists in-memory mutations: serialize into the mapped
// region, then msync(MS_SYNC|MS_INVALIDATE).
func (m *Metadata) Flush() error {
	if err := m.serialize(); err != nil {
		return err
	}
	if err := unix.Msync(m.raw, unix.MS_SYNC|unix.MS_INVALIDATE); err != nil {
		return fmt.Errorf("zbc: msync: %w", err)
	}
	return nil
}

// unmap releases the mmap'd region without closing the file.
func (m *Metadata) unmap() error {
	if m.raw == nil {
		return nil
	}
	err := unix.Munmap(m.raw)
	m.raw = nil
	if err != nil {
		return fmt.Errorf("zbc: munmap: %w", err)
	}
	return nil
}

// Close flushes, unmaps, and closes the backing file descriptor.
func (m *Metadata) Close() error {
	var errs []error
	if m.raw != nil {
		if err := m.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := m.unmap(); err != nil {
			errs = append(errs, err)
		}
	}
	if m.file != nil {
		if err := m.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("zbc: close: %v", errs)
	}
	return nil
}
