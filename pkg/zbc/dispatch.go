package zbc

// Opcodes recognized by Dispatch. Several of these (ZBC IN/OUT service
// actions, the 32-byte ZONE ACTIVATE/QUERY opcode) are vendor-assigned
// placeholders in the handler this emulator is modeled on, not
// standardized values.
const (
	OpTestUnitReady      = 0x00
	OpRequestSense       = 0x03
	OpFormatUnit         = 0x04
	OpInquiry            = 0x12
	OpModeSelect6        = 0x15
	OpModeSense6         = 0x1A
	OpReadCapacity10     = 0x25
	OpRead10             = 0x28
	OpWrite10            = 0x2A
	OpSynchronizeCache10 = 0x35
	OpReceiveDiagnostic  = 0x1C
	OpModeSelect10       = 0x55
	OpModeSense10        = 0x5A
	OpSanitize           = 0x48
	OpRead12             = 0xA8
	OpWrite12            = 0xAA
	OpRead16             = 0x88
	OpWrite16            = 0x8A
	OpServiceActionIn16  = 0x9E // carries SAI_READ_CAPACITY_16
	OpZBCIn              = 0x95
	OpZBCOut             = 0x94
	OpZoneActivate32     = 0x7F
)

const saiReadCapacity16 = 0x10

// ZBC IN service actions.
const (
	SAReportZones     = 0x00
	SAReportDomains   = 0x07
	SAReportRealms    = 0x15
	SAReportMutations = 0x05
	SAZoneActivate16  = 0x08
	SAZoneQuery16     = 0x09
)

// ZBC OUT service actions.
const (
	SAClose         = 0x01
	SAFinish        = 0x02
	SAOpen          = 0x03
	SAReset         = 0x04
	SAMutate        = 0x06
	SASequentialize = 0x10
)

// 32-byte variable-length CDB service actions (opcode OpZoneActivate32).
const (
	SAActivate32 = 0x01
	SAQuery32    = 0x02
)

// Command is a single SCSI command descriptor plus its data-transfer
// buffers, the shape a host target framework hands a handler.
type Command struct {
	CDB     []byte
	DataIn  []IOVec // device-to-host direction
	DataOut []IOVec // host-to-device direction
}

// Response is the dispatcher's verdict: OK (possibly with data written
// into cmd.DataIn), NotHandled (let the framework's default path run), or
// CheckCondition with a Sense.
type Response struct {
	Status Status
	Sense  *Sense
}

func ok() Response                  { return Response{Status: StatusOK} }
func notHandled() Response          { return Response{Status: StatusNotHandled} }
func checkCondition(s Sense) Response {
	return Response{Status: StatusCheckCondition, Sense: &s}
}

// Dispatch routes cmd to the handler for its opcode/service-action, per
// §4.10.
func (d *Device) Dispatch(cmd Command) Response {
	if len(cmd.CDB) == 0 {
		return checkCondition(NewSense(SenseInvalidFieldInCDB))
	}
	resp := d.dispatchOpcode(cmd)
	if resp.Status == StatusCheckCondition && resp.Sense != nil {
		d.RecordSense(*resp.Sense)
	}
	return resp
}

func (d *Device) dispatchOpcode(cmd Command) Response {
	m := d.Meta
	cdb := cmd.CDB
	switch cdb[0] {
	case OpTestUnitReady:
		return ok()

	case OpRequestSense:
		if s, ok := d.NextDeferredSense(); ok {
			packRequestSense(cmd.DataIn, s)
		}
		return ok()

	case OpInquiry:
		return d.handleInquiry(cmd)

	case OpModeSense6:
		return d.handleModeSense(cmd, cdb[2]&0x3F, cdb[3], uint32(cdb[4]))
	case OpModeSense10:
		return d.handleModeSense(cmd, cdb[2]&0x3F, cdb[3], uint32(getUint16(cdb[7:9])))

	case OpModeSelect6:
		return d.handleModeSelect(cmd)
	case OpModeSelect10:
		return d.handleModeSelect(cmd)

	case OpReadCapacity10:
		return d.handleReadCapacity10(cmd)
	case OpServiceActionIn16:
		if len(cdb) > 1 && cdb[1]&0x1F == saiReadCapacity16 {
			return d.handleReadCapacity16(cmd)
		}
		return notHandled()

	case OpRead10:
		lba := uint64(getUint32(cdb[2:6]))
		n := uint64(getUint16(cdb[7:9]))
		return d.handleRead(lba, n, cmd.DataIn)
	case OpWrite10:
		lba := uint64(getUint32(cdb[2:6]))
		n := uint64(getUint16(cdb[7:9]))
		return d.handleWrite(lba, n, cmd.DataOut)
	case OpRead12:
		lba := uint64(getUint32(cdb[2:6]))
		n := uint64(getUint32(cdb[6:10]))
		return d.handleRead(lba, n, cmd.DataIn)
	case OpWrite12:
		lba := uint64(getUint32(cdb[2:6]))
		n := uint64(getUint32(cdb[6:10]))
		return d.handleWrite(lba, n, cmd.DataOut)
	case OpRead16:
		lba := getUint64(cdb[2:10])
		n := uint64(getUint32(cdb[10:14]))
		return d.handleRead(lba, n, cmd.DataIn)
	case OpWrite16:
		lba := getUint64(cdb[2:10])
		n := uint64(getUint32(cdb[10:14]))
		return d.handleWrite(lba, n, cmd.DataOut)

	case OpSynchronizeCache10:
		if err := m.Flush(); err != nil {
			return checkCondition(NewSense(SenseWriteError))
		}
		return ok()

	case OpReceiveDiagnostic:
		return d.handleReceiveDiagnostic(cmd)

	case OpSanitize:
		if err := d.Sanitize(); err != nil {
			return checkCondition(NewSense(SenseInternalTargetFailure))
		}
		return ok()

	case OpFormatUnit:
		if err := d.reformat(m.Cfg); err != nil {
			return checkCondition(NewSense(SenseInternalTargetFailure))
		}
		return ok()

	case OpZBCIn:
		return d.handleZBCIn(cmd)
	case OpZBCOut:
		return d.handleZBCOut(cmd)
	case OpZoneActivate32:
		return d.handleZoneActivate32(cmd)
	}
	return notHandled()
}

func (d *Device) handleRead(lba, n uint64, iov []IOVec) Response {
	sense, err := d.Meta.ReadLBAs(lba, n, iov)
	if err != nil {
		return checkCondition(NewSense(SenseInternalTargetFailure))
	}
	if sense != nil {
		return checkCondition(*sense)
	}
	return ok()
}

func (d *Device) handleWrite(lba, n uint64, iov []IOVec) Response {
	sense, err := d.Meta.WriteLBAs(lba, n, iov)
	if err != nil {
		return checkCondition(NewSense(SenseInternalTargetFailure))
	}
	if sense != nil {
		return checkCondition(*sense)
	}
	return ok()
}

func (d *Device) handleReadCapacity10(cmd Command) Response {
	total := d.Meta.totalLBAs()
	last := total - 1
	if total == 0 {
		last = 0
	}
	if last > 0xFFFFFFFF {
		last = 0xFFFFFFFF
	}
	buf := make([]byte, 8)
	putUint32(buf[0:4], uint32(last))
	putUint32(buf[4:8], d.Meta.Cfg.LBASize)
	CopyToIOVec(cmd.DataIn, 0, buf)
	return ok()
}

func (d *Device) handleReadCapacity16(cmd Command) Response {
	total := d.Meta.totalLBAs()
	var last uint64
	if total > 0 {
		last = total - 1
	}
	buf := make([]byte, 32)
	putUint64(buf[0:8], last)
	putUint32(buf[8:12], d.Meta.Cfg.LBASize)
	CopyToIOVec(cmd.DataIn, 0, buf)
	return ok()
}

func (d *Device) handleModeSense(cmd Command, page, subpage uint8, allocLen uint32) Response {
	data, err := d.Meta.ModeSense(page, subpage)
	if err != nil {
		return checkCondition(NewSense(SenseInvalidFieldInCDB))
	}
	if uint32(len(data)) > allocLen {
		data = data[:allocLen]
	}
	CopyToIOVec(cmd.DataIn, 0, data)
	return ok()
}

func (d *Device) handleModeSelect(cmd Command) Response {
	buf := make([]byte, IOVecLength(cmd.DataOut))
	CopyFromIOVec(cmd.DataOut, 0, buf)
	if len(buf) < 2 {
		return checkCondition(NewSense(SenseParameterListLengthError))
	}
	page := buf[0] & 0x3F
	subpage := uint8(0)
	if buf[0]&0x40 != 0 && len(buf) > 1 {
		subpage = buf[1]
	}
	if err := d.Meta.ModeSelect(page, subpage, buf); err != nil {
		return checkCondition(NewSense(SenseInvalidFieldInParameterList))
	}
	return ok()
}

func (d *Device) handleReceiveDiagnostic(cmd Command) Response {
	cdb := cmd.CDB
	page := cdb[2]
	allocLen := getUint16(cdb[3:5])
	var buf []byte
	switch page {
	case 0x00:
		buf = []byte{0x00, 0x00, 0x00, 0x01, 0x14}
	case 0x14:
		buf = d.packStatsPage()
	default:
		return checkCondition(NewSense(SenseInvalidFieldInCDB))
	}
	if uint16(len(buf)) > allocLen {
		buf = buf[:allocLen]
	}
	CopyToIOVec(cmd.DataIn, 0, buf)
	return ok()
}

func (d *Device) packStatsPage() []byte {
	s := d.Meta.Stats
	buf := make([]byte, 12+8*8)
	buf[0] = 0x14
	buf[1] = 0x01
	putUint16(buf[2:4], uint16(len(buf)-4))
	vals := []uint32{
		s.PeakOpenZones, s.PeakEmptyConsumed, s.FailedExpOpens, s.FailedImpOpens,
		s.NrEmptyZones, s.SubOptWriteCmds, s.CmdsAboveOptLim, s.MaxNonSeqZones,
	}
	for i, v := range vals {
		off := 12 + i*8
		putUint32(buf[off+4:off+8], v)
	}
	return buf
}

func packRequestSense(iov []IOVec, s Sense) {
	buf := make([]byte, 18)
	buf[0] = 0x70
	buf[2] = uint8(s.Key)
	buf[7] = 10
	buf[12] = s.ASC
	buf[13] = s.ASCQ
	CopyToIOVec(iov, 0, buf)
}

func vpdPage(page byte) bool {
	switch page {
	case 0x00, 0x80, 0x83, 0xB0, 0xB1, 0xB6:
		return true
	}
	return false
}

func (d *Device) handleInquiry(cmd Command) Response {
	cdb := cmd.CDB
	evpd := cdb[1]&0x01 != 0
	allocLen := getUint16(cdb[3:5])
	var buf []byte
	if !evpd {
		buf = standardInquiryData(d.Meta.Cfg.Type)
	} else {
		page := cdb[2]
		if !vpdPage(page) {
			return checkCondition(NewSense(SenseInvalidFieldInCDB))
		}
		buf = d.vpdPageData(page)
	}
	if uint16(len(buf)) > allocLen {
		buf = buf[:allocLen]
	}
	CopyToIOVec(cmd.DataIn, 0, buf)
	return ok()
}

func standardInquiryData(t DeviceType) []byte {
	buf := make([]byte, 96)
	switch t {
	case HMZoned:
		buf[0] = 0x14 // peripheral device type: host managed zoned block device
	default:
		buf[0] = 0x00
	}
	copy(buf[8:16], "ZBCGO   ")
	copy(buf[16:32], "zoned-storage-dev")
	return buf
}

func (d *Device) vpdPageData(page byte) []byte {
	switch page {
	case 0x00:
		return []byte{0x00, 0x00, 0x00, 0x06, 0x00, 0x80, 0x83, 0xB0, 0xB1, 0xB6}
	case 0x80:
		buf := make([]byte, 4+16)
		buf[1] = 0x80
		copy(buf[4:], d.Meta.FormatID.String())
		return buf
	case 0x83:
		buf := make([]byte, 4+16)
		buf[1] = 0x83
		copy(buf[4:], d.Meta.FormatID[:])
		return buf
	case 0xB0, 0xB1:
		return make([]byte, 64)
	case 0xB6:
		return d.vpdZBDCharacteristics()
	}
	return nil
}

// vpdZBDCharacteristics packs VPD 0xB6, per §6.5.
func (d *Device) vpdZBDCharacteristics() []byte {
	profile := LookupFeatureProfile(d.Meta.Cfg.Type, d.Meta.Cfg.Model)
	buf := make([]byte, 64)
	buf[1] = 0xB6
	putUint16(buf[2:4], uint16(len(buf)-4))
	if !d.Meta.Cfg.WPCheck {
		buf[4] |= 0x01 // URSWRZ
	}
	if profile != nil {
		if profile.MaxActivateControl {
			buf[4] |= 0x02
		}
		if !profile.NoNOZSRC {
			buf[4] |= 0x04
		}
		if !profile.NoURControl {
			buf[4] |= 0x08
		}
		if !profile.NoReportRealms {
			buf[4] |= 0x10
		}
		if d.Meta.Cfg.Type == ZoneDomains {
			buf[4] |= 0x20 // zone-domains control supported
		}
		var typesBitmap byte
		for i, allowed := range profile.ActvAllowed {
			if allowed {
				typesBitmap |= 1 << uint(i)
			}
		}
		buf[5] = typesBitmap
	}
	hasGap := false
	for _, z := range d.Meta.Zones {
		if z.Type == TypeGap {
			hasGap = true
			break
		}
	}
	if hasGap {
		buf[6] |= 0x01
	}
	putUint32(buf[8:12], d.Meta.FSNOZ)
	putUint32(buf[16:20], d.Meta.Cfg.MaxOpenZones)
	return buf
}

func (d *Device) handleZBCIn(cmd Command) Response {
	cdb := cmd.CDB
	if len(cdb) < 16 {
		return checkCondition(NewSense(SenseInvalidFieldInCDB))
	}
	sa := cdb[1] & 0x1F
	startLBA := getUint64(cdb[2:10])
	allocLen := getUint32(cdb[10:14])
	opt := cdb[14] & 0x3F
	partial := cdb[14]&0x80 != 0

	switch sa {
	case SAReportZones:
		buf, err := d.Meta.ReportZones(d.zoneIndexFor(startLBA), ZoneReportFilter(opt), ZoneCondition(opt), allocLen, partial)
		if err != nil {
			return checkCondition(NewSense(SenseLBAOutOfRange))
		}
		CopyToIOVec(cmd.DataIn, 0, buf)
		return ok()
	case SAReportDomains:
		buf, err := d.Meta.ReportDomains(DomainReportFilter(opt), allocLen, partial)
		if err != nil {
			return checkCondition(NewSense(SenseInvalidFieldInCDB))
		}
		CopyToIOVec(cmd.DataIn, 0, buf)
		return ok()
	case SAReportRealms:
		buf, err := d.Meta.ReportRealms(RealmReportFilter(opt), allocLen, partial)
		if err != nil {
			return checkCondition(NewSense(SenseInvalidFieldInCDB))
		}
		CopyToIOVec(cmd.DataIn, 0, buf)
		return ok()
	case SAReportMutations:
		buf := d.Meta.ReportMutations(allocLen)
		CopyToIOVec(cmd.DataIn, 0, buf)
		return ok()
	case SAZoneActivate16, SAZoneQuery16:
		return d.handleActivateOrQuery(cmd, activationReqFromCDB16(cdb), sa == SAZoneActivate16)
	}
	return checkCondition(NewSense(SenseInvalidFieldInCDB))
}

func activationReqFromCDB16(cdb []byte) ActivationRequest {
	return ActivationRequest{
		StartLBA: getUint64(cdb[2:10]),
		NrZones:  getUint32(cdb[10:14]),
		All:      cdb[14]&0x01 != 0,
		DomainID: uint32(cdb[15]),
		NOZSRC:   cdb[14]&0x02 != 0,
	}
}

func (d *Device) handleZBCOut(cmd Command) Response {
	cdb := cmd.CDB
	if len(cdb) < 16 {
		return checkCondition(NewSense(SenseInvalidFieldInCDB))
	}
	sa := cdb[1] & 0x1F
	lba := getUint64(cdb[2:10])
	all := cdb[14]&0x01 != 0

	if sa == SAMutate {
		return d.handleMutateCommand(cmd)
	}

	apply := func(targets []uint32, f func(uint32) error) Response {
		for _, idx := range targets {
			if err := f(idx); err != nil {
				return checkCondition(NewSense(SenseInsufficientZoneResources))
			}
		}
		return ok()
	}
	var targets []uint32
	if all {
		targets = d.Meta.zoneTargetsForAll(sa)
	} else {
		zi, found := d.Meta.zoneForLBA(lba)
		if !found {
			return checkCondition(NewSense(SenseLBAOutOfRange))
		}
		targets = []uint32{zi}
	}

	switch sa {
	case SAClose:
		return apply(targets, d.Meta.Close)
	case SAFinish:
		return apply(targets, d.Meta.Finish)
	case SAOpen:
		return apply(targets, d.Meta.ExplicitOpen)
	case SAReset:
		return apply(targets, d.Meta.Reset)
	case SASequentialize:
		return apply(targets, d.Meta.Sequentialize)
	}
	return checkCondition(NewSense(SenseInvalidFieldInCDB))
}

func (d *Device) handleMutateCommand(cmd Command) Response {
	buf := make([]byte, IOVecLength(cmd.DataOut))
	CopyFromIOVec(cmd.DataOut, 0, buf)
	if len(buf) < 2 {
		return checkCondition(NewSense(SenseParameterListLengthError))
	}
	newCfg := d.Meta.Cfg
	newCfg.Type = DeviceType(buf[0])
	newCfg.Model = modelNameFromByte(newCfg.Type, buf[1])
	if err := d.Mutate(newCfg); err != nil {
		return checkCondition(NewSense(SenseInternalTargetFailure))
	}
	return ok()
}

// modelNameFromByte resolves a compact model index into this device
// type's catalog into its name; used only by the MUTATE parameter list,
// which (per the original handler) encodes models as small integers
// rather than strings.
func modelNameFromByte(t DeviceType, idx byte) string {
	names := featureCatalogOrder[t]
	if int(idx) >= len(names) {
		return ""
	}
	return names[idx]
}

func (d *Device) handleZoneActivate32(cmd Command) Response {
	cdb := cmd.CDB
	if len(cdb) < 28 {
		return checkCondition(NewSense(SenseInvalidFieldInCDB))
	}
	sa := getUint16(cdb[8:10])
	req := ActivationRequest{
		StartLBA: getUint64(cdb[10:18]),
		NrZones:  getUint32(cdb[18:22]),
		DomainID: uint32(cdb[22]),
		All:      cdb[23]&0x01 != 0,
		NOZSRC:   cdb[23]&0x02 != 0,
		AllocLen: getUint32(cdb[24:28]),
	}
	return d.handleActivateOrQuery(cmd, req, sa == SAActivate32)
}

func (d *Device) handleActivateOrQuery(cmd Command, req ActivationRequest, mutate bool) Response {
	var outcome ActivationOutcome
	var err error
	if mutate {
		outcome, err = d.Meta.Activate(req)
	} else {
		outcome, err = d.Meta.Query(req)
	}
	if err != nil {
		return checkCondition(NewSense(SenseInvalidFieldInCDB))
	}
	buf := PackActivationOutcome(outcome)
	if req.AllocLen > 0 && uint32(len(buf)) > req.AllocLen {
		buf = buf[:req.AllocLen]
	}
	CopyToIOVec(cmd.DataIn, 0, buf)
	return ok()
}

func (d *Device) zoneIndexFor(lba uint64) uint32 {
	idx, ok := d.Meta.zoneForLBA(lba)
	if !ok {
		return uint32(len(d.Meta.Zones))
	}
	return idx
}
