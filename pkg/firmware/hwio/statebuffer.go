package hwio

// StateBuffer mirrors one 32-word per-channel Hardware State Buffer (HW-SB).
// Bitfields are exposed as typed accessors over plain uint32 words with
// documented (name, offset, width) rather than as a compiler-dependent
// struct layout, per the design note that HW registers must never be spec'd
// as structure layout.
type StateBuffer struct {
	CarrierFreq uint32 // 32-bit carrier NCO rate
	CodeFreq    uint32 // 32-bit code NCO rate

	CorrConfig uint32
	NHConfig   uint32
	DumpLength uint32 // 16 bits

	PrnConfig    uint32
	PrnCount     uint32
	CarrierPhase uint32
	CarrierCount uint32
	CodePhase    uint32
	DumpCount    uint32 // current in-code-period dump index, hardware-advanced

	CorrState uint32

	CoherentSum [8]ComplexCorr // correlator outputs, index 0..7
	DecodeData  uint32         // packed decoded symbols
}

// ComplexCorr is one 16+16-bit complex correlator output.
type ComplexCorr struct {
	I int16
	Q int16
}

// CorrConfig field widths and offsets.
const (
	corrConfigPreShiftOffset   = 0
	corrConfigPreShiftWidth    = 2
	corrConfigPostShiftOffset  = 2
	corrConfigPostShiftWidth   = 2
	corrConfigDataInQOffset    = 4
	corrConfigEnSecondPRNOffset = 5
	corrConfigEnableBOCOffset  = 6
	corrConfigDecodeBitsOffset = 7
	corrConfigDecodeBitsWidth  = 2
	corrConfigNarrowOffset     = 9
	corrConfigNarrowWidth      = 2
	corrConfigBitLengthOffset  = 11
	corrConfigBitLengthWidth   = 5
	corrConfigCohNumberOffset  = 16
	corrConfigCohNumberWidth   = 6
)

func bitfield(v uint32, offset, width uint) uint32 {
	return (v >> offset) & ((1 << width) - 1)
}

func setBitfield(v uint32, offset, width uint, value uint32) uint32 {
	mask := uint32((1 << width) - 1)
	return (v &^ (mask << offset)) | ((value & mask) << offset)
}

func (sb *StateBuffer) PreShift() uint32  { return bitfield(sb.CorrConfig, corrConfigPreShiftOffset, corrConfigPreShiftWidth) }
func (sb *StateBuffer) PostShift() uint32 { return bitfield(sb.CorrConfig, corrConfigPostShiftOffset, corrConfigPostShiftWidth) }
func (sb *StateBuffer) DataInQ() bool     { return bitfield(sb.CorrConfig, corrConfigDataInQOffset, 1) != 0 }
func (sb *StateBuffer) EnableSecondPRN() bool {
	return bitfield(sb.CorrConfig, corrConfigEnSecondPRNOffset, 1) != 0
}
func (sb *StateBuffer) EnableBOC() bool { return bitfield(sb.CorrConfig, corrConfigEnableBOCOffset, 1) != 0 }
func (sb *StateBuffer) DecodeBitWidth() uint32 {
	return bitfield(sb.CorrConfig, corrConfigDecodeBitsOffset, corrConfigDecodeBitsWidth)
}
func (sb *StateBuffer) NarrowFactor() uint32 {
	return bitfield(sb.CorrConfig, corrConfigNarrowOffset, corrConfigNarrowWidth)
}
func (sb *StateBuffer) BitLength() uint32 {
	return bitfield(sb.CorrConfig, corrConfigBitLengthOffset, corrConfigBitLengthWidth)
}
func (sb *StateBuffer) CoherentNumber() uint32 {
	return bitfield(sb.CorrConfig, corrConfigCohNumberOffset, corrConfigCohNumberWidth)
}

func (sb *StateBuffer) SetCoherentNumber(n uint32) {
	sb.CorrConfig = setBitfield(sb.CorrConfig, corrConfigCohNumberOffset, corrConfigCohNumberWidth, n)
}

// NHConfig: 25-bit NH code, 5-bit length.
const (
	nhConfigCodeOffset   = 0
	nhConfigCodeWidth    = 25
	nhConfigLengthOffset = 25
	nhConfigLengthWidth  = 5
)

func (sb *StateBuffer) NHCode() uint32   { return bitfield(sb.NHConfig, nhConfigCodeOffset, nhConfigCodeWidth) }
func (sb *StateBuffer) NHLength() uint32 { return bitfield(sb.NHConfig, nhConfigLengthOffset, nhConfigLengthWidth) }

func (sb *StateBuffer) SetNHConfig(code uint32, length uint32) {
	sb.NHConfig = setBitfield(0, nhConfigCodeOffset, nhConfigCodeWidth, code)
	sb.NHConfig = setBitfield(sb.NHConfig, nhConfigLengthOffset, nhConfigLengthWidth, length)
}

// CorrState: current correlator index (3), dumping (1), code-sub-phase (1),
// bit-count (5), coherent-count (6), NH-count (5).
const (
	corrStateCurCorOffset    = 0
	corrStateCurCorWidth     = 3
	corrStateDumpingOffset   = 3
	corrStateCodeSubOffset   = 4
	corrStateBitCountOffset  = 5
	corrStateBitCountWidth   = 5
	corrStateCohCountOffset  = 10
	corrStateCohCountWidth   = 6
	corrStateNHCountOffset   = 16
	corrStateNHCountWidth    = 5
)

func (sb *StateBuffer) CurrentCorrelator() uint32 {
	return bitfield(sb.CorrState, corrStateCurCorOffset, corrStateCurCorWidth)
}
func (sb *StateBuffer) Dumping() bool { return bitfield(sb.CorrState, corrStateDumpingOffset, 1) != 0 }
func (sb *StateBuffer) CodeSubPhase() uint32 {
	return bitfield(sb.CorrState, corrStateCodeSubOffset, 1)
}
func (sb *StateBuffer) BitCount() uint32 {
	return bitfield(sb.CorrState, corrStateBitCountOffset, corrStateBitCountWidth)
}
func (sb *StateBuffer) CoherentCount() uint32 {
	return bitfield(sb.CorrState, corrStateCohCountOffset, corrStateCohCountWidth)
}
func (sb *StateBuffer) NHCount() uint32 {
	return bitfield(sb.CorrState, corrStateNHCountOffset, corrStateNHCountWidth)
}

// SetNHCount rewrites the NH-count sub-field of CorrState, matching
// SetCoherentNumber's pattern. Used after a secondary-code segment rollover
// to reset the hardware's count back under the 20-symbol threshold.
func (sb *StateBuffer) SetNHCount(n uint32) {
	sb.CorrState = setBitfield(sb.CorrState, corrStateNHCountOffset, corrStateNHCountWidth, n)
}

// DirtyFlag marks which subset of the cache needs flushing to hardware on
// the next sync_cache_write. Values combine into a bitfield.
type DirtyFlag uint8

const (
	DirtyFreq   DirtyFlag = 1 << 0
	DirtyConfig DirtyFlag = 1 << 1
	DirtyCode   DirtyFlag = 1 << 2
	DirtyState  DirtyFlag = 1 << 3
	DirtyAll    DirtyFlag = DirtyFreq | DirtyConfig | DirtyCode | DirtyState
)

// ReadWhat selects which part of the HW-SB sync_cache_read pulls.
type ReadWhat uint8

const (
	ReadData ReadWhat = iota
	ReadStatus
	ReadBoth
)
