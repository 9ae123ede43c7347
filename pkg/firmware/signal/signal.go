// Package signal defines the per-constellation signal parameters that the
// rest of the firmware core indexes into: code length and period, data
// symbol period, modulation family, and frame length for secondary/NH code
// and data-bit wrap arithmetic.
package signal

// Constellation identifies the GNSS system a signal belongs to.
type Constellation uint8

const (
	GPS Constellation = iota
	Galileo
	BeiDou
)

func (c Constellation) String() string {
	switch c {
	case GPS:
		return "GPS"
	case Galileo:
		return "Galileo"
	case BeiDou:
		return "BeiDou"
	default:
		return "unknown"
	}
}

// Band is the signal identifier's frequency/code-family component. Only the
// four signals this core tracks are represented.
type Band uint8

const (
	L1CA Band = iota // GPS L1 C/A
	E1              // Galileo E1
	B1C             // BeiDou B1C
	L1C             // GPS L1C
)

func (b Band) String() string {
	switch b {
	case L1CA:
		return "L1CA"
	case E1:
		return "E1"
	case B1C:
		return "B1C"
	case L1C:
		return "L1C"
	default:
		return "unknown"
	}
}

// Modulation distinguishes plain BPSK ranging codes from BOC(1,1) subcarrier
// modulated ones; the tracking channel needs it to size the correlator set
// (narrow-correlator factor, enable-BOC bit) and the acquisition search mode.
type Modulation uint8

const (
	BPSK Modulation = iota
	BOC11
)

// Params captures the static, per-band constants a tracking channel and the
// acquisition engine need. Values are taken from the signal's ICD: code
// length in chips, primary code period, data symbol period, frame length in
// bits/symbols for the current data or pilot secondary code, and whether the
// signal carries a separate pilot component.
type Params struct {
	Constellation Constellation
	Band          Band
	CodeLength    int // chips in the primary spreading code
	CodePeriodMs  int // ms per primary code period
	SymbolPeriodMs int // ms per data symbol (bit period)
	Modulation    Modulation
	HasPilot      bool
	FrameLength   int // bits/symbols in one secondary-code or data frame
}

// byBand is indexed by Band and gives each signal's static parameters. BDS
// B1C and GPS L1C share a 10 ms code period and a 1800-symbol frame; GPS
// L1CA's 1500-bit frame and Galileo E1's 500-symbol frame are each specific
// to their own band.
var byBand = [...]Params{
	L1CA: {
		Constellation: GPS, Band: L1CA,
		CodeLength: 1023, CodePeriodMs: 1, SymbolPeriodMs: 20,
		Modulation: BPSK, HasPilot: false, FrameLength: 1500,
	},
	E1: {
		Constellation: Galileo, Band: E1,
		CodeLength: 4092, CodePeriodMs: 4, SymbolPeriodMs: 4,
		Modulation: BOC11, HasPilot: true, FrameLength: 500,
	},
	B1C: {
		Constellation: BeiDou, Band: B1C,
		CodeLength: 10230, CodePeriodMs: 10, SymbolPeriodMs: 10,
		Modulation: BOC11, HasPilot: true, FrameLength: 1800,
	},
	L1C: {
		Constellation: GPS, Band: L1C,
		CodeLength: 10230, CodePeriodMs: 10, SymbolPeriodMs: 10,
		Modulation: BOC11, HasPilot: true, FrameLength: 1800,
	},
}

// Lookup returns the static parameters for b. Callers only ever pass one of
// the four declared Band constants, so the table is dense and the bounds
// check never fails in practice.
func Lookup(b Band) Params {
	return byBand[b]
}

// DataStreamTotalAccTime is the DataStream.TotalAccTime value from the data
// model: 20 ms for L1CA, 4 ms for E1, 10 ms for B1C/L1C.
func DataStreamTotalAccTime(b Band) int {
	return byBand[b].SymbolPeriodMs
}

// ID is the (Constellation, Band, SVID) signal identifier from the data
// model. SVID starts from 1.
type ID struct {
	Band Band
	Svid uint8
}

func (id ID) Constellation() Constellation {
	return byBand[id.Band].Constellation
}
