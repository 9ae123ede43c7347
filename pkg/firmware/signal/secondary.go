package signal

// GalInvPos holds the 25 cyclic rotations of Galileo E1C's 25-chip secondary
// (tiered) code, each truncated to 20 chips and kept in the low 20 bits of a
// uint32. Bit
// synchronisation matches an observed 20-bit toggle pattern against this
// table; the rotation index i that matches gives the next secondary code
// boundary as TrackingTime + (25-i)*4.
var GalInvPos = [25]uint32{
	0x81f6b, 0x03ed6, 0x07dac, 0x0fb59, 0x1f6b2, 0x3ed64, 0x7dac9, 0xfb592, 0xf6b24, 0xed648,
	0xdac90, 0xb5920, 0x6b240, 0xd6481, 0xac903, 0x59207, 0xb240f, 0x6481f, 0xc903e, 0x9207d,
	0x240fb, 0x481f6, 0x903ed, 0x207da, 0x40fb5,
}

// PilotSecondCode is the 1800-bit B1C/L1C pilot secondary (overlay) code for
// one satellite, packed 32 bits per word (57 words cover 1800 bits with 24
// bits of the last word unused).
type PilotSecondCode [57]uint32

// B1CSecondCode and L1CSecondCode hold the per-SVID pilot secondary code
// tables. The concrete 1800-bit values are satellite-specific constants
// defined by the BDS B1C / GPS L1C ICDs; populating them is an external
// almanac/ICD-data concern (matching the "ephemeris/almanac bit decoders...
// out of scope" boundary) so these are zero-valued placeholders sized for
// the full SVID range; nothing in this module fills them in.
var (
	B1CSecondCode [63]PilotSecondCode
	L1CSecondCode [63]PilotSecondCode
)

// SyncPilotData searches the 1800-bit secondary code for a 24-bit observed
// data word, returning 0 if no match, 0x800+offset for a positive-polarity
// match or 0x1000+offset for a negative one. offset is the bit index within
// the secondary code at TrackingTime==0, derived from startOffset (the bit
// index of dataWord's oldest bit).
func SyncPilotData(dataWord uint32, secondCode *PilotSecondCode, startOffset int) int {
	codeWord := secondCode[0]
	i := 0
	match := uint32(0)
	for ; i < 1800; i++ {
		match = dataWord ^ (codeWord & 0xffffff)
		if match == 0 || match == 0xffffff {
			break
		}
		codeWord >>= 1
		if i&0x7 == 7 {
			codeWord |= (secondCode[i/32+1] << uint((i^0x1f)&0x18)) & 0xff000000
		}
	}
	if i == 1800 {
		return 0
	}
	i -= startOffset
	for i < 0 {
		i += 1800
	}
	if match != 0 {
		return 0x1000 + i
	}
	return 0x800 + i
}
