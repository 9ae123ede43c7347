// Package nav defines the boundary between the raw-measurement pipeline and
// the navigation-message decoders it drives but does not implement: GPS/BDS
// subframe parsing, bit/frame synchronisation, ephemeris and almanac
// extraction. Those live in an external collaborator; this package only
// describes the frame-sync state measure.Processor consumes from it.
package nav

import "github.com/globsky/greta-oto/pkg/firmware/signal"

// FrameInfo is the subset of one channel's frame-sync state the
// raw-measurement pipeline needs: how far frame sync has progressed, and
// the transmit-time/polarity bits it yields once sync is achieved.
type FrameInfo struct {
	// Synced reports frame-sync confidence sufficient to trust TOW: for
	// GPS this is FrameStatus >= 30 (HOW word parity across a run of
	// subframes), for BDS a non-negative TOW is itself the confidence
	// signal.
	Synced bool

	// TOW is seconds-of-week at the start of the current subframe
	// (GPS) or frame (BDS), or -1 if not yet decoded.
	TOW int

	// NavBitNumber is the navigation bit count accumulated since TOW's
	// epoch, used to project transmit time forward from the subframe/
	// frame boundary to the current bit.
	NavBitNumber int

	// PolarityValid/NegativeStream mirror the GPS data-stream polarity
	// bits (POLARITY_VALID/NEGATIVE_STREAM): once polarity is resolved,
	// NegativeStream selects the +0.5 cycle carrier-phase compensation;
	// until then the caller must flag the measurement HALF_CYCLE.
	PolarityValid  bool
	NegativeStream bool

	// ShortPropagation selects the BDS transmit-time-to-receive-time
	// offset: true for MEO/IGSO (80 ms), false for GEO (140 ms).
	ShortPropagation bool
}

// FrameSync is the external navigation-message decoder: one frame-sync
// state machine per tracked band, fed the channel's decoded data-symbol
// stream and returning the FrameInfo the raw-measurement pipeline needs.
// Galileo has no frame-sync path here, matching the fast-frame-sync loop
// the decoder this core drives leaves unimplemented.
type FrameSync interface {
	// Sync advances channel ch's frame-sync state machine by one
	// measurement epoch and returns its current FrameInfo. dataNumber is
	// the decoded-symbol count since the last epoch; symbols is the raw
	// decoded-bit accumulator the band-specific decoder consumes.
	Sync(ch int, band signal.Band, dataNumber int, symbols uint32) FrameInfo

	// Reset clears channel ch's frame-sync state: called on satellite
	// change, signal loss, or loss of track.
	Reset(ch int)
}
