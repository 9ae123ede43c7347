package channel

import "github.com/globsky/greta-oto/pkg/firmware/hwio"

// Loop filter coefficient LUTs, each entry scaled as Kn*2^33/fs (fs is the
// tracking-loop update rate). The "0" family covers BnT < 0.1, the "1"
// family covers 0.1 <= BnT <= 0.35; GetCoefficients interpolates within
// each and clamps outside.
var filterCoef1 = [10]int{ // first order
	81827, 160584, 236416, 309304, 379686, 447562, 512932, 576004, 637196, 696092,
}

var filterCoef20 = [10][2]int{ // second order, BnT < 0.1
	{54071, 709}, {105239, 2719}, {153671, 5869}, {199576, 10010}, {243100, 15018},
	{284452, 20780}, {323924, 27192}, {361517, 34188}, {397230, 41623}, {431481, 49539},
}

var filterCoef30 = [10][3]int{ // third order, BnT < 0.1
	{53883, 601, 3}, {102712, 2310, 20}, {149786, 4977, 63}, {194271, 8479, 142}, {236416, 12708, 264},
	{276098, 17564, 433}, {313899, 22952, 655}, {349612, 28821, 931}, {383655, 35066, 1265}, {415817, 41665, 1655},
}

var filterCoef21 = [6][2]int{ // second order, 0.1 < BnT < 0.35
	{431481, 49539}, {582269, 93376}, {707370, 140764}, {817015, 188235}, {932299, 231404}, {1021686, 277560},
}

var filterCoef31 = [6][3]int{ // third order, 0.1 < BnT < 0.35
	{415817, 41665, 1655}, {554910, 77984, 4459}, {664764, 116851, 8569},
	{753107, 155634, 13748}, {825160, 192934, 19738}, {885726, 228271, 26294},
}

// getCoefficients interpolates the loop filter's integer coefficients from
// the LUT family matching order, at bandwidth bnT16x (16x of 0.01*Bn*T).
// Below 0.01 clamps to the first entry, above 0.35 clamps to the last; the
// 0.01-0.1 and 0.1-0.35 ranges each interpolate linearly between adjacent
// table rows.
func getCoefficients(bnT16x, order int) (c0, c1, c2 int) {
	var index, frac int
	highSegment := false

	switch {
	case bnT16x < 16:
		index, frac = 0, 0
	case bnT16x <= 16*10:
		index = (bnT16x >> 4) - 1
		frac = bnT16x & 0xf
	case bnT16x <= 16*35:
		index = (bnT16x / 80) - 2
		frac = (bnT16x % 80) / 5
		highSegment = true
	default:
		index, frac = 5, 0
		highSegment = true
	}

	switch order {
	case 1:
		if highSegment {
			index, frac = 9, 0
		}
		c0 = filterCoef1[index]
		if frac != 0 {
			c0 += ((filterCoef1[index+1] - filterCoef1[index]) * frac + 8) >> 4
		}
	case 2:
		p := filterCoef20[:]
		if highSegment {
			p = filterCoef21[:]
		}
		c0, c1 = p[index][0], p[index][1]
		if frac != 0 {
			c0 += ((p[index+1][0] - p[index][0]) * frac + 8) >> 4
			c1 += ((p[index+1][1] - p[index][1]) * frac + 8) >> 4
		}
	case 3:
		p := filterCoef30[:]
		if highSegment {
			p = filterCoef31[:]
		}
		c0, c1, c2 = p[index][0], p[index][1], p[index][2]
		if frac != 0 {
			c0 += ((p[index+1][0] - p[index][0]) * frac + 8) >> 4
			c1 += ((p[index+1][1] - p[index][1]) * frac + 8) >> 4
			c2 += ((p[index+1][2] - p[index][2]) * frac + 8) >> 4
		}
	}
	return
}

// CalculateLoopCoefficients recomputes pll/fll/dll k1/k2/k3 for cfg's
// integration lengths and loop bandwidths, called on every stage switch.
// A zero bandwidth field disables that loop entirely (k's left at 0).
func (c *Channel) CalculateLoopCoefficients(cfg TrackingConfig) {
	tc := cfg.CoherentNumber
	t := tc * cfg.FftNumber * cfg.NonCohNumber

	if bandwidthValue(cfg.BandWidthPLL16x) > 0 {
		order := bandwidthOrder(cfg.BandWidthPLL16x)
		bnT := (bandwidthValue(cfg.BandWidthPLL16x)*tc + 5) / 10
		k0, k1, k2 := getCoefficients(bnT, order)
		c.pllK1 = (k0 + (tc << 3)) / (tc << 4)
		c.pllK2 = (k1 + (tc << 1)) / (tc << 2)
		c.pllK3 = (k2 + (tc << 1)) / (tc << 2)
	} else {
		c.pllK1, c.pllK2, c.pllK3 = 0, 0, 0
	}

	if bandwidthValue(cfg.BandWidthFLL16x) > 0 {
		order := bandwidthOrder(cfg.BandWidthFLL16x)
		bnT := (bandwidthValue(cfg.BandWidthFLL16x)*t + 5) / 10
		k0, k1, _ := getCoefficients(bnT, order)
		c.fllK1 = (k0 + (tc << 3)) / (tc << 4)
		c.fllK2 = (k1 + (tc << 1)) / (tc << 2)
	} else {
		c.fllK1, c.fllK2 = 0, 0
	}

	if bandwidthValue(cfg.BandWidthDLL16x) > 0 {
		order := bandwidthOrder(cfg.BandWidthDLL16x)
		bnT := (bandwidthValue(cfg.BandWidthDLL16x)*t + 5) / 10
		k0, k1, _ := getCoefficients(bnT, order)
		c.dllK1 = (k0 + (t >> 1)) / t
		c.dllK2 = (k1 + (t >> 1)) / t
	} else {
		c.dllK1, c.dllK2 = 0, 0
	}
}

// searchPeakResult is the correlator/FFT-bin peak search output that feeds
// the FLL/DLL discriminators.
type searchPeakResult struct {
	FreqBinDiff                         int
	CorDiff                              int
	PeakPower                            int
	EarlyPower, LatePower                int
	LeftBinPower, RightBinPower          int
}

// power is the squared-magnitude metric used for peak search (the exact
// AmplitudeJPL approximation is reserved for amplitude contexts, not power
// search, matching the original's `#define POWER(x,y) (x*x+y*y)`).
func power(re, im int) int { return re*re + im*im }

// searchPeakCoh finds the correlator with maximum non-coherent power when
// FftNumber==1 (no frequency-bin search, just the 7 correlators).
func searchPeakCoh(noncohBuffer []int) searchPeakResult {
	maxPos, maxPower := 0, 0
	for i := 0; i < CorrelatorNum; i++ {
		if maxPower < noncohBuffer[i] {
			maxPower = noncohBuffer[i]
			maxPos = i
		}
	}
	var r searchPeakResult
	r.CorDiff = maxPos - 3
	r.PeakPower = maxPower
	if maxPos > 0 {
		r.EarlyPower = noncohBuffer[maxPos-1]
	} else {
		r.EarlyPower = noncohBuffer[maxPos+1]
	}
	if maxPos < 6 {
		r.LatePower = noncohBuffer[maxPos+1]
	} else {
		r.LatePower = noncohBuffer[maxPos-1]
	}
	r.PeakPower = IntSqrt(uint32(r.PeakPower))
	r.EarlyPower = IntSqrt(uint32(r.EarlyPower))
	r.LatePower = IntSqrt(uint32(r.LatePower))
	return r
}

// searchPeakFft finds the (correlator, frequency-bin) pair with maximum
// accumulated power when FftNumber>1.
func searchPeakFft(noncohBuffer []int) searchPeakResult {
	maxCorPos, maxBinPos, maxPower, maxIdx := 0, 0, 0, 0
	for i := 0; i < CorrelatorNum; i++ {
		for j := 0; j < MaxBinNum; j++ {
			idx := i*MaxBinNum + j
			if maxPower < noncohBuffer[idx] {
				maxPower = noncohBuffer[idx]
				maxIdx = idx
				maxCorPos, maxBinPos = i, j
			}
		}
	}
	var r searchPeakResult
	r.CorDiff = maxCorPos - 3
	r.FreqBinDiff = MaxBinNum/2 - maxBinPos
	r.PeakPower = maxPower
	if maxCorPos > 0 {
		r.EarlyPower = noncohBuffer[maxIdx-MaxBinNum]
	} else {
		r.EarlyPower = noncohBuffer[maxIdx+MaxBinNum]
	}
	if maxCorPos < 6 {
		r.LatePower = noncohBuffer[maxIdx+MaxBinNum]
	} else {
		r.LatePower = noncohBuffer[maxIdx-MaxBinNum]
	}
	if maxBinPos > 0 {
		r.LeftBinPower = noncohBuffer[maxIdx-1]
	} else {
		r.LeftBinPower = noncohBuffer[maxIdx+1]
	}
	if maxBinPos < MaxBinNum-1 {
		r.RightBinPower = noncohBuffer[maxIdx+1]
	} else {
		r.RightBinPower = noncohBuffer[maxIdx-1]
	}
	r.PeakPower = IntSqrt(uint32(r.PeakPower))
	r.EarlyPower = IntSqrt(uint32(r.EarlyPower))
	r.LatePower = IntSqrt(uint32(r.LatePower))
	r.LeftBinPower = IntSqrt(uint32(r.LeftBinPower))
	r.RightBinPower = IntSqrt(uint32(r.RightBinPower))
	return r
}

// CalcDiscriminator runs the FLL/DLL peak-search discriminator and/or the
// PLL phase discriminator for whichever of method's bits are set and that
// loop is enabled (k1>0), updates the matching lock indicator and
// LoseLockCounter, and marks PendingUpdate so DoTrackingLoop applies it.
func (c *Channel) CalcDiscriminator(method TrackingUpdate) {
	var result searchPeakResult
	cohLength := c.CoherentNumber
	noncohLength := cohLength * c.FftNumber * c.NonCohNumber

	if method&(UpdateFLL|UpdateDLL) != 0 {
		if c.FftNumber == 1 {
			result = searchPeakCoh(c.NoncohBuffer[:])
		} else {
			result = searchPeakFft(c.NoncohBuffer[:])
		}
		c.PeakPower = result.PeakPower * result.PeakPower
	}

	if method&UpdateFLL != 0 && c.fllK1 > 0 {
		denom := 2*result.PeakPower - result.LeftBinPower - result.RightBinPower
		numer := result.LeftBinPower - result.RightBinPower
		c.FrequencyDiff = cordicAtan(denom, numer, 0) >> 1
		c.FrequencyDiff += result.FreqBinDiff << 13
		AdjustLockIndicator(&c.FLD, c.FrequencyDiff>>10)
		if result.FreqBinDiff != 0 {
			c.LoseLockCounter += noncohLength
		} else {
			c.LoseLockCounter -= noncohLength
		}
		c.PendingUpdate |= UpdateFLL
	}

	if method&UpdateDLL != 0 && c.dllK1 > 0 {
		denom := 2*result.PeakPower - result.EarlyPower - result.LatePower
		numer := result.EarlyPower - result.LatePower
		if denom != 0 {
			c.DelayDiff = -((numer << 13) / denom)
		} else {
			c.DelayDiff = 0
		}
		c.DelayDiff += result.CorDiff << 14
		AdjustLockIndicator(&c.DLD, c.DelayDiff>>11)
		if result.CorDiff != 0 {
			c.LoseLockCounter += noncohLength
		} else {
			c.LoseLockCounter -= noncohLength
		}
		c.PendingUpdate |= UpdateDLL
	}

	if method&UpdatePLL != 0 && c.pllK1 > 0 {
		cor4 := c.StateBufferCache.CoherentSum[4]
		c.PhaseDiff = cordicAtan(int(cor4.I), int(cor4.Q), 0)
		AdjustLockIndicator(&c.PLD, c.PhaseDiff>>9)
		if c.PhaseDiff > 4096 || c.PhaseDiff < -4096 {
			c.LoseLockCounter += cohLength
		} else {
			c.LoseLockCounter -= cohLength
		}
		c.PendingUpdate |= UpdatePLL
	}

	if c.LoseLockCounter < 0 {
		c.LoseLockCounter = 0
	}
}

// CohBufferFft runs an 8-point FFT over each correlator's FftNumber
// coherent results and accumulates squared magnitude into NoncohBuffer,
// recentring bin 0 to the middle of the MaxBinNum row. Triggers
// CalcDiscriminator(FLL|DLL) once NonCohNumber accumulations complete.
func (c *Channel) CohBufferFft() {
	if c.NonCohCount == 0 {
		for i := range c.NoncohBuffer {
			c.NoncohBuffer[i] = 0
		}
	}
	for i := 0; i < CorrelatorNum; i++ {
		var re, im [8]int
		for j := 0; j < c.FftNumber; j++ {
			cor := c.CohBuffer[j*CorrelatorNum+i]
			re[j] = int(cor.I)
			im[j] = int(cor.Q)
		}
		fr, fi := fft8(re, im)
		for j := 0; j < MaxBinNum/2; j++ {
			c.NoncohBuffer[i*MaxBinNum+j] += power(fr[j+MaxBinNum/2], fi[j+MaxBinNum/2])
		}
		for j := MaxBinNum / 2; j < MaxBinNum; j++ {
			c.NoncohBuffer[i*MaxBinNum+j] += power(fr[j-MaxBinNum/2], fi[j-MaxBinNum/2])
		}
	}
	c.NonCohCount++
	if c.NonCohCount == c.NonCohNumber {
		c.NonCohCount = 0
		c.CalcDiscriminator(UpdateFLL | UpdateDLL)
	}
}

// CohBufferAcc is CohBufferFft's FftNumber==1 counterpart: no FFT, just
// direct power accumulation per correlator, triggering CalcDiscriminator(DLL)
// only (no frequency search without an FFT).
func (c *Channel) CohBufferAcc() {
	if c.NonCohCount == 0 {
		for i := 0; i < CorrelatorNum; i++ {
			c.NoncohBuffer[i] = 0
		}
	}
	for i := 0; i < CorrelatorNum; i++ {
		cor := c.CohBuffer[i]
		c.NoncohBuffer[i] += power(int(cor.I), int(cor.Q))
	}
	c.NonCohCount++
	if c.NonCohCount == c.NonCohNumber {
		c.NonCohCount = 0
		c.CalcDiscriminator(UpdateDLL)
	}
}

// DoTrackingLoop applies whichever FLL/DLL/PLL updates CalcDiscriminator
// queued in PendingUpdate to the carrier/code NCO rates, then clears the
// pending flags. A loop's *Save word latches only while its lock indicator
// reads 100 and LoseLockCounter is zero (a clean, current lock).
func (c *Channel) DoTrackingLoop() {
	if !c.PendingUpdate.any() {
		return
	}

	var carrierFreq uint32
	var haveCarrier bool

	if c.PendingUpdate&UpdateFLL != 0 {
		c.FrequencyAcc += c.FrequencyDiff
		c.CarrierFreqBase += uint32((c.fllK1*c.FrequencyDiff + c.fllK2*c.FrequencyAcc/4) >> 13)
		carrierFreq = c.CarrierFreqBase
		haveCarrier = true
		if c.FLD == 100 && c.LoseLockCounter == 0 {
			c.CarrierFreqSave = c.CarrierFreqBase
		}
	}

	if c.PendingUpdate&UpdateDLL != 0 {
		c.DelayAcc += c.DelayDiff
		codeFreq := c.CodeFreqBase - uint32((c.dllK1*c.DelayDiff+c.dllK2*c.DelayAcc)>>15)
		c.StateBufferCache.CodeFreq = codeFreq
		if c.DLD == 100 && c.LoseLockCounter == 0 {
			c.CodeFreqSave = codeFreq
		}
	}

	if c.PendingUpdate&UpdatePLL != 0 {
		c.PhaseAcc += c.PhaseDiff
		c.CarrierFreqBase += uint32((c.pllK2*c.PhaseDiff + c.pllK3*c.PhaseAcc) >> 15)
		carrierFreq = c.CarrierFreqBase + uint32((c.pllK1*c.PhaseDiff)>>13)
		haveCarrier = true
		if c.PLD == 100 && c.LoseLockCounter == 0 {
			c.CarrierFreqSave = carrierFreq
		}
	}

	if haveCarrier {
		c.StateBufferCache.CarrierFreq = carrierFreq
	}
	c.CacheDirty |= hwio.DirtyFreq
	c.PendingUpdate = 0
}
