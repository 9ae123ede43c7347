package channel

// CalcCN0 updates the channel's smoothed and instantaneous C/N0 estimate
// from the current PeakPower and a hardware-reported noise-floor sample,
// and maintains the CN0HighCount/CN0LowCount run-length counters
// StageDetermination-adjacent callers use to gate lock-quality decisions.
// noiseFloor is the raw noise-floor register reading (proportional to
// sigma, the correlator noise standard deviation).
func (c *Channel) CalcCN0(noiseFloor int) {
	cfg := trackingConfigTable[configIndex(c.Stage)]
	cohRatio := cfg.CoherentNumber * cfg.FftNumber
	noncohRatio := cfg.NonCohNumber
	shift := uint(cfg.PostShift*2) + func() uint {
		if cfg.FftNumber > 1 {
			return 6
		}
		return 0
	}()
	filterScale := uint(6)
	if c.CN0 > 2500 {
		filterScale = 4
	}

	// noise power estimate NF^2 * 163/256, where 163/256 ~= 2/pi.
	noise := (noiseFloor * noiseFloor * 163) >> 8
	noise = (noise * cohRatio * noncohRatio) >> shift

	signalPowerNorm := c.PeakPower - noise
	if signalPowerNorm <= 0 {
		signalPowerNorm = 1
	}

	noiseLog := noise * cohRatio
	noiseLogDb := IntLog10(uint32(noiseLog)) - 3000

	c.FastCN0 = IntLog10(uint32(signalPowerNorm)) - noiseLogDb
	if c.FastCN0 < 500 {
		c.FastCN0 = 500
	}

	if c.SmoothedPower == 0 {
		c.SmoothedPower = signalPowerNorm
	} else {
		c.SmoothedPower += (signalPowerNorm - c.SmoothedPower) >> filterScale
	}
	c.CN0 = IntLog10(uint32(c.SmoothedPower)) - noiseLogDb
	if c.CN0 < 500 {
		c.CN0 = 500
	}

	cn0Gap := c.CN0 - c.FastCN0
	if cn0Gap < 0 {
		cn0Gap = -cn0Gap
	}
	resetPower := false
	if cn0Gap > 300 && c.CN0 > 2500 && c.FastCN0 > 2500 {
		resetPower = true
	}
	if cn0Gap > 600 && c.CN0 > 1800 && c.FastCN0 > 1800 {
		resetPower = true
	}
	if resetPower {
		c.SmoothedPower = signalPowerNorm
		c.CN0 = c.FastCN0
	}

	switch {
	case c.FastCN0 > 3200:
		c.CN0HighCount += cohRatio * noncohRatio
		c.CN0LowCount = 0
	case c.FastCN0 < 2500:
		c.CN0LowCount += cohRatio * noncohRatio
		c.CN0HighCount = 0
	}
}
