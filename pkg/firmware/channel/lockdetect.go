package channel

// AdjustLockIndicator nudges *indicator (a 0..100 lock-quality score) toward
// its rails based on the magnitude of a discriminator's phase/frequency/code
// disagreement: small disagreement (|adjustment|<8) nudges up by a step that
// shrinks as disagreement grows (6/4/2/1), larger disagreement pulls the
// indicator down proportionally to its magnitude.
func AdjustLockIndicator(indicator *int, adjustment int) {
	if adjustment < 0 {
		adjustment = -adjustment
	}

	var step int
	if adjustment < 8 {
		switch {
		case adjustment&4 != 0:
			step = 1
		case adjustment&2 != 0:
			step = 2
		default:
			step = 6 - adjustment*2
		}
	} else {
		step = -(adjustment >> 3)
	}

	*indicator += step
	if *indicator > 100 {
		*indicator = 100
	} else if *indicator < 0 {
		*indicator = 0
	}
}
