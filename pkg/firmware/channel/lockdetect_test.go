package channel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdjustLockIndicatorStepSizes(t *testing.T) {
	cases := []struct {
		adjustment int
		wantStep   int
	}{
		{0, 6},
		{1, 4},
		{2, 2},
		{3, 2},
		{4, 1},
		{7, 1},
	}
	for _, c := range cases {
		indicator := 50
		AdjustLockIndicator(&indicator, c.adjustment)
		require.Equal(t, 50+c.wantStep, indicator, "adjustment=%d", c.adjustment)
	}
}

func TestAdjustLockIndicatorDecaysOnLargeDisagreement(t *testing.T) {
	indicator := 50
	AdjustLockIndicator(&indicator, 64)
	require.Equal(t, 50-8, indicator)
}

func TestAdjustLockIndicatorClampsToRails(t *testing.T) {
	indicator := 99
	AdjustLockIndicator(&indicator, 0)
	require.Equal(t, 100, indicator)

	indicator = 2
	AdjustLockIndicator(&indicator, 64)
	require.Equal(t, 0, indicator)
}

func TestAdjustLockIndicatorIgnoresSign(t *testing.T) {
	a, b := 50, 50
	AdjustLockIndicator(&a, 4)
	AdjustLockIndicator(&b, -4)
	require.Equal(t, a, b)
}
