package channel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalcCN0ClipsAtFloor(t *testing.T) {
	c := NewChannel(0, nil)
	c.Stage = StageTrack0
	c.PeakPower = 1
	c.CalcCN0(1000) // huge noise floor relative to PeakPower: signal is below the floor

	require.Equal(t, 500, c.FastCN0)
	require.Equal(t, 500, c.CN0)
}

func TestCalcCN0RisesWithPeakPower(t *testing.T) {
	weak := NewChannel(0, nil)
	weak.Stage = StageTrack0
	weak.PeakPower = 2000
	weak.CalcCN0(10)

	strong := NewChannel(0, nil)
	strong.Stage = StageTrack0
	strong.PeakPower = 200000
	strong.CalcCN0(10)

	require.Greater(t, strong.FastCN0, weak.FastCN0)
}

func TestCalcCN0TracksHighLowRunCounts(t *testing.T) {
	c := NewChannel(0, nil)
	c.Stage = StageTrack0
	c.PeakPower = 500000
	c.CalcCN0(1)

	require.Greater(t, c.CN0HighCount, 0)
	require.Equal(t, 0, c.CN0LowCount)
}
