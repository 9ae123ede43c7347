package channel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCordicAtanQuadrants(t *testing.T) {
	// Angles are scaled to 65536 per turn. (x>0,y=0) is angle 0 (the 14
	// CORDIC iterations leave a residual of 1 unit), (x=0,y>0) is a quarter
	// turn (16384) in either mode, and (x<0,y=0) is a half turn (±32768) in
	// the 4-quadrant mode 1; mode 0 is 2-quadrant and would fold it to 0.
	require.Equal(t, 1, cordicAtan(1000, 0, 0))

	quarter := cordicAtan(0, 1000, 0)
	require.InDelta(t, 16384, quarter, 8)

	half := cordicAtan(-1000, 0, 1)
	require.InDelta(t, 32768, abs(half), 8)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestFFT8DCInput(t *testing.T) {
	var re, im [8]int
	for i := range re {
		re[i] = 1000
	}
	outRe, outIm := fft8(re, im)

	// A constant input has all its energy in bin 0; fft8 scales its output
	// down by 8, so the DC term of eight 1000s is 1000. Every other bin should
	// be near zero relative to the DC term.
	require.Equal(t, 1000, outRe[0])
	for i := 1; i < 8; i++ {
		require.Less(t, abs(outRe[i])+abs(outIm[i]), outRe[0])
	}
}

func TestFFT8ZeroInput(t *testing.T) {
	var re, im [8]int
	outRe, outIm := fft8(re, im)
	for i := 0; i < 8; i++ {
		require.Equal(t, 0, outRe[i])
		require.Equal(t, 0, outIm[i])
	}
}
