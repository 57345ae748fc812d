package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKFactorTiers(t *testing.T) {
	assert.Equal(t, KProvisional, KFactor(0))
	assert.Equal(t, KProvisional, KFactor(29))
	assert.Equal(t, KEstablished, KFactor(30))
	assert.Equal(t, KEstablished, KFactor(99))
	assert.Equal(t, KVeteran, KFactor(100))
	assert.Equal(t, KVeteran, KFactor(5000))
}

func TestChangeEqualRatings(t *testing.T) {
	// Two fresh players at 1500: E = 0.5, K = 40, win is worth 20.
	assert.Equal(t, 20, Change(1500, 1500, ResultPlayer1Win, 0, 0))
	assert.Equal(t, -20, Change(1500, 1500, ResultPlayer2Win, 0, 0))
	assert.Equal(t, 0, Change(1500, 1500, ResultDraw, 0, 0))
}

func TestChangeInvalidated(t *testing.T) {
	assert.Equal(t, 0, Change(1500, 1200, ResultInvalid, 0, 0))
}

func TestChangeFavorsUnderdog(t *testing.T) {
	underdogWin := Change(1400, 1600, ResultPlayer1Win, 50, 50)
	favoriteWin := Change(1600, 1400, ResultPlayer1Win, 50, 50)
	assert.Greater(t, underdogWin, favoriteWin)
	assert.Greater(t, favoriteWin, 0)
}

func TestChangeRoundTrip(t *testing.T) {
	// Swapping seats and the winner flips the sign but not the size.
	cases := []struct{ r1, r2, g1, g2 int }{
		{1500, 1500, 0, 0},
		{1700, 1450, 12, 140},
		{1234, 1600, 31, 99},
	}
	for _, c := range cases {
		fwd := Change(c.r1, c.r2, ResultPlayer1Win, c.g1, c.g2)
		rev := Change(c.r2, c.r1, ResultPlayer2Win, c.g2, c.g1)
		assert.Equal(t, fwd, -rev, "r1=%d r2=%d", c.r1, c.r2)
	}
}

func TestChangeDrawUnequalRatings(t *testing.T) {
	// A draw moves points toward the lower-rated player.
	delta := Change(1600, 1400, ResultDraw, 100, 100)
	assert.Less(t, delta, 0)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-15))
	assert.Equal(t, 0, Clamp(0))
	assert.Equal(t, 1500, Clamp(1500))
}
