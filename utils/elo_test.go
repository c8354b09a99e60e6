package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestExpectedScore(t *testing.T) {
	assert.InDelta(t, 0.5, ExpectedScore(1400, 1400), 0.0001)
	// 400 points of advantage is roughly a 10:1 favorite
	assert.InDelta(t, 0.9091, ExpectedScore(1800, 1400), 0.0001)
	assert.InDelta(t, 0.0909, ExpectedScore(1400, 1800), 0.0001)
}

func TestKFactorTiers(t *testing.T) {
	assert.Equal(t, 8, KFactor(intPtr(2400), 100))
	assert.Equal(t, 8, KFactor(intPtr(2750), 5))
	assert.Equal(t, 16, KFactor(intPtr(2399), 100))
	assert.Equal(t, 16, KFactor(intPtr(2100), 3))
	assert.Equal(t, 24, KFactor(intPtr(2099), 30))
	assert.Equal(t, 24, KFactor(intPtr(1400), 200))
	assert.Equal(t, 40, KFactor(intPtr(2099), 29))
	assert.Equal(t, 40, KFactor(intPtr(1400), 0))
}

func TestKFactorUnrated(t *testing.T) {
	assert.Equal(t, 40, KFactor(nil, 100))
	assert.Equal(t, 40, KFactor(intPtr(0), 100))
}

func TestRatingDeltaEqualOpponents(t *testing.T) {
	// even match, K=40 newcomer: +/-20
	assert.Equal(t, 20, RatingDelta(intPtr(1400), 1400, true, 5))
	assert.Equal(t, -20, RatingDelta(intPtr(1400), 1400, false, 5))
}

func TestRatingDeltaUnratedUsesDefault(t *testing.T) {
	// nil rating scores as 1400 with K=40
	assert.Equal(t, 20, RatingDelta(nil, 1400, true, 0))
	assert.Equal(t, -20, RatingDelta(nil, 1400, false, 0))
}

func TestRatingDeltaUpsets(t *testing.T) {
	// seasoned 1400 (K=24) beating an 1800 gains more than an even win
	gain := RatingDelta(intPtr(1400), 1800, true, 50)
	assert.Equal(t, 22, gain)
	// the 1800 veteran losing the same game drops little of a small stake
	loss := RatingDelta(intPtr(1800), 1400, false, 50)
	assert.Equal(t, -22, loss)
}

func TestRatingDeltaHighRatedMovesSlowly(t *testing.T) {
	// K=8 grandmaster tier: an even win is worth 4
	assert.Equal(t, 4, RatingDelta(intPtr(2450), 2450, true, 300))
}

func TestNextTrend(t *testing.T) {
	assert.Equal(t, "+1", NextTrend("-", true))
	assert.Equal(t, "-1", NextTrend("-", false))
	assert.Equal(t, "+2", NextTrend("+1", true))
	assert.Equal(t, "+6", NextTrend("+5", true))
	assert.Equal(t, "-1", NextTrend("+5", false))
	assert.Equal(t, "-3", NextTrend("-2", false))
	assert.Equal(t, "+1", NextTrend("-2", true))
	assert.Equal(t, "+1", NextTrend("", true))
}

func TestRoundWinrate(t *testing.T) {
	assert.Equal(t, 0.0, RoundWinrate(0, 0))
	assert.Equal(t, 100.0, RoundWinrate(1, 1))
	assert.Equal(t, 50.0, RoundWinrate(1, 2))
	assert.Equal(t, 33.33, RoundWinrate(1, 3))
	assert.Equal(t, 66.67, RoundWinrate(2, 3))
}
