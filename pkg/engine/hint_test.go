package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openingHint = `
    1. Cubeful 0-ply    24/21 13/10                  Eq.:  +0.123
       0.512 0.140 0.005 - 0.488 0.130 0.005
        0-ply cubeful prune [world class]
    2. Cubeful 0-ply    8/5 6/5                      Eq.:  +0.100 ( -0.023)
       0.530 0.150 0.006 - 0.470 0.120 0.004
    3. Cubeful 0-ply    24/23 24/21                  Eq.:  -0.010 ( -0.133)
(gnubg) `

func TestParseHint(t *testing.T) {
	res, err := ParseHint(openingHint)
	require.NoError(t, err)
	require.Len(t, res.AllPlays, 3)

	best := res.AllPlays[0]
	assert.Equal(t, 1, best.Rank)
	assert.InDelta(t, 0.123, best.Equity, 1e-9)
	assert.InDelta(t, 0.512, best.WinProbability, 1e-9)
	assert.Zero(t, best.EquityDifference)
	assert.Equal(t, "24/21 13/10", best.Play.Notation)
	assert.Equal(t, []Move{
		{From: 24, To: 21, Die: 3},
		{From: 13, To: 10, Die: 3},
	}, best.Play.Moves)

	assert.Equal(t, best.Play, res.BestPlay)
	assert.InDelta(t, 0.123, res.BestEquity, 1e-9)

	second := res.AllPlays[1]
	assert.Equal(t, 2, second.Rank)
	assert.InDelta(t, 0.023, second.EquityDifference, 1e-9)
	assert.InDelta(t, 0.53, second.WinProbability, 1e-9)

	third := res.AllPlays[2]
	assert.InDelta(t, -0.010, third.Equity, 1e-9)
	assert.InDelta(t, 0.133, third.EquityDifference, 1e-9)
	// no probability line after it
	assert.InDelta(t, 0.5, third.WinProbability, 1e-9)
}

func TestParseHintBlackFrame(t *testing.T) {
	res, err := ParseHint(openingHint)
	require.NoError(t, err)
	res = ToFixedFrame(res)

	assert.InDelta(t, -0.123, res.BestEquity, 1e-9)
	assert.Equal(t, []Move{
		{From: 1, To: 4, Die: 3},
		{From: 12, To: 15, Die: 3},
	}, res.BestPlay.Moves)
	assert.Equal(t, "1/4 12/15", res.BestPlay.Notation)
	assert.InDelta(t, 0.488, res.AllPlays[0].WinProbability, 1e-9)
	assert.InDelta(t, 0.023, res.AllPlays[1].EquityDifference, 1e-9)
}

func TestParseHintNoMove(t *testing.T) {
	res, err := ParseHint("There are no legal moves.\n(gnubg) ")
	require.NoError(t, err)
	require.Len(t, res.AllPlays, 1)
	assert.Equal(t, 1, res.AllPlays[0].Rank)
	assert.Equal(t, "No move", res.BestPlay.Notation)
	assert.Empty(t, res.BestPlay.Moves)
}

func TestParseHintSkipsLinesWithoutNotation(t *testing.T) {
	out := "1. Cubeful 2-ply  Eq.: +0.200\n2. Cubeful 2-ply  bar/22 6/5  Eq.: -0.050\n"
	res, err := ParseHint(out)
	require.NoError(t, err)
	require.Len(t, res.AllPlays, 1)
	assert.Equal(t, 2, res.AllPlays[0].Rank)
	assert.Equal(t, "bar/22 6/5", res.BestPlay.Notation)
}

func TestParseHintBadNotation(t *testing.T) {
	_, err := ParseHint("1. Cubeful 2-ply  x/y  Eq.: +0.200\n")
	assert.ErrorIs(t, err, ErrNotation)
}

func TestParseHintSkipsUnreadableLines(t *testing.T) {
	out := "1. Cubeful 2-ply  24/21 13/10  Eq.: +0.200\n" +
		"2. Cubeful 2-ply  x/y  Eq.: +0.150\n" +
		"3. Cubeful 2-ply  8/5(9) 6/5  Eq.: +0.100\n" +
		"4. Cubeful 2-ply  8/5 6/5  Eq.: -0.050\n"
	res, err := ParseHint(out)
	require.NoError(t, err)
	require.Len(t, res.AllPlays, 2)
	assert.Equal(t, "24/21 13/10", res.BestPlay.Notation)
	assert.Equal(t, 4, res.AllPlays[1].Rank)
	assert.InDelta(t, 0.25, res.AllPlays[1].EquityDifference, 1e-9)
}
