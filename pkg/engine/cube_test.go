package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const cubeHint = `
Cube analysis
2-ply cubeless equity  +0.312 (Money:  +0.312)
  0.612 0.180 0.008 - 0.388 0.090 0.003
Cubeful equities:
1. No double            +0.334
2. Double, pass         +1.000  (+0.666)
3. Double, take         +0.410  (+0.076)
Proper cube action: No double, take (23.5%)
(gnubg) `

func TestParseCube(t *testing.T) {
	res := ParseCube(cubeHint)

	assert.InDelta(t, 0.334, res.NoDoubleEquity, 1e-9)
	assert.InDelta(t, 0.410, res.DoubleTakeEquity, 1e-9)
	assert.InDelta(t, 1.0, res.DoublePassEquity, 1e-9)
	assert.Equal(t, DoublePass, res.Recommendation)
	assert.Equal(t, "No double, take", res.ProperCubeAction)
	assert.InDelta(t, 0.612, res.WinProbability, 1e-9)
	assert.InDelta(t, 0.180, res.GammonThreat, 1e-9)
}

func TestParseCubeLabelsDoNotOverlap(t *testing.T) {
	// "double" appears in every line; each equity must come from its own line
	out := "1. Double, pass  +0.900\n2. Double, take  +0.950\n3. No double  +0.500\n"
	res := ParseCube(out)

	assert.InDelta(t, 0.5, res.NoDoubleEquity, 1e-9)
	assert.InDelta(t, 0.95, res.DoubleTakeEquity, 1e-9)
	assert.InDelta(t, 0.9, res.DoublePassEquity, 1e-9)
	assert.Equal(t, DoubleTake, res.Recommendation)
	assert.Equal(t, "Double Take", res.ProperCubeAction)
}

func TestParseCubeRedouble(t *testing.T) {
	out := "1. No redouble  +0.700\n2. Redouble, take  +0.650\n3. Redouble, pass  +1.000\n"
	res := ParseCube(out)

	assert.InDelta(t, 0.7, res.NoDoubleEquity, 1e-9)
	assert.InDelta(t, 0.65, res.DoubleTakeEquity, 1e-9)
	assert.Equal(t, DoublePass, res.Recommendation)
}

func TestParseCubeDefaults(t *testing.T) {
	res := ParseCube("nothing useful here")

	assert.Zero(t, res.NoDoubleEquity)
	assert.Zero(t, res.DoubleTakeEquity)
	assert.InDelta(t, 1.0, res.DoublePassEquity, 1e-9)
	assert.Equal(t, DoublePass, res.Recommendation)
	assert.Equal(t, "Double Pass", res.ProperCubeAction)
	assert.InDelta(t, 0.5, res.WinProbability, 1e-9)
	assert.Zero(t, res.GammonThreat)
}

func TestParseCubeTiesPreferEarlierAction(t *testing.T) {
	res := ParseCube("No double +1.000\nDouble, take +1.000\nDouble, pass +1.000\n")
	assert.Equal(t, NoDouble, res.Recommendation)
	assert.Equal(t, "No Double", res.ProperCubeAction)

	res = ParseCube("No double +0.200\nDouble, take +1.000\nDouble, pass +1.000\n")
	assert.Equal(t, DoubleTake, res.Recommendation)
}

func TestCubeRecommendationLabel(t *testing.T) {
	assert.Equal(t, "No Double", NoDouble.Label())
	assert.Equal(t, "Double Take", DoubleTake.Label())
	assert.Equal(t, "Double Pass", DoublePass.Label())
}
