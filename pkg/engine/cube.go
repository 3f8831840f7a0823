package engine

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

const properActionPrefix = "Proper cube action:"

// cubeLabels maps a normalized equity label to its slot in
// [no double, double/take, double/pass].
var cubeLabels = map[string]int{
	"no double":     0,
	"no redouble":   0,
	"double take":   1,
	"redouble take": 1,
	"double pass":   2,
	"redouble pass": 2,
}

var cubeOrder = [3]CubeRecommendation{NoDouble, DoubleTake, DoublePass}

// ParseCube extracts cube equities from the output of gnubg's "hint cube".
//
//	Cubeful equities:
//	1. No double            +0.234
//	2. Double, pass         +1.000  (+0.766)
//	3. Double, take         -0.123  (-0.357)
//	Proper cube action: No double, take (12.3%)
//
// Each equity line is matched on its whole label, so "Double, take" can never
// be read as "Double, pass". Missing equities default to 0, 0 and 1. The
// recommendation is the largest equity; ties go to the earlier action.
func ParseCube(output string) CubeResult {
	eq := [3]float64{0, 0, 1}
	seen := [3]bool{}
	res := CubeResult{WinProbability: defaultWin}
	var haveProbs bool

	for _, line := range strings.Split(strings.ReplaceAll(output, "\r", ""), "\n") {
		s := strings.TrimSpace(line)

		if action, ok := strings.CutPrefix(s, properActionPrefix); ok {
			if open := strings.LastIndexByte(action, '('); open >= 0 {
				action = action[:open]
			}
			res.ProperCubeAction = strings.TrimSpace(action)
			continue
		}

		if !haveProbs {
			if probs, ok := parseProbabilities(s); ok {
				res.WinProbability = probs[0]
				res.GammonThreat = probs[1]
				haveProbs = true
				continue
			}
		}

		label, value, ok := cubeLine(s)
		if !ok {
			continue
		}
		if slot, ok := cubeLabels[label]; ok && !seen[slot] {
			eq[slot] = value
			seen[slot] = true
		}
	}

	res.NoDoubleEquity, res.DoubleTakeEquity, res.DoublePassEquity = eq[0], eq[1], eq[2]
	res.Recommendation = cubeOrder[floats.MaxIdx(eq[:])]
	if res.ProperCubeAction == "" {
		res.ProperCubeAction = res.Recommendation.Label()
	}
	return res
}

// cubeLine splits "[N.] <label> <equity> ..." into a normalized label and the
// equity value.
func cubeLine(s string) (string, float64, bool) {
	if _, rest, ok := cutRank(s); ok {
		s = rest
	}
	fields := strings.Fields(s)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		if i == 0 {
			return "", 0, false
		}
		return normalizeLabel(fields[:i]), v, true
	}
	return "", 0, false
}

func normalizeLabel(words []string) string {
	label := strings.ToLower(strings.Join(words, " "))
	label = strings.NewReplacer(",", "", "/", " ").Replace(label)
	return strings.Join(strings.Fields(label), " ")
}

// Label is the human-readable form of a recommendation, e.g. "Double Take".
func (r CubeRecommendation) Label() string {
	words := strings.Split(string(r), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
