package engine

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	equityMarker = "Eq.:"
	noMove       = "No move"
	defaultWin   = 0.5
)

// ParseHint extracts ranked plays from the output of gnubg's "hint" command.
//
// A candidate line looks like
//
//  1. Cubeful 2-ply    24/21 13/10                  Eq.:  +0.123
//     0.512 0.140 0.005 - 0.488 0.130 0.005
//
// The notation is the first run of tokens containing '/', the equity is the
// first number after the equity marker, and the optional probability line
// that follows gives the win probability. Lines whose notation cannot be
// read are skipped; if that leaves no candidate the first such error is
// returned. Output without any candidate yields a single rank-1 "No move"
// play.
func ParseHint(output string) (EvaluationResult, error) {
	lines := strings.Split(strings.ReplaceAll(output, "\r", ""), "\n")

	var plays []RankedPlay
	var skipped error
	for i, line := range lines {
		rank, rest, ok := cutRank(line)
		if !ok || !strings.Contains(rest, equityMarker) {
			continue
		}

		before, after, _ := strings.Cut(rest, equityMarker)
		notation := notationRun(strings.Fields(before))
		if notation == "" {
			continue
		}
		equity, ok := firstFloat(strings.Fields(after))
		if !ok {
			continue
		}

		play, err := ParseNotation(notation)
		if err != nil {
			if skipped == nil {
				skipped = fmt.Errorf("rank %d: %w", rank, err)
			}
			continue
		}

		rp := RankedPlay{
			Rank:           rank,
			Play:           play,
			Equity:         equity,
			WinProbability: defaultWin,
		}
		if i+1 < len(lines) {
			if probs, ok := parseProbabilities(lines[i+1]); ok {
				rp.WinProbability = probs[0]
			}
		}
		if len(plays) > 0 && rank != 1 {
			rp.EquityDifference = plays[0].Equity - equity
		}
		plays = append(plays, rp)
	}

	if len(plays) == 0 {
		if skipped != nil {
			return EvaluationResult{}, skipped
		}
		plays = append(plays, RankedPlay{
			Rank:           1,
			Play:           Play{Notation: noMove},
			WinProbability: defaultWin,
		})
	}

	return EvaluationResult{
		BestPlay:   plays[0].Play,
		BestEquity: plays[0].Equity,
		AllPlays:   plays,
	}, nil
}

// cutRank splits a leading "N." rank off a line.
func cutRank(line string) (int, string, bool) {
	s := strings.TrimSpace(line)
	dot := strings.IndexByte(s, '.')
	if dot < 1 || dot+1 >= len(s) || (s[dot+1] != ' ' && s[dot+1] != '\t') {
		return 0, "", false
	}
	rank, err := strconv.Atoi(s[:dot])
	if err != nil || rank < 1 {
		return 0, "", false
	}
	return rank, s[dot+1:], true
}

func notationRun(fields []string) string {
	start := -1
	for i, f := range fields {
		if strings.Contains(f, "/") {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return strings.Join(fields[start:i], " ")
		}
	}
	if start < 0 {
		return ""
	}
	return strings.Join(fields[start:], " ")
}

func firstFloat(fields []string) (float64, bool) {
	for _, f := range fields {
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// parseProbabilities reads a "w wg wbg - l lg lbg" line.
func parseProbabilities(line string) ([6]float64, bool) {
	var probs [6]float64
	fields := strings.Fields(line)
	if len(fields) != 7 || fields[3] != "-" {
		return probs, false
	}
	j := 0
	for i, f := range fields {
		if i == 3 {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return probs, false
		}
		probs[j] = v
		j++
	}
	return probs, true
}
