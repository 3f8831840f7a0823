package engine

import "github.com/samber/lo"

// ToFixedFrame maps a result computed with black on roll, where gnubg
// numbers the points from black's side, into the fixed white frame.
//
// Points map p -> 25-p and the bar (0) maps to 25. A bear-off keeps its die
// and gets To = From + Die. Equities are negated and win probabilities
// complemented; equity differences are relative to the best play and are
// kept as is. Notation is regenerated from the mapped moves.
func ToFixedFrame(res EvaluationResult) EvaluationResult {
	out := EvaluationResult{
		BestPlay:   flipPlay(res.BestPlay),
		BestEquity: -res.BestEquity,
		AllPlays: lo.Map(res.AllPlays, func(rp RankedPlay, _ int) RankedPlay {
			return RankedPlay{
				Rank:             rp.Rank,
				Play:             flipPlay(rp.Play),
				Equity:           -rp.Equity,
				WinProbability:   1 - rp.WinProbability,
				EquityDifference: rp.EquityDifference,
			}
		}),
	}
	return out
}

func flipPlay(p Play) Play {
	if len(p.Moves) == 0 {
		return Play{Notation: p.Notation}
	}
	moves := lo.Map(p.Moves, func(m Move, _ int) Move { return flipMove(m) })
	return Play{Moves: moves, Notation: FormatPlay(moves)}
}

func flipMove(m Move) Move {
	out := m
	out.From = flipPoint(m.From)
	if m.BearOff {
		out.To = out.From + m.Die
	} else {
		out.To = flipPoint(m.To)
	}
	return out
}

func flipPoint(p int) int {
	if p == 0 {
		return barOrigin
	}
	return barOrigin - p
}
