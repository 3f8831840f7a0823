package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// fakeTransport records every command and answers through reply.
type fakeTransport struct {
	mu    sync.Mutex
	sent  []string
	reply func(cmd string) (string, error)
}

func (f *fakeTransport) Send(cmd string, _ time.Duration) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, cmd)
	f.mu.Unlock()
	if f.reply != nil {
		return f.reply(cmd)
	}
	return "", nil
}

func (f *fakeTransport) log(entry string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, entry)
}

func (f *fakeTransport) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// recordingFallback marks every fallback in the transport log.
type recordingFallback struct {
	*Mock
	log func(string)
}

func (r recordingFallback) Evaluate(ctx context.Context, req EvaluateRequest) EvaluationResult {
	r.log(fmt.Sprintf("fallback %d%d", req.Dice[0], req.Dice[1]))
	return r.Mock.Evaluate(ctx, req)
}

func (r recordingFallback) EvaluateCube(ctx context.Context, req CubeRequest) CubeResult {
	r.log("fallback cube")
	return r.Mock.EvaluateCube(ctx, req)
}

func hintReply(cmd string) (string, error) {
	if cmd == "hint" {
		return openingHint, nil
	}
	return "(gnubg) ", nil
}

func newTestEngine(reply func(string) (string, error)) (*Engine, *fakeTransport) {
	ft := &fakeTransport{reply: reply}
	fb := recordingFallback{Mock: NewSeededMock(1), log: ft.log}
	return NewEngine(ft, fb, Options{CommandTimeout: time.Second, HintTimeout: time.Second}), ft
}

func openingRequest(player Side) EvaluateRequest {
	return EvaluateRequest{
		Board:  StartingPosition(),
		Dice:   Dice{3, 1},
		Player: player,
		Plies:  0,
	}
}

func TestEngineEvaluateWhite(t *testing.T) {
	e, ft := newTestEngine(hintReply)

	res := e.Evaluate(context.Background(), openingRequest(White))

	assert.Equal(t, []string{
		"set evaluation chequer eval plies 0",
		"new game",
		"set board 4HPwATDgc/ABMA",
		"set turn 0",
		"set dice 3 1",
		"hint",
	}, ft.commands())
	assert.InDelta(t, 0.123, res.BestEquity, 1e-9)
	assert.Equal(t, 1, res.AllPlays[0].Rank)
	assert.Equal(t, []Move{
		{From: 24, To: 21, Die: 3},
		{From: 13, To: 10, Die: 3},
	}, res.BestPlay.Moves)
}

func TestEngineEvaluateBlack(t *testing.T) {
	e, ft := newTestEngine(hintReply)

	res := e.Evaluate(context.Background(), openingRequest(Black))

	assert.Contains(t, ft.commands(), "set turn 1")
	assert.InDelta(t, -0.123, res.BestEquity, 1e-9)
	points := []int{}
	for _, m := range res.BestPlay.Moves {
		points = append(points, m.From, m.To)
	}
	assert.Equal(t, []int{1, 4, 12, 15}, points)
}

func TestEngineIllegalCheckerCountSkipsEngine(t *testing.T) {
	e, ft := newTestEngine(hintReply)

	req := openingRequest(White)
	req.Board.Points[5] = 4 // white now has 14 checkers
	res := e.Evaluate(context.Background(), req)

	assert.Equal(t, []string{"fallback 31"}, ft.commands())
	assert.NotEmpty(t, res.AllPlays)

	cube := e.EvaluateCube(context.Background(), CubeRequest{Board: req.Board, Cube: CubeState{Value: 1}})
	assert.Equal(t, []string{"fallback 31", "fallback cube"}, ft.commands())
	assert.Equal(t, 1.0, cube.DoublePassEquity)
}

func TestEngineInvalidDiceSkipsEngine(t *testing.T) {
	e, ft := newTestEngine(hintReply)

	req := openingRequest(White)
	req.Dice = Dice{0, 7}
	e.Evaluate(context.Background(), req)

	assert.Equal(t, []string{"fallback 07"}, ft.commands())
}

func TestEngineFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		reply func(string) (string, error)
		last  string
	}{
		{
			name: "illegal position",
			reply: func(cmd string) (string, error) {
				if strings.HasPrefix(cmd, "set board") {
					return "Illegal position.\n(gnubg) ", nil
				}
				return "", nil
			},
			last: "set board 4HPwATDgc/ABMA",
		},
		{
			name: "transport timeout",
			reply: func(cmd string) (string, error) {
				if strings.HasPrefix(cmd, "set dice") {
					return "", errors.New("timed out waiting for gnubg")
				}
				return "", nil
			},
			last: "set dice 3 1",
		},
		{
			name: "no equity in hint",
			reply: func(cmd string) (string, error) {
				return "You must roll first.\n(gnubg) ", nil
			},
			last: "hint",
		},
		{
			name: "garbled repeat count",
			reply: func(cmd string) (string, error) {
				if cmd == "hint" {
					return "    1. Cubeful 0-ply    6/5(99999999999)    Eq.:  +0.100\n(gnubg) ", nil
				}
				return "", nil
			},
			last: "hint",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, ft := newTestEngine(tc.reply)
			res := e.Evaluate(context.Background(), openingRequest(White))

			cmds := ft.commands()
			require.GreaterOrEqual(t, len(cmds), 2)
			assert.Equal(t, tc.last, cmds[len(cmds)-2])
			assert.Equal(t, "fallback 31", cmds[len(cmds)-1])
			assert.NotEmpty(t, res.AllPlays)
		})
	}
}

func TestEngineCancelledWhileQueued(t *testing.T) {
	e, ft := newTestEngine(hintReply)
	require.NoError(t, e.sem.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := e.Evaluate(ctx, openingRequest(White))

	assert.Equal(t, []string{"fallback 31"}, ft.commands())
	assert.NotEmpty(t, res.AllPlays)
	e.sem.Release(1)
}

func TestEngineSerializesRequests(t *testing.T) {
	firstStarted := make(chan struct{})
	var once sync.Once
	e, ft := newTestEngine(func(cmd string) (string, error) {
		switch cmd {
		case "set evaluation chequer eval plies 0":
			once.Do(func() { close(firstStarted) })
		case "hint":
			// the first request stalls and then fails over to the mock
			time.Sleep(50 * time.Millisecond)
			return "", errors.New("gnubg went quiet")
		}
		return "", nil
	})

	first := openingRequest(White)
	second := openingRequest(Black)
	second.Dice = Dice{6, 5}
	second.Plies = 1

	var g errgroup.Group
	g.Go(func() error {
		e.Evaluate(context.Background(), first)
		return nil
	})
	<-firstStarted
	g.Go(func() error {
		e.Evaluate(context.Background(), second)
		return nil
	})
	require.NoError(t, g.Wait())

	assert.Equal(t, []string{
		"set evaluation chequer eval plies 0",
		"new game",
		"set board 4HPwATDgc/ABMA",
		"set turn 0",
		"set dice 3 1",
		"hint",
		"fallback 31",
		"set evaluation chequer eval plies 1",
		"new game",
		"set board 4HPwATDgc/ABMA",
		"set turn 1",
		"set dice 6 5",
		"hint",
		"fallback 65",
	}, ft.commands())
}

func TestEngineEvaluateCube(t *testing.T) {
	tests := []struct {
		name  string
		cube  CubeState
		owner string
		value bool
	}{
		{name: "centered", cube: CubeState{Value: 1, Owner: CubeCentered}, owner: "set cube centre"},
		{name: "white owns 2", cube: CubeState{Value: 2, Owner: CubeWhite}, owner: "set cube owner 0", value: true},
		{name: "black owns 4", cube: CubeState{Value: 4, Owner: CubeBlack}, owner: "set cube owner 1", value: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, ft := newTestEngine(func(cmd string) (string, error) {
				if cmd == "hint cube" {
					return cubeHint, nil
				}
				return "", nil
			})

			res := e.EvaluateCube(context.Background(), CubeRequest{
				Board:  StartingPosition(),
				Cube:   tc.cube,
				Player: Black,
				Plies:  2,
			})

			want := []string{
				"set evaluation cubedecision eval plies 2",
				"new game",
				"set board 4HPwATDgc/ABMA",
			}
			if tc.value {
				want = append(want, fmt.Sprintf("set cube value %d", tc.cube.Value))
			}
			want = append(want, tc.owner, "set turn 1", "hint cube")
			assert.Equal(t, want, ft.commands())
			assert.InDelta(t, 0.334, res.NoDoubleEquity, 1e-9)
			assert.Equal(t, "No double, take", res.ProperCubeAction)
		})
	}
}

func TestEngineEvaluateCubeFallback(t *testing.T) {
	e, ft := newTestEngine(func(cmd string) (string, error) {
		if cmd == "hint cube" {
			return "", errors.New("gnubg exited")
		}
		return "", nil
	})

	res := e.EvaluateCube(context.Background(), CubeRequest{Board: StartingPosition(), Cube: CubeState{Value: 1}})

	cmds := ft.commands()
	assert.Equal(t, "fallback cube", cmds[len(cmds)-1])
	assert.Equal(t, 1.0, res.DoublePassEquity)
}
