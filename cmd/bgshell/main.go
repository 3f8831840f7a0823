// Command bgshell is an interactive shell on a gnubg subprocess. Plain lines
// go to gnubg as-is; lines starting with ':' run through the evaluation
// engine.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/yourusername/gnubgserver/pkg/engine"
	"github.com/yourusername/gnubgserver/pkg/external"
)

const help = `Commands:
  :eval <posid> <d1> <d2> [white|black]   rank checker plays
  :cube <posid> [white|black]             cube decision
  :start                                  starting position ID
  :state                                  process state
  :quit                                   exit
Anything else is sent to gnubg verbatim.`

type shell struct {
	proc    *external.Process
	ev      engine.Evaluator
	timeout time.Duration
	out     io.Writer
}

func main() {
	gnubg := pflag.String("gnubg", "gnubg", "gnubg binary name or path")
	timeout := pflag.Duration("timeout", 30*time.Second, "wait for each reply")
	verbose := pflag.BoolP("verbose", "v", false, "log engine traffic")
	pflag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	opts := external.DefaultOptions()
	opts.Path = *gnubg
	proc := external.NewProcess(opts)
	if err := proc.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("gnubg start failed")
	}
	defer func() { _ = proc.Stop() }()

	sh := &shell{proc: proc, timeout: *timeout, out: os.Stdout}
	if proc.Version() == external.MockVersion {
		sh.ev = engine.NewMock()
	} else {
		sh.ev = engine.NewEngine(proc, engine.NewMock(), engine.DefaultOptions())
	}

	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[32mgnubg>\033[0m ",
		HistoryFile:     os.TempDir() + "/bgshell.history",
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("readline")
	}
	defer l.Close()

	fmt.Fprintf(sh.out, "gnubg %s (%s)\n%s\n", proc.Version(), proc.Mode(), help)
	for {
		line, err := l.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return
			}
			continue
		} else if errors.Is(err, io.EOF) {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if quit := sh.handle(line); quit {
			return
		}
	}
}

// handle runs one line and reports whether the shell should exit.
func (s *shell) handle(line string) bool {
	if !strings.HasPrefix(line, ":") {
		s.raw(line)
		return false
	}
	fields, err := shellquote.Split(line[1:])
	if err != nil || len(fields) == 0 {
		fmt.Fprintln(s.out, help)
		return false
	}
	switch fields[0] {
	case "quit", "q":
		return true
	case "start":
		fmt.Fprintln(s.out, engine.StartingPosition().PositionID())
	case "state":
		fmt.Fprintf(s.out, "%s (%s, gnubg %s)\n", s.proc.State(), s.proc.Mode(), s.proc.Version())
	case "eval":
		if err := s.eval(fields[1:]); err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
	case "cube":
		if err := s.cube(fields[1:]); err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
	default:
		fmt.Fprintln(s.out, help)
	}
	return false
}

func (s *shell) raw(line string) {
	if !s.proc.Ready() || s.proc.Mode() != "gnubg" {
		fmt.Fprintln(s.out, "gnubg is not running")
		return
	}
	out, err := s.proc.Send(line, s.timeout)
	if err != nil {
		fmt.Fprintln(s.out, "error:", err)
		return
	}
	fmt.Fprintln(s.out, out)
}

func sideArg(args []string, i int) (engine.Side, error) {
	if len(args) <= i {
		return engine.White, nil
	}
	return engine.ParseSide(args[i])
}

func (s *shell) eval(args []string) error {
	if len(args) < 3 {
		return errors.New("usage: :eval <posid> <d1> <d2> [white|black]")
	}
	board, err := engine.BoardFromPositionID(args[0])
	if err != nil {
		return err
	}
	var dice engine.Dice
	if _, err := fmt.Sscanf(args[1]+" "+args[2], "%d %d", &dice[0], &dice[1]); err != nil || !dice.Valid() {
		return errors.New("dice must be 1-6")
	}
	side, err := sideArg(args, 3)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	res := s.ev.Evaluate(ctx, engine.EvaluateRequest{Board: board, Dice: dice, Player: side, Plies: 2})
	for _, rp := range res.AllPlays {
		fmt.Fprintf(s.out, "%2d. %-24s %+.3f  (%+.3f)\n", rp.Rank, rp.Play.Notation, rp.Equity, -rp.EquityDifference)
	}
	return nil
}

func (s *shell) cube(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: :cube <posid> [white|black]")
	}
	board, err := engine.BoardFromPositionID(args[0])
	if err != nil {
		return err
	}
	side, err := sideArg(args, 1)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	res := s.ev.EvaluateCube(ctx, engine.CubeRequest{
		Board:  board,
		Cube:   engine.CubeState{Value: 1, Owner: engine.CubeCentered},
		Player: side,
		Plies:  2,
	})
	fmt.Fprintf(s.out, "%s\n  no double %+.3f\n  take      %+.3f\n  pass      %+.3f\n",
		res.ProperCubeAction, res.NoDoubleEquity, res.DoubleTakeEquity, res.DoublePassEquity)
	return nil
}
