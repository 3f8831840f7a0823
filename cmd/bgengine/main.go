// bgengine - one-shot gnubg evaluations from the command line
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/yourusername/gnubgserver/pkg/engine"
	"github.com/yourusername/gnubgserver/pkg/external"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "eval":
		err = cmdEval(args)
	case "cube":
		err = cmdCube(args)
	case "posid":
		err = cmdPosID(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`bgengine - gnubg evaluations from the command line

Usage: bgengine <command> [options]

Commands:
  eval      Rank the checker plays for a roll
  cube      Analyze the cube decision
  posid     Decode a position ID, or print the starting position's ID

Use "bgengine <command> -h" for command-specific help.

Position ID Format:
  The position is specified using gnubg's position ID format with white
  as player 0. Example: "4HPwATDgc/ABMA" (starting position).
  A trailing ":matchID" is ignored.`)
}

// common holds the flags every engine command shares.
type common struct {
	position string
	player   string
	plies    int
	gnubg    string
	mock     bool
	verbose  bool
}

func (c *common) register(fs *pflag.FlagSet) {
	fs.StringVarP(&c.position, "position", "p", engine.StartingPosition().PositionID(), "position ID")
	fs.StringVar(&c.player, "player", "white", "player on roll: white or black")
	fs.IntVar(&c.plies, "plies", 2, "search depth 0-4")
	fs.StringVar(&c.gnubg, "gnubg", "gnubg", "gnubg binary name or path")
	fs.BoolVar(&c.mock, "mock", false, "use synthetic results instead of gnubg")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "log engine traffic")
}

// open returns the evaluator and a function that stops it.
func (c *common) open(ctx context.Context) (engine.Evaluator, func(), error) {
	level := zerolog.WarnLevel
	if c.verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	if c.mock {
		return engine.NewMock(), func() {}, nil
	}
	opts := external.DefaultOptions()
	opts.Path = c.gnubg
	proc := external.NewProcess(opts)
	if err := proc.Start(ctx); err != nil {
		return nil, nil, err
	}
	stop := func() { _ = proc.Stop() }
	if proc.Version() == external.MockVersion {
		fmt.Fprintln(os.Stderr, "gnubg not available, showing synthetic results")
		return engine.NewMock(), stop, nil
	}
	return engine.NewEngine(proc, engine.NewMock(), engine.DefaultOptions()), stop, nil
}

func (c *common) board() (engine.Board, engine.Side, error) {
	if !engine.ValidPlies(c.plies) {
		return engine.Board{}, engine.White, fmt.Errorf("plies must be 0-%d, got %d", engine.MaxPlies, c.plies)
	}
	board, err := parsePosition(c.position)
	if err != nil {
		return board, engine.White, err
	}
	side, err := engine.ParseSide(c.player)
	return board, side, err
}

func parsePosition(posStr string) (engine.Board, error) {
	board, err := engine.BoardFromPositionID(posStr)
	if err != nil {
		return board, fmt.Errorf("invalid position ID: %w", err)
	}
	return board, nil
}

func parseDice(diceStr string) (engine.Dice, error) {
	parts := strings.Split(diceStr, ",")
	if len(parts) != 2 {
		parts = strings.Split(diceStr, "-")
	}
	if len(parts) != 2 {
		return engine.Dice{}, fmt.Errorf("dice should be in format '3,1' or '3-1'")
	}

	d1, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	d2, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	dice := engine.Dice{d1, d2}
	if err1 != nil || err2 != nil || !dice.Valid() {
		return engine.Dice{}, fmt.Errorf("dice values must be 1-6")
	}
	return dice, nil
}

func parseCube(value int, owner string) (engine.CubeState, error) {
	if !engine.ValidCubeValue(value) {
		return engine.CubeState{}, fmt.Errorf("cube value must be a power of two, got %d", value)
	}
	o, err := engine.ParseCubeOwner(owner)
	if err != nil {
		return engine.CubeState{}, err
	}
	return engine.CubeState{Value: value, Owner: o}, nil
}

func cmdEval(args []string) error {
	var c common
	fs := pflag.NewFlagSet("eval", pflag.ExitOnError)
	c.register(fs)
	diceStr := fs.StringP("dice", "d", "", "dice roll (e.g. 3,1 or 3-1)")
	numMoves := fs.IntP("num", "n", 5, "number of plays to show")
	_ = fs.Parse(args)

	if *diceStr == "" {
		return fmt.Errorf("dice required\nUsage: bgengine eval -p <positionID> -d <roll>")
	}
	dice, err := parseDice(*diceStr)
	if err != nil {
		return err
	}
	board, side, err := c.board()
	if err != nil {
		return err
	}

	ctx := context.Background()
	ev, stop, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer stop()

	res := ev.Evaluate(ctx, engine.EvaluateRequest{Board: board, Dice: dice, Player: side, Plies: c.plies})
	fmt.Printf("Best: %s  (equity %+.3f)\n\n", res.BestPlay.Notation, res.BestEquity)
	fmt.Printf("%-4s %-24s %8s %7s %8s\n", "#", "Play", "Equity", "Win%", "Diff")
	for i, rp := range res.AllPlays {
		if i >= *numMoves {
			break
		}
		fmt.Printf("%-4d %-24s %+8.3f %6.1f%% %8.3f\n",
			rp.Rank, rp.Play.Notation, rp.Equity, rp.WinProbability*100, rp.EquityDifference)
	}
	return nil
}

func cmdCube(args []string) error {
	var c common
	fs := pflag.NewFlagSet("cube", pflag.ExitOnError)
	c.register(fs)
	value := fs.Int("cube", 1, "cube value")
	owner := fs.String("owner", "centered", "cube owner: centered, white or black")
	_ = fs.Parse(args)

	board, side, err := c.board()
	if err != nil {
		return err
	}
	cube, err := parseCube(*value, *owner)
	if err != nil {
		return err
	}

	ctx := context.Background()
	ev, stop, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer stop()

	res := ev.EvaluateCube(ctx, engine.CubeRequest{
		Board:  board,
		Cube:   cube,
		Player: side,
		Plies:  c.plies,
	})
	fmt.Printf("Proper cube action: %s\n\n", res.ProperCubeAction)
	fmt.Printf("  No double:     %+.3f\n", res.NoDoubleEquity)
	fmt.Printf("  Double, take:  %+.3f\n", res.DoubleTakeEquity)
	fmt.Printf("  Double, pass:  %+.3f\n", res.DoublePassEquity)
	fmt.Printf("\n  Win: %.1f%%  Gammon threat: %.1f%%\n", res.WinProbability*100, res.GammonThreat*100)
	return nil
}

func cmdPosID(args []string) error {
	fs := pflag.NewFlagSet("posid", pflag.ExitOnError)
	_ = fs.Parse(args)

	if fs.NArg() == 0 {
		fmt.Println(engine.StartingPosition().PositionID())
		return nil
	}

	board, err := parsePosition(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Println("Point  Checkers")
	for i := 23; i >= 0; i-- {
		if n := board.Points[i]; n != 0 {
			owner := "white"
			if n < 0 {
				owner, n = "black", -n
			}
			fmt.Printf("%5d  %d %s\n", i+1, n, owner)
		}
	}
	fmt.Printf("  bar  white %d, black %d\n", board.Bar[0], board.Bar[1])
	fmt.Printf("  off  white %d, black %d\n", board.BorneOff[0], board.BorneOff[1])
	return nil
}
