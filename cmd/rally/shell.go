package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/okian/rally/internal/app"
	"github.com/okian/rally/internal/domain/arrange"
	"github.com/okian/rally/internal/domain/model"
	"github.com/okian/rally/internal/domain/scoring"
)

var (
	errUsage   = errors.New("usage")
	errNoFocus = errors.New("no field awaiting input")
)

const shellHelp = `commands (rounds, games, teams and positions count from 1):
  show                      print the schedule with scores
  tap R G T P               select a player, tap another in the same round to swap
  rename R G T P NAME       rename a player everywhere
  score R G T VALUE         type VALUE into a team's score field
  score VALUE               type VALUE into the focused field
  focus [R G T]             show or move the focused field
  w N                       set the winning score
  add TYPE                  add a round (mixed, same-gender, mixer)
  status                    show sharing state
  finish                    end the match
  quit                      leave
`

// shell is a line-oriented front end over a session. It also receives
// collaborator notices, which may arrive from the poll goroutine.
type shell struct {
	sess *app.Session
	in   io.Reader

	mu  sync.Mutex
	out io.Writer

	// echo reprints the board on every collaborator update.
	echo bool

	finishOnce sync.Once
	finished   chan struct{}
}

func newShell(in io.Reader, out io.Writer) *shell {
	return &shell{in: in, out: out, finished: make(chan struct{})}
}

// CollaboratorUpdated prints the fields a collaborator changed.
func (sh *shell) CollaboratorUpdated(keys []model.ScoreKey) {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	sh.printf("* collaborator updated %s\n", strings.Join(names, " "))
	if sh.echo {
		sh.show()
	}
}

// MatchFinished announces the end of the match once.
func (sh *shell) MatchFinished() {
	sh.finishOnce.Do(func() {
		sh.printf("* match finished\n")
		close(sh.finished)
	})
}

func (sh *shell) printf(format string, args ...any) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) show() {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	printSchedule(sh.out, sh.sess.Schedule(), sh.sess.Board())
}

// run reads commands until quit, end of input or ctx cancellation.
func (sh *shell) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(sh.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
		close(lines)
	}()

	sh.printf("> ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return <-errc
			}
			quit, err := sh.exec(ctx, line)
			if err != nil {
				sh.printf("error: %v\n", err)
			}
			if quit {
				return nil
			}
			sh.printf("> ")
		}
	}
}

// exec runs one command line.
func (sh *shell) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		sh.printf("%s", shellHelp)
	case "show", "ls":
		sh.show()
	case "tap":
		slot, err := parseSlot(args)
		if err != nil {
			return false, err
		}
		out := sh.sess.Tap(slot)
		switch out.Action {
		case arrange.ActionSwapped:
			sh.printf("swapped %s and %s\n", out.Selected, out.Other)
		case arrange.ActionRejected, arrange.ActionInvalid:
			sh.printf("%s: %v\n", out.Action, out.Err)
		default:
			sh.printf("%s %s\n", out.Action, slot)
		}
	case "rename":
		if len(args) < 5 {
			return false, fmt.Errorf("%w: rename R G T P NAME", errUsage)
		}
		slot, err := parseSlot(args[:4])
		if err != nil {
			return false, err
		}
		if err := sh.sess.Rename(slot, strings.Join(args[4:], " ")); err != nil {
			return false, err
		}
		sh.printf("renamed\n")
	case "score":
		return false, sh.score(ctx, args)
	case "focus":
		return false, sh.focus(args)
	case "w":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: w N", errUsage)
		}
		w, err := strconv.Atoi(args[0])
		if err != nil {
			return false, fmt.Errorf("%w: w N", errUsage)
		}
		if err := sh.sess.SetWinningScore(w); err != nil {
			return false, err
		}
		sh.printf("winning score %d, max %d\n", w, sh.sess.Board().MaxScore())
	case "add":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: add TYPE", errUsage)
		}
		rt, err := model.ParseRoundType(args[0])
		if err != nil {
			return false, err
		}
		round, err := sh.sess.AddRound(rt)
		if err != nil {
			return false, err
		}
		sh.printf("added %s (%s) with %d games\n", round.ID, round.Type, len(round.Games))
	case "status":
		st := sh.sess.SyncStatus()
		if !st.Initialized {
			sh.printf("not shared\n")
			break
		}
		sh.printf("code %s, %s, %d connected, finished=%t\n", st.ShareCode, st.Role, st.Connected, st.Finished)
	case "finish":
		if err := sh.sess.Finish(ctx); err != nil {
			return false, err
		}
		sh.MatchFinished()
	default:
		return false, fmt.Errorf("%w: unknown command %q, try help", errUsage, cmd)
	}
	return false, nil
}

func (sh *shell) score(ctx context.Context, args []string) error {
	var key model.ScoreKey
	switch len(args) {
	case 1:
		k, ok := sh.sess.Board().Focus()
		if !ok {
			return errNoFocus
		}
		key = k
	case 4:
		k, err := parseKey(args[:3])
		if err != nil {
			return err
		}
		key = k
	default:
		return fmt.Errorf("%w: score [R G T] VALUE", errUsage)
	}
	res, err := sh.sess.EnterScore(ctx, key, args[len(args)-1])
	if err != nil {
		return err
	}
	switch {
	case res.Completed:
		sh.printf("game %d.%d: %s-%s, all games scored\n", res.Round+1, res.Game+1, res.S1, res.S2)
	case res.Next != nil:
		sh.printf("game %d.%d: %s-%s, next %s\n", res.Round+1, res.Game+1, res.S1, res.S2, res.Next)
	default:
		sh.printf("game %d.%d: %s-%s (%s)\n", res.Round+1, res.Game+1, res.S1, res.S2, res.Outcome)
	}
	return nil
}

func (sh *shell) focus(args []string) error {
	board := sh.sess.Board()
	switch len(args) {
	case 0:
	case 3:
		key, err := parseKey(args)
		if err != nil {
			return err
		}
		if err := board.SetFocus(key); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: focus [R G T]", errUsage)
	}
	key, ok := board.Focus()
	if !ok {
		sh.printf("no field awaiting input\n")
		return nil
	}
	sh.printf("focus %s\n", key)
	return nil
}

func parseKey(args []string) (model.ScoreKey, error) {
	n, err := parseIndexes(args)
	if err != nil {
		return model.ScoreKey{}, err
	}
	if n[2] != 0 && n[2] != 1 {
		return model.ScoreKey{}, fmt.Errorf("%w: team must be 1 or 2", errUsage)
	}
	return model.Key(n[0], n[1], n[2]+1), nil
}

func parseSlot(args []string) (model.Slot, error) {
	if len(args) != 4 {
		return model.Slot{}, fmt.Errorf("%w: R G T P", errUsage)
	}
	n, err := parseIndexes(args)
	if err != nil {
		return model.Slot{}, err
	}
	return model.Slot{Round: n[0], Game: n[1], Team: n[2], Pos: n[3]}, nil
}

// parseIndexes turns one-based arguments into zero-based indexes.
func parseIndexes(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("%w: %q is not a positive number", errUsage, a)
		}
		out[i] = v - 1
	}
	return out, nil
}

func printSchedule(w io.Writer, sched model.Schedule, board *scoring.Board) {
	for r, round := range sched {
		fmt.Fprintf(w, "Round %d (%s)\n", r+1, round.Type)
		for g, game := range round.Games {
			s1, s2 := board.Pair(r, g)
			fmt.Fprintf(w, "  %d: %-24s %2s - %-2s %s\n", g+1, teamName(game.Team1), s1, s2, teamName(game.Team2))
		}
		if len(round.Byes) > 0 {
			names := make([]string, len(round.Byes))
			for i, p := range round.Byes {
				names[i] = p.Name
			}
			fmt.Fprintf(w, "  bye: %s\n", strings.Join(names, ", "))
		}
	}
}

func teamName(t model.Team) string {
	return t[0].Name + " & " + t[1].Name
}
