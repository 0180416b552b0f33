package brackets

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/contest-system/models"
)

var (
	ErrNotBuilt     = errors.New("contest has no rounds yet")
	ErrAlreadyBuilt = errors.New("contest rounds are already built")
)

var contestLifecycle = models.StandardLifecycle("contest")

// Build lays out every round of the contest and populates their match slots.
// It runs once; a failed build leaves the contest without rounds.
func (e *Engine) Build(c *models.Contest) error {
	if len(c.Rounds) > 0 {
		return ErrAlreadyBuilt
	}
	if !c.Created() {
		return fmt.Errorf("%w: contest %d is %s", models.ErrInvalidTransition, c.ID, c.State)
	}
	if err := ScheduleOf(c).Validate(); err != nil {
		return err
	}
	strategy, err := e.strategyOf(c)
	if err != nil {
		return err
	}
	plan, err := strategy.Plan(len(c.Members))
	if err != nil {
		return err
	}

	for _, p := range plan {
		c.Rounds = append(c.Rounds, &models.Round{
			ContestID:  c.ID,
			Number:     p.Number,
			Additional: p.Additional,
			Final:      p.Final,
			State:      models.StateCreated,
		})
	}
	for _, r := range c.Rounds {
		if _, err := e.TakeMatches(c, r); err != nil {
			c.Rounds = nil
			return err
		}
		if !CanStartRound(r) {
			c.Rounds = nil
			return fmt.Errorf("%w: round %s gets no matches", ErrDegenerateBracket, r.Title())
		}
	}
	if final := c.Rounds[len(c.Rounds)-1]; len(final.Matches) != 1 {
		n := len(final.Matches)
		c.Rounds = nil
		return fmt.Errorf("%w: final round holds %d matches", ErrDegenerateBracket, n)
	}

	e.logger.Info("contest built",
		slog.Int("contest_id", c.ID),
		slog.String("strategy", strategy.Name()),
		slog.Int("members", len(c.Members)),
		slog.Int("rounds", len(c.Rounds)),
	)
	return nil
}

// StartContest moves a built contest to started and opens its first round.
func (e *Engine) StartContest(c *models.Contest, today time.Time) (bool, error) {
	if len(c.Rounds) == 0 {
		return false, ErrNotBuilt
	}
	if !c.Created() {
		return false, nil
	}
	if err := contestLifecycle.Transit(&c.State, models.StateStarted, nil); err != nil {
		return false, err
	}
	e.logger.Info("contest started", slog.Int("contest_id", c.ID))
	if _, err := e.StartRound(c, c.Rounds[0], today); err != nil {
		return true, err
	}
	return true, nil
}

func (e *Engine) finishContest(c *models.Contest, today time.Time) error {
	if c.Created() {
		if err := contestLifecycle.Transit(&c.State, models.StateStarted, nil); err != nil {
			return err
		}
	}
	if err := contestLifecycle.Transit(&c.State, models.StateFinished, nil); err != nil {
		return err
	}
	day := Day(today)
	c.FinishedOn = &day
	e.logger.Info("contest finished",
		slog.Int("contest_id", c.ID),
		slog.String("champion", c.Champion().String()),
	)
	return nil
}

// Advance is the periodic driver step. It starts a due contest, finishes every
// round that can be finished in sequence and opens the waves that became due.
// It reports whether anything changed.
func (e *Engine) Advance(c *models.Contest, today time.Time) (bool, error) {
	if c.Finished() {
		return false, nil
	}
	moved := false
	if c.Created() {
		if Day(c.StartedOn).After(Day(today)) {
			return false, nil
		}
		started, err := e.StartContest(c, today)
		if err != nil {
			return started, err
		}
		moved = started
	}

	for range len(c.Rounds) {
		current := c.CurrentRound()
		if current == nil {
			break
		}
		if e.CanFinishRound(current, today) {
			if _, err := e.FinishRound(c, current, today); err != nil {
				return true, err
			}
			moved = true
			continue
		}
		opened, err := e.StartRound(c, current, today)
		if err != nil {
			return moved, err
		}
		return moved || opened, nil
	}
	return moved, nil
}
