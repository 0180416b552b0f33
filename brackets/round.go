package brackets

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Dosada05/contest-system/models"
)

var (
	ErrRoundCannotStart  = errors.New("round cannot be started")
	ErrRoundCannotFinish = errors.New("round cannot be finished")
	ErrRoundNotInContest = errors.New("round does not belong to the contest")
)

var roundLifecycle = models.StandardLifecycle("round")

// TakeMatches creates the matches of a round from its passes. Seed passes get
// the contest members, every other pass gets placeholder slots sized by what
// its sources will yield. Matches are appended, so calling it on a round that
// already holds matches continues its wave numbering.
func (e *Engine) TakeMatches(c *models.Contest, r *models.Round) ([]*models.Match, error) {
	idx := e.indexOf(c, r)
	if idx < 0 {
		return nil, ErrRoundNotInContest
	}
	strategy, err := e.strategyOf(c)
	if err != nil {
		return nil, err
	}

	schedule := ScheduleOf(c).From(baseDate(c, idx))
	var created []*models.Match
	for _, pass := range strategy.Passes(c.Rounds, idx) {
		if pass.Split {
			for _, sel := range pass.Sources {
				if n := slotCount(c, sel); n != 1 {
					return nil, fmt.Errorf("%w: round %s final side draws %d participants", ErrDegenerateBracket, r.Title(), n)
				}
			}
			created = append(created, schedule.Fill(r, pass.Group, make([]*models.ParticipantRef, 2), nil)...)
			continue
		}

		if len(pass.Sources) == 1 && pass.Sources[0].Outcome == OutcomeSeeds {
			seeds := make([]*models.ParticipantRef, len(c.Members))
			for i := range c.Members {
				seeds[i] = &c.Members[i]
			}
			var shuffle *rand.Rand
			if c.Shuffle {
				shuffle = e.shuffler()
			}
			created = append(created, schedule.Fill(r, pass.Group, seeds, shuffle)...)
			continue
		}

		total := 0
		for _, sel := range pass.Sources {
			total += slotCount(c, sel)
		}
		created = append(created, schedule.Fill(r, pass.Group, make([]*models.ParticipantRef, total), nil)...)
	}

	e.logger.Debug("round populated",
		slog.Int("contest_id", c.ID),
		slog.String("round", r.Title()),
		slog.Int("matches", len(created)),
	)
	return created, nil
}

// CanStartRound is true once the round holds at least one match.
func CanStartRound(r *models.Round) bool {
	return len(r.Matches) > 0
}

// StartRound opens the round and every match whose window has begun. On a
// round that is already running it opens the waves that became due since the
// last call. It reports whether anything changed.
func (e *Engine) StartRound(c *models.Contest, r *models.Round, today time.Time) (bool, error) {
	if e.indexOf(c, r) < 0 {
		return false, ErrRoundNotInContest
	}
	if r.Finished() {
		return false, nil
	}
	if !CanStartRound(r) {
		return false, fmt.Errorf("%w: round %s has no matches", ErrRoundCannotStart, r.Title())
	}

	moved := false
	if r.Created() {
		if err := roundLifecycle.Transit(&r.State, models.StateStarted, nil); err != nil {
			return false, err
		}
		moved = true
	}
	for _, m := range r.Matches {
		if startMatch(m, today) {
			moved = true
		}
	}
	if moved {
		e.logger.Info("round started",
			slog.Int("contest_id", c.ID),
			slog.String("round", r.Title()),
		)
	}
	return moved, nil
}

// CanFinishRound is true when every match is finished or ready to be closed.
func (e *Engine) CanFinishRound(r *models.Round, today time.Time) bool {
	if len(r.Matches) == 0 {
		return false
	}
	for _, m := range r.Matches {
		if !CanFinishMatch(m, e.judge, today) {
			return false
		}
	}
	return true
}

// FinishRound closes the remaining matches, routes winners and losers into
// the later rounds, then starts the next round or finishes the contest.
func (e *Engine) FinishRound(c *models.Contest, r *models.Round, today time.Time) (bool, error) {
	idx := e.indexOf(c, r)
	if idx < 0 {
		return false, ErrRoundNotInContest
	}
	if r.Finished() {
		return false, nil
	}
	if prior := c.PriorRound(r); prior != nil && !prior.Finished() {
		return false, fmt.Errorf("%w: round %s comes before %s", ErrRoundCannotFinish, prior.Title(), r.Title())
	}
	if !e.CanFinishRound(r, today) {
		return false, fmt.Errorf("%w: round %s still has open matches", ErrRoundCannotFinish, r.Title())
	}
	strategy, err := e.strategyOf(c)
	if err != nil {
		return false, err
	}

	for _, m := range r.Matches {
		if err := closeMatch(m, e.judge); err != nil {
			return false, fmt.Errorf("closing match %d: %w", m.ID, err)
		}
	}
	if r.Created() {
		if err := roundLifecycle.Transit(&r.State, models.StateStarted, nil); err != nil {
			return false, err
		}
	}
	if err := roundLifecycle.Transit(&r.State, models.StateFinished, nil); err != nil {
		return false, err
	}
	if err := route(c, strategy, idx); err != nil {
		return false, err
	}
	e.logger.Info("round finished",
		slog.Int("contest_id", c.ID),
		slog.String("round", r.Title()),
	)

	if next := c.NextRound(r); next != nil {
		if _, err := e.StartRound(c, next, today); err != nil {
			return true, err
		}
		return true, nil
	}
	return true, e.finishContest(c, today)
}
