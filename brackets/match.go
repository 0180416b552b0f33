package brackets

import (
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/contest-system/models"
)

var (
	ErrMatchNotOpen  = errors.New("match is not open for an outcome")
	ErrInvalidWinner = errors.New("winner must be one of the match participants")
)

var matchLifecycle = models.ByeLifecycle("match")

// Judge answers for the vote tally: whether a match may close and who won it.
type Judge interface {
	CanClose(m *models.Match, today time.Time) bool
	Winner(m *models.Match) *models.ParticipantRef
}

// DateJudge closes a match once its voting window is over. Without a
// recorded winner the left side takes the match.
type DateJudge struct{}

func (DateJudge) CanClose(m *models.Match, today time.Time) bool {
	return m.FinishedOn.Before(Day(today))
}

func (DateJudge) Winner(m *models.Match) *models.ParticipantRef {
	if m.Winner != nil {
		return m.Winner
	}
	return m.Left
}

// ready reports whether both sides of a match are known.
func ready(m *models.Match) bool {
	return m.Left != nil && (m.Right != nil || m.Bye)
}

func due(m *models.Match, today time.Time) bool {
	return !m.StartedOn.After(Day(today))
}

// startMatch opens a created match whose participants are known and whose
// window has begun. Byes never open; they resolve on their own.
func startMatch(m *models.Match, today time.Time) bool {
	if !m.Created() || m.Bye || !ready(m) || !due(m, today) {
		return false
	}
	return matchLifecycle.Transit(&m.State, models.StateStarted, nil) == nil
}

// resolveBye finishes a bye as soon as its only participant is known.
func resolveBye(m *models.Match) bool {
	if !m.Bye || m.Left == nil || m.Finished() {
		return false
	}
	m.Winner = m.Left
	return matchLifecycle.Transit(&m.State, models.StateFinished, nil) == nil
}

// CanFinishMatch: finished already, or ready and closable per the judge.
func CanFinishMatch(m *models.Match, judge Judge, today time.Time) bool {
	if m.Finished() {
		return true
	}
	return ready(m) && judge.CanClose(m, today)
}

// closeMatch force-finishes an open match with the judge's winner.
func closeMatch(m *models.Match, judge Judge) error {
	if m.Finished() {
		return nil
	}
	if m.Bye {
		resolveBye(m)
		return nil
	}
	if m.Created() {
		if err := matchLifecycle.Transit(&m.State, models.StateStarted, nil); err != nil {
			return err
		}
	}
	winner := judge.Winner(m)
	return matchLifecycle.Transit(&m.State, models.StateFinished, func() error {
		side := sideOf(m, winner)
		if side == nil {
			return fmt.Errorf("%w: judge picked %s for match %d", ErrInvalidWinner, winner, m.ID)
		}
		m.Winner = side
		return nil
	})
}

// RecordWinner accepts the outcome of an open match.
func RecordWinner(m *models.Match, winner *models.ParticipantRef) error {
	if !m.Started() {
		return fmt.Errorf("%w: match %d is %s", ErrMatchNotOpen, m.ID, m.State)
	}
	return matchLifecycle.Transit(&m.State, models.StateFinished, func() error {
		side := sideOf(m, winner)
		if side == nil {
			return fmt.Errorf("%w: %s is not playing match %d", ErrInvalidWinner, winner, m.ID)
		}
		m.Winner = side
		return nil
	})
}

func sideOf(m *models.Match, ref *models.ParticipantRef) *models.ParticipantRef {
	switch {
	case ref == nil:
		return nil
	case ref.Same(m.Left):
		return m.Left
	case ref.Same(m.Right):
		return m.Right
	}
	return nil
}
