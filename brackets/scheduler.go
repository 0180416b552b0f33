package brackets

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/Dosada05/contest-system/models"
)

var ErrInvalidSchedule = errors.New("invalid match schedule")

// Schedule holds the voting calendar of a round: matches are grouped in waves
// of PerWave, each wave opening Interval days after the previous one and
// staying open for Duration days.
type Schedule struct {
	StartedOn time.Time
	PerWave   int
	Duration  int
	Interval  int
}

func ScheduleOf(c *models.Contest) Schedule {
	return Schedule{
		StartedOn: Day(c.StartedOn),
		PerWave:   c.MatchesPerWave,
		Duration:  c.MatchDuration,
		Interval:  c.WaveInterval,
	}
}

func (s Schedule) Validate() error {
	switch {
	case s.PerWave < 1:
		return fmt.Errorf("%w: matches per wave must be positive, got %d", ErrInvalidSchedule, s.PerWave)
	case s.Duration < 1:
		return fmt.Errorf("%w: match duration must be at least one day, got %d", ErrInvalidSchedule, s.Duration)
	case s.Interval < 0:
		return fmt.Errorf("%w: wave interval must not be negative, got %d", ErrInvalidSchedule, s.Interval)
	case s.StartedOn.IsZero():
		return fmt.Errorf("%w: start date is required", ErrInvalidSchedule)
	}
	return nil
}

// From returns the same calendar shifted to a new base date.
func (s Schedule) From(base time.Time) Schedule {
	s.StartedOn = Day(base)
	return s
}

// Fill pairs entries into new matches of the given group appended to r.
//
// Consecutive entries become left and right of one match; an odd tail gets a
// bye. Nil entries produce placeholder slots that routing fills later. Wave
// numbering continues from the matches r already holds. When shuffle is
// non-nil the entries are shuffled first, the caller's slice is left intact.
func (s Schedule) Fill(r *models.Round, group models.MatchGroup, entries []*models.ParticipantRef, shuffle *rand.Rand) []*models.Match {
	if len(entries) == 0 {
		return nil
	}
	pool := make([]*models.ParticipantRef, len(entries))
	copy(pool, entries)
	if shuffle != nil {
		shuffle.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	}

	existing := len(r.Matches)
	count := (len(pool) + 1) / 2
	total := existing + count

	created := make([]*models.Match, 0, count)
	for i := 0; i < count; i++ {
		m := &models.Match{
			RoundID: r.ID,
			State:   models.StateCreated,
			Group:   group,
			Left:    pool[2*i],
		}
		if 2*i+1 < len(pool) {
			m.Right = pool[2*i+1]
		} else {
			m.Bye = true
		}

		wave := waveOf(existing+i, existing, total, s.PerWave)
		m.StartedOn = s.StartedOn.AddDate(0, 0, wave*s.Interval)
		m.FinishedOn = m.StartedOn.AddDate(0, 0, s.Duration-1)

		resolveBye(m)
		created = append(created, m)
	}
	r.Matches = append(r.Matches, created...)
	return created
}

// waveOf places match index out of total into a wave of size per. A trailing
// wave that would hold a single match is folded into the wave before it, but
// only when that wave's last match comes from the same call: matches already
// in the round (the first existing ones) keep their dates untouched.
func waveOf(index, existing, total, per int) int {
	if per < 1 {
		return 0
	}
	wave := index / per
	if total > per && total%per == 1 && index == total-1 && index-1 >= existing {
		wave--
	}
	return wave
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
