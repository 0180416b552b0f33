package models

import "time"

// Contest is an elimination tournament between members of one kind.
type Contest struct {
	ID                 int        `json:"id" db:"id"`
	Title              string     `json:"title" db:"title"`
	Description        *string    `json:"description,omitempty" db:"description"`
	State              State      `json:"state" db:"state"`
	StartedOn          time.Time  `json:"started_on" db:"started_on"`
	FinishedOn         *time.Time `json:"finished_on,omitempty" db:"finished_on"`
	MatchesPerWave     int        `json:"matches_per_wave" db:"matches_per_round"`
	MatchDuration      int        `json:"match_duration" db:"match_duration"`
	WaveInterval       int        `json:"wave_interval" db:"matches_interval"`
	SuggestionsPerUser int        `json:"suggestions_per_user" db:"suggestions_per_user"`
	Strategy           string     `json:"strategy" db:"strategy_type"`
	MemberKind         MemberKind `json:"member_kind" db:"member_type"`
	Shuffle            bool       `json:"shuffle" db:"shuffle"`
	Version            int        `json:"-" db:"version"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`

	Members []ParticipantRef `json:"members,omitempty" db:"-"`
	Rounds  []*Round         `json:"rounds,omitempty" db:"-"`
}

func (c *Contest) Created() bool  { return c.State == StateCreated }
func (c *Contest) Started() bool  { return c.State == StateStarted }
func (c *Contest) Finished() bool { return c.State == StateFinished }

func (c *Contest) indexOf(r *Round) int {
	for i, candidate := range c.Rounds {
		if candidate == r {
			return i
		}
	}
	return -1
}

// PriorRound is the round before r in contest order, nil for the first one.
func (c *Contest) PriorRound(r *Round) *Round {
	i := c.indexOf(r)
	if i <= 0 {
		return nil
	}
	return c.Rounds[i-1]
}

// NextRound is the round after r in contest order, nil for the final.
func (c *Contest) NextRound(r *Round) *Round {
	i := c.indexOf(r)
	if i < 0 || i+1 >= len(c.Rounds) {
		return nil
	}
	return c.Rounds[i+1]
}

func (c *Contest) IsFirst(r *Round) bool {
	return len(c.Rounds) > 0 && c.Rounds[0] == r
}

func (c *Contest) IsLast(r *Round) bool {
	return len(c.Rounds) > 0 && c.Rounds[len(c.Rounds)-1] == r
}

// CurrentRound is the first round that is not finished yet.
func (c *Contest) CurrentRound() *Round {
	for _, r := range c.Rounds {
		if !r.Finished() {
			return r
		}
	}
	return nil
}

func (c *Contest) FindMatch(id int) (*Round, *Match) {
	for _, r := range c.Rounds {
		for _, m := range r.Matches {
			if m.ID == id {
				return r, m
			}
		}
	}
	return nil, nil
}

// Champion is the final's winner once the contest is finished.
func (c *Contest) Champion() *ParticipantRef {
	if !c.Finished() || len(c.Rounds) == 0 {
		return nil
	}
	final := c.Rounds[len(c.Rounds)-1]
	if len(final.Matches) == 0 {
		return nil
	}
	return final.Matches[0].Winner
}
