package models

import "time"

// MatchGroup tags the bracket lineage of a match.
type MatchGroup string

const (
	GroupSeed   MatchGroup = "S"
	GroupWinner MatchGroup = "W"
	GroupLoser  MatchGroup = "L"
	GroupFinal  MatchGroup = "F"
)

func (g MatchGroup) Valid() bool {
	switch g {
	case GroupSeed, GroupWinner, GroupLoser, GroupFinal:
		return true
	}
	return false
}

// Match is a single head-to-head pairing inside a round.
type Match struct {
	ID         int             `json:"id" db:"id"`
	RoundID    int             `json:"round_id" db:"round_id"`
	State      State           `json:"state" db:"state"`
	Group      MatchGroup      `json:"group" db:"group_tag"`
	Left       *ParticipantRef `json:"left,omitempty" db:"-"`
	Right      *ParticipantRef `json:"right,omitempty" db:"-"`
	Winner     *ParticipantRef `json:"winner,omitempty" db:"-"`
	Bye        bool            `json:"bye" db:"bye"`
	StartedOn  time.Time       `json:"started_on" db:"started_on"`
	FinishedOn time.Time       `json:"finished_on" db:"finished_on"`
	Version    int             `json:"-" db:"version"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

func (m *Match) Created() bool  { return m.State == StateCreated }
func (m *Match) Started() bool  { return m.State == StateStarted }
func (m *Match) Finished() bool { return m.State == StateFinished }

// Loser is the side that did not win; nil for byes and undecided matches.
func (m *Match) Loser() *ParticipantRef {
	if m.Winner == nil || m.Bye {
		return nil
	}
	if m.Winner.Same(m.Left) {
		return m.Right
	}
	return m.Left
}
