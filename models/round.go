package models

import (
	"strings"
	"time"
)

// Round groups the matches played in one bracket step. Additional rounds are
// loser-bracket catch-up rounds sharing the number of the main round before them.
type Round struct {
	ID         int       `json:"id" db:"id"`
	ContestID  int       `json:"contest_id" db:"contest_id"`
	Number     int       `json:"number" db:"number"`
	Additional bool      `json:"additional" db:"additional"`
	Final      bool      `json:"final" db:"final"`
	State      State     `json:"state" db:"state"`
	Version    int       `json:"-" db:"version"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`

	Matches []*Match `json:"matches" db:"-"`
}

func (r *Round) Created() bool  { return r.State == StateCreated }
func (r *Round) Started() bool  { return r.State == StateStarted }
func (r *Round) Finished() bool { return r.State == StateFinished }

// Title renders the round as a roman numeral, "IIa" for additional rounds.
func (r *Round) Title() string {
	title := roman(r.Number)
	if r.Additional {
		title += "a"
	}
	return title
}

func (r *Round) MatchesOf(group MatchGroup) []*Match {
	var out []*Match
	for _, m := range r.Matches {
		if m.Group == group {
			out = append(out, m)
		}
	}
	return out
}

func roman(n int) string {
	if n <= 0 {
		return "0"
	}
	values := []int{1000, 900, 500, 400, 100, 90, 50, 40, 10, 9, 5, 4, 1}
	symbols := []string{"M", "CM", "D", "CD", "C", "XC", "L", "XL", "X", "IX", "V", "IV", "I"}
	var b strings.Builder
	for i, v := range values {
		for n >= v {
			b.WriteString(symbols[i])
			n -= v
		}
	}
	return b.String()
}
