package services

import "github.com/Dosada05/contest-system/models"

type RoundView struct {
	Title string `json:"title"`
	*models.Round
}

// BracketView is the read model served to clients, cached and archived.
type BracketView struct {
	*models.Contest
	Rounds       []RoundView            `json:"rounds"`
	CurrentRound string                 `json:"current_round,omitempty"`
	Champion     *models.ParticipantRef `json:"champion,omitempty"`
}

func NewBracketView(c *models.Contest) *BracketView {
	v := &BracketView{
		Contest:  c,
		Rounds:   make([]RoundView, 0, len(c.Rounds)),
		Champion: c.Champion(),
	}
	for _, r := range c.Rounds {
		v.Rounds = append(v.Rounds, RoundView{Title: r.Title(), Round: r})
	}
	if c.Started() {
		if current := c.CurrentRound(); current != nil {
			v.CurrentRound = current.Title()
		}
	}
	return v
}
