package brackets

import (
	"fmt"
	"slices"

	"github.com/Dosada05/contest-system/models"
)

// entrant is a participant moving into a later round; walkover marks those
// who got there through a bye.
type entrant struct {
	ref      *models.ParticipantRef
	walkover bool
}

func containsGroup(groups []models.MatchGroup, g models.MatchGroup) bool {
	return slices.Contains(groups, g)
}

// slotCount is how many participants a selection yields once its source round
// is over. It is known at build time since only byes drop out of the loser
// flow and their positions are fixed by the pairing.
func slotCount(c *models.Contest, sel Selection) int {
	if sel.Outcome == OutcomeSeeds {
		return len(c.Members)
	}
	n := 0
	for _, m := range c.Rounds[sel.Round].Matches {
		if !containsGroup(sel.Groups, m.Group) {
			continue
		}
		if sel.Outcome == OutcomeLosers && m.Bye {
			continue
		}
		n++
	}
	return n
}

// collect returns the participants a selection yields from a finished round.
func collect(c *models.Contest, sel Selection) ([]entrant, error) {
	if sel.Outcome == OutcomeSeeds {
		out := make([]entrant, 0, len(c.Members))
		for i := range c.Members {
			out = append(out, entrant{ref: &c.Members[i]})
		}
		return out, nil
	}

	var out []entrant
	for _, m := range c.Rounds[sel.Round].Matches {
		if !containsGroup(sel.Groups, m.Group) {
			continue
		}
		switch sel.Outcome {
		case OutcomeWinners:
			if m.Winner == nil {
				return nil, fmt.Errorf("%w: match %d of round %s has no winner", ErrRoundCannotFinish, m.ID, c.Rounds[sel.Round].Title())
			}
			out = append(out, entrant{ref: m.Winner, walkover: m.Bye})
		case OutcomeLosers:
			if m.Bye {
				continue
			}
			loser := m.Loser()
			if loser == nil {
				return nil, fmt.Errorf("%w: match %d of round %s has no loser", ErrRoundCannotFinish, m.ID, c.Rounds[sel.Round].Title())
			}
			out = append(out, entrant{ref: loser})
		}
	}
	return out, nil
}

// order keeps selection order but moves bye-advanced entrants behind the
// ones that won their match.
func order(pool []entrant) []*models.ParticipantRef {
	slices.SortStableFunc(pool, func(a, b entrant) int {
		switch {
		case a.walkover == b.walkover:
			return 0
		case a.walkover:
			return 1
		default:
			return -1
		}
	})
	refs := make([]*models.ParticipantRef, len(pool))
	for i, e := range pool {
		refs[i] = e.ref
	}
	return refs
}

// sourcesFinished reports whether every selection of a pass can be read.
func sourcesFinished(c *models.Contest, p Pass) bool {
	for _, sel := range p.Sources {
		if sel.Outcome == OutcomeSeeds {
			continue
		}
		if !c.Rounds[sel.Round].Finished() {
			return false
		}
	}
	return true
}

func dependsOn(p Pass, idx int) bool {
	for _, sel := range p.Sources {
		if sel.Outcome != OutcomeSeeds && sel.Round == idx {
			return true
		}
	}
	return false
}

// route moves the outcome of the finished round at idx into every later slot
// that draws from it. Slots already holding participants are left alone so
// that a retried finish routes nobody twice.
func route(c *models.Contest, strategy Strategy, idx int) error {
	for target := idx + 1; target < len(c.Rounds); target++ {
		for _, pass := range strategy.Passes(c.Rounds, target) {
			if !dependsOn(pass, idx) {
				continue
			}
			if err := fillPass(c, target, pass); err != nil {
				return err
			}
		}
	}
	return nil
}

func fillPass(c *models.Contest, target int, pass Pass) error {
	round := c.Rounds[target]
	slots := round.MatchesOf(pass.Group)

	if pass.Split {
		if len(slots) != 1 {
			return fmt.Errorf("%w: round %s expects a single %s match, has %d", ErrDegenerateBracket, round.Title(), pass.Group, len(slots))
		}
		slot := slots[0]
		for side, sel := range pass.Sources {
			if sel.Outcome != OutcomeSeeds && !c.Rounds[sel.Round].Finished() {
				continue
			}
			pool, err := collect(c, sel)
			if err != nil {
				return err
			}
			if len(pool) != 1 {
				return fmt.Errorf("%w: round %s side %d draws %d participants", ErrDegenerateBracket, round.Title(), side, len(pool))
			}
			if side == 0 && slot.Left == nil {
				slot.Left = pool[0].ref
			} else if side == 1 && slot.Right == nil {
				slot.Right = pool[0].ref
			}
		}
		return nil
	}

	if !sourcesFinished(c, pass) {
		return nil
	}
	var pool []entrant
	for _, sel := range pass.Sources {
		got, err := collect(c, sel)
		if err != nil {
			return err
		}
		pool = append(pool, got...)
	}
	if len(slots) != (len(pool)+1)/2 {
		return fmt.Errorf("%w: round %s has %d %s slots for %d participants", ErrDegenerateBracket, round.Title(), len(slots), pass.Group, len(pool))
	}

	refs := order(pool)
	for i, slot := range slots {
		if slot.Left != nil {
			continue
		}
		slot.Left = refs[2*i]
		if 2*i+1 < len(refs) {
			slot.Right = refs[2*i+1]
		}
		resolveBye(slot)
	}
	return nil
}
