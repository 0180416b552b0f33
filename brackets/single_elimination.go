package brackets

import "github.com/Dosada05/contest-system/models"

// SingleEliminationStrategy halves the field every round; one loss ends a run.
type SingleEliminationStrategy struct{}

func NewSingleEliminationStrategy() Strategy {
	return &SingleEliminationStrategy{}
}

func (s *SingleEliminationStrategy) Name() string {
	return StrategySingleElimination
}

func (s *SingleEliminationStrategy) Plan(members int) ([]RoundPlan, error) {
	if members < 2 {
		return nil, ErrNotEnoughMembers
	}
	numRounds := depth(members)

	plan := make([]RoundPlan, 0, numRounds)
	for r := 1; r <= numRounds; r++ {
		plan = append(plan, RoundPlan{Number: r, Final: r == numRounds})
	}
	return plan, nil
}

func (s *SingleEliminationStrategy) Passes(rounds []*models.Round, idx int) []Pass {
	if idx < 0 || idx >= len(rounds) {
		return nil
	}
	if idx == 0 {
		return []Pass{seedPass()}
	}

	group := models.GroupWinner
	if rounds[idx].Final {
		group = models.GroupFinal
	}
	return []Pass{{
		Group:   group,
		Sources: []Selection{winnersOf(idx-1, models.GroupSeed, models.GroupWinner)},
	}}
}
