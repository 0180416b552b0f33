package brackets

import "github.com/Dosada05/contest-system/models"

// DoubleEliminationStrategy runs a winner bracket and a loser bracket side by
// side. Every main round from II on is followed by an additional round where
// the loser bracket absorbs the players just dropped from the winner bracket.
type DoubleEliminationStrategy struct{}

func NewDoubleEliminationStrategy() Strategy {
	return &DoubleEliminationStrategy{}
}

func (s *DoubleEliminationStrategy) Name() string {
	return StrategyDoubleElimination
}

func (s *DoubleEliminationStrategy) Plan(members int) ([]RoundPlan, error) {
	if members < 2 {
		return nil, ErrNotEnoughMembers
	}
	k := depth(members)

	plan := []RoundPlan{{Number: 1}}
	for r := 2; r <= k; r++ {
		plan = append(plan,
			RoundPlan{Number: r},
			RoundPlan{Number: r, Additional: true},
		)
	}
	plan = append(plan, RoundPlan{Number: k + 1, Final: true})
	return plan, nil
}

func (s *DoubleEliminationStrategy) Passes(rounds []*models.Round, idx int) []Pass {
	if idx < 0 || idx >= len(rounds) {
		return nil
	}
	round := rounds[idx]

	if idx == 0 {
		return []Pass{seedPass()}
	}

	// the single-round bracket: the only finalists are the two players of round I
	if round.Final && idx == 1 {
		return []Pass{{
			Group:   models.GroupFinal,
			Sources: []Selection{winnersOf(0, models.GroupSeed), losersOf(0, models.GroupSeed)},
			Split:   true,
		}}
	}

	if round.Final {
		main, extra := idx-2, idx-1
		return []Pass{{
			Group:   models.GroupFinal,
			Sources: []Selection{winnersOf(main, models.GroupWinner), winnersOf(extra, models.GroupLoser)},
			Split:   true,
		}}
	}

	if round.Additional {
		main := idx - 1
		return []Pass{{
			Group:   models.GroupLoser,
			Sources: []Selection{winnersOf(main, models.GroupLoser), losersOf(main, models.GroupWinner)},
		}}
	}

	// main round: the previous main round sits two slots back, except for
	// round II which directly follows round I
	prevMain := idx - 2
	if idx == 1 {
		prevMain = 0
	}
	winners := Pass{
		Group:   models.GroupWinner,
		Sources: []Selection{winnersOf(prevMain, models.GroupSeed, models.GroupWinner)},
	}
	losers := Pass{Group: models.GroupLoser}
	if idx == 1 {
		losers.Sources = []Selection{losersOf(0, models.GroupSeed)}
	} else {
		losers.Sources = []Selection{winnersOf(idx-1, models.GroupLoser)}
	}
	return []Pass{winners, losers}
}
