package brackets

import (
	"errors"
	"fmt"
	"math"

	"github.com/Dosada05/contest-system/models"
)

var (
	ErrUnsupportedStrategy = errors.New("unsupported bracket strategy")
	ErrNotEnoughMembers    = errors.New("not enough members to build a bracket (minimum 2)")
	ErrDegenerateBracket   = errors.New("bracket does not converge to a single final")
)

// Outcome selects which side of finished matches feeds a pass.
type Outcome int

const (
	OutcomeSeeds Outcome = iota
	OutcomeWinners
	OutcomeLosers
)

// Selection is one input of a pass: the winners or losers of the given
// groups of an earlier round, or the contest's member list.
type Selection struct {
	Round   int
	Outcome Outcome
	Groups  []models.MatchGroup
}

// Pass is one pairing pass of a round. A split pass has exactly one match and
// each of its selections fills one side of it (left, then right).
type Pass struct {
	Group   models.MatchGroup
	Sources []Selection
	Split   bool
}

// RoundPlan describes a round before any match exists.
type RoundPlan struct {
	Number     int
	Additional bool
	Final      bool
}

// Strategy defines the round layout of a bracket and how participants flow
// between its rounds.
type Strategy interface {
	Name() string

	// Plan is computed once, when the contest is built.
	Plan(members int) ([]RoundPlan, error)

	// Passes describes where the matches of rounds[idx] take participants from.
	// It only looks at the persisted round layout.
	Passes(rounds []*models.Round, idx int) []Pass
}

const (
	StrategyDoubleElimination = "double_elimination"
	StrategySingleElimination = "single_elimination"
)

func StrategyFor(name string) (Strategy, error) {
	switch name {
	case StrategyDoubleElimination:
		return NewDoubleEliminationStrategy(), nil
	case StrategySingleElimination:
		return NewSingleEliminationStrategy(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, name)
	}
}

// depth is the number of halvings needed to get from n members to one.
func depth(n int) int {
	return int(math.Ceil(math.Log2(float64(n))))
}

func seedPass() Pass {
	return Pass{Group: models.GroupSeed, Sources: []Selection{{Outcome: OutcomeSeeds}}}
}

func winnersOf(idx int, groups ...models.MatchGroup) Selection {
	return Selection{Round: idx, Outcome: OutcomeWinners, Groups: groups}
}

func losersOf(idx int, groups ...models.MatchGroup) Selection {
	return Selection{Round: idx, Outcome: OutcomeLosers, Groups: groups}
}
