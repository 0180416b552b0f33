package brackets

import (
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/contest-system/models"
)

func TestDoubleEliminationPlan(t *testing.T) {
	tests := []struct {
		members int
		want    []RoundPlan
	}{
		{2, []RoundPlan{{Number: 1}, {Number: 2, Final: true}}},
		{3, []RoundPlan{{Number: 1}, {Number: 2}, {Number: 2, Additional: true}, {Number: 3, Final: true}}},
		{5, []RoundPlan{
			{Number: 1},
			{Number: 2}, {Number: 2, Additional: true},
			{Number: 3}, {Number: 3, Additional: true},
			{Number: 4, Final: true},
		}},
	}
	s := NewDoubleEliminationStrategy()
	for _, tt := range tests {
		got, err := s.Plan(tt.members)
		require.NoError(t, err)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("plan for %d members (-want +got):\n%s", tt.members, diff)
		}
	}

	for _, n := range []int{0, 1} {
		_, err := s.Plan(n)
		assert.ErrorIs(t, err, ErrNotEnoughMembers)
	}
}

func TestStrategyForUnknownName(t *testing.T) {
	_, err := StrategyFor("swiss")
	assert.ErrorIs(t, err, ErrUnsupportedStrategy)
}

func TestBuildFiveMembers(t *testing.T) {
	_, c := buildContest(t, 5)

	require.Equal(t, []string{"I", "II", "IIa", "III", "IIIa", "IV"}, titles(c.Rounds))

	counts := make([]int, 0, len(c.Rounds))
	for _, r := range c.Rounds {
		counts = append(counts, len(r.Matches))
	}
	assert.Equal(t, []int{3, 3, 1, 2, 1, 1}, counts)

	first := c.Rounds[0]
	assert.Equal(t, [][2]int64{{1, 2}, {3, 4}, {5, 0}}, pairs(first.Matches))
	assert.True(t, first.Matches[2].Bye)
	assert.True(t, first.Matches[2].Finished())

	final := c.Rounds[len(c.Rounds)-1]
	assert.True(t, final.Final)
	assert.Equal(t, models.GroupFinal, final.Matches[0].Group)
	assert.False(t, final.Matches[0].Bye)
}

func TestNavigationFiveMembers(t *testing.T) {
	_, c := buildContest(t, 5)

	for i, r := range c.Rounds {
		assert.Equal(t, i == 0, c.IsFirst(r), "first? for %s", r.Title())
		assert.Equal(t, i == len(c.Rounds)-1, c.IsLast(r), "last? for %s", r.Title())

		if i == 0 {
			assert.Nil(t, c.PriorRound(r))
		} else {
			assert.Same(t, c.Rounds[i-1], c.PriorRound(r))
			assert.Same(t, r, c.NextRound(c.PriorRound(r)))
		}
		if i == len(c.Rounds)-1 {
			assert.Nil(t, c.NextRound(r))
		} else {
			assert.Same(t, c.Rounds[i+1], c.NextRound(r))
		}
	}
}

// Votes are never cast, so every match goes to its left side.
func TestFiveMemberBracketTrace(t *testing.T) {
	e, c := buildContest(t, 5)
	rounds := c.Rounds

	moved, err := e.Advance(c, day(0))
	require.NoError(t, err)
	assert.True(t, moved)
	assert.True(t, c.Started())
	assert.True(t, rounds[0].Started())

	steps := []struct {
		today int
		round int
		w, l  [][2]int64
	}{
		{1, 1, [][2]int64{{1, 3}, {5, 0}}, [][2]int64{{2, 4}}},
		{2, 2, nil, [][2]int64{{2, 3}}},
		{3, 3, [][2]int64{{1, 5}}, [][2]int64{{2, 0}}},
		{4, 4, nil, [][2]int64{{5, 2}}},
	}
	for _, step := range steps {
		moved, err := e.Advance(c, day(step.today))
		require.NoError(t, err)
		assert.True(t, moved)

		r := rounds[step.round]
		assert.Same(t, r, c.CurrentRound(), "day %d", step.today)
		assert.True(t, r.Started(), "round %s", r.Title())
		assert.Equal(t, step.w, nilIfEmpty(pairs(r.MatchesOf(models.GroupWinner))), "round %s W", r.Title())
		assert.Equal(t, step.l, nilIfEmpty(pairs(r.MatchesOf(models.GroupLoser))), "round %s L", r.Title())
	}

	moved, err = e.Advance(c, day(5))
	require.NoError(t, err)
	assert.True(t, moved)
	final := rounds[5]
	assert.Equal(t, [][2]int64{{1, 5}}, pairs(final.Matches))
	assert.True(t, final.Matches[0].Started())

	moved, err = e.Advance(c, day(6))
	require.NoError(t, err)
	assert.True(t, moved)
	assert.True(t, c.Finished())
	require.NotNil(t, c.FinishedOn)
	assert.Equal(t, day(6), *c.FinishedOn)
	assert.True(t, c.Champion().Same(ref(1)))
	for _, r := range rounds {
		assert.True(t, r.Finished(), "round %s", r.Title())
	}

	moved, err = e.Advance(c, day(7))
	require.NoError(t, err)
	assert.False(t, moved)
}

func nilIfEmpty(p [][2]int64) [][2]int64 {
	if len(p) == 0 {
		return nil
	}
	return p
}

func TestBuildConvergesForManySizes(t *testing.T) {
	for _, strategy := range []string{StrategyDoubleElimination, StrategySingleElimination} {
		for n := 2; n <= 40; n++ {
			e := NewEngine()
			c := newContest(n)
			c.Strategy = strategy
			require.NoError(t, e.Build(c), "%s with %d members", strategy, n)

			for day := 0; !c.Finished() && day < 200; day++ {
				_, err := e.Advance(c, jan1.AddDate(0, 0, day))
				require.NoError(t, err, "%s with %d members on day %d", strategy, n, day)
			}
			require.True(t, c.Finished(), "%s with %d members never finished", strategy, n)
			assert.True(t, c.Champion().Same(ref(1)), "%s with %d members", strategy, n)
		}
	}
}

func TestBuildRejectsRebuildAndBadInput(t *testing.T) {
	e, c := buildContest(t, 4)
	assert.ErrorIs(t, e.Build(c), ErrAlreadyBuilt)

	single := newContest(1)
	assert.ErrorIs(t, e.Build(single), ErrNotEnoughMembers)
	assert.Empty(t, single.Rounds)

	unknown := newContest(4)
	unknown.Strategy = "round_robin"
	assert.ErrorIs(t, e.Build(unknown), ErrUnsupportedStrategy)

	badSchedule := newContest(4)
	badSchedule.MatchesPerWave = 0
	assert.ErrorIs(t, e.Build(badSchedule), ErrInvalidSchedule)
}

func TestNineteenMembersSpreadOverThreeDays(t *testing.T) {
	c := newContest(19)
	c.MatchesPerWave = 3
	c.MatchDuration = 2
	c.WaveInterval = 1
	require.NoError(t, NewEngine().Build(c))

	distinct := func(r *models.Round) []int {
		seen := map[int]bool{}
		var out []int
		for _, m := range r.Matches {
			d := int(m.StartedOn.Sub(jan1).Hours() / 24)
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
		return out
	}

	first, second := c.Rounds[0], c.Rounds[1]
	assert.Equal(t, []int{0, 1, 2}, distinct(first))
	assert.Len(t, distinct(second), 3)

	last := first.Matches[len(first.Matches)-1]
	assert.Equal(t, last.FinishedOn.AddDate(0, 0, c.WaveInterval), second.Matches[0].StartedOn)
}

func TestShuffledBuildsShareOneEngine(t *testing.T) {
	e := NewEngine()
	var wg sync.WaitGroup
	errs := make(chan error, 8*50)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				c := newContest(16)
				c.Shuffle = true
				errs <- e.Build(c)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestWithRandRepeatsShuffledSeeding(t *testing.T) {
	seeding := func() [][2]int64 {
		e := NewEngine(WithRand(rand.New(rand.NewPCG(7, 11))))
		c := newContest(16)
		c.Shuffle = true
		require.NoError(t, e.Build(c))
		return pairs(c.Rounds[0].Matches)
	}

	first := seeding()
	assert.Equal(t, first, seeding())

	ordered := newContest(16)
	require.NoError(t, NewEngine().Build(ordered))
	assert.Len(t, first, len(ordered.Rounds[0].Matches))
}
