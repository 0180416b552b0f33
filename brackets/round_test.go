package brackets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/contest-system/models"
)

func TestRoundGating(t *testing.T) {
	e := NewEngine()
	c := newContest(4)
	c.MatchesPerWave = 1
	c.MatchDuration = 2

	empty := &models.Round{Number: 1, State: models.StateCreated}
	c.Rounds = []*models.Round{empty}
	assert.False(t, CanStartRound(empty))
	_, err := e.StartRound(c, empty, day(0))
	assert.ErrorIs(t, err, ErrRoundCannotStart)
	assert.False(t, e.CanFinishRound(empty, day(10)))

	_, err = e.TakeMatches(c, empty)
	require.NoError(t, err)
	require.Len(t, empty.Matches, 2)
	assert.True(t, CanStartRound(empty))

	// second wave opens a day later
	assert.Equal(t, day(1), empty.Matches[1].StartedOn)

	moved, err := e.StartRound(c, empty, day(0))
	require.NoError(t, err)
	assert.True(t, moved)
	assert.True(t, empty.Started())
	assert.True(t, empty.Matches[0].Started())
	assert.True(t, empty.Matches[1].Created())

	moved, err = e.StartRound(c, empty, day(0))
	require.NoError(t, err)
	assert.False(t, moved, "nothing new is due")

	moved, err = e.StartRound(c, empty, day(1))
	require.NoError(t, err)
	assert.True(t, moved)
	assert.True(t, empty.Matches[1].Started())

	assert.False(t, e.CanFinishRound(empty, day(2)), "second wave still open")
	_, err = e.FinishRound(c, empty, day(2))
	assert.ErrorIs(t, err, ErrRoundCannotFinish)

	assert.True(t, e.CanFinishRound(empty, day(3)))
}

func TestCanFinishRoundWithRecordedOutcomes(t *testing.T) {
	e, c := buildContest(t, 4)
	_, err := e.StartContest(c, day(0))
	require.NoError(t, err)

	first := c.Rounds[0]
	assert.False(t, e.CanFinishRound(first, day(0)))

	for _, m := range first.Matches {
		require.NoError(t, RecordWinner(m, m.Right))
	}
	assert.True(t, e.CanFinishRound(first, day(0)), "finished matches need no closing")

	moved, err := e.FinishRound(c, first, day(0))
	require.NoError(t, err)
	assert.True(t, moved)
	assert.True(t, first.Finished())

	second := c.Rounds[1]
	assert.True(t, second.Started(), "finishing a round starts the next one")
	assert.Equal(t, [][2]int64{{2, 4}}, pairs(second.MatchesOf(models.GroupWinner)))
	assert.Equal(t, [][2]int64{{1, 3}}, pairs(second.MatchesOf(models.GroupLoser)))

	moved, err = e.FinishRound(c, first, day(0))
	require.NoError(t, err)
	assert.False(t, moved, "finishing twice is a no-op")
	assert.Equal(t, [][2]int64{{2, 4}}, pairs(second.MatchesOf(models.GroupWinner)))
}

func TestFinishRoundOutOfOrder(t *testing.T) {
	e, c := buildContest(t, 4)
	_, err := e.StartContest(c, day(0))
	require.NoError(t, err)

	_, err = e.FinishRound(c, c.Rounds[2], day(30))
	assert.ErrorIs(t, err, ErrRoundCannotFinish)
}

func TestFinishingLastRoundFinishesContest(t *testing.T) {
	e, c := buildContest(t, 2)
	require.Len(t, c.Rounds, 2)

	_, err := e.StartContest(c, day(0))
	require.NoError(t, err)
	_, err = e.FinishRound(c, c.Rounds[0], day(1))
	require.NoError(t, err)

	final := c.Rounds[1]
	assert.Equal(t, [][2]int64{{1, 2}}, pairs(final.Matches), "winner left, loser right")
	assert.False(t, c.Finished())

	finishedOn := day(5)
	_, err = e.FinishRound(c, final, finishedOn)
	require.NoError(t, err)
	assert.True(t, c.Finished())
	assert.Equal(t, finishedOn, *c.FinishedOn)
}

func TestStartContest(t *testing.T) {
	e := NewEngine()
	c := newContest(4)

	_, err := e.StartContest(c, day(0))
	assert.ErrorIs(t, err, ErrNotBuilt)

	require.NoError(t, e.Build(c))
	moved, err := e.StartContest(c, day(0))
	require.NoError(t, err)
	assert.True(t, moved)
	assert.True(t, c.Started())
	assert.Same(t, c.Rounds[0], c.CurrentRound())

	moved, err = e.StartContest(c, day(0))
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestAdvanceWaitsForStartDate(t *testing.T) {
	e, c := buildContest(t, 4)
	c.StartedOn = day(3)

	moved, err := e.Advance(c, day(1))
	require.NoError(t, err)
	assert.False(t, moved)
	assert.True(t, c.Created())
}

type alwaysRight struct{}

func (alwaysRight) CanClose(*models.Match, time.Time) bool { return true }

func (alwaysRight) Winner(m *models.Match) *models.ParticipantRef { return m.Right }

func TestCustomJudge(t *testing.T) {
	e := NewEngine(WithJudge(alwaysRight{}))
	c := newContest(4)
	require.NoError(t, e.Build(c))

	_, err := e.StartContest(c, day(0))
	require.NoError(t, err)
	assert.True(t, e.CanFinishRound(c.Rounds[0], day(0)))

	_, err = e.FinishRound(c, c.Rounds[0], day(0))
	require.NoError(t, err)
	for _, m := range c.Rounds[0].Matches {
		assert.True(t, m.Winner.Same(m.Right))
	}
}
