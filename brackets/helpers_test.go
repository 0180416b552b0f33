package brackets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Dosada05/contest-system/models"
)

var jan1 = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return jan1.AddDate(0, 0, n)
}

func ref(id int64) *models.ParticipantRef {
	return models.NewParticipantRef(models.MemberAnime, id)
}

func newContest(members int) *models.Contest {
	c := &models.Contest{
		ID:             1,
		Title:          "test contest",
		State:          models.StateCreated,
		StartedOn:      jan1,
		MatchesPerWave: 100,
		MatchDuration:  1,
		WaveInterval:   1,
		Strategy:       StrategyDoubleElimination,
		MemberKind:     models.MemberAnime,
	}
	for i := 1; i <= members; i++ {
		c.Members = append(c.Members, *ref(int64(i)))
	}
	return c
}

func buildContest(t *testing.T, members int) (*Engine, *models.Contest) {
	t.Helper()
	e := NewEngine()
	c := newContest(members)
	require.NoError(t, e.Build(c))
	return e, c
}

// pair renders a match as the ids of its sides, 0 standing for an empty side.
func pair(m *models.Match) [2]int64 {
	var out [2]int64
	if m.Left != nil {
		out[0] = m.Left.ID
	}
	if m.Right != nil {
		out[1] = m.Right.ID
	}
	return out
}

func pairs(ms []*models.Match) [][2]int64 {
	out := make([][2]int64, 0, len(ms))
	for _, m := range ms {
		out = append(out, pair(m))
	}
	return out
}

func titles(rounds []*models.Round) []string {
	out := make([]string, 0, len(rounds))
	for _, r := range rounds {
		out = append(out, r.Title())
	}
	return out
}
