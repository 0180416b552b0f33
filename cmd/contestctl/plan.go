package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/Dosada05/contest-system/brackets"
	"github.com/Dosada05/contest-system/models"
)

type planOptions struct {
	Members   int
	Strategy  string
	PerWave   int
	Duration  int
	Interval  int
	StartedOn time.Time
}

// previewContest lays out a throwaway contest so operators can see the
// round structure before seeding a real one.
func previewContest(opts planOptions) (*models.Contest, error) {
	c := &models.Contest{
		Title:          "preview",
		State:          models.StateCreated,
		StartedOn:      brackets.Day(opts.StartedOn),
		MatchesPerWave: opts.PerWave,
		MatchDuration:  opts.Duration,
		WaveInterval:   opts.Interval,
		Strategy:       opts.Strategy,
		MemberKind:     models.MemberAnime,
	}
	for i := 1; i <= opts.Members; i++ {
		c.Members = append(c.Members, *models.NewParticipantRef(models.MemberAnime, int64(i)))
	}
	if err := brackets.NewEngine().Build(c); err != nil {
		return nil, err
	}
	return c, nil
}

func printPlan(w io.Writer, c *models.Contest) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROUND\tSEED\tWINNERS\tLOSERS\tFINAL\tBYES\tFIRST WAVE")
	for _, r := range c.Rounds {
		byes := 0
		for _, m := range r.Matches {
			if m.Bye {
				byes++
			}
		}
		firstWave := "-"
		if len(r.Matches) > 0 && !r.Matches[0].StartedOn.IsZero() {
			firstWave = r.Matches[0].StartedOn.Format(time.DateOnly)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Title(),
			len(r.MatchesOf(models.GroupSeed)),
			len(r.MatchesOf(models.GroupWinner)),
			len(r.MatchesOf(models.GroupLoser)),
			len(r.MatchesOf(models.GroupFinal)),
			byes,
			firstWave,
		)
	}
	return tw.Flush()
}
