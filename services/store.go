package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/contest-system/models"
	"github.com/Dosada05/contest-system/repositories"
)

// contestStore reads and writes a contest together with its members, rounds
// and matches. The contest row version guards the whole aggregate.
type contestStore struct {
	contests repositories.ContestRepository
	members  repositories.MemberRepository
	rounds   repositories.RoundRepository
	matches  repositories.MatchRepository
}

func (s *contestStore) load(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Contest, error) {
	c, err := s.contests.GetByID(ctx, exec, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if c.Members, err = s.members.ListByContest(ctx, exec, id); err != nil {
		return nil, err
	}
	rounds, err := s.rounds.ListByContest(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	matches, err := s.matches.ListByContest(ctx, exec, id)
	if err != nil {
		return nil, err
	}
	return assemble(c, rounds, matches), nil
}

// loadConcurrently is the read-only variant: the three child lists come from
// the pool in parallel.
func (s *contestStore) loadConcurrently(ctx context.Context, id int) (*models.Contest, error) {
	c, err := s.contests.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapRepoError(err)
	}

	var (
		rounds  []*models.Round
		matches []*models.Match
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		members, err := s.members.ListByContest(gCtx, nil, id)
		c.Members = members
		return err
	})
	g.Go(func() error {
		var err error
		rounds, err = s.rounds.ListByContest(gCtx, nil, id)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.matches.ListByContest(gCtx, nil, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load bracket of contest %d: %w", id, err)
	}
	return assemble(c, rounds, matches), nil
}

func assemble(c *models.Contest, rounds []*models.Round, matches []*models.Match) *models.Contest {
	byID := make(map[int]*models.Round, len(rounds))
	for _, r := range rounds {
		byID[r.ID] = r
	}
	for _, m := range matches {
		if r, ok := byID[m.RoundID]; ok {
			r.Matches = append(r.Matches, m)
		}
	}
	c.Rounds = rounds
	return c
}

// insertLayout persists freshly built rounds and matches.
func (s *contestStore) insertLayout(ctx context.Context, exec repositories.SQLExecutor, c *models.Contest) error {
	for i, r := range c.Rounds {
		r.ContestID = c.ID
		if err := s.rounds.Create(ctx, exec, r, i); err != nil {
			return fmt.Errorf("failed to save round %s: %w", r.Title(), err)
		}
		for j, m := range r.Matches {
			m.RoundID = r.ID
			if err := s.matches.Create(ctx, exec, m, j); err != nil {
				return fmt.Errorf("failed to save match %d of round %s: %w", j, r.Title(), err)
			}
		}
	}
	return nil
}

// snapshot remembers the mutable part of every round and match so that only
// rows the engine touched get written back.
type snapshot struct {
	rounds  map[int]models.State
	matches map[int]string
}

func matchFingerprint(m *models.Match) string {
	return fmt.Sprintf("%s|%s|%s|%s", m.State, m.Left, m.Right, m.Winner)
}

func takeSnapshot(c *models.Contest) snapshot {
	s := snapshot{rounds: map[int]models.State{}, matches: map[int]string{}}
	for _, r := range c.Rounds {
		s.rounds[r.ID] = r.State
		for _, m := range r.Matches {
			s.matches[m.ID] = matchFingerprint(m)
		}
	}
	return s
}

// save writes the contest row (bumping the aggregate version) and every round
// and match that differs from the snapshot.
func (s *contestStore) save(ctx context.Context, exec repositories.SQLExecutor, c *models.Contest, before snapshot) error {
	if err := s.contests.Update(ctx, exec, c); err != nil {
		return mapRepoError(err)
	}
	for _, r := range c.Rounds {
		if before.rounds[r.ID] != r.State {
			if err := s.rounds.Update(ctx, exec, r); err != nil {
				return mapRepoError(err)
			}
		}
		for _, m := range r.Matches {
			if before.matches[m.ID] != matchFingerprint(m) {
				if err := s.matches.Update(ctx, exec, m); err != nil {
					return mapRepoError(err)
				}
			}
		}
	}
	return nil
}

func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrVersionConflict):
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	case errors.Is(err, repositories.ErrContestNotFound):
		return ErrContestNotFound
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, repositories.ErrContestTitleConflict):
		return ErrContestTitleTaken
	case errors.Is(err, repositories.ErrMemberDuplicate):
		return ErrDuplicateMember
	}
	return err
}
