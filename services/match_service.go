package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/contest-system/brackets"
	"github.com/Dosada05/contest-system/models"
)

// MatchService is the outcome intake used by the external vote tally.
type MatchService interface {
	RecordWinner(ctx context.Context, matchID int, winner models.ParticipantRef) (*models.Match, error)
}

type matchService struct {
	*bracketWriter
}

func NewMatchService(d Deps) MatchService {
	return &matchService{bracketWriter: newBracketWriter(d)}
}

// RecordWinner finishes a started match with the tallied winner. Its round is
// closed by the next advance.
func (s *matchService) RecordWinner(ctx context.Context, matchID int, winner models.ParticipantRef) (*models.Match, error) {
	contestID, err := s.store.matches.ContestIDOf(ctx, nil, matchID)
	if err != nil {
		return nil, mapRepoError(err)
	}

	var recorded *models.Match
	_, _, err = s.mutate(ctx, contestID, opOutcome, nil, func(c *models.Contest) (bool, error) {
		_, m := c.FindMatch(matchID)
		if m == nil {
			return false, ErrMatchNotFound
		}
		if err := brackets.RecordWinner(m, &winner); err != nil {
			return false, err
		}
		recorded = m
		return true, nil
	})

	if s.metrics != nil {
		s.metrics.Outcomes.WithLabelValues(outcomeResult(err)).Inc()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to record winner of match %d: %w", matchID, err)
	}
	s.logger.Info("match winner recorded",
		slog.Int("contest_id", contestID),
		slog.Int("match_id", matchID),
		slog.String("winner", winner.String()),
	)
	return recorded, nil
}

func outcomeResult(err error) string {
	switch {
	case err == nil:
		return "recorded"
	case errors.Is(err, brackets.ErrMatchNotOpen), errors.Is(err, brackets.ErrInvalidWinner):
		return "rejected"
	case errors.Is(err, ErrConcurrentUpdate):
		return "conflict"
	}
	return "failed"
}
