package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/contest-system/brackets"
	"github.com/Dosada05/contest-system/models"
	"github.com/Dosada05/contest-system/repositories"
)

const (
	opBuild   = "build"
	opStart   = "start"
	opAdvance = "advance"
	opOutcome = "outcome"
)

const defaultTickParallelism = 4

type CreateContestInput struct {
	Title              string                  `json:"title" yaml:"title"`
	Description        *string                 `json:"description,omitempty" yaml:"description"`
	StartedOn          time.Time               `json:"started_on" yaml:"started_on"`
	MatchesPerWave     int                     `json:"matches_per_wave" yaml:"matches_per_wave"`
	MatchDuration      int                     `json:"match_duration" yaml:"match_duration"`
	WaveInterval       int                     `json:"wave_interval" yaml:"wave_interval"`
	SuggestionsPerUser int                     `json:"suggestions_per_user" yaml:"suggestions_per_user"`
	Strategy           string                  `json:"strategy" yaml:"strategy"`
	MemberKind         models.MemberKind       `json:"member_kind" yaml:"member_kind"`
	Shuffle            bool                    `json:"shuffle" yaml:"shuffle"`
	Members            []models.ParticipantRef `json:"members" yaml:"-"`
	// Build lays the bracket out right away instead of on the first start.
	Build bool `json:"build" yaml:"build"`
}

// TickReport summarizes one pass of the periodic driver.
type TickReport struct {
	RunID     string `json:"run_id"`
	Visited   int    `json:"visited"`
	Advanced  int    `json:"advanced"`
	Conflicts int    `json:"conflicts"`
	Failed    int    `json:"failed"`
}

type ContestService interface {
	CreateContest(ctx context.Context, input CreateContestInput) (*models.Contest, error)
	BuildContest(ctx context.Context, id int) (*models.Contest, error)
	StartContest(ctx context.Context, id int, today time.Time) (bool, error)
	AdvanceContest(ctx context.Context, id int, today time.Time) (bool, error)
	GetContest(ctx context.Context, id int) (*models.Contest, error)
	GetBracketView(ctx context.Context, id int) ([]byte, error)
	ListContests(ctx context.Context, state *models.State) ([]*models.Contest, error)
	CurrentRound(ctx context.Context, id int) (*RoundView, error)
	Tick(ctx context.Context, today time.Time) (*TickReport, error)
}

type contestService struct {
	*bracketWriter
	parallelism int
}

func NewContestService(d Deps) ContestService {
	parallelism := d.TickParallelism
	if parallelism <= 0 {
		parallelism = defaultTickParallelism
	}
	return &contestService{
		bracketWriter: newBracketWriter(d),
		parallelism:   parallelism,
	}
}

func validateContestInput(input *CreateContestInput) error {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidationFailed)
	}
	if input.StartedOn.IsZero() {
		return fmt.Errorf("%w: started_on is required", ErrValidationFailed)
	}
	input.StartedOn = brackets.Day(input.StartedOn)
	if !input.MemberKind.Valid() {
		return fmt.Errorf("%w: unknown member kind %q", ErrValidationFailed, input.MemberKind)
	}
	if input.Strategy == "" {
		input.Strategy = brackets.StrategyDoubleElimination
	}
	if _, err := brackets.StrategyFor(input.Strategy); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	if input.SuggestionsPerUser < 0 {
		return fmt.Errorf("%w: suggestions_per_user must not be negative", ErrValidationFailed)
	}
	schedule := brackets.Schedule{
		StartedOn: input.StartedOn,
		PerWave:   input.MatchesPerWave,
		Duration:  input.MatchDuration,
		Interval:  input.WaveInterval,
	}
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	if len(input.Members) < 2 {
		return fmt.Errorf("%w: %v", ErrValidationFailed, brackets.ErrNotEnoughMembers)
	}
	seen := make(map[models.ParticipantRef]struct{}, len(input.Members))
	for _, m := range input.Members {
		if m.Kind != input.MemberKind {
			return fmt.Errorf("%w: %s in a %s contest", ErrMemberKindMismatch, m.String(), input.MemberKind)
		}
		if _, dup := seen[m]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateMember, m.String())
		}
		seen[m] = struct{}{}
	}
	return nil
}

func (s *contestService) CreateContest(ctx context.Context, input CreateContestInput) (*models.Contest, error) {
	if err := validateContestInput(&input); err != nil {
		return nil, err
	}
	contest := &models.Contest{
		Title:              input.Title,
		Description:        input.Description,
		State:              models.StateCreated,
		StartedOn:          input.StartedOn,
		MatchesPerWave:     input.MatchesPerWave,
		MatchDuration:      input.MatchDuration,
		WaveInterval:       input.WaveInterval,
		SuggestionsPerUser: input.SuggestionsPerUser,
		Strategy:           input.Strategy,
		MemberKind:         input.MemberKind,
		Shuffle:            input.Shuffle,
		Members:            input.Members,
	}

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.store.contests.Create(ctx, exec, contest); err != nil {
			return mapRepoError(err)
		}
		if err := s.store.members.CreateBatch(ctx, exec, contest.ID, contest.Members); err != nil {
			return mapRepoError(err)
		}
		if !input.Build {
			return nil
		}
		if err := s.engine.Build(contest); err != nil {
			return err
		}
		return s.store.insertLayout(ctx, exec, contest)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("contest created",
		slog.Int("contest_id", contest.ID),
		slog.String("title", contest.Title),
		slog.Int("members", len(contest.Members)),
		slog.Bool("built", len(contest.Rounds) > 0),
	)
	return contest, nil
}

func (s *contestService) BuildContest(ctx context.Context, id int) (*models.Contest, error) {
	var contest *models.Contest
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		c, err := s.store.load(ctx, exec, id)
		if err != nil {
			return err
		}
		if err := s.engine.Build(c); err != nil {
			return err
		}
		if err := s.store.insertLayout(ctx, exec, c); err != nil {
			return err
		}
		// Bumps the aggregate version so a concurrent build of the same
		// contest fails instead of doubling the layout.
		if err := s.store.contests.Update(ctx, exec, c); err != nil {
			return mapRepoError(err)
		}
		contest = c
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrConcurrentUpdate) && s.metrics != nil {
			s.metrics.Conflicts.Inc()
		}
		return nil, err
	}
	s.published(ctx, contest, opBuild, contest.State)
	return contest, nil
}

// StartContest builds the bracket if needed and opens the first round.
func (s *contestService) StartContest(ctx context.Context, id int, today time.Time) (bool, error) {
	_, moved, err := s.mutate(ctx, id, opStart, buildAlways, func(c *models.Contest) (bool, error) {
		return s.engine.StartContest(c, today)
	})
	return moved, err
}

func (s *contestService) AdvanceContest(ctx context.Context, id int, today time.Time) (bool, error) {
	_, moved, err := s.mutate(ctx, id, opAdvance, buildWhenDue(today), func(c *models.Contest) (bool, error) {
		return s.engine.Advance(c, today)
	})
	return moved, err
}

func (s *contestService) GetContest(ctx context.Context, id int) (*models.Contest, error) {
	return s.store.loadConcurrently(ctx, id)
}

// GetBracketView renders the contest as JSON, going through the view cache
// when one is configured. Cache failures only cost a reload.
func (s *contestService) GetBracketView(ctx context.Context, id int) ([]byte, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.Warn("bracket cache read failed", slog.Int("contest_id", id), slog.Any("error", err))
		} else if cached != nil {
			return cached, nil
		}
	}

	c, err := s.store.loadConcurrently(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(NewBracketView(c))
	if err != nil {
		return nil, fmt.Errorf("failed to encode bracket of contest %d: %w", id, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, id, data); err != nil {
			s.logger.Warn("bracket cache write failed", slog.Int("contest_id", id), slog.Any("error", err))
		}
	}
	return data, nil
}

func (s *contestService) ListContests(ctx context.Context, state *models.State) ([]*models.Contest, error) {
	if state != nil && !state.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", ErrValidationFailed, *state)
	}
	contests, err := s.store.contests.List(ctx, state)
	if err != nil {
		return nil, err
	}
	if contests == nil {
		return []*models.Contest{}, nil
	}
	return contests, nil
}

// CurrentRound is the first unfinished round, nil before the contest starts
// or after it finishes.
func (s *contestService) CurrentRound(ctx context.Context, id int) (*RoundView, error) {
	c, err := s.store.loadConcurrently(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Started() {
		return nil, nil
	}
	r := c.CurrentRound()
	if r == nil {
		return nil, nil
	}
	return &RoundView{Title: r.Title(), Round: r}, nil
}

// Tick advances every contest that is due. Contests run in parallel up to the
// configured limit; one contest failing never stops the others.
func (s *contestService) Tick(ctx context.Context, today time.Time) (*TickReport, error) {
	began := time.Now()
	report := &TickReport{RunID: uuid.NewString()}
	logger := s.logger.With(slog.String("run_id", report.RunID))

	ids, err := s.store.contests.ListDueIDs(ctx, brackets.Day(today))
	if err != nil {
		return nil, fmt.Errorf("failed to list due contests: %w", err)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.parallelism)
	for _, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			moved, err := s.AdvanceContest(ctx, id, today)

			result := "idle"
			switch {
			case errors.Is(err, ErrConcurrentUpdate):
				result = "conflict"
				logger.Info("contest changed during tick, skipped", slog.Int("contest_id", id))
			case err != nil:
				result = "failed"
				logger.Error("failed to advance contest", slog.Int("contest_id", id), slog.Any("error", err))
			case moved:
				result = "advanced"
			}
			if s.metrics != nil {
				s.metrics.TickRuns.WithLabelValues(result).Inc()
			}

			mu.Lock()
			defer mu.Unlock()
			report.Visited++
			switch result {
			case "conflict":
				report.Conflicts++
			case "failed":
				report.Failed++
			case "advanced":
				report.Advanced++
			}
			return nil
		})
	}
	_ = g.Wait()

	if s.metrics != nil {
		s.metrics.TickLatency.Observe(time.Since(began).Seconds())
	}
	logger.Info("tick finished",
		slog.Int("visited", report.Visited),
		slog.Int("advanced", report.Advanced),
		slog.Int("conflicts", report.Conflicts),
		slog.Int("failed", report.Failed),
	)
	return report, ctx.Err()
}
