package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/contest-system/models"
	"github.com/lib/pq"
)

var (
	ErrContestNotFound      = errors.New("contest not found")
	ErrContestTitleConflict = errors.New("contest title already exists")
	ErrContestInvalid       = errors.New("contest violates a schema constraint")
)

type ContestRepository interface {
	Create(ctx context.Context, exec SQLExecutor, contest *models.Contest) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Contest, error)
	List(ctx context.Context, state *models.State) ([]*models.Contest, error)
	ListDueIDs(ctx context.Context, today time.Time) ([]int, error)
	Update(ctx context.Context, exec SQLExecutor, contest *models.Contest) error
}

type postgresContestRepository struct {
	db *sql.DB
}

func NewPostgresContestRepository(db *sql.DB) ContestRepository {
	return &postgresContestRepository{db: db}
}

func (r *postgresContestRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const contestColumns = `id, title, description, state, started_on, finished_on, matches_per_round,
	match_duration, matches_interval, suggestions_per_user, strategy_type, member_type, shuffle,
	version, created_at, updated_at`

func scanContest(row interface{ Scan(...any) error }) (*models.Contest, error) {
	c := &models.Contest{}
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.State,
		&c.StartedOn,
		&c.FinishedOn,
		&c.MatchesPerWave,
		&c.MatchDuration,
		&c.WaveInterval,
		&c.SuggestionsPerUser,
		&c.Strategy,
		&c.MemberKind,
		&c.Shuffle,
		&c.Version,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *postgresContestRepository) Create(ctx context.Context, exec SQLExecutor, contest *models.Contest) error {
	query := `
		INSERT INTO contests
			(title, description, state, started_on, matches_per_round, match_duration,
			 matches_interval, suggestions_per_user, strategy_type, member_type, shuffle)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, version, created_at, updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		contest.Title,
		contest.Description,
		contest.State,
		contest.StartedOn,
		contest.MatchesPerWave,
		contest.MatchDuration,
		contest.WaveInterval,
		contest.SuggestionsPerUser,
		contest.Strategy,
		contest.MemberKind,
		contest.Shuffle,
	).Scan(&contest.ID, &contest.Version, &contest.CreatedAt, &contest.UpdatedAt)

	return r.handleContestError(err)
}

func (r *postgresContestRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE id = $1`

	c, err := scanContest(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContestNotFound
		}
		return nil, fmt.Errorf("failed to scan contest by id %d: %w", id, err)
	}
	return c, nil
}

func (r *postgresContestRepository) List(ctx context.Context, state *models.State) ([]*models.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests`
	args := []interface{}{}
	if state != nil {
		query += ` WHERE state = $1`
		args = append(args, *state)
	}
	query += ` ORDER BY started_on DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contests: %w", err)
	}
	defer rows.Close()

	contests := make([]*models.Contest, 0)
	for rows.Next() {
		c, scanErr := scanContest(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan contest row: %w", scanErr)
		}
		contests = append(contests, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during contest rows iteration: %w", err)
	}
	return contests, nil
}

// ListDueIDs returns the contests a driver tick has to look at: running ones
// and created ones whose start date has come.
func (r *postgresContestRepository) ListDueIDs(ctx context.Context, today time.Time) ([]int, error) {
	query := `
		SELECT id FROM contests
		WHERE state = $1 OR (state = $2 AND started_on <= $3)
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, models.StateStarted, models.StateCreated, today)
	if err != nil {
		return nil, fmt.Errorf("failed to query due contests: %w", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan due contest id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update writes the contest row if nobody changed it since it was read and
// bumps its version.
func (r *postgresContestRepository) Update(ctx context.Context, exec SQLExecutor, contest *models.Contest) error {
	query := `
		UPDATE contests
		SET title = $1, description = $2, state = $3, started_on = $4, finished_on = $5,
		    matches_per_round = $6, match_duration = $7, matches_interval = $8,
		    suggestions_per_user = $9, strategy_type = $10, shuffle = $11,
		    version = version + 1, updated_at = NOW()
		WHERE id = $12 AND version = $13
		RETURNING version, updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		contest.Title,
		contest.Description,
		contest.State,
		contest.StartedOn,
		contest.FinishedOn,
		contest.MatchesPerWave,
		contest.MatchDuration,
		contest.WaveInterval,
		contest.SuggestionsPerUser,
		contest.Strategy,
		contest.Shuffle,
		contest.ID,
		contest.Version,
	).Scan(&contest.Version, &contest.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("contest %d at version %d: %w", contest.ID, contest.Version, ErrVersionConflict)
	}
	return r.handleContestError(err)
}

func (r *postgresContestRepository) handleContestError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == pqUniqueViolation && pqErr.Constraint == "contests_title_key":
			return ErrContestTitleConflict
		case pqErr.Code == pqCheckViolation:
			return fmt.Errorf("%w: %s", ErrContestInvalid, pqErr.Constraint)
		}
	}
	return err
}
