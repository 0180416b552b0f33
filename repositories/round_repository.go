package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/contest-system/models"
	"github.com/lib/pq"
)

var (
	ErrRoundContestInvalid = errors.New("round contest conflict or invalid")
	ErrRoundPositionTaken  = errors.New("round position already taken")
)

type RoundRepository interface {
	Create(ctx context.Context, exec SQLExecutor, round *models.Round, position int) error
	ListByContest(ctx context.Context, exec SQLExecutor, contestID int) ([]*models.Round, error)
	Update(ctx context.Context, exec SQLExecutor, round *models.Round) error
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresRoundRepository) Create(ctx context.Context, exec SQLExecutor, round *models.Round, position int) error {
	query := `
		INSERT INTO contest_rounds (contest_id, position, number, additional, final, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, version, created_at, updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		round.ContestID,
		position,
		round.Number,
		round.Additional,
		round.Final,
		round.State,
	).Scan(&round.ID, &round.Version, &round.CreatedAt, &round.UpdatedAt)

	return r.handleRoundError(err)
}

func (r *postgresRoundRepository) ListByContest(ctx context.Context, exec SQLExecutor, contestID int) ([]*models.Round, error) {
	query := `
		SELECT id, contest_id, number, additional, final, state, version, created_at, updated_at
		FROM contest_rounds
		WHERE contest_id = $1
		ORDER BY position ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds for contest %d: %w", contestID, err)
	}
	defer rows.Close()

	rounds := make([]*models.Round, 0)
	for rows.Next() {
		var round models.Round
		if scanErr := rows.Scan(
			&round.ID,
			&round.ContestID,
			&round.Number,
			&round.Additional,
			&round.Final,
			&round.State,
			&round.Version,
			&round.CreatedAt,
			&round.UpdatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", scanErr)
		}
		rounds = append(rounds, &round)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during round rows iteration: %w", err)
	}
	return rounds, nil
}

// Update only ever changes the round state; the layout is fixed at build.
func (r *postgresRoundRepository) Update(ctx context.Context, exec SQLExecutor, round *models.Round) error {
	query := `
		UPDATE contest_rounds
		SET state = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3
		RETURNING version, updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query, round.State, round.ID, round.Version).
		Scan(&round.Version, &round.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("round %d at version %d: %w", round.ID, round.Version, ErrVersionConflict)
	}
	return r.handleRoundError(err)
}

func (r *postgresRoundRepository) handleRoundError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "contest_rounds_contest_id_fkey":
			return ErrRoundContestInvalid
		case "contest_rounds_position_key":
			return ErrRoundPositionTaken
		}
	}
	return err
}
