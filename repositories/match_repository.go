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
	ErrMatchNotFound      = errors.New("match not found")
	ErrMatchRoundInvalid  = errors.New("match round conflict or invalid")
	ErrMatchPositionTaken = errors.New("match position already taken")
	ErrMatchInvalid       = errors.New("match violates a schema constraint")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match, position int) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ContestIDOf(ctx context.Context, exec SQLExecutor, matchID int) (int, error)
	ListByContest(ctx context.Context, exec SQLExecutor, contestID int) ([]*models.Match, error)
	Update(ctx context.Context, exec SQLExecutor, match *models.Match) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `m.id, m.round_id, m.state, m.group_tag, m.left_type, m.left_id, m.right_type,
	m.right_id, m.winner_type, m.winner_id, m.bye, m.started_on, m.finished_on, m.version,
	m.created_at, m.updated_at`

func scanMatch(row interface{ Scan(...any) error }) (*models.Match, error) {
	var (
		m                   models.Match
		left, right, winner refScan
	)
	err := row.Scan(
		&m.ID,
		&m.RoundID,
		&m.State,
		&m.Group,
		&left.kind, &left.id,
		&right.kind, &right.id,
		&winner.kind, &winner.id,
		&m.Bye,
		&m.StartedOn,
		&m.FinishedOn,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Left, m.Right, m.Winner = left.ref(), right.ref(), winner.ref()
	return &m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match, position int) error {
	query := `
		INSERT INTO contest_matches
			(round_id, position, state, group_tag, left_type, left_id, right_type, right_id,
			 winner_type, winner_id, bye, started_on, finished_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, version, created_at, updated_at`

	leftType, leftID := refColumns(match.Left)
	rightType, rightID := refColumns(match.Right)
	winnerType, winnerID := refColumns(match.Winner)

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		match.RoundID,
		position,
		match.State,
		match.Group,
		leftType, leftID,
		rightType, rightID,
		winnerType, winnerID,
		match.Bye,
		match.StartedOn,
		match.FinishedOn,
	).Scan(&match.ID, &match.Version, &match.CreatedAt, &match.UpdatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM contest_matches m WHERE m.id = $1`

	m, err := scanMatch(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ContestIDOf(ctx context.Context, exec SQLExecutor, matchID int) (int, error) {
	query := `
		SELECT cr.contest_id
		FROM contest_matches m
		JOIN contest_rounds cr ON cr.id = m.round_id
		WHERE m.id = $1`

	var contestID int
	err := r.getExecutor(exec).QueryRowContext(ctx, query, matchID).Scan(&contestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrMatchNotFound
		}
		return 0, fmt.Errorf("failed to resolve contest of match %d: %w", matchID, err)
	}
	return contestID, nil
}

// ListByContest returns every match of a contest in round order, then in
// pairing order within the round.
func (r *postgresMatchRepository) ListByContest(ctx context.Context, exec SQLExecutor, contestID int) ([]*models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM contest_matches m
		JOIN contest_rounds cr ON cr.id = m.round_id
		WHERE cr.contest_id = $1
		ORDER BY cr.position ASC, m.position ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for contest %d: %w", contestID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

// Update writes the mutable part of a match guarded by its version.
func (r *postgresMatchRepository) Update(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		UPDATE contest_matches
		SET state = $1, left_type = $2, left_id = $3, right_type = $4, right_id = $5,
		    winner_type = $6, winner_id = $7, version = version + 1, updated_at = NOW()
		WHERE id = $8 AND version = $9
		RETURNING version, updated_at`

	leftType, leftID := refColumns(match.Left)
	rightType, rightID := refColumns(match.Right)
	winnerType, winnerID := refColumns(match.Winner)

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		match.State,
		leftType, leftID,
		rightType, rightID,
		winnerType, winnerID,
		match.ID,
		match.Version,
	).Scan(&match.Version, &match.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("match %d at version %d: %w", match.ID, match.Version, ErrVersionConflict)
	}
	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return ErrMatchRoundInvalid
		case pqUniqueViolation:
			return ErrMatchPositionTaken
		case pqCheckViolation:
			return fmt.Errorf("%w: %s", ErrMatchInvalid, pqErr.Constraint)
		}
	}
	return err
}
