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
	ErrMemberDuplicate      = errors.New("member is already linked to the contest")
	ErrMemberContestInvalid = errors.New("member contest conflict or invalid")
)

// MemberRepository keeps the ordered seed list of a contest (contest_links).
type MemberRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, contestID int, members []models.ParticipantRef) error
	ListByContest(ctx context.Context, exec SQLExecutor, contestID int) ([]models.ParticipantRef, error)
}

type postgresMemberRepository struct {
	db *sql.DB
}

func NewPostgresMemberRepository(db *sql.DB) MemberRepository {
	return &postgresMemberRepository{db: db}
}

func (r *postgresMemberRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMemberRepository) CreateBatch(ctx context.Context, exec SQLExecutor, contestID int, members []models.ParticipantRef) error {
	if len(members) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)
	query := `INSERT INTO contest_links (contest_id, position, linked_type, linked_id) VALUES ($1, $2, $3, $4)`

	for i, m := range members {
		if _, err := executor.ExecContext(ctx, query, contestID, i, m.Kind, m.ID); err != nil {
			return fmt.Errorf("CreateBatch failed for member %s: %w", m.String(), r.handleMemberError(err))
		}
	}
	return nil
}

func (r *postgresMemberRepository) ListByContest(ctx context.Context, exec SQLExecutor, contestID int) ([]models.ParticipantRef, error) {
	query := `
		SELECT linked_type, linked_id
		FROM contest_links
		WHERE contest_id = $1
		ORDER BY position ASC`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of contest %d: %w", contestID, err)
	}
	defer rows.Close()

	members := make([]models.ParticipantRef, 0)
	for rows.Next() {
		var m models.ParticipantRef
		if err := rows.Scan(&m.Kind, &m.ID); err != nil {
			return nil, fmt.Errorf("failed to scan contest member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *postgresMemberRepository) handleMemberError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return ErrMemberDuplicate
		case pqForeignKeyViolation:
			return ErrMemberContestInvalid
		}
	}
	return err
}
