package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/contest-system/models"
)

type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ErrVersionConflict means the row changed after it was read: another writer
// got there first and the caller should reload and retry.
var ErrVersionConflict = errors.New("record was modified concurrently")

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

// refColumns splits an optional participant into its kind and id columns.
func refColumns(ref *models.ParticipantRef) (sql.NullString, sql.NullInt64) {
	if ref == nil {
		return sql.NullString{}, sql.NullInt64{}
	}
	return sql.NullString{String: string(ref.Kind), Valid: true}, sql.NullInt64{Int64: ref.ID, Valid: true}
}

type refScan struct {
	kind sql.NullString
	id   sql.NullInt64
}

func (s *refScan) ref() *models.ParticipantRef {
	if !s.kind.Valid || !s.id.Valid {
		return nil
	}
	return models.NewParticipantRef(models.MemberKind(s.kind.String), s.id.Int64)
}
