package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuditLog is append only. There is deliberately no update or delete
// surface: once a lifecycle event is recorded it stays recorded.
type AuditLog interface {
	Append(ctx context.Context, entry *AuditEntry) (*AuditEntry, error)
	AppendTx(ctx context.Context, tx bun.IDB, entry *AuditEntry) (*AuditEntry, error)
	FindBySubject(ctx context.Context, subjectID uuid.UUID) ([]*AuditEntry, error)
	FindBetween(ctx context.Context, start, end time.Time) ([]*AuditEntry, error)
}

type auditLog struct {
	db *bun.DB
}

var _ AuditLog = (*auditLog)(nil)

func NewAuditLogRepository(db *bun.DB) AuditLog {
	return &auditLog{db: db}
}

func (r *auditLog) Append(ctx context.Context, entry *AuditEntry) (*AuditEntry, error) {
	return r.AppendTx(ctx, r.db, entry)
}

func (r *auditLog) AppendTx(ctx context.Context, tx bun.IDB, entry *AuditEntry) (*AuditEntry, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := tx.NewInsert().
		Model(entry).
		Exec(ctx)

	if err != nil {
		return nil, err
	}

	return entry, nil
}

func (r *auditLog) FindBySubject(ctx context.Context, subjectID uuid.UUID) ([]*AuditEntry, error) {
	var entries []*AuditEntry
	err := r.db.NewSelect().
		Model(&entries).
		Where("?TableAlias.subject_id = ?", subjectID).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *auditLog) FindBetween(ctx context.Context, start, end time.Time) ([]*AuditEntry, error) {
	var entries []*AuditEntry
	err := r.db.NewSelect().
		Model(&entries).
		Where("?TableAlias.created_at >= ?", start).
		Where("?TableAlias.created_at <= ?", end).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return entries, nil
}
