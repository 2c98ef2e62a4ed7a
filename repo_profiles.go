package accounts

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Profiles owns the application-side half of every account. The id is
// never generated here: a profile always carries the id of the identity
// it mirrors.
type Profiles interface {
	repository.Repository[*Profile]

	Create(ctx context.Context, record *Profile, criteria ...repository.InsertCriteria) (*Profile, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Profile, criteria ...repository.InsertCriteria) (*Profile, error)

	FindByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Profile, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	ExistsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)

	RemoveByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (int64, error)
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var (
	_ Profiles                        = (*profiles)(nil)
	_ repository.Repository[*Profile] = (*profiles)(nil)
)

func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (r *profiles) Create(ctx context.Context, record *Profile, criteria ...repository.InsertCriteria) (*Profile, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *profiles) CreateTx(ctx context.Context, tx bun.IDB, record *Profile, criteria ...repository.InsertCriteria) (*Profile, error) {
	if err := prepareProfileDefaults(record); err != nil {
		return nil, err
	}
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (r *profiles) FindByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *profiles) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Profile, error) {
	record := &Profile{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"id": id.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (r *profiles) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.ExistsTx(ctx, r.db, id)
}

func (r *profiles) ExistsTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	_, err := r.FindByIDTx(ctx, tx, id)
	if err == nil {
		return true, nil
	}

	if repository.IsRecordNotFound(err) {
		return false, nil
	}

	return false, err
}

func (r *profiles) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.NewSelect().
		Model((*Profile)(nil)).
		Column("id").
		Scan(ctx, &ids)

	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *profiles) RemoveByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (int64, error) {
	res, err := tx.NewDelete().
		Model((*Profile)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return affected, nil
}

func prepareProfileDefaults(record *Profile) error {
	if record == nil {
		return goerrors.New("profile record is required", goerrors.CategoryBadInput)
	}

	// The id is the cross-store key; a generated one would break the 1:1
	// invariant with the identity side.
	if record.ID == uuid.Nil {
		return goerrors.New("profile requires the owning identity id", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"email": record.Email})
	}

	if record.Role == "" {
		record.Role = RoleTeacher
	}

	if record.FullName == "" {
		record.FullName = record.Email
	}

	record.Active = true

	return nil
}
