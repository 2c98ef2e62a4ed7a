// Package local implements the identity provider contract on top of a
// bun managed identities table. It is the credential store of record
// for deployments that do not delegate authentication to an external
// service.
package local

import (
	"context"
	"database/sql"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-accounts"
)

// IdentityRecord is the storage row behind a provider identity.
type IdentityRecord struct {
	bun.BaseModel `bun:"table:identities,alias:idn"`

	ID             uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email          string    `bun:"email,notnull,unique" json:"email"`
	CredentialHash string    `bun:"credential_hash,notnull" json:"-"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// Provider is a bun backed accounts.IdentityProvider.
type Provider struct {
	db     *bun.DB
	logger accounts.Logger
}

var _ accounts.IdentityProvider = (*Provider)(nil)

func New(db *bun.DB) *Provider {
	return &Provider{
		db:     db,
		logger: accounts.DefaultLogger(),
	}
}

func (p *Provider) WithLogger(logger accounts.Logger) *Provider {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// CreateIdentity stores a new identity under a fresh id. An email that
// signed up before, was removed, and signs up again gets a brand new
// id, never the old one back.
func (p *Provider) CreateIdentity(ctx context.Context, email, credential string) (*accounts.Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, goerrors.New("email is required", goerrors.CategoryBadInput)
	}

	hash, err := HashCredential(credential)
	if err != nil {
		return nil, err
	}

	record := &IdentityRecord{
		ID:             uuid.New(),
		Email:          email,
		CredentialHash: hash,
		CreatedAt:      time.Now(),
	}

	if _, err := p.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create identity").
			WithMetadata(map[string]any{"email": email})
	}

	return identityFromRecord(record), nil
}

// VerifyCredential checks an email and credential pair. Unknown email
// and wrong credential produce the same failure.
func (p *Provider) VerifyCredential(ctx context.Context, email, credential string) (*accounts.Identity, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	record := &IdentityRecord{}
	err := p.db.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, accounts.ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "identity lookup failed")
	}

	if err := CompareCredentialAndHash(credential, record.CredentialHash); err != nil {
		return nil, accounts.ErrInvalidCredentials
	}

	return identityFromRecord(record), nil
}

// DeleteIdentity removes an identity. Deleting an id that does not
// exist is not an error, retries and concurrent cleanup passes land on
// the same outcome.
func (p *Provider) DeleteIdentity(ctx context.Context, id uuid.UUID) error {
	_, err := p.db.NewDelete().
		Model((*IdentityRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "could not delete identity").
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

// ListIdentityIDs returns every identity id the provider knows about.
func (p *Provider) ListIdentityIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.NewSelect().
		Model((*IdentityRecord)(nil)).
		Column("id").
		Scan(ctx, &ids)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "could not list identities")
	}

	return ids, nil
}

func identityFromRecord(record *IdentityRecord) *accounts.Identity {
	return &accounts.Identity{
		ID:        record.ID,
		Email:     record.Email,
		CreatedAt: record.CreatedAt,
	}
}
