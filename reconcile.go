package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ReconciliationReport summarizes a single cleanup pass.
type ReconciliationReport struct {
	Orphans   []uuid.UUID `json:"orphans"`
	Deleted   []uuid.UUID `json:"deleted"`
	Skipped   []uuid.UUID `json:"skipped"`
	Failed    []uuid.UUID `json:"failed"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at"`
}

// Reconciler sweeps up identities that lost their profile half, the
// residue the fail open paths leave behind. It is safe to run while
// signups are in flight: every candidate is rechecked against the
// profile store immediately before its identity is removed, so an
// account that finished provisioning between the scan and the delete
// is left alone.
type Reconciler struct {
	provider IdentityProvider
	repo     RepositoryManager
	logger   Logger
}

func NewReconciler(provider IdentityProvider, repo RepositoryManager) *Reconciler {
	return &Reconciler{
		provider: provider,
		repo:     repo,
		logger:   defLogger{},
	}
}

func (r *Reconciler) WithLogger(logger Logger) *Reconciler {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// Orphans returns identity ids with no matching profile row. Read only,
// nothing is modified.
func (r *Reconciler) Orphans(ctx context.Context) ([]uuid.UUID, error) {
	identityIDs, err := r.provider.ListIdentityIDs(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "could not list identities")
	}

	profileIDs, err := r.repo.Profiles().ListIDs(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "could not list profiles")
	}

	known := make(map[uuid.UUID]struct{}, len(profileIDs))
	for _, id := range profileIDs {
		known[id] = struct{}{}
	}

	var orphans []uuid.UUID
	for _, id := range identityIDs {
		if _, ok := known[id]; !ok {
			orphans = append(orphans, id)
		}
	}

	return orphans, nil
}

// Run performs a full cleanup pass and records a CLEANUP_RUN audit
// entry with the outcome. Individual delete failures do not abort the
// pass, the identity stays behind for the next run.
func (r *Reconciler) Run(ctx context.Context) (*ReconciliationReport, error) {
	report := &ReconciliationReport{
		StartedAt: time.Now(),
	}

	orphans, err := r.Orphans(ctx)
	if err != nil {
		return nil, err
	}
	report.Orphans = orphans

	for _, id := range orphans {
		select {
		case <-ctx.Done():
			return nil, goerrors.Wrap(
				ctx.Err(),
				goerrors.CategoryOperation,
				"context cancelled during reconciliation",
			)
		default:
		}

		// Recheck right before the destructive step. A signup may have
		// completed provisioning since the scan.
		exists, err := r.repo.Profiles().Exists(ctx, id)
		if err != nil {
			r.logger.Error("Reconcile recheck failed for %s: %v", id, err)
			report.Failed = append(report.Failed, id)
			continue
		}
		if exists {
			report.Skipped = append(report.Skipped, id)
			continue
		}

		if err := r.provider.DeleteIdentity(ctx, id); err != nil {
			r.logger.Warn("Reconcile could not delete identity %s: %v", id, err)
			report.Failed = append(report.Failed, id)
			continue
		}

		report.Deleted = append(report.Deleted, id)
	}

	report.EndedAt = time.Now()

	entry := &AuditEntry{
		EventType: AuditCleanupRun,
		Payload: map[string]any{
			"orphan_count":  len(report.Orphans),
			"deleted_count": len(report.Deleted),
			"skipped_count": len(report.Skipped),
			"failed_count":  len(report.Failed),
			"deleted_ids":   uuidStrings(report.Deleted),
			"started_at":    report.StartedAt,
			"ended_at":      report.EndedAt,
		},
	}

	if _, err := r.repo.Audit().Append(ctx, entry); err != nil {
		return report, goerrors.Wrap(err, goerrors.CategoryInternal, "could not record cleanup run")
	}

	r.logger.Info(
		"Reconcile pass complete: %d orphans, %d deleted, %d skipped, %d failed",
		len(report.Orphans), len(report.Deleted), len(report.Skipped), len(report.Failed),
	)

	return report, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
