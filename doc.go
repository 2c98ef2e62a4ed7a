// Package accounts keeps an externally owned identity store and a locally
// owned profile store consistent without a shared transaction.
//
// The provider side (credentials, token signing) is consumed through the
// IdentityProvider contract; the application side (name, department, role)
// lives in the Profile repository. Four mechanisms hold the two together:
//
//   - ProvisionProfileHandler creates a profile for every new identity.
//     It fails open: a failed insert is recorded as drift and repaired
//     later instead of rolling back the identity.
//   - DeleteAccountHandler cascades profile deletion to the provider. The
//     snapshot, the audit entry, and the row delete share one store
//     transaction; the provider delete is best effort and idempotent.
//   - LoginVerifier and the profile guard middleware refuse to honor an
//     identity whose profile is gone. The verifier additionally self-heals
//     by deleting the orphaned identity on the spot.
//   - Reconciler sweeps the remaining drift: identities with no profile
//     are removed in batch, with a recheck before every delete so a
//     profile created mid-scan is never orphaned by the sweep itself.
//
// Every lifecycle mutation lands in the append-only audit log.
package accounts
