package accounts

// AccountState is the derived lifecycle position of a logical account.
// It is never persisted: the state falls out of which of the two stores
// currently hold the id.
type AccountState string

const (
	// StateNone means neither store knows the id.
	StateNone AccountState = "none"
	// StateIdentityOnly is the drift state: the provider holds an
	// identity with no matching profile.
	StateIdentityOnly AccountState = "identity_only"
	// StateSynced is the healthy state: identity and profile exist with
	// the same id.
	StateSynced AccountState = "synced"
	// StateRemoved is terminal. A re-signup with the same email starts a
	// fresh lifecycle under a new id.
	StateRemoved AccountState = "removed"
)

// ResolveAccountState derives the state from store membership. Removed and
// none collapse to the same observation from outside; callers that know an
// account existed before should report StateRemoved.
func ResolveAccountState(hasIdentity, hasProfile bool) AccountState {
	switch {
	case hasIdentity && hasProfile:
		return StateSynced
	case hasIdentity:
		return StateIdentityOnly
	default:
		return StateNone
	}
}

// CanTransition reports whether the lifecycle allows moving between two
// states. Removed is terminal; identity_only may resolve either way
// (provisioned to synced, or reconciled/self-healed straight to removed).
func CanTransition(from, to AccountState) bool {
	if from == to {
		return false
	}

	switch from {
	case StateNone:
		return to == StateIdentityOnly
	case StateIdentityOnly:
		return to == StateSynced || to == StateRemoved
	case StateSynced:
		return to == StateRemoved
	default:
		return false
	}
}
