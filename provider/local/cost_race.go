//go:build race

package local

import "golang.org/x/crypto/bcrypt"

func credentialHashCost() int {
	// Reduce cost for race-enabled builds so test suites can run with strict timeouts.
	return bcrypt.DefaultCost
}
