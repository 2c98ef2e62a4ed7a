package local

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// HashCredential will generate a credential hash
func HashCredential(credential string) (string, error) {
	if credential == "" {
		return "", goerrors.New("credential must not be empty", goerrors.CategoryValidation)
	}

	h, err := bcrypt.GenerateFromPassword([]byte(credential), credentialHashCost())
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash credential")
	}

	return string(h), nil
}

// CompareCredentialAndHash will validate the given cleartext
// credential matches the hashed credential
func CompareCredentialAndHash(credential, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(credential)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return goerrors.New("credential mismatch", goerrors.CategoryAuth)
		}
		return err
	}
	return nil
}
