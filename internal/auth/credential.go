// ABOUTME: Web app credential generation and bcrypt hashing
// ABOUTME: Only hashes are ever persisted; plaintext is shown to the user once

package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// CredentialLength is the length of generated temporary credentials.
const CredentialLength = 12

// Unambiguous characters only: no 0/O, 1/l/I.
const credentialAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ErrCredentialMismatch is returned when a credential does not match its hash.
var ErrCredentialMismatch = errors.New("credential mismatch")

// GenerateCredential returns a random credential from a crypto source.
func GenerateCredential() (string, error) {
	max := big.NewInt(int64(len(credentialAlphabet)))
	buf := make([]byte, CredentialLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generating credential: %w", err)
		}
		buf[i] = credentialAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// HashCredential hashes a credential with bcrypt at the default cost.
func HashCredential(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing credential: %w", err)
	}
	return string(hash), nil
}

// CheckCredential compares plain against a stored hash.
func CheckCredential(hash, plain string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrCredentialMismatch
		}
		return fmt.Errorf("checking credential: %w", err)
	}
	return nil
}

// NewCredential generates a credential and its hash in one step.
func NewCredential() (plain, hash string, err error) {
	plain, err = GenerateCredential()
	if err != nil {
		return "", "", err
	}
	hash, err = HashCredential(plain)
	if err != nil {
		return "", "", err
	}
	return plain, hash, nil
}
