package security

import (
	"context"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier checks an end-user login submitted on the portal page.
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) bool
}

// StaticCredentialVerifier accepts a single configured username and bcrypt password hash.
type StaticCredentialVerifier struct {
	username     []byte
	passwordHash []byte
}

func NewStaticCredentialVerifier(username, passwordHash string) (*StaticCredentialVerifier, error) {
	if username == "" {
		return nil, fmt.Errorf("portal username is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("parse portal password hash: %w", err)
	}
	return &StaticCredentialVerifier{username: []byte(username), passwordHash: []byte(passwordHash)}, nil
}

// NewStaticCredentialVerifierFromPassword hashes a plaintext password once at startup.
func NewStaticCredentialVerifierFromPassword(username, password string) (*StaticCredentialVerifier, error) {
	if password == "" {
		return nil, fmt.Errorf("portal password is required")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return NewStaticCredentialVerifier(username, hash)
}

func (v *StaticCredentialVerifier) Verify(_ context.Context, username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), v.username) == 1
	// Always run bcrypt so a wrong username costs the same as a wrong password.
	passOK := bcrypt.CompareHashAndPassword(v.passwordHash, []byte(password)) == nil
	return userOK && passOK
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash portal password: %w", err)
	}
	return string(hash), nil
}
