// Package accounts creates and verifies chat accounts. Secrets are
// bcrypt hashes; room passwords elsewhere in the snapshot stay plain
// because room gating is frontend business logic, not auth.
package accounts

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/HaseMalke174/NoFeds/internal/models"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// New creates a registered account with a hashed secret.
func New(nickname, password string) (models.Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.Account{}, err
	}
	return models.Account{
		ID:             uuid.NewString(),
		Nickname:       nickname,
		PasswordSecret: string(hash),
		CreatedAt:      time.Now(),
	}, nil
}

// NewTemporary creates a guest account. It carries no secret, is kept
// out of the durable snapshot, and is scrubbed when its replica exits.
func NewTemporary(nickname string) models.Account {
	return models.Account{
		ID:        uuid.NewString(),
		Nickname:  nickname,
		CreatedAt: time.Now(),
		Temporary: true,
	}
}

// Verify checks a presented password against the account's secret.
func Verify(acct models.Account, password string) error {
	if acct.Temporary {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordSecret), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Find returns the account with the given nickname from a snapshot's
// account list.
func Find(accts []models.Account, nickname string) (models.Account, bool) {
	for _, a := range accts {
		if a.Nickname == nickname {
			return a, true
		}
	}
	return models.Account{}, false
}
