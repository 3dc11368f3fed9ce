package accounts

import (
	"errors"
	"testing"

	"github.com/HaseMalke174/NoFeds/internal/models"
)

func TestNewAndVerify(t *testing.T) {
	acct, err := New("alice", "wonder")
	if err != nil {
		t.Fatalf("Failed to create account: %v", err)
	}
	if acct.PasswordSecret == "wonder" {
		t.Error("secret stored in plaintext")
	}
	if acct.Temporary {
		t.Error("registered account marked temporary")
	}

	if err := Verify(acct, "wonder"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := Verify(acct, "builder"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestTemporaryAccount(t *testing.T) {
	guest := NewTemporary("visitor")
	if !guest.Temporary {
		t.Error("expected Temporary to be set")
	}
	if err := Verify(guest, ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Error("temporary accounts must never verify")
	}
}

func TestFind(t *testing.T) {
	accts := []models.Account{{ID: "1", Nickname: "alice"}, {ID: "2", Nickname: "bob"}}

	got, ok := Find(accts, "bob")
	if !ok || got.ID != "2" {
		t.Errorf("expected bob (id 2), got %+v ok=%v", got, ok)
	}
	if _, ok := Find(accts, "carol"); ok {
		t.Error("expected miss for unknown nickname")
	}
}
