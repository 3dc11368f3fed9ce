package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	keys := NewRoomKeyStore()
	if _, err := keys.EnsureRoomKey("room-42"); err != nil {
		t.Fatal(err)
	}
	c := NewMessageCipher(keys)

	envelope, err := c.Encrypt("hello", "room-42")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		t.Fatalf("envelope is not valid base64: %v", err)
	}
	if len(raw) < 12+16 {
		t.Errorf("envelope too short: %d bytes, want at least nonce+tag (28)", len(raw))
	}

	plaintext, err := c.Decrypt(envelope, "room-42")
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if plaintext != "hello" {
		t.Errorf("expected 'hello', got %q", plaintext)
	}
}

func TestNonceNotReused(t *testing.T) {
	keys := NewRoomKeyStore()
	keys.EnsureRoomKey("r1")
	c := NewMessageCipher(keys)

	e1, err := c.Encrypt("same plaintext", "r1")
	if err != nil {
		t.Fatal(err)
	}
	e2, err := c.Encrypt("same plaintext", "r1")
	if err != nil {
		t.Fatal(err)
	}
	if e1 == e2 {
		t.Error("two encryptions of the same plaintext produced identical envelopes")
	}

	r1, _ := base64.StdEncoding.DecodeString(e1)
	r2, _ := base64.StdEncoding.DecodeString(e2)
	if bytes.Equal(r1[:12], r2[:12]) {
		t.Error("nonce was reused across two Encrypt calls")
	}
}

func TestCrossInstanceIsolation(t *testing.T) {
	keysA := NewRoomKeyStore()
	keysB := NewRoomKeyStore()
	keyA, _ := keysA.EnsureRoomKey("r1")
	keyB, _ := keysB.EnsureRoomKey("r1")
	if bytes.Equal(keyA, keyB) {
		t.Fatal("independent stores generated identical room keys")
	}

	envelope, err := NewMessageCipher(keysA).Encrypt("secret", "r1")
	if err != nil {
		t.Fatal(err)
	}

	got, err := NewMessageCipher(keysB).Decrypt(envelope, "r1")
	if !errors.Is(err, ErrAuthentication) {
		t.Errorf("expected ErrAuthentication, got err=%v plaintext=%q", err, got)
	}
}

func TestEnsureRoomKeyIdempotent(t *testing.T) {
	keys := NewRoomKeyStore()
	c := NewMessageCipher(keys)

	k1, err := keys.EnsureRoomKey("r1")
	if err != nil {
		t.Fatal(err)
	}
	envelope, err := c.Encrypt("hi", "r1")
	if err != nil {
		t.Fatal(err)
	}

	k2, err := keys.EnsureRoomKey("r1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("second EnsureRoomKey returned a different key")
	}

	if got, err := c.Decrypt(envelope, "r1"); err != nil || got != "hi" {
		t.Errorf("decrypt after re-ensure: got %q, err %v", got, err)
	}
}

func TestNoRoomKey(t *testing.T) {
	c := NewMessageCipher(NewRoomKeyStore())

	if _, err := c.Encrypt("x", "never-joined"); !errors.Is(err, ErrNoRoomKey) {
		t.Errorf("Encrypt without key: expected ErrNoRoomKey, got %v", err)
	}
	if _, err := c.Decrypt("AAAA", "never-joined"); !errors.Is(err, ErrNoRoomKey) {
		t.Errorf("Decrypt without key: expected ErrNoRoomKey, got %v", err)
	}
}

func TestDecryptGarbage(t *testing.T) {
	keys := NewRoomKeyStore()
	keys.EnsureRoomKey("r1")
	c := NewMessageCipher(keys)

	for _, envelope := range []string{"", "!!!not-base64!!!", "AAAA", base64.StdEncoding.EncodeToString(make([]byte, 40))} {
		if _, err := c.Decrypt(envelope, "r1"); !errors.Is(err, ErrAuthentication) {
			t.Errorf("Decrypt(%q): expected ErrAuthentication, got %v", envelope, err)
		}
	}

	if got := c.DecryptOrPlaceholder("garbage", "r1"); got != DecryptPlaceholder {
		t.Errorf("expected placeholder, got %q", got)
	}
}

func TestExportPublicKeyDeterministic(t *testing.T) {
	ids := NewIdentityStore()

	first, err := ids.ExportPublicKey()
	if err != nil {
		t.Fatalf("ExportPublicKey failed: %v", err)
	}
	second, err := ids.ExportPublicKey()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("two exports of the same key pair differ")
	}
	if _, err := base64.StdEncoding.DecodeString(first); err != nil {
		t.Errorf("exported key is not valid base64: %v", err)
	}

	pair1, _ := ids.GenerateKeyPair()
	pair2, _ := ids.GenerateKeyPair()
	if pair1 != pair2 {
		t.Error("GenerateKeyPair is not idempotent")
	}
}
