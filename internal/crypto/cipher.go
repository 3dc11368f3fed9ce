package crypto

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const nonceSize = 12

// DecryptPlaceholder is what callers render in place of a message that
// failed authentication. A failed decrypt is terminal for that message
// instance; it never takes down the session.
const DecryptPlaceholder = "[encrypted message]"

// MessageCipher performs authenticated encryption of message content
// with the per-room keys held by a RoomKeyStore. Envelopes are
// base64(nonce || ciphertext || tag).
type MessageCipher struct {
	keys *RoomKeyStore
}

func NewMessageCipher(keys *RoomKeyStore) *MessageCipher {
	return &MessageCipher{keys: keys}
}

// Encrypt seals plaintext under roomID's key with a fresh random nonce
// per call. The room key must already have been established at
// join time; otherwise ErrNoRoomKey.
func (c *MessageCipher) Encrypt(plaintext, roomID string) (string, error) {
	key, ok := c.keys.key(roomID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoRoomKey, roomID)
	}
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: drawing nonce: %v", ErrUnavailable, err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope produced by Encrypt. It fails with
// ErrNoRoomKey if this replica never established a key for roomID, and
// with ErrAuthentication on a bad tag, a truncated or unparseable
// envelope, or ciphertext sealed under another replica's key.
func (c *MessageCipher) Decrypt(envelope, roomID string) (string, error) {
	key, ok := c.keys.key(roomID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrNoRoomKey, roomID)
	}
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", fmt.Errorf("%w: bad envelope encoding", ErrAuthentication)
	}
	if len(raw) < nonceSize {
		return "", fmt.Errorf("%w: envelope too short", ErrAuthentication)
	}
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}
	plaintext, err := aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrAuthentication, roomID)
	}
	return string(plaintext), nil
}

// DecryptOrPlaceholder is the render path: decryption failures collapse
// to the fixed placeholder instead of propagating.
func (c *MessageCipher) DecryptOrPlaceholder(envelope, roomID string) string {
	plaintext, err := c.Decrypt(envelope, roomID)
	if err != nil {
		return DecryptPlaceholder
	}
	return plaintext
}

func newAEAD(key []byte) (gocipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	aead, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return aead, nil
}
