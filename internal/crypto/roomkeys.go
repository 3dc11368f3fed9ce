package crypto

import (
	"crypto/rand"
	"fmt"
	"sync"
)

const roomKeySize = 32 // AES-256

// RoomKeyStore maps room IDs to symmetric content keys. Keys are
// generated at most once per room, are never exported or transmitted,
// and die with the owning replica. Two replicas in the "same" room
// therefore hold different keys; see MessageCipher.Decrypt.
type RoomKeyStore struct {
	mu   sync.Mutex
	keys map[string][]byte
}

func NewRoomKeyStore() *RoomKeyStore {
	return &RoomKeyStore{keys: make(map[string][]byte)}
}

// EnsureRoomKey returns the key for roomID, generating a fresh AES-256
// key on first use. Concurrent callers for the same room observe the
// same key.
func (s *RoomKeyStore) EnsureRoomKey(roomID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[roomID]; ok {
		return key, nil
	}
	key := make([]byte, roomKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: generating room key: %v", ErrUnavailable, err)
	}
	s.keys[roomID] = key
	return key, nil
}

func (s *RoomKeyStore) key(roomID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[roomID]
	return key, ok
}
