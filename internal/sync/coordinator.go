// Package sync reconciles one replica's in-memory state with the shared
// durable snapshot and with updates arriving from the other replicas.
//
// The consistency contract is deliberately last-writer-wins: every
// local mutation is merged into the latest persisted snapshot and saved
// whole, and every foreign snapshot replaces the local mirrors
// wholesale. Concurrent appends from two replicas to the same room are
// not merged; the later save wins. Swapping in a real merge strategy
// means replacing this package, not its callers.
package sync

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HaseMalke174/NoFeds/internal/crypto"
	"github.com/HaseMalke174/NoFeds/internal/models"
	"github.com/HaseMalke174/NoFeds/internal/state"
)

type Coordinator struct {
	state    *state.ReplicatedStore
	roomKeys *crypto.RoomKeyStore
	cipher   *crypto.MessageCipher
	account  models.Account

	mu       sync.Mutex
	users    []models.User
	rooms    []models.Room
	messages map[string][]models.Message
	accounts []models.Account
	openRoom string
	onChange func()
}

func New(st *state.ReplicatedStore, keys *crypto.RoomKeyStore, acct models.Account) *Coordinator {
	return &Coordinator{
		state:    st,
		roomKeys: keys,
		cipher:   crypto.NewMessageCipher(keys),
		account:  acct,
		messages: make(map[string][]models.Message),
	}
}

// OnChange registers the presentation callback fired after a foreign
// snapshot has been applied. Call before Start.
func (c *Coordinator) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// Start seeds the local mirrors from the durable snapshot, makes sure
// this session's account is present, and subscribes for foreign
// updates.
func (c *Coordinator) Start() {
	snap := c.state.Load()

	c.mu.Lock()
	if snap != nil {
		c.users = snap.Users
		c.rooms = snap.Rooms
		c.accounts = snap.Accounts
		for room, msgs := range snap.Messages {
			c.messages[room] = msgs
		}
	}
	c.ensureOwnAccountLocked()
	c.mu.Unlock()

	c.state.Subscribe(c.applyForeign)
}

func (c *Coordinator) ensureOwnAccountLocked() {
	for _, a := range c.accounts {
		if a.ID == c.account.ID {
			return
		}
	}
	c.accounts = append(c.accounts, c.account)
}

// applyForeign installs a snapshot saved by another replica. This is
// whole-field replace: users, rooms and accounts are overwritten, and
// so is the history of the currently open room. Histories of rooms not
// open here are left alone until they are opened again.
func (c *Coordinator) applyForeign(snap *models.Snapshot) {
	c.mu.Lock()
	c.users = snap.Users
	c.rooms = snap.Rooms
	c.accounts = snap.Accounts
	c.ensureOwnAccountLocked()
	if c.openRoom != "" {
		c.messages[c.openRoom] = snap.Messages[c.openRoom]
	}
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// persist merges one mutated section into the latest durable snapshot
// and saves the result. Reading the latest base first keeps sections
// written concurrently by other local consumers intact; it does NOT
// protect against a racing replica, which can still be overwritten
// (last save wins).
func (c *Coordinator) persist(apply func(*models.Snapshot)) {
	base := c.state.Load()
	if base == nil {
		base = models.NewSnapshot()
	}
	apply(base)
	c.state.Save(base)
}

// UpsertUser adds a user or, when a live entry with the same display
// name exists, replaces it.
func (c *Coordinator) UpsertUser(user models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()

	replaced := false
	for i, u := range c.users {
		if u.DisplayName == user.DisplayName {
			c.users[i] = user
			replaced = true
			break
		}
	}
	if !replaced {
		c.users = append(c.users, user)
	}

	users := append([]models.User(nil), c.users...)
	c.persist(func(snap *models.Snapshot) { snap.Users = users })
}

func (c *Coordinator) RemoveUser(displayName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.users[:0]
	for _, u := range c.users {
		if u.DisplayName != displayName {
			kept = append(kept, u)
		}
	}
	c.users = kept

	users := append([]models.User(nil), c.users...)
	c.persist(func(snap *models.Snapshot) { snap.Users = users })
}

func (c *Coordinator) SetPresence(displayName string, status models.Presence, statusMessage string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.users {
		if c.users[i].DisplayName == displayName {
			c.users[i].Status = status
			c.users[i].StatusMessage = statusMessage
		}
	}

	users := append([]models.User(nil), c.users...)
	c.persist(func(snap *models.Snapshot) { snap.Users = users })
}

// CreateRoom registers a room created by this session's account.
func (c *Coordinator) CreateRoom(name, description, password string) models.Room {
	room := models.Room{
		ID:          uuid.NewString(),
		Name:        name,
		Protected:   password != "",
		Password:    password,
		Description: description,
		CreatedBy:   c.account.Nickname,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms = append(c.rooms, room)

	rooms := append([]models.Room(nil), c.rooms...)
	c.persist(func(snap *models.Snapshot) { snap.Rooms = rooms })
	return room
}

// OpenRoom establishes this replica's key for the room, adopts the
// room's persisted history, and makes it the room whose history foreign
// updates overwrite.
func (c *Coordinator) OpenRoom(roomID string) error {
	if _, err := c.roomKeys.EnsureRoomKey(roomID); err != nil {
		return fmt.Errorf("opening room %q: %w", roomID, err)
	}

	snap := c.state.Load()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.openRoom = roomID
	if snap != nil {
		c.messages[roomID] = snap.Messages[roomID]
	}

	for i := range c.rooms {
		if c.rooms[i].ID == roomID {
			c.rooms[i].MemberCount++
		}
	}
	rooms := append([]models.Room(nil), c.rooms...)
	c.persist(func(s *models.Snapshot) { s.Rooms = rooms })
	return nil
}

// SendText encrypts text for the open room and appends it to the
// history. If the cipher provider is unavailable the message goes out
// in the clear rather than blocking the session; a missing room key is
// a caller error and is returned.
func (c *Coordinator) SendText(text string) (models.Message, error) {
	c.mu.Lock()
	roomID := c.openRoom
	c.mu.Unlock()
	if roomID == "" {
		return models.Message{}, errors.New("no open room")
	}

	content, encrypted := text, false
	envelope, err := c.cipher.Encrypt(text, roomID)
	switch {
	case err == nil:
		content, encrypted = envelope, true
	case errors.Is(err, crypto.ErrUnavailable):
		// Degraded: encryption off, session continues.
	default:
		return models.Message{}, err
	}

	msg := models.Message{
		ID:         uuid.NewString(),
		Content:    content,
		SenderName: c.account.Nickname,
		SenderID:   c.account.ID,
		Timestamp:  time.Now(),
		Kind:       models.KindUser,
		Encrypted:  encrypted,
	}
	c.appendMessage(roomID, msg)
	return msg, nil
}

// AppendSystem records an unencrypted system notice in a room's history.
func (c *Coordinator) AppendSystem(roomID, text string) models.Message {
	msg := models.Message{
		ID:        uuid.NewString(),
		Content:   text,
		Timestamp: time.Now(),
		Kind:      models.KindSystem,
	}
	c.appendMessage(roomID, msg)
	return msg
}

func (c *Coordinator) appendMessage(roomID string, msg models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[roomID] = append(c.messages[roomID], msg)

	msgs := append([]models.Message(nil), c.messages[roomID]...)
	c.persist(func(snap *models.Snapshot) { snap.Messages[roomID] = msgs })
}

// RenderContent returns what the presentation layer should display for
// a message: plaintext as-is, ciphertext decrypted with this replica's
// room key, or the fixed placeholder when decryption fails (foreign
// key, corruption).
func (c *Coordinator) RenderContent(msg models.Message, roomID string) string {
	if !msg.Encrypted {
		return msg.Content
	}
	return c.cipher.DecryptOrPlaceholder(msg.Content, roomID)
}

// RegisterAccount adds an account to the shared state, replacing any
// entry with the same ID. Temporary accounts stay in memory only and
// never reach the durable snapshot.
func (c *Coordinator) RegisterAccount(acct models.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()

	replaced := false
	for i, a := range c.accounts {
		if a.ID == acct.ID {
			c.accounts[i] = acct
			replaced = true
			break
		}
	}
	if !replaced {
		c.accounts = append(c.accounts, acct)
	}

	durable := models.DurableAccounts(c.accounts)
	c.persist(func(snap *models.Snapshot) { snap.Accounts = durable })
}

// Accessors hand out copies so the presentation layer can iterate
// without racing foreign updates.

func (c *Coordinator) Users() []models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.User(nil), c.users...)
}

func (c *Coordinator) Rooms() []models.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Room(nil), c.rooms...)
}

func (c *Coordinator) Messages(roomID string) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Message(nil), c.messages[roomID]...)
}

func (c *Coordinator) Accounts() []models.Account {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Account(nil), c.accounts...)
}

func (c *Coordinator) OpenRoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.openRoom
}

// Close ends the session. A session backed by a temporary account
// leaves no trace: the latest snapshot is re-read, the account and its
// derived user entry are stripped, and the result written back.
// Best effort, not transactional. The bus attachment is then released.
func (c *Coordinator) Close() {
	if c.account.Temporary {
		base := c.state.Load()
		if base != nil {
			base.ScrubAccount(c.account)
			c.state.Save(base)
		}
	}
	c.state.Close()
}
