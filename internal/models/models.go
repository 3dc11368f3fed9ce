package models

import "time"

type Presence string

const (
	PresenceOnline Presence = "online"
	PresenceAway   Presence = "away"
	PresenceBusy   Presence = "busy"
)

type MessageKind string

const (
	KindUser   MessageKind = "user"
	KindSystem MessageKind = "system"
)

// Message is one entry in a room's history. Content holds the base64
// envelope (nonce + ciphertext + tag) when Encrypted is true, plaintext
// otherwise. Insertion order within a room is chronological order.
type Message struct {
	ID         string      `json:"id"`
	Content    string      `json:"content"`
	SenderName string      `json:"sender_name"`
	SenderID   string      `json:"sender_id"`
	Timestamp  time.Time   `json:"timestamp"`
	Kind       MessageKind `json:"kind"`
	Encrypted  bool        `json:"encrypted"`
}

type User struct {
	ID            string    `json:"id"`
	DisplayName   string    `json:"display_name"`
	Status        Presence  `json:"status"`
	JoinedAt      time.Time `json:"joined_at"`
	StatusMessage string    `json:"status_message,omitempty"`
	AvatarRef     string    `json:"avatar_ref,omitempty"`
	HasAccount    bool      `json:"has_account"`
}

type Room struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
	Protected   bool   `json:"protected"`
	Password    string `json:"password,omitempty"` // plaintext, demo-grade room gating
	Description string `json:"description,omitempty"`
	CreatedBy   string `json:"created_by"`
}

// Account is a registered identity. PasswordSecret holds a bcrypt hash.
// Temporary accounts never reach the durable snapshot and are scrubbed
// from the user list when their owning replica exits.
type Account struct {
	ID             string    `json:"id"`
	Nickname       string    `json:"nickname"`
	PasswordSecret string    `json:"password_secret"`
	CreatedAt      time.Time `json:"created_at"`
	AvatarRef      string    `json:"avatar_ref,omitempty"`
	Temporary      bool      `json:"temporary"`
}

// Snapshot is the unit of persistence and cross-replica propagation:
// the full shared application state at a point in time.
type Snapshot struct {
	Users    []User               `json:"users"`
	Rooms    []Room               `json:"rooms"`
	Messages map[string][]Message `json:"messages_by_room"`
	Accounts []Account            `json:"accounts"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{Messages: make(map[string][]Message)}
}

// ScrubAccount removes the account with the given ID and the user entry
// derived from it (matched by the account's nickname). Everything else
// is left untouched.
func (s *Snapshot) ScrubAccount(acct Account) {
	kept := s.Accounts[:0]
	for _, a := range s.Accounts {
		if a.ID != acct.ID {
			kept = append(kept, a)
		}
	}
	s.Accounts = kept

	users := s.Users[:0]
	for _, u := range s.Users {
		if u.DisplayName != acct.Nickname {
			users = append(users, u)
		}
	}
	s.Users = users
}

// DurableAccounts filters out temporary accounts, which live only in
// memory and never reach the persisted snapshot.
func DurableAccounts(accts []Account) []Account {
	var out []Account
	for _, a := range accts {
		if !a.Temporary {
			out = append(out, a)
		}
	}
	return out
}
