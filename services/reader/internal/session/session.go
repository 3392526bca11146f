// Package session holds the signed-in identity of the reader and mirrors it
// into persistent storage so a restart resumes the same screen.
package session

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
)

// Persisted keys.
const (
	KeyUserID   = "userId"
	KeyUsername = "username"
	KeyUserRole = "userRole"
)

// Session is the authenticated identity. The zero value means signed out.
type Session struct {
	UserID   int64
	Username string
	Role     domain.UserRole
}

// Valid reports whether s identifies a user.
func (s Session) Valid() bool {
	return s.UserID > 0 && s.Role.Valid()
}

// Store owns the in-memory session and its persisted copy.
type Store struct {
	storage Storage
	mu      sync.RWMutex
	current Session
}

func NewStore(storage Storage) *Store {
	return &Store{storage: storage}
}

// Restore loads the persisted session. Missing or malformed entries leave the
// session empty; storage errors are logged, never returned.
func (s *Store) Restore() Session {
	restored := s.load()
	s.mu.Lock()
	s.current = restored
	s.mu.Unlock()
	return restored
}

func (s *Store) load() Session {
	rawID, okID, err := s.storage.Get(KeyUserID)
	if err != nil {
		slog.Warn("session restore failed", "err", err)
		return Session{}
	}
	rawRole, okRole, err := s.storage.Get(KeyUserRole)
	if err != nil {
		slog.Warn("session restore failed", "err", err)
		return Session{}
	}
	if !okID || !okRole {
		return Session{}
	}
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil {
		slog.Warn("discarding persisted session", "reason", "malformed user id")
		return Session{}
	}
	restored := Session{UserID: id, Role: domain.UserRole(strings.TrimSpace(rawRole))}
	if !restored.Valid() {
		slog.Warn("discarding persisted session", "reason", "invalid identity")
		return Session{}
	}
	restored.Username, _, _ = s.storage.Get(KeyUsername)
	return restored
}

// Establish sets the session for user and persists it. The in-memory session
// is set even when persisting fails.
func (s *Store) Establish(user domain.User) error {
	next := Session{UserID: user.ID, Username: user.Username, Role: user.Role}
	if !next.Valid() {
		return fmt.Errorf("establish session: invalid user id=%d role=%q", user.ID, user.Role)
	}
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()
	err := s.storage.Set(map[string]string{
		KeyUserID:   strconv.FormatInt(user.ID, 10),
		KeyUsername: user.Username,
		KeyUserRole: string(user.Role),
	})
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Clear removes the persisted entries and resets the session. Calling it on
// an empty session is a no-op apart from the storage write.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.current = Session{}
	s.mu.Unlock()
	if err := s.storage.Remove(KeyUserID, KeyUsername, KeyUserRole); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Current returns the session and whether one is established.
func (s *Store) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current.Valid()
}
