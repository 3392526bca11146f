package view

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/session"
)

var (
	ErrMissingFields   = errors.New("please fill in all fields")
	ErrNotSignedIn     = errors.New("not signed in")
	ErrCohortSelection = errors.New("only students open cohorts in the reader")
)

// Authenticator is the part of the API client the orchestrator needs.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (domain.User, error)
	Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error)
}

// Orchestrator owns the session store and the selected cohort. The current
// screen is never stored; it is derived on every call.
type Orchestrator struct {
	auth     Authenticator
	sessions *session.Store

	mu       sync.Mutex
	selected *domain.Cohort
}

func NewOrchestrator(auth Authenticator, sessions *session.Store) *Orchestrator {
	return &Orchestrator{auth: auth, sessions: sessions}
}

// Start restores the persisted session and returns the first screen.
func (o *Orchestrator) Start() Screen {
	o.sessions.Restore()
	return o.Current()
}

// Current derives the active screen.
func (o *Orchestrator) Current() Screen {
	s, _ := o.sessions.Current()
	o.mu.Lock()
	defer o.mu.Unlock()
	return Derive(s, o.selected)
}

// Login authenticates and establishes the session.
func (o *Orchestrator) Login(ctx context.Context, username, password string) (Screen, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return o.Current(), ErrMissingFields
	}
	user, err := o.auth.Login(ctx, username, password)
	if err != nil {
		return o.Current(), err
	}
	return o.signIn(user)
}

// Register creates an account and signs it in.
func (o *Orchestrator) Register(ctx context.Context, req domain.RegisterRequest) (Screen, error) {
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return o.Current(), ErrMissingFields
	}
	user, err := o.auth.Register(ctx, req)
	if err != nil {
		return o.Current(), err
	}
	return o.signIn(user)
}

func (o *Orchestrator) signIn(user domain.User) (Screen, error) {
	o.mu.Lock()
	o.selected = nil
	o.mu.Unlock()
	if err := o.sessions.Establish(user); err != nil {
		if _, ok := o.sessions.Current(); !ok {
			return o.Current(), err
		}
		slog.Warn("session not persisted", "user_id", user.ID, "err", err)
	}
	return o.Current(), nil
}

// SelectCohort opens a cohort in the reader. Only valid from the picker.
func (o *Orchestrator) SelectCohort(c domain.Cohort) (Screen, error) {
	s, ok := o.sessions.Current()
	if !ok {
		return o.Current(), ErrNotSignedIn
	}
	if s.Role != domain.RoleUser {
		return o.Current(), ErrCohortSelection
	}
	o.mu.Lock()
	selected := c
	o.selected = &selected
	o.mu.Unlock()
	return o.Current(), nil
}

// Back returns from the reader to the cohort picker.
func (o *Orchestrator) Back() Screen {
	o.mu.Lock()
	o.selected = nil
	o.mu.Unlock()
	return o.Current()
}

// Logout clears the session and the selection. The returned screen is
// always Unauthenticated, even if the persisted copy could not be removed.
func (o *Orchestrator) Logout() (Screen, error) {
	o.mu.Lock()
	o.selected = nil
	o.mu.Unlock()
	err := o.sessions.Clear()
	return o.Current(), err
}
