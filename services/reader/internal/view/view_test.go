package view

import (
	"context"
	"errors"
	"testing"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/session"
)

func TestDerive(t *testing.T) {
	student := session.Session{UserID: 2, Username: "alice", Role: domain.RoleUser}
	admin := session.Session{UserID: 1, Username: "admin", Role: domain.RoleAdmin}
	cohort := &domain.Cohort{ID: 7, Name: "Algorithms"}

	tests := []struct {
		name     string
		session  session.Session
		selected *domain.Cohort
		want     string
	}{
		{"no session", session.Session{}, nil, "unauthenticated"},
		{"no session with stale selection", session.Session{}, cohort, "unauthenticated"},
		{"admin", admin, nil, "admin"},
		{"admin ignores selection", admin, cohort, "admin"},
		{"student without cohort", student, nil, "cohorts"},
		{"student with cohort", student, cohort, "reader"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				if got := Derive(tc.session, tc.selected).Name(); got != tc.want {
					t.Fatalf("Derive() = %s, want %s", got, tc.want)
				}
			}
		})
	}
	if r, ok := Derive(student, cohort).(Reader); !ok || r.Cohort.ID != 7 {
		t.Fatalf("reader screen does not carry the cohort: %+v", r)
	}
}

type fakeAuth struct {
	users map[string]domain.User
	calls int
	err   error
}

func (f *fakeAuth) Login(_ context.Context, username, _ string) (domain.User, error) {
	f.calls++
	if f.err != nil {
		return domain.User{}, f.err
	}
	u, ok := f.users[username]
	if !ok {
		return domain.User{}, errors.New("Invalid username or password")
	}
	return u, nil
}

func (f *fakeAuth) Register(_ context.Context, req domain.RegisterRequest) (domain.User, error) {
	f.calls++
	if f.err != nil {
		return domain.User{}, f.err
	}
	return domain.User{ID: 42, Username: req.Username, Email: req.Email, Role: domain.RoleUser}, nil
}

func newOrchestrator(auth *fakeAuth) (*Orchestrator, *session.MemoryStorage) {
	storage := session.NewMemoryStorage()
	return NewOrchestrator(auth, session.NewStore(storage)), storage
}

func TestOrchestratorStudentFlow(t *testing.T) {
	auth := &fakeAuth{users: map[string]domain.User{"alice": {ID: 2, Username: "alice", Role: domain.RoleUser}}}
	o, storage := newOrchestrator(auth)
	if _, ok := o.Start().(Unauthenticated); !ok {
		t.Fatal("expected unauthenticated start")
	}

	screen, err := o.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, ok := screen.(CohortPicker); !ok {
		t.Fatalf("expected picker, got %s", screen.Name())
	}
	screen, err = o.SelectCohort(domain.Cohort{ID: 7})
	if err != nil || screen.Name() != "reader" {
		t.Fatalf("select cohort: %s %v", screen.Name(), err)
	}
	if got := o.Back(); got.Name() != "cohorts" {
		t.Fatalf("back = %s", got.Name())
	}
	o.SelectCohort(domain.Cohort{ID: 7})

	// a restarted process resumes the picker, not the reader
	restarted := NewOrchestrator(auth, session.NewStore(storage))
	if got := restarted.Start(); got.Name() != "cohorts" {
		t.Fatalf("restart = %s", got.Name())
	}

	for i := 0; i < 2; i++ {
		screen, err = o.Logout()
		if err != nil {
			t.Fatalf("logout: %v", err)
		}
		if _, ok := screen.(Unauthenticated); !ok {
			t.Fatalf("logout #%d = %s", i, screen.Name())
		}
	}

	// re-login must not resume the old reader view
	screen, _ = o.Login(context.Background(), "alice", "pw")
	if screen.Name() != "cohorts" {
		t.Fatalf("re-login resumed %s", screen.Name())
	}
}

func TestOrchestratorAdminAndErrors(t *testing.T) {
	auth := &fakeAuth{users: map[string]domain.User{"admin": {ID: 1, Username: "admin", Role: domain.RoleAdmin}}}
	o, _ := newOrchestrator(auth)
	o.Start()

	if _, err := o.Login(context.Background(), "  ", "pw"); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected missing fields, got %v", err)
	}
	if _, err := o.Register(context.Background(), domain.RegisterRequest{Username: "x", Password: "pw"}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected missing fields, got %v", err)
	}
	if auth.calls != 0 {
		t.Fatalf("validation errors must not reach the api, calls=%d", auth.calls)
	}
	if _, err := o.SelectCohort(domain.Cohort{ID: 1}); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected not signed in, got %v", err)
	}

	screen, err := o.Login(context.Background(), "nobody", "pw")
	if err == nil || screen.Name() != "unauthenticated" {
		t.Fatalf("failed login: %s %v", screen.Name(), err)
	}

	screen, err = o.Login(context.Background(), "admin", "admin@123")
	if err != nil || screen.Name() != "admin" {
		t.Fatalf("admin login: %s %v", screen.Name(), err)
	}
	if _, err := o.SelectCohort(domain.Cohort{ID: 1}); !errors.Is(err, ErrCohortSelection) {
		t.Fatalf("expected admin selection to be rejected, got %v", err)
	}
	if got := o.Current(); got.Name() != "admin" {
		t.Fatalf("current = %s", got.Name())
	}
}

func TestOrchestratorRegister(t *testing.T) {
	auth := &fakeAuth{}
	o, storage := newOrchestrator(auth)
	screen, err := o.Register(context.Background(), domain.RegisterRequest{Username: "bob", Email: "b@example.com", Password: "pw"})
	if err != nil || screen.Name() != "cohorts" {
		t.Fatalf("register: %s %v", screen.Name(), err)
	}
	if v, _, _ := storage.Get(session.KeyUsername); v != "bob" {
		t.Fatalf("persisted username = %q", v)
	}
}
