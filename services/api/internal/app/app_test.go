package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/VVITTRC/Textbook-reading-club/internal/pdftest"
	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
	"github.com/VVITTRC/Textbook-reading-club/pkg/storage"
	"github.com/VVITTRC/Textbook-reading-club/pkg/store"
)

func newTestApp(t *testing.T, allowAdminSignup bool) *App {
	t.Helper()
	objects, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	a, err := New(Config{Store: store.NewMemoryStore(), Objects: objects, AllowAdminSignup: allowAdminSignup})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func seedAdmin(t *testing.T, a *App) domain.User {
	t.Helper()
	admin, created, err := a.EnsureAdmin("admin", "admin@example.com", "admin@123")
	if err != nil || !created {
		t.Fatalf("ensure admin: created=%v err=%v", created, err)
	}
	return admin
}

func register(t *testing.T, a *App, username string) domain.User {
	t.Helper()
	u, err := a.Register(domain.RegisterRequest{Username: username, Email: username + "@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return u
}

func TestEnsureAdminAndLogin(t *testing.T) {
	a := newTestApp(t, false)
	admin := seedAdmin(t, a)
	if admin.Role != domain.RoleAdmin {
		t.Fatalf("seeded role = %q", admin.Role)
	}
	again, created, err := a.EnsureAdmin("admin", "other@example.com", "changed")
	if err != nil || created || again.ID != admin.ID {
		t.Fatalf("second ensure should be a no-op: %+v created=%v err=%v", again, created, err)
	}

	got, err := a.Login("admin", "admin@123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != admin.ID || got.Role != domain.RoleAdmin {
		t.Fatalf("unexpected login user: %+v", got)
	}
	if _, err := a.Login("admin", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := a.Login("ghost", "admin@123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestRegisterRules(t *testing.T) {
	a := newTestApp(t, false)
	register(t, a, "alice")

	tests := []struct {
		name string
		req  domain.RegisterRequest
		want error
	}{
		{"duplicate username", domain.RegisterRequest{Username: "alice", Email: "new@example.com", Password: "pw"}, ErrUsernameTaken},
		{"duplicate email", domain.RegisterRequest{Username: "alice2", Email: "ALICE@example.com", Password: "pw"}, ErrEmailTaken},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := a.Register(tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	var inputErr *InputError
	for _, req := range []domain.RegisterRequest{
		{Username: " ", Email: "x@example.com", Password: "pw"},
		{Username: "bob", Email: "not-an-email", Password: "pw"},
		{Username: "bob", Email: "bob@example.com", Password: " "},
		{Username: "bob", Email: "bob@example.com", Password: "pw", Role: "owner"},
	} {
		if _, err := a.Register(req); !errors.As(err, &inputErr) {
			t.Fatalf("expected input error for %+v, got %v", req, err)
		}
	}
}

func TestRegisterAdminRoleGate(t *testing.T) {
	closed := newTestApp(t, false)
	u, err := closed.Register(domain.RegisterRequest{Username: "eve", Email: "eve@example.com", Password: "pw", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != domain.RoleUser {
		t.Fatalf("admin signup should be downgraded, got %q", u.Role)
	}

	open := newTestApp(t, true)
	u, err = open.Register(domain.RegisterRequest{Username: "eve", Email: "eve@example.com", Password: "pw", Role: domain.RoleAdmin})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Role != domain.RoleAdmin {
		t.Fatalf("admin signup should be honoured, got %q", u.Role)
	}
}

func TestCohortLifecycle(t *testing.T) {
	a := newTestApp(t, false)
	admin := seedAdmin(t, a)
	alice := register(t, a, "alice")

	if _, err := a.CreateCohort(domain.CreateCohortRequest{Name: "Dune", CreatedBy: alice.ID}); !errors.Is(err, ErrCohortAdminOnly) {
		t.Fatalf("expected admin-only error, got %v", err)
	}
	if _, err := a.CreateCohort(domain.CreateCohortRequest{Name: "Dune", CreatedBy: 999}); !errors.Is(err, ErrCohortAdminOnly) {
		t.Fatalf("expected admin-only error for unknown creator, got %v", err)
	}
	cohort, err := a.CreateCohort(domain.CreateCohortRequest{Name: " Dune ", Description: "spice", CreatedBy: admin.ID})
	if err != nil {
		t.Fatalf("create cohort: %v", err)
	}
	if cohort.Name != "Dune" || !cohort.IsActive || cohort.HasDocument() {
		t.Fatalf("unexpected cohort: %+v", cohort)
	}
	if _, err := a.CreateCohort(domain.CreateCohortRequest{Name: "Dune", CreatedBy: admin.ID}); !errors.Is(err, ErrCohortNameTaken) {
		t.Fatalf("expected duplicate name, got %v", err)
	}

	if _, err := a.JoinCohort(domain.JoinRequest{UserID: alice.ID, CohortID: cohort.ID}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := a.JoinCohort(domain.JoinRequest{UserID: alice.ID, CohortID: cohort.ID}); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected already member, got %v", err)
	}
	if _, err := a.JoinCohort(domain.JoinRequest{UserID: alice.ID, CohortID: 42}); !errors.Is(err, ErrCohortNotFound) {
		t.Fatalf("expected cohort not found, got %v", err)
	}
	if _, err := a.JoinCohort(domain.JoinRequest{UserID: 42, CohortID: cohort.ID}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	joined, _ := a.UserCohorts(alice.ID)
	if len(joined) != 1 || joined[0].ID != cohort.ID {
		t.Fatalf("unexpected joined cohorts: %+v", joined)
	}
}

func TestUploadDocument(t *testing.T) {
	a := newTestApp(t, false)
	admin := seedAdmin(t, a)
	cohort, err := a.CreateCohort(domain.CreateCohortRequest{Name: "Dune", CreatedBy: admin.ID})
	if err != nil {
		t.Fatalf("create cohort: %v", err)
	}
	ctx := context.Background()
	doc := pdftest.Build(3)

	res, err := a.UploadDocument(ctx, cohort.ID, "dune.pdf", bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if res.Filename != "dune.pdf" || res.Path != "/uploads/cohort_1_dune.pdf" {
		t.Fatalf("unexpected upload result: %+v", res)
	}
	got, _ := a.GetCohort(cohort.ID)
	if !got.HasDocument() || *got.PDFFilename != "dune.pdf" || got.PDFPages != 3 {
		t.Fatalf("cohort not updated: %+v", got)
	}

	obj, info, err := a.OpenDocument(ctx, "cohort_1_dune.pdf")
	if err != nil {
		t.Fatalf("open document: %v", err)
	}
	defer obj.Close()
	body, _ := io.ReadAll(obj)
	if !bytes.Equal(body, doc) || info.Size != int64(len(doc)) {
		t.Fatalf("stored document differs")
	}
	if _, _, err := a.OpenDocument(ctx, "../secret"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected traversal to be rejected, got %v", err)
	}

	tests := []struct {
		name     string
		cohortID int64
		filename string
		body     []byte
		want     error
	}{
		{"unknown cohort", 99, "dune.pdf", doc, ErrCohortNotFound},
		{"wrong extension", cohort.ID, "dune.txt", doc, ErrNotPDF},
		{"not a pdf", cohort.ID, "fake.pdf", []byte("hello world, definitely not a pdf"), ErrNotPDF},
		{"truncated pdf", cohort.ID, "broken.pdf", doc[:40], ErrNotPDF},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.UploadDocument(ctx, tc.cohortID, tc.filename, bytes.NewReader(tc.body), int64(len(tc.body)))
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestNotesAndChat(t *testing.T) {
	a := newTestApp(t, false)
	admin := seedAdmin(t, a)
	alice := register(t, a, "alice")
	bob := register(t, a, "bob")
	cohort, _ := a.CreateCohort(domain.CreateCohortRequest{Name: "Dune", CreatedBy: admin.ID})

	highlight := `{"text":"fear is the mind-killer"}`
	if _, err := a.CreateNote(domain.NotePrivate, domain.CreateNoteRequest{UserID: alice.ID, CohortID: cohort.ID, Content: "mine", PageNumber: 4, HighlightData: &highlight}); err != nil {
		t.Fatalf("private note: %v", err)
	}
	if _, err := a.CreateNote(domain.NotePrivate, domain.CreateNoteRequest{UserID: bob.ID, CohortID: cohort.ID, Content: "bob's"}); err != nil {
		t.Fatalf("private note: %v", err)
	}
	pub, err := a.CreateNote(domain.NotePublic, domain.CreateNoteRequest{UserID: bob.ID, CohortID: cohort.ID, Content: "shared", PageNumber: 1})
	if err != nil {
		t.Fatalf("public note: %v", err)
	}
	if pub.DocumentID != "cohort_1" {
		t.Fatalf("document id = %q", pub.DocumentID)
	}

	mine, _ := a.PrivateNotes(alice.ID, cohort.ID)
	if len(mine) != 1 || mine[0].Content != "mine" || mine[0].HighlightData == nil || *mine[0].HighlightData != highlight {
		t.Fatalf("unexpected private notes: %+v", mine)
	}

	bad := "{not json"
	var inputErr *InputError
	if _, err := a.CreateNote(domain.NotePublic, domain.CreateNoteRequest{UserID: bob.ID, CohortID: cohort.ID, Content: "x", HighlightData: &bad}); !errors.As(err, &inputErr) {
		t.Fatalf("expected highlight validation error, got %v", err)
	}
	if _, err := a.CreateNote(domain.NotePublic, domain.CreateNoteRequest{UserID: bob.ID, CohortID: cohort.ID, Content: "  "}); !errors.As(err, &inputErr) {
		t.Fatalf("expected empty content error, got %v", err)
	}
	if _, err := a.CreateNote(domain.NotePublic, domain.CreateNoteRequest{UserID: bob.ID, CohortID: 7, Content: "x"}); !errors.Is(err, ErrCohortNotFound) {
		t.Fatalf("expected cohort not found, got %v", err)
	}

	if _, err := a.PostChatMessage(domain.CreateChatMessageRequest{UserID: alice.ID, CohortID: cohort.ID, Message: "hello"}); err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, err := a.PostChatMessage(domain.CreateChatMessageRequest{UserID: alice.ID, CohortID: cohort.ID, Message: "\n"}); !errors.As(err, &inputErr) {
		t.Fatalf("expected empty message error, got %v", err)
	}
	msgs, _ := a.ChatMessages(cohort.ID)
	if len(msgs) != 1 || msgs[0].Message != "hello" {
		t.Fatalf("unexpected chat: %+v", msgs)
	}
}

func TestAdminStatsAndActivity(t *testing.T) {
	a := newTestApp(t, false)
	admin := seedAdmin(t, a)
	alice := register(t, a, "alice")
	cohort, _ := a.CreateCohort(domain.CreateCohortRequest{Name: "Dune", CreatedBy: admin.ID})
	if _, err := a.JoinCohort(domain.JoinRequest{UserID: alice.ID, CohortID: cohort.ID}); err != nil {
		t.Fatalf("join: %v", err)
	}
	a.CreateNote(domain.NotePrivate, domain.CreateNoteRequest{UserID: alice.ID, CohortID: cohort.ID, Content: "p"})
	a.CreateNote(domain.NotePublic, domain.CreateNoteRequest{UserID: alice.ID, CohortID: cohort.ID, Content: "q"})
	a.PostChatMessage(domain.CreateChatMessageRequest{UserID: alice.ID, CohortID: cohort.ID, Message: "hi"})

	if _, err := a.Stats(alice.ID); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected admin required, got %v", err)
	}
	stats, err := a.Stats(admin.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := domain.AdminStats{TotalUsers: 2, TotalCohorts: 1, TotalNotes: 2, TotalMessages: 1}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}

	activity, err := a.Activity(admin.ID, cohort.ID)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if activity != (domain.CohortActivity{CohortID: cohort.ID, Members: 1, Notes: 1, Messages: 1}) {
		t.Fatalf("unexpected activity: %+v", activity)
	}
	if _, err := a.Activity(alice.ID, cohort.ID); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected admin required, got %v", err)
	}
	if _, err := a.Activity(admin.ID, 77); !errors.Is(err, ErrCohortNotFound) {
		t.Fatalf("expected cohort not found, got %v", err)
	}
}

func TestListUsersPaging(t *testing.T) {
	a := newTestApp(t, false)
	for _, name := range []string{"a", "b", "c"} {
		register(t, a, name)
	}
	users, err := a.ListUsers(1, 0)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 || users[0].Username != "b" {
		t.Fatalf("unexpected page: %+v", users)
	}
	if _, err := a.GetUser(99); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}
