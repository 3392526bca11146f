package store

import (
	"errors"
	"testing"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
)

func TestMemoryStoreUserUniqueness(t *testing.T) {
	s := NewMemoryStore()
	first, err := s.CreateUser(domain.User{Username: "alice", Email: "a@x", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if first.ID != 1 || first.CreatedAt.IsZero() {
		t.Fatalf("unexpected user: %+v", first)
	}
	if _, err := s.CreateUser(domain.User{Username: "alice", Email: "b@x"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate username, got %v", err)
	}
	if _, err := s.CreateUser(domain.User{Username: "bob", Email: "a@x"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate email, got %v", err)
	}
	ok, _ := s.HasUsername("alice")
	if !ok {
		t.Fatal("expected username to exist")
	}
	got, ok, _ := s.GetUserByID(first.ID)
	if !ok || got.Username != "alice" {
		t.Fatalf("lookup by id failed: %+v %v", got, ok)
	}
}

func TestMemoryStoreListUsersPaging(t *testing.T) {
	s := NewMemoryStore()
	for _, name := range []string{"a", "b", "c", "d"} {
		if _, err := s.CreateUser(domain.User{Username: name, Email: name + "@x"}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	tests := []struct {
		offset, limit int
		want          []string
	}{
		{0, 0, []string{"a", "b", "c", "d"}},
		{1, 2, []string{"b", "c"}},
		{3, 10, []string{"d"}},
		{9, 1, nil},
	}
	for _, tc := range tests {
		users, err := s.ListUsers(tc.offset, tc.limit)
		if err != nil {
			t.Fatalf("list users: %v", err)
		}
		if len(users) != len(tc.want) {
			t.Fatalf("offset=%d limit=%d: got %d users want %d", tc.offset, tc.limit, len(users), len(tc.want))
		}
		for i, u := range users {
			if u.Username != tc.want[i] {
				t.Fatalf("offset=%d limit=%d: got %q at %d want %q", tc.offset, tc.limit, u.Username, i, tc.want[i])
			}
		}
	}
}

func TestMemoryStoreMembershipsKeepCohortOrder(t *testing.T) {
	s := NewMemoryStore()
	u, _ := s.CreateUser(domain.User{Username: "alice", Email: "a@x"})
	c1, _ := s.CreateCohort(domain.Cohort{Name: "one"})
	c2, _ := s.CreateCohort(domain.Cohort{Name: "two"})
	if !c1.IsActive {
		t.Fatal("new cohorts should be active")
	}
	if _, err := s.CreateCohort(domain.Cohort{Name: "one"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate cohort name, got %v", err)
	}

	if _, err := s.AddMember(u.ID, c2.ID); err != nil {
		t.Fatalf("join c2: %v", err)
	}
	if _, err := s.AddMember(u.ID, c1.ID); err != nil {
		t.Fatalf("join c1: %v", err)
	}
	if _, err := s.AddMember(u.ID, c1.ID); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate membership, got %v", err)
	}

	joined, _ := s.ListCohortsByUser(u.ID)
	if len(joined) != 2 || joined[0].ID != c1.ID || joined[1].ID != c2.ID {
		t.Fatalf("unexpected joined cohorts: %+v", joined)
	}
	members, _ := s.ListMembers(c1.ID)
	if len(members) != 1 || members[0].ID != u.ID {
		t.Fatalf("unexpected members: %+v", members)
	}
	if n, _ := s.MemberCount(c2.ID); n != 1 {
		t.Fatalf("member count = %d", n)
	}
}

func TestMemoryStoreSetCohortDocument(t *testing.T) {
	s := NewMemoryStore()
	c, _ := s.CreateCohort(domain.Cohort{Name: "one"})
	updated, err := s.SetCohortDocument(c.ID, "book.pdf", "uploads/cohort_1_book.pdf", 12)
	if err != nil {
		t.Fatalf("set document: %v", err)
	}
	if !updated.HasDocument() || *updated.PDFFilename != "book.pdf" || updated.PDFPages != 12 {
		t.Fatalf("unexpected cohort: %+v", updated)
	}
	if _, err := s.SetCohortDocument(99, "x.pdf", "x", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreNotesAreScoped(t *testing.T) {
	s := NewMemoryStore()
	add := func(v domain.NoteVisibility, user, cohort int64, content string) {
		t.Helper()
		if _, err := s.CreateNote(v, domain.Note{UserID: user, CohortID: cohort, Content: content}); err != nil {
			t.Fatalf("create note: %v", err)
		}
	}
	add(domain.NotePrivate, 1, 1, "mine")
	add(domain.NotePrivate, 2, 1, "theirs")
	add(domain.NotePrivate, 1, 2, "other cohort")
	add(domain.NotePublic, 2, 1, "shared")

	private, _ := s.ListPrivateNotes(1, 1)
	if len(private) != 1 || private[0].Content != "mine" {
		t.Fatalf("private notes leaked: %+v", private)
	}
	public, _ := s.ListPublicNotes(1)
	if len(public) != 1 || public[0].Content != "shared" {
		t.Fatalf("unexpected public notes: %+v", public)
	}
	if n, _ := s.NoteCount(domain.NotePrivate, 0); n != 3 {
		t.Fatalf("private count = %d", n)
	}
	if n, _ := s.NoteCount(domain.NotePublic, 2); n != 0 {
		t.Fatalf("public count for cohort 2 = %d", n)
	}
	if _, err := s.CreateNote("draft", domain.Note{}); err == nil {
		t.Fatal("expected error for unknown visibility")
	}
}

func TestMemoryStoreChatMessages(t *testing.T) {
	s := NewMemoryStore()
	for _, text := range []string{"hi", "there"} {
		if _, err := s.CreateChatMessage(domain.ChatMessage{UserID: 1, CohortID: 3, Message: text}); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}
	if _, err := s.CreateChatMessage(domain.ChatMessage{UserID: 1, CohortID: 4, Message: "elsewhere"}); err != nil {
		t.Fatalf("create message: %v", err)
	}
	msgs, _ := s.ListChatMessages(3)
	if len(msgs) != 2 || msgs[0].Message != "hi" || msgs[1].Message != "there" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	if n, _ := s.ChatMessageCount(0); n != 3 {
		t.Fatalf("total messages = %d", n)
	}
}
