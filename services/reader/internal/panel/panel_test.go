package panel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
)

type fakeClient struct {
	mu       sync.Mutex
	private  []domain.Note
	public   []domain.Note
	chat     []domain.ChatMessage
	fetches  map[Tab]int
	creates  int
	failNext error
	// release, when set, holds PostChatMessage until closed
	release chan struct{}
	nextID  int64
}

func newFakeClient() *fakeClient {
	return &fakeClient{fetches: map[Tab]int{}}
}

func (f *fakeClient) fail() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeClient) PrivateNotes(ctx context.Context, userID, cohortID int64) ([]domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[TabPrivate]++
	if err := f.fail(); err != nil {
		return nil, err
	}
	var out []domain.Note
	for _, n := range f.private {
		if n.UserID == userID && n.CohortID == cohortID {
			out = append(out, n)
		}
	}
	return out, ctx.Err()
}

func (f *fakeClient) PublicNotes(_ context.Context, cohortID int64) ([]domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[TabPublic]++
	if err := f.fail(); err != nil {
		return nil, err
	}
	var out []domain.Note
	for _, n := range f.public {
		if n.CohortID == cohortID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeClient) ChatMessages(_ context.Context, cohortID int64) ([]domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[TabChat]++
	if err := f.fail(); err != nil {
		return nil, err
	}
	var out []domain.ChatMessage
	for _, m := range f.chat {
		if m.CohortID == cohortID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeClient) createNote(list *[]domain.Note, req domain.CreateNoteRequest) (domain.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if err := f.fail(); err != nil {
		return domain.Note{}, err
	}
	f.nextID++
	n := domain.Note{ID: f.nextID, UserID: req.UserID, CohortID: req.CohortID, DocumentID: req.DocumentID, Content: req.Content, PageNumber: req.PageNumber}
	*list = append(*list, n)
	return n, nil
}

func (f *fakeClient) CreatePrivateNote(_ context.Context, req domain.CreateNoteRequest) (domain.Note, error) {
	return f.createNote(&f.private, req)
}

func (f *fakeClient) CreatePublicNote(_ context.Context, req domain.CreateNoteRequest) (domain.Note, error) {
	return f.createNote(&f.public, req)
}

func (f *fakeClient) PostChatMessage(_ context.Context, req domain.CreateChatMessageRequest) (domain.ChatMessage, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if err := f.fail(); err != nil {
		return domain.ChatMessage{}, err
	}
	f.nextID++
	m := domain.ChatMessage{ID: f.nextID, UserID: req.UserID, CohortID: req.CohortID, DocumentID: req.DocumentID, Message: req.Message}
	f.chat = append(f.chat, m)
	return m, nil
}

func (f *fakeClient) fetchCount(tab Tab) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[tab]
}

func TestPanelFetchesOnlyActiveTabOnChange(t *testing.T) {
	client := newFakeClient()
	p := New(context.Background(), client, Scope{UserID: 2, CohortID: 7})
	defer p.Close()

	if err := p.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if client.fetchCount(TabPrivate) != 1 || client.fetchCount(TabPublic) != 0 || client.fetchCount(TabChat) != 0 {
		t.Fatalf("open fetched %v", client.fetches)
	}
	if err := p.SwitchTab(TabPrivate); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if client.fetchCount(TabPrivate) != 1 {
		t.Fatal("re-selecting the active tab must not fetch")
	}
	if err := p.SwitchTab(TabChat); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if client.fetchCount(TabChat) != 1 || client.fetchCount(TabPublic) != 0 {
		t.Fatalf("switch fetched %v", client.fetches)
	}
	if err := p.SetScope(Scope{UserID: 2, CohortID: 7}); err != nil {
		t.Fatalf("same scope: %v", err)
	}
	if client.fetchCount(TabChat) != 1 {
		t.Fatal("unchanged scope must not fetch")
	}
	if err := p.SetScope(Scope{UserID: 2, CohortID: 8}); err != nil {
		t.Fatalf("set scope: %v", err)
	}
	if client.fetchCount(TabChat) != 2 || client.fetchCount(TabPrivate) != 1 {
		t.Fatalf("scope change fetched %v", client.fetches)
	}
	if err := p.SwitchTab("drafts"); !errors.Is(err, ErrUnknownTab) {
		t.Fatalf("expected unknown tab, got %v", err)
	}
}

func TestPanelChatScenario(t *testing.T) {
	client := newFakeClient()
	p := New(context.Background(), client, Scope{UserID: 2, CohortID: 7})
	defer p.Close()
	p.Open()
	if err := p.SwitchTab(TabChat); err != nil {
		t.Fatalf("switch: %v", err)
	}

	msg, err := p.SubmitChatMessage("hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs := p.Messages()
	if len(msgs) != 1 || msgs[len(msgs)-1].Message != "hello" || msgs[0].ID != msg.ID {
		t.Fatalf("unexpected chat: %+v", msgs)
	}
	if p.ChatDraft() != "" {
		t.Fatalf("draft not cleared: %q", p.ChatDraft())
	}

	p.SwitchTab(TabPrivate)
	p.SwitchTab(TabChat)
	msgs = p.Messages()
	if len(msgs) != 1 || msgs[0].Message != "hello" {
		t.Fatalf("tab round trip changed chat: %+v", msgs)
	}
}

func TestPanelRejectsBlankInput(t *testing.T) {
	client := newFakeClient()
	p := New(context.Background(), client, Scope{UserID: 2, CohortID: 7})
	defer p.Close()
	p.Open()

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := p.SubmitNote(text, 3); !errors.Is(err, ErrEmptyContent) {
			t.Fatalf("note %q: expected ErrEmptyContent, got %v", text, err)
		}
		if _, err := p.SubmitChatMessage(text); !errors.Is(err, ErrEmptyContent) {
			t.Fatalf("chat %q: expected ErrEmptyContent, got %v", text, err)
		}
	}
	if client.creates != 0 {
		t.Fatalf("blank input issued %d requests", client.creates)
	}
	if len(p.Notes(TabPrivate)) != 0 || len(p.Messages()) != 0 {
		t.Fatal("blank input mutated a list")
	}
}

func TestPanelSubmitNote(t *testing.T) {
	client := newFakeClient()
	p := New(context.Background(), client, Scope{UserID: 2, CohortID: 7})
	defer p.Close()
	p.Open()

	note, err := p.SubmitNote("first", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if note.PageNumber != 1 || note.DocumentID != "cohort_7" {
		t.Fatalf("unexpected note: %+v", note)
	}
	client.failNext = errors.New("Cohort not found")
	if _, err := p.SubmitNote("second", 4); err == nil {
		t.Fatal("expected failure")
	}
	if p.NoteDraft() != "second" {
		t.Fatalf("draft lost on failure: %q", p.NoteDraft())
	}
	if got := p.Notes(TabPrivate); len(got) != 1 || got[0].Content != "first" {
		t.Fatalf("failed submit changed list: %+v", got)
	}
	if _, err := p.SubmitNote("second", 4); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := p.Notes(TabPrivate); len(got) != 2 || got[1].Content != "second" || got[1].PageNumber != 4 {
		t.Fatalf("retry not appended at the end: %+v", got)
	}
	if p.NoteDraft() != "" {
		t.Fatalf("draft not cleared: %q", p.NoteDraft())
	}

	p.SwitchTab(TabPublic)
	if _, err := p.SubmitNote("shared", 2); err != nil {
		t.Fatalf("public submit: %v", err)
	}
	if len(p.Notes(TabPublic)) != 1 || len(p.Notes(TabPrivate)) != 2 {
		t.Fatal("public note landed in the wrong list")
	}

	p.SwitchTab(TabChat)
	if _, err := p.SubmitNote("on chat", 1); !errors.Is(err, ErrNotNoteTab) {
		t.Fatalf("expected ErrNotNoteTab, got %v", err)
	}
}

func TestPanelLoadErrorKeepsCache(t *testing.T) {
	client := newFakeClient()
	client.public = []domain.Note{{ID: 1, CohortID: 7, Content: "x"}}
	p := New(context.Background(), client, Scope{UserID: 2, CohortID: 7})
	defer p.Close()
	p.SwitchTab(TabPublic)
	p.SwitchTab(TabPrivate)
	client.failNext = errors.New("boom")
	if err := p.SwitchTab(TabPublic); err == nil {
		t.Fatal("expected load error")
	}
	if got := p.Notes(TabPublic); len(got) != 1 {
		t.Fatalf("load error dropped cache: %+v", got)
	}
}

func TestPanelCloseDiscardsLateResponses(t *testing.T) {
	client := newFakeClient()
	client.release = make(chan struct{})
	p := New(context.Background(), client, Scope{UserID: 2, CohortID: 7})

	done := make(chan error, 1)
	go func() {
		_, err := p.SubmitChatMessage("late")
		done <- err
	}()
	// wait until the submit recorded its draft, then close underneath it
	deadline := time.Now().Add(2 * time.Second)
	for p.ChatDraft() != "late" {
		if time.Now().After(deadline) {
			t.Fatal("submit did not start")
		}
		time.Sleep(time.Millisecond)
	}
	p.Close()
	close(client.release)

	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if len(p.Messages()) != 0 {
		t.Fatal("closed panel was mutated")
	}
	if err := p.Open(); !errors.Is(err, ErrClosed) {
		t.Fatalf("open after close: %v", err)
	}
}

func TestPanelCloseCancelsRequests(t *testing.T) {
	client := newFakeClient()
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := New(parent, client, Scope{UserID: 2, CohortID: 7})
	p.Close()
	if err := p.ctx.Err(); !errors.Is(err, context.Canceled) {
		t.Fatalf("panel context not cancelled: %v", err)
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, time.January, 5, 15, 42, 0, 0, time.UTC)
	tests := []struct {
		loc  *time.Location
		want string
	}{
		{time.UTC, "Jan 5, 3:42 PM"},
		{time.FixedZone("UTC+9", 9*3600), "Jan 6, 12:42 AM"},
	}
	for _, tc := range tests {
		if got := FormatTimestamp(ts, tc.loc); got != tc.want {
			t.Fatalf("FormatTimestamp(%s) = %q, want %q", tc.loc, got, tc.want)
		}
	}
}
