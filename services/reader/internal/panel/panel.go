// Package panel implements the reader sidebar: private notes, public notes
// and the cohort chat, each behind its own tab and cache.
package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
)

type Tab string

const (
	TabPrivate Tab = "private"
	TabPublic  Tab = "public"
	TabChat    Tab = "chat"
)

// Tabs lists the tabs in display order.
var Tabs = []Tab{TabPrivate, TabPublic, TabChat}

// Valid reports whether t is a known tab.
func (t Tab) Valid() bool {
	return t == TabPrivate || t == TabPublic || t == TabChat
}

var (
	ErrEmptyContent = errors.New("content must not be empty")
	ErrNotNoteTab   = errors.New("notes are added on the private or public tab")
	ErrUnknownTab   = errors.New("unknown tab")
	ErrClosed       = errors.New("panel closed")
)

// Client is the part of the API client the panel needs.
type Client interface {
	PrivateNotes(ctx context.Context, userID, cohortID int64) ([]domain.Note, error)
	PublicNotes(ctx context.Context, cohortID int64) ([]domain.Note, error)
	ChatMessages(ctx context.Context, cohortID int64) ([]domain.ChatMessage, error)
	CreatePrivateNote(ctx context.Context, req domain.CreateNoteRequest) (domain.Note, error)
	CreatePublicNote(ctx context.Context, req domain.CreateNoteRequest) (domain.Note, error)
	PostChatMessage(ctx context.Context, req domain.CreateChatMessageRequest) (domain.ChatMessage, error)
}

// Scope is the (user, cohort) pair every feed is filtered by.
type Scope struct {
	UserID   int64
	CohortID int64
}

// Panel holds the three feeds. All requests run under the panel's own
// context; after Close nothing is fetched and no state changes.
type Panel struct {
	client Client
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	scope    Scope
	active   Tab
	private  []domain.Note
	public   []domain.Note
	chat     []domain.ChatMessage
	noteText string
	chatText string
	closed   bool
}

// New creates a panel on the private tab. Nothing is fetched until Open.
func New(parent context.Context, client Client, scope Scope) *Panel {
	ctx, cancel := context.WithCancel(parent)
	return &Panel{
		client: client,
		ctx:    ctx,
		cancel: cancel,
		scope:  scope,
		active: TabPrivate,
	}
}

// Open fetches the active tab.
func (p *Panel) Open() error {
	return p.refresh()
}

// SwitchTab activates tab and fetches it. Re-selecting the active tab does
// nothing.
func (p *Panel) SwitchTab(tab Tab) error {
	if !tab.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTab, tab)
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.active == tab {
		p.mu.Unlock()
		return nil
	}
	p.active = tab
	p.mu.Unlock()
	return p.refresh()
}

// SetScope changes the user or cohort and refetches the active tab. The
// other tabs keep their lists until visited.
func (p *Panel) SetScope(scope Scope) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.scope == scope {
		p.mu.Unlock()
		return nil
	}
	p.scope = scope
	p.mu.Unlock()
	return p.refresh()
}

func (p *Panel) refresh() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	tab, scope := p.active, p.scope
	p.mu.Unlock()

	var (
		notes []domain.Note
		msgs  []domain.ChatMessage
		err   error
	)
	switch tab {
	case TabPrivate:
		notes, err = p.client.PrivateNotes(p.ctx, scope.UserID, scope.CohortID)
	case TabPublic:
		notes, err = p.client.PublicNotes(p.ctx, scope.CohortID)
	case TabChat:
		msgs, err = p.client.ChatMessages(p.ctx, scope.CohortID)
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", tab, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.scope != scope {
		// a newer scope owns the caches now
		return nil
	}
	switch tab {
	case TabPrivate:
		p.private = notes
	case TabPublic:
		p.public = notes
	case TabChat:
		p.chat = msgs
	}
	return nil
}

// SubmitNote adds a note on the active notes tab. Blank content is rejected
// without a request. The draft is cleared on success and kept on failure.
// A non-positive page is stored as page 1.
func (p *Panel) SubmitNote(content string, page int) (domain.Note, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.Note{}, ErrClosed
	}
	p.noteText = content
	tab, scope := p.active, p.scope
	p.mu.Unlock()

	if tab == TabChat {
		return domain.Note{}, ErrNotNoteTab
	}
	if strings.TrimSpace(content) == "" {
		return domain.Note{}, ErrEmptyContent
	}
	if page <= 0 {
		page = 1
	}
	req := domain.CreateNoteRequest{
		UserID:     scope.UserID,
		CohortID:   scope.CohortID,
		DocumentID: domain.DocumentID(scope.CohortID),
		Content:    content,
		PageNumber: page,
	}
	create := p.client.CreatePrivateNote
	if tab == TabPublic {
		create = p.client.CreatePublicNote
	}
	note, err := create(p.ctx, req)
	if err != nil {
		return domain.Note{}, fmt.Errorf("save note: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return note, ErrClosed
	}
	if p.scope == scope {
		if tab == TabPublic {
			p.public = append(p.public, note)
		} else {
			p.private = append(p.private, note)
		}
	}
	if p.noteText == content {
		p.noteText = ""
	}
	return note, nil
}

// SubmitChatMessage posts to the cohort chat with the same rules as SubmitNote.
func (p *Panel) SubmitChatMessage(text string) (domain.ChatMessage, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.ChatMessage{}, ErrClosed
	}
	p.chatText = text
	scope := p.scope
	p.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		return domain.ChatMessage{}, ErrEmptyContent
	}
	msg, err := p.client.PostChatMessage(p.ctx, domain.CreateChatMessageRequest{
		UserID:     scope.UserID,
		CohortID:   scope.CohortID,
		DocumentID: domain.DocumentID(scope.CohortID),
		Message:    text,
	})
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("send message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return msg, ErrClosed
	}
	if p.scope == scope {
		p.chat = append(p.chat, msg)
	}
	if p.chatText == text {
		p.chatText = ""
	}
	return msg, nil
}

// Close cancels in-flight requests. Later calls return ErrClosed.
func (p *Panel) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()
}

func (p *Panel) ActiveTab() Tab {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

func (p *Panel) Scope() Scope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scope
}

// Notes returns a copy of the cached list of a notes tab.
func (p *Panel) Notes(tab Tab) []domain.Note {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch tab {
	case TabPrivate:
		return append([]domain.Note(nil), p.private...)
	case TabPublic:
		return append([]domain.Note(nil), p.public...)
	}
	return nil
}

// Messages returns a copy of the cached chat.
func (p *Panel) Messages() []domain.ChatMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.ChatMessage(nil), p.chat...)
}

// NoteDraft is the note text that has not been saved yet.
func (p *Panel) NoteDraft() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.noteText
}

// ChatDraft is the message text that has not been sent yet.
func (p *Panel) ChatDraft() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chatText
}

// FormatTimestamp renders t as "Jan 5, 3:42 PM" in loc.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("Jan 2, 3:04 PM")
}
