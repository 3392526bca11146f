package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
)

// MemoryStore keeps records in-process. Slices preserve insertion order,
// which is also ID order.
type MemoryStore struct {
	mu       sync.RWMutex
	users    []domain.User
	cohorts  []domain.Cohort
	members  []domain.Membership
	notes    map[domain.NoteVisibility][]domain.Note
	messages []domain.ChatMessage
	seq      map[string]int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		notes: make(map[domain.NoteVisibility][]domain.Note),
		seq:   make(map[string]int64),
	}
}

func (m *MemoryStore) nextID(table string) int64 {
	m.seq[table]++
	return m.seq[table]
}

// CreateUser registers a user; username and email are unique.
func (m *MemoryStore) CreateUser(u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return domain.User{}, ErrDuplicate
		}
	}
	u.ID = m.nextID("users")
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.users = append(m.users, u)
	return u, nil
}

// GetUserByID retrieves a user by ID.
func (m *MemoryStore) GetUserByID(id int64) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// GetUserByUsername retrieves a user by username.
func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

// HasUsername checks if username exists.
func (m *MemoryStore) HasUsername(username string) (bool, error) {
	_, ok, err := m.GetUserByUsername(username)
	return ok, err
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// ListUsers returns a page of users; limit <= 0 means no limit.
func (m *MemoryStore) ListUsers(offset, limit int) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(m.users) {
		return []domain.User{}, nil
	}
	end := len(m.users)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	res := make([]domain.User, end-offset)
	copy(res, m.users[offset:end])
	return res, nil
}

// UserCount returns number of users.
func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// CreateCohort inserts an active cohort; names are unique.
func (m *MemoryStore) CreateCohort(c domain.Cohort) (domain.Cohort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.cohorts {
		if existing.Name == c.Name {
			return domain.Cohort{}, ErrDuplicate
		}
	}
	c.ID = m.nextID("cohorts")
	c.IsActive = true
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.cohorts = append(m.cohorts, c)
	return c, nil
}

// GetCohort retrieves a cohort by ID.
func (m *MemoryStore) GetCohort(id int64) (domain.Cohort, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cohortLocked(id)
	return c, ok, nil
}

func (m *MemoryStore) cohortLocked(id int64) (domain.Cohort, bool) {
	for _, c := range m.cohorts {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Cohort{}, false
}

// HasCohortName checks if a cohort name is taken.
func (m *MemoryStore) HasCohortName(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.cohorts {
		if c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// ListActiveCohorts returns active cohorts in creation order.
func (m *MemoryStore) ListActiveCohorts() ([]domain.Cohort, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Cohort, 0, len(m.cohorts))
	for _, c := range m.cohorts {
		if c.IsActive {
			res = append(res, c)
		}
	}
	return res, nil
}

// SetCohortDocument records the uploaded document of a cohort.
func (m *MemoryStore) SetCohortDocument(id int64, filename, path string, pages int) (domain.Cohort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.cohorts {
		if m.cohorts[i].ID != id {
			continue
		}
		name, p := filename, path
		m.cohorts[i].PDFFilename = &name
		m.cohorts[i].PDFPath = &p
		m.cohorts[i].PDFPages = pages
		return m.cohorts[i], nil
	}
	return domain.Cohort{}, ErrNotFound
}

// CohortCount returns the number of cohorts, active or not.
func (m *MemoryStore) CohortCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cohorts), nil
}

// AddMember records a membership; ErrDuplicate if it already exists.
func (m *MemoryStore) AddMember(userID, cohortID int64) (domain.Membership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members {
		if mem.UserID == userID && mem.CohortID == cohortID {
			return domain.Membership{}, ErrDuplicate
		}
	}
	mem := domain.Membership{
		ID:       m.nextID("members"),
		UserID:   userID,
		CohortID: cohortID,
		JoinedAt: time.Now().UTC(),
	}
	m.members = append(m.members, mem)
	return mem, nil
}

// IsMember reports whether the user joined the cohort.
func (m *MemoryStore) IsMember(userID, cohortID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.members {
		if mem.UserID == userID && mem.CohortID == cohortID {
			return true, nil
		}
	}
	return false, nil
}

// ListCohortsByUser returns the cohorts a user joined, in cohort creation order.
func (m *MemoryStore) ListCohortsByUser(userID int64) ([]domain.Cohort, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	joined := make(map[int64]bool)
	for _, mem := range m.members {
		if mem.UserID == userID {
			joined[mem.CohortID] = true
		}
	}
	res := make([]domain.Cohort, 0, len(joined))
	for _, c := range m.cohorts {
		if joined[c.ID] {
			res = append(res, c)
		}
	}
	return res, nil
}

// ListMembers returns the users of a cohort in join order.
func (m *MemoryStore) ListMembers(cohortID int64) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0)
	for _, mem := range m.members {
		if mem.CohortID != cohortID {
			continue
		}
		for _, u := range m.users {
			if u.ID == mem.UserID {
				res = append(res, u)
				break
			}
		}
	}
	return res, nil
}

// MemberCount returns the number of members of a cohort.
func (m *MemoryStore) MemberCount(cohortID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, mem := range m.members {
		if mem.CohortID == cohortID {
			n++
		}
	}
	return n, nil
}

// CreateNote stores a note under its visibility.
func (m *MemoryStore) CreateNote(visibility domain.NoteVisibility, n domain.Note) (domain.Note, error) {
	if visibility != domain.NotePrivate && visibility != domain.NotePublic {
		return domain.Note{}, fmt.Errorf("unknown note visibility %q", visibility)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	n.ID = m.nextID(string(visibility) + "_notes")
	n.CreatedAt = now
	n.UpdatedAt = now
	m.notes[visibility] = append(m.notes[visibility], n)
	return n, nil
}

// ListPrivateNotes returns notes filtered by author and cohort.
func (m *MemoryStore) ListPrivateNotes(userID, cohortID int64) ([]domain.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Note, 0)
	for _, n := range m.notes[domain.NotePrivate] {
		if n.UserID == userID && n.CohortID == cohortID {
			res = append(res, n)
		}
	}
	return res, nil
}

// ListPublicNotes returns all public notes of a cohort.
func (m *MemoryStore) ListPublicNotes(cohortID int64) ([]domain.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Note, 0)
	for _, n := range m.notes[domain.NotePublic] {
		if n.CohortID == cohortID {
			res = append(res, n)
		}
	}
	return res, nil
}

// NoteCount counts notes of one visibility, optionally within a cohort.
func (m *MemoryStore) NoteCount(visibility domain.NoteVisibility, cohortID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, note := range m.notes[visibility] {
		if cohortID == 0 || note.CohortID == cohortID {
			n++
		}
	}
	return n, nil
}

// CreateChatMessage stores a chat message.
func (m *MemoryStore) CreateChatMessage(msg domain.ChatMessage) (domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.nextID("messages")
	msg.CreatedAt = time.Now().UTC()
	m.messages = append(m.messages, msg)
	return msg, nil
}

// ListChatMessages returns the messages of a cohort in creation order.
func (m *MemoryStore) ListChatMessages(cohortID int64) ([]domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.ChatMessage, 0)
	for _, msg := range m.messages {
		if msg.CohortID == cohortID {
			res = append(res, msg)
		}
	}
	return res, nil
}

// ChatMessageCount counts messages, optionally within a cohort.
func (m *MemoryStore) ChatMessageCount(cohortID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, msg := range m.messages {
		if cohortID == 0 || msg.CohortID == cohortID {
			n++
		}
	}
	return n, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
)
