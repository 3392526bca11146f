package store

import (
	"errors"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
)

var (
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned by updates that target a missing record.
	ErrNotFound = errors.New("record not found")
)

// Store defines persistence operations for users, cohorts, memberships,
// notes and chat messages. Create methods assign the ID and timestamps.
// List methods return records in creation order.
type Store interface {
	// users
	CreateUser(domain.User) (domain.User, error)
	GetUserByID(id int64) (domain.User, bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	HasUsername(username string) (bool, error)
	HasUserEmail(email string) (bool, error)
	ListUsers(offset, limit int) ([]domain.User, error)
	UserCount() (int, error)

	// cohorts
	CreateCohort(domain.Cohort) (domain.Cohort, error)
	GetCohort(id int64) (domain.Cohort, bool, error)
	HasCohortName(name string) (bool, error)
	ListActiveCohorts() ([]domain.Cohort, error)
	SetCohortDocument(id int64, filename, path string, pages int) (domain.Cohort, error)
	CohortCount() (int, error)

	// memberships
	AddMember(userID, cohortID int64) (domain.Membership, error)
	IsMember(userID, cohortID int64) (bool, error)
	ListCohortsByUser(userID int64) ([]domain.Cohort, error)
	ListMembers(cohortID int64) ([]domain.User, error)
	MemberCount(cohortID int64) (int, error)

	// notes
	CreateNote(visibility domain.NoteVisibility, n domain.Note) (domain.Note, error)
	ListPrivateNotes(userID, cohortID int64) ([]domain.Note, error)
	ListPublicNotes(cohortID int64) ([]domain.Note, error)
	// NoteCount counts notes of one visibility; cohortID 0 counts all cohorts.
	NoteCount(visibility domain.NoteVisibility, cohortID int64) (int, error)

	// chat
	CreateChatMessage(domain.ChatMessage) (domain.ChatMessage, error)
	ListChatMessages(cohortID int64) ([]domain.ChatMessage, error)
	// ChatMessageCount counts messages; cohortID 0 counts all cohorts.
	ChatMessageCount(cohortID int64) (int, error)
}
