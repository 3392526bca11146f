package domain

import (
	"fmt"
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type NoteVisibility string

const (
	NotePrivate NoteVisibility = "private"
	NotePublic  NoteVisibility = "public"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Cohort is a reading group with an optional attached document.
type Cohort struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PDFFilename *string   `json:"pdf_filename,omitempty"`
	PDFPath     *string   `json:"pdf_path,omitempty"`
	PDFPages    int       `json:"pdf_pages,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	IsActive    bool      `json:"is_active"`
}

// HasDocument reports whether a document was uploaded for the cohort.
func (c Cohort) HasDocument() bool {
	return c.PDFPath != nil && *c.PDFPath != ""
}

type Membership struct {
	ID       int64     `json:"id"`
	UserID   int64     `json:"user_id"`
	CohortID int64     `json:"cohort_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Note is shared by private and public annotations; visibility is decided by
// the endpoint that stored it.
type Note struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	CohortID      int64     `json:"cohort_id"`
	DocumentID    string    `json:"document_id"`
	Content       string    `json:"content"`
	HighlightData *string   `json:"highlight_data"`
	PageNumber    int       `json:"page_number"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ChatMessage struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	CohortID   int64     `json:"cohort_id"`
	DocumentID string    `json:"document_id"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

type AdminStats struct {
	TotalUsers    int `json:"total_users"`
	TotalCohorts  int `json:"total_cohorts"`
	TotalNotes    int `json:"total_notes"`
	TotalMessages int `json:"total_messages"`
}

type CohortActivity struct {
	CohortID int64 `json:"cohort_id"`
	Members  int   `json:"members"`
	Notes    int   `json:"notes"`
	Messages int   `json:"messages"`
}

// UploadResult describes a stored cohort document.
type UploadResult struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

// DocumentID derives the document identifier notes and messages are keyed on.
func DocumentID(cohortID int64) string {
	return fmt.Sprintf("cohort_%d", cohortID)
}
