package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null;default:user"`
	CreatedAt    time.Time `gorm:"not null"`
}

type CohortModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
	PDFFilename *string
	PDFPath     *string
	PDFPages    int
	CreatedBy   int64     `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
	IsActive    bool      `gorm:"not null;default:true"`
}

type CohortMemberModel struct {
	ID       int64     `gorm:"primaryKey;autoIncrement"`
	UserID   int64     `gorm:"not null;uniqueIndex:idx_member_user_cohort"`
	CohortID int64     `gorm:"not null;uniqueIndex:idx_member_user_cohort;index"`
	JoinedAt time.Time `gorm:"not null"`
}

// NoteColumns is embedded by both note tables; private and public notes
// share a shape but never a table.
type NoteColumns struct {
	ID            int64          `gorm:"primaryKey;autoIncrement"`
	UserID        int64          `gorm:"not null;index"`
	CohortID      int64          `gorm:"not null;index"`
	DocumentID    string         `gorm:"not null"`
	Content       string         `gorm:"type:text;not null"`
	HighlightData datatypes.JSON `gorm:"type:jsonb"`
	PageNumber    int
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time
}

type PrivateNoteModel struct {
	NoteColumns
}

type PublicNoteModel struct {
	NoteColumns
}

type ChatMessageModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	UserID     int64     `gorm:"not null;index"`
	CohortID   int64     `gorm:"not null;index"`
	DocumentID string    `gorm:"not null"`
	Message    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;index"`
}
