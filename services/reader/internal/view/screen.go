// Package view decides which top-level screen the reader shows.
package view

import (
	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
	"github.com/VVITTRC/Textbook-reading-club/services/reader/internal/session"
)

// Screen is one of Unauthenticated, AdminHome, CohortPicker or Reader.
type Screen interface {
	screen()
	Name() string
}

type Unauthenticated struct{}

type AdminHome struct {
	Session session.Session
}

type CohortPicker struct {
	Session session.Session
}

type Reader struct {
	Session session.Session
	Cohort  domain.Cohort
}

func (Unauthenticated) screen() {}
func (AdminHome) screen()       {}
func (CohortPicker) screen()    {}
func (Reader) screen()          {}

func (Unauthenticated) Name() string { return "unauthenticated" }
func (AdminHome) Name() string       { return "admin" }
func (CohortPicker) Name() string    { return "cohorts" }
func (Reader) Name() string          { return "reader" }

// Derive maps the session and the selected cohort to a screen. Admins never
// reach the reader, so their selection is ignored.
func Derive(s session.Session, selected *domain.Cohort) Screen {
	switch {
	case !s.Valid():
		return Unauthenticated{}
	case s.Role == domain.RoleAdmin:
		return AdminHome{Session: s}
	case selected == nil:
		return CohortPicker{Session: s}
	default:
		return Reader{Session: s, Cohort: *selected}
	}
}
