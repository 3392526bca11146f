package app

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrCohortNotFound     = errors.New("cohort not found")
	ErrCohortNameTaken    = errors.New("cohort name already exists")
	ErrCohortAdminOnly    = errors.New("only admins can create cohorts")
	ErrAdminRequired      = errors.New("admin access required")
	ErrAlreadyMember      = errors.New("user is already a member of this cohort")
	ErrNotPDF             = errors.New("only PDF files are allowed")
)

// InputError reports a request field that failed validation.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}

func invalid(field, msg string) error {
	return &InputError{Field: field, Message: msg}
}
