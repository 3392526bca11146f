package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/VVITTRC/Textbook-reading-club/internal/metrics"
	"github.com/VVITTRC/Textbook-reading-club/pkg/auth"
	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
	"github.com/VVITTRC/Textbook-reading-club/pkg/storage"
	"github.com/VVITTRC/Textbook-reading-club/pkg/store"
)

const (
	defaultUserPageSize = 100
	maxUserPageSize     = 1000
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store

	UploadDir      string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	Objects        storage.ObjectStore

	Metrics          metrics.Recorder
	AllowAdminSignup bool
}

// App holds the reading club business rules on top of the store and the
// document storage.
type App struct {
	store            store.Store
	objects          storage.ObjectStore
	metrics          metrics.Recorder
	allowAdminSignup bool
}

// New constructs the application. Without a database URL records live in
// memory; without a MinIO endpoint documents are written to UploadDir.
func New(cfg Config) (*App, error) {
	var err error
	dataStore := cfg.Store
	if dataStore == nil {
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			slog.Warn("no databaseURL configured, using in-memory store")
			dataStore = store.NewMemoryStore()
		} else {
			dataStore, err = store.NewGormStore(cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("init postgres store: %w", err)
			}
		}
	}

	objects := cfg.Objects
	if objects == nil {
		if strings.TrimSpace(cfg.MinioEndpoint) != "" {
			objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		} else {
			objects, err = storage.NewFileStore(cfg.UploadDir)
		}
		if err != nil {
			return nil, fmt.Errorf("init document storage: %w", err)
		}
	}

	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &App{
		store:            dataStore,
		objects:          objects,
		metrics:          rec,
		allowAdminSignup: cfg.AllowAdminSignup,
	}, nil
}

// Login checks credentials. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (a *App) Login(username, password string) (domain.User, error) {
	user, ok, err := a.store.GetUserByUsername(strings.TrimSpace(username))
	if err != nil {
		return domain.User{}, err
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		a.metrics.RecordLoginFailure()
		return domain.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Register creates a user account. The admin role is honoured only when
// admin self-signup is enabled.
func (a *App) Register(req domain.RegisterRequest) (domain.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if username == "" {
		return domain.User{}, invalid("username", "username is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, invalid("email", "a valid email is required")
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return domain.User{}, invalid("password", err.Error())
	}
	role := domain.RoleUser
	if req.Role != "" {
		if !req.Role.Valid() {
			return domain.User{}, invalid("role", "role must be user or admin")
		}
		if req.Role == domain.RoleAdmin && a.allowAdminSignup {
			role = domain.RoleAdmin
		}
	}

	if exists, err := a.store.HasUsername(username); err != nil {
		return domain.User{}, err
	} else if exists {
		return domain.User{}, ErrUsernameTaken
	}
	if exists, err := a.store.HasUserEmail(email); err != nil {
		return domain.User{}, err
	} else if exists {
		return domain.User{}, ErrEmailTaken
	}
	return a.createUser(username, email, req.Password, role)
}

func (a *App) createUser(username, email, password string, role domain.UserRole) (domain.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	user, err := a.store.CreateUser(domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if errors.Is(err, store.ErrDuplicate) {
		// lost a race with a concurrent signup
		return domain.User{}, ErrUsernameTaken
	}
	return user, err
}

// EnsureAdmin creates the admin account if no user has the username yet.
// An existing account is left untouched.
func (a *App) EnsureAdmin(username, email, password string) (domain.User, bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, false, errors.New("admin username is required")
	}
	existing, ok, err := a.store.GetUserByUsername(username)
	if err != nil {
		return domain.User{}, false, err
	}
	if ok {
		return existing, false, nil
	}
	user, err := a.createUser(username, strings.ToLower(strings.TrimSpace(email)), password, domain.RoleAdmin)
	if err != nil {
		return domain.User{}, false, fmt.Errorf("seed admin: %w", err)
	}
	return user, true, nil
}

// ListUsers pages through users. A non-positive limit uses the default page size.
func (a *App) ListUsers(skip, limit int) ([]domain.User, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultUserPageSize
	}
	if limit > maxUserPageSize {
		limit = maxUserPageSize
	}
	return a.store.ListUsers(skip, limit)
}

// GetUser returns one user.
func (a *App) GetUser(id int64) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

func (a *App) isAdmin(userID int64) (bool, error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return false, err
	}
	return ok && user.Role == domain.RoleAdmin, nil
}

// CreateCohort creates an active cohort on behalf of an admin.
func (a *App) CreateCohort(req domain.CreateCohortRequest) (domain.Cohort, error) {
	admin, err := a.isAdmin(req.CreatedBy)
	if err != nil {
		return domain.Cohort{}, err
	}
	if !admin {
		return domain.Cohort{}, ErrCohortAdminOnly
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Cohort{}, invalid("name", "cohort name is required")
	}
	if taken, err := a.store.HasCohortName(name); err != nil {
		return domain.Cohort{}, err
	} else if taken {
		return domain.Cohort{}, ErrCohortNameTaken
	}
	cohort, err := a.store.CreateCohort(domain.Cohort{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedBy:   req.CreatedBy,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return domain.Cohort{}, ErrCohortNameTaken
	}
	return cohort, err
}

// ListCohorts returns active cohorts in creation order.
func (a *App) ListCohorts() ([]domain.Cohort, error) {
	return a.store.ListActiveCohorts()
}

// GetCohort returns one cohort.
func (a *App) GetCohort(id int64) (domain.Cohort, error) {
	cohort, ok, err := a.store.GetCohort(id)
	if err != nil {
		return domain.Cohort{}, err
	}
	if !ok {
		return domain.Cohort{}, ErrCohortNotFound
	}
	return cohort, nil
}

// UploadDocument validates a PDF, stores it as cohort_<id>_<filename> and
// records it on the cohort. A later upload replaces the earlier one.
func (a *App) UploadDocument(ctx context.Context, cohortID int64, filename string, r io.ReaderAt, size int64) (domain.UploadResult, error) {
	if _, err := a.GetCohort(cohortID); err != nil {
		return domain.UploadResult{}, err
	}
	filename = storage.SafeFilename(filename)
	if !isPDFName(filename) {
		return domain.UploadResult{}, ErrNotPDF
	}
	pages, err := inspectPDF(r, size)
	if err != nil {
		return domain.UploadResult{}, err
	}

	key := documentKey(cohortID, filename)
	if err := a.objects.Put(ctx, key, io.NewSectionReader(r, 0, size), size, "application/pdf"); err != nil {
		return domain.UploadResult{}, fmt.Errorf("store document: %w", err)
	}
	if _, err := a.store.SetCohortDocument(cohortID, filename, "uploads/"+key, pages); err != nil {
		return domain.UploadResult{}, fmt.Errorf("record document: %w", err)
	}
	a.metrics.RecordDocumentUploaded(size)
	slog.Info("document uploaded", "cohort_id", cohortID, "key", key, "pages", pages, "size", size)
	return domain.UploadResult{Filename: filename, Path: DocumentPath(key)}, nil
}

// OpenDocument streams a stored document by its key.
func (a *App) OpenDocument(ctx context.Context, key string) (io.ReadSeekCloser, storage.ObjectInfo, error) {
	key = strings.TrimSpace(key)
	if key == "" || key != storage.SafeFilename(key) {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return a.objects.Open(ctx, key)
}

// JoinCohort adds a membership. Joining twice is rejected.
func (a *App) JoinCohort(req domain.JoinRequest) (domain.Membership, error) {
	if _, err := a.GetUser(req.UserID); err != nil {
		return domain.Membership{}, err
	}
	if _, err := a.GetCohort(req.CohortID); err != nil {
		return domain.Membership{}, err
	}
	if member, err := a.store.IsMember(req.UserID, req.CohortID); err != nil {
		return domain.Membership{}, err
	} else if member {
		return domain.Membership{}, ErrAlreadyMember
	}
	membership, err := a.store.AddMember(req.UserID, req.CohortID)
	if errors.Is(err, store.ErrDuplicate) {
		return domain.Membership{}, ErrAlreadyMember
	}
	return membership, err
}

// UserCohorts lists the cohorts a user joined.
func (a *App) UserCohorts(userID int64) ([]domain.Cohort, error) {
	return a.store.ListCohortsByUser(userID)
}

// CohortMembers lists the users who joined a cohort.
func (a *App) CohortMembers(cohortID int64) ([]domain.User, error) {
	return a.store.ListMembers(cohortID)
}

// CreateNote stores a private or public note.
func (a *App) CreateNote(visibility domain.NoteVisibility, req domain.CreateNoteRequest) (domain.Note, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return domain.Note{}, invalid("content", "note content is required")
	}
	if req.PageNumber < 0 {
		return domain.Note{}, invalid("page_number", "page_number must not be negative")
	}
	var highlight *string
	if req.HighlightData != nil && strings.TrimSpace(*req.HighlightData) != "" {
		if !json.Valid([]byte(*req.HighlightData)) {
			return domain.Note{}, invalid("highlight_data", "highlight_data must be valid JSON")
		}
		raw := *req.HighlightData
		highlight = &raw
	}
	if err := a.checkAuthorAndCohort(req.UserID, req.CohortID); err != nil {
		return domain.Note{}, err
	}
	documentID := strings.TrimSpace(req.DocumentID)
	if documentID == "" {
		documentID = domain.DocumentID(req.CohortID)
	}
	note, err := a.store.CreateNote(visibility, domain.Note{
		UserID:        req.UserID,
		CohortID:      req.CohortID,
		DocumentID:    documentID,
		Content:       content,
		HighlightData: highlight,
		PageNumber:    req.PageNumber,
	})
	if err != nil {
		return domain.Note{}, err
	}
	a.metrics.RecordNoteCreated(string(visibility))
	return note, nil
}

func (a *App) checkAuthorAndCohort(userID, cohortID int64) error {
	if _, err := a.GetUser(userID); err != nil {
		return err
	}
	_, err := a.GetCohort(cohortID)
	return err
}

// PrivateNotes returns the notes one user wrote in one cohort.
func (a *App) PrivateNotes(userID, cohortID int64) ([]domain.Note, error) {
	return a.store.ListPrivateNotes(userID, cohortID)
}

// PublicNotes returns every public note of a cohort.
func (a *App) PublicNotes(cohortID int64) ([]domain.Note, error) {
	return a.store.ListPublicNotes(cohortID)
}

// PostChatMessage appends a message to the cohort chat.
func (a *App) PostChatMessage(req domain.CreateChatMessageRequest) (domain.ChatMessage, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return domain.ChatMessage{}, invalid("message", "message is required")
	}
	if err := a.checkAuthorAndCohort(req.UserID, req.CohortID); err != nil {
		return domain.ChatMessage{}, err
	}
	documentID := strings.TrimSpace(req.DocumentID)
	if documentID == "" {
		documentID = domain.DocumentID(req.CohortID)
	}
	msg, err := a.store.CreateChatMessage(domain.ChatMessage{
		UserID:     req.UserID,
		CohortID:   req.CohortID,
		DocumentID: documentID,
		Message:    text,
	})
	if err != nil {
		return domain.ChatMessage{}, err
	}
	a.metrics.RecordChatMessage()
	return msg, nil
}

// ChatMessages returns the cohort chat in posting order.
func (a *App) ChatMessages(cohortID int64) ([]domain.ChatMessage, error) {
	return a.store.ListChatMessages(cohortID)
}

func (a *App) requireAdmin(callerID int64) error {
	admin, err := a.isAdmin(callerID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrAdminRequired
	}
	return nil
}

// Stats returns platform totals for an admin caller.
func (a *App) Stats(callerID int64) (domain.AdminStats, error) {
	if err := a.requireAdmin(callerID); err != nil {
		return domain.AdminStats{}, err
	}
	var (
		stats domain.AdminStats
		err   error
	)
	if stats.TotalUsers, err = a.store.UserCount(); err != nil {
		return domain.AdminStats{}, err
	}
	if stats.TotalCohorts, err = a.store.CohortCount(); err != nil {
		return domain.AdminStats{}, err
	}
	private, err := a.store.NoteCount(domain.NotePrivate, 0)
	if err != nil {
		return domain.AdminStats{}, err
	}
	public, err := a.store.NoteCount(domain.NotePublic, 0)
	if err != nil {
		return domain.AdminStats{}, err
	}
	stats.TotalNotes = private + public
	if stats.TotalMessages, err = a.store.ChatMessageCount(0); err != nil {
		return domain.AdminStats{}, err
	}
	return stats, nil
}

// Activity returns member, public note and message counts of one cohort.
func (a *App) Activity(callerID, cohortID int64) (domain.CohortActivity, error) {
	if err := a.requireAdmin(callerID); err != nil {
		return domain.CohortActivity{}, err
	}
	if _, err := a.GetCohort(cohortID); err != nil {
		return domain.CohortActivity{}, err
	}
	activity := domain.CohortActivity{CohortID: cohortID}
	var err error
	if activity.Members, err = a.store.MemberCount(cohortID); err != nil {
		return domain.CohortActivity{}, err
	}
	if activity.Notes, err = a.store.NoteCount(domain.NotePublic, cohortID); err != nil {
		return domain.CohortActivity{}, err
	}
	if activity.Messages, err = a.store.ChatMessageCount(cohortID); err != nil {
		return domain.CohortActivity{}, err
	}
	return activity, nil
}
