package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/VVITTRC/Textbook-reading-club/pkg/domain"
)

const migrateLockID int64 = 51805180

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&CohortModel{},
			&CohortMemberModel{},
			&PrivateNoteModel{},
			&PublicNoteModel{},
			&ChatMessageModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// CreateUser inserts a user and returns it with its assigned ID.
func (s *GormStore) CreateUser(u domain.User) (domain.User, error) {
	model := userToModel(u)
	model.ID = 0
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.User{}, translate(err)
	}
	return userFromModel(model), nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id int64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUsername checks if username exists.
func (s *GormStore) HasUsername(username string) (bool, error) {
	return s.exists(&UserModel{}, "username = ?", username)
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	return s.exists(&UserModel{}, "email = ?", email)
}

func (s *GormStore) exists(model any, query string, args ...any) (bool, error) {
	var count int64
	if err := s.db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers returns a page of users ordered by ID.
func (s *GormStore) ListUsers(offset, limit int) ([]domain.User, error) {
	var models []UserModel
	tx := s.db.Order("id ASC").Offset(offset)
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int, error) {
	return s.count(s.db.Model(&UserModel{}))
}

func (s *GormStore) count(tx *gorm.DB) (int, error) {
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateCohort inserts an active cohort.
func (s *GormStore) CreateCohort(c domain.Cohort) (domain.Cohort, error) {
	model := cohortToModel(c)
	model.ID = 0
	model.IsActive = true
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Cohort{}, translate(err)
	}
	return cohortFromModel(model), nil
}

// GetCohort retrieves a cohort regardless of its active flag.
func (s *GormStore) GetCohort(id int64) (domain.Cohort, bool, error) {
	var model CohortModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Cohort{}, false, nil
		}
		return domain.Cohort{}, false, err
	}
	return cohortFromModel(model), true, nil
}

// HasCohortName checks if a cohort name is taken.
func (s *GormStore) HasCohortName(name string) (bool, error) {
	return s.exists(&CohortModel{}, "name = ?", name)
}

// ListActiveCohorts returns active cohorts in creation order.
func (s *GormStore) ListActiveCohorts() ([]domain.Cohort, error) {
	var models []CohortModel
	if err := s.db.Where("is_active = ?", true).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return cohortsFromModels(models), nil
}

// SetCohortDocument records the uploaded document of a cohort.
func (s *GormStore) SetCohortDocument(id int64, filename, path string, pages int) (domain.Cohort, error) {
	res := s.db.Model(&CohortModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"pdf_filename": filename,
			"pdf_path":     path,
			"pdf_pages":    pages,
		})
	if res.Error != nil {
		return domain.Cohort{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Cohort{}, ErrNotFound
	}
	cohort, ok, err := s.GetCohort(id)
	if err != nil {
		return domain.Cohort{}, err
	}
	if !ok {
		return domain.Cohort{}, ErrNotFound
	}
	return cohort, nil
}

// CohortCount returns the number of cohorts, active or not.
func (s *GormStore) CohortCount() (int, error) {
	return s.count(s.db.Model(&CohortModel{}))
}

// AddMember records a membership; ErrDuplicate if it already exists.
func (s *GormStore) AddMember(userID, cohortID int64) (domain.Membership, error) {
	model := CohortMemberModel{UserID: userID, CohortID: cohortID, JoinedAt: time.Now().UTC()}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Membership{}, translate(err)
	}
	return membershipFromModel(model), nil
}

// IsMember reports whether the user joined the cohort.
func (s *GormStore) IsMember(userID, cohortID int64) (bool, error) {
	return s.exists(&CohortMemberModel{}, "user_id = ? AND cohort_id = ?", userID, cohortID)
}

// ListCohortsByUser returns the cohorts a user joined, in cohort creation order.
func (s *GormStore) ListCohortsByUser(userID int64) ([]domain.Cohort, error) {
	var models []CohortModel
	if err := s.db.
		Joins("JOIN cohort_member_models m ON m.cohort_id = cohort_models.id").
		Where("m.user_id = ?", userID).
		Order("cohort_models.id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return cohortsFromModels(models), nil
}

// ListMembers returns the users of a cohort in join order.
func (s *GormStore) ListMembers(cohortID int64) ([]domain.User, error) {
	var models []UserModel
	if err := s.db.
		Joins("JOIN cohort_member_models m ON m.user_id = user_models.id").
		Where("m.cohort_id = ?", cohortID).
		Order("m.id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// MemberCount returns the number of members of a cohort.
func (s *GormStore) MemberCount(cohortID int64) (int, error) {
	return s.count(s.db.Model(&CohortMemberModel{}).Where("cohort_id = ?", cohortID))
}

// CreateNote stores a note in the table matching its visibility.
func (s *GormStore) CreateNote(visibility domain.NoteVisibility, n domain.Note) (domain.Note, error) {
	now := time.Now().UTC()
	cols := noteToColumns(n)
	cols.ID = 0
	cols.CreatedAt = now
	cols.UpdatedAt = now
	switch visibility {
	case domain.NotePrivate:
		model := PrivateNoteModel{NoteColumns: cols}
		if err := s.db.Create(&model).Error; err != nil {
			return domain.Note{}, err
		}
		return noteFromColumns(model.NoteColumns), nil
	case domain.NotePublic:
		model := PublicNoteModel{NoteColumns: cols}
		if err := s.db.Create(&model).Error; err != nil {
			return domain.Note{}, err
		}
		return noteFromColumns(model.NoteColumns), nil
	default:
		return domain.Note{}, fmt.Errorf("unknown note visibility %q", visibility)
	}
}

// ListPrivateNotes returns notes filtered by author and cohort.
func (s *GormStore) ListPrivateNotes(userID, cohortID int64) ([]domain.Note, error) {
	var models []PrivateNoteModel
	if err := s.db.Where("user_id = ? AND cohort_id = ?", userID, cohortID).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Note, 0, len(models))
	for _, m := range models {
		res = append(res, noteFromColumns(m.NoteColumns))
	}
	return res, nil
}

// ListPublicNotes returns all public notes of a cohort.
func (s *GormStore) ListPublicNotes(cohortID int64) ([]domain.Note, error) {
	var models []PublicNoteModel
	if err := s.db.Where("cohort_id = ?", cohortID).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Note, 0, len(models))
	for _, m := range models {
		res = append(res, noteFromColumns(m.NoteColumns))
	}
	return res, nil
}

// NoteCount counts notes of one visibility, optionally within a cohort.
func (s *GormStore) NoteCount(visibility domain.NoteVisibility, cohortID int64) (int, error) {
	var tx *gorm.DB
	switch visibility {
	case domain.NotePrivate:
		tx = s.db.Model(&PrivateNoteModel{})
	case domain.NotePublic:
		tx = s.db.Model(&PublicNoteModel{})
	default:
		return 0, fmt.Errorf("unknown note visibility %q", visibility)
	}
	if cohortID > 0 {
		tx = tx.Where("cohort_id = ?", cohortID)
	}
	return s.count(tx)
}

// CreateChatMessage stores a chat message.
func (s *GormStore) CreateChatMessage(msg domain.ChatMessage) (domain.ChatMessage, error) {
	model := chatMessageToModel(msg)
	model.ID = 0
	model.CreatedAt = time.Now().UTC()
	if err := s.db.Create(&model).Error; err != nil {
		return domain.ChatMessage{}, err
	}
	return chatMessageFromModel(model), nil
}

// ListChatMessages returns the messages of a cohort in creation order.
func (s *GormStore) ListChatMessages(cohortID int64) ([]domain.ChatMessage, error) {
	var models []ChatMessageModel
	if err := s.db.Where("cohort_id = ?", cohortID).Order("id ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ChatMessage, 0, len(models))
	for _, m := range models {
		res = append(res, chatMessageFromModel(m))
	}
	return res, nil
}

// ChatMessageCount counts messages, optionally within a cohort.
func (s *GormStore) ChatMessageCount(cohortID int64) (int, error) {
	tx := s.db.Model(&ChatMessageModel{})
	if cohortID > 0 {
		tx = tx.Where("cohort_id = ?", cohortID)
	}
	return s.count(tx)
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		CreatedAt:    m.CreatedAt,
	}
}

func cohortToModel(c domain.Cohort) CohortModel {
	return CohortModel{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		PDFFilename: c.PDFFilename,
		PDFPath:     c.PDFPath,
		PDFPages:    c.PDFPages,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		IsActive:    c.IsActive,
	}
}

func cohortFromModel(m CohortModel) domain.Cohort {
	return domain.Cohort{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		PDFFilename: m.PDFFilename,
		PDFPath:     m.PDFPath,
		PDFPages:    m.PDFPages,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
		IsActive:    m.IsActive,
	}
}

func cohortsFromModels(models []CohortModel) []domain.Cohort {
	res := make([]domain.Cohort, 0, len(models))
	for _, m := range models {
		res = append(res, cohortFromModel(m))
	}
	return res
}

func membershipFromModel(m CohortMemberModel) domain.Membership {
	return domain.Membership{
		ID:       m.ID,
		UserID:   m.UserID,
		CohortID: m.CohortID,
		JoinedAt: m.JoinedAt,
	}
}

func noteToColumns(n domain.Note) NoteColumns {
	var highlight datatypes.JSON
	if n.HighlightData != nil {
		highlight = datatypes.JSON(*n.HighlightData)
	}
	return NoteColumns{
		ID:            n.ID,
		UserID:        n.UserID,
		CohortID:      n.CohortID,
		DocumentID:    n.DocumentID,
		Content:       n.Content,
		HighlightData: highlight,
		PageNumber:    n.PageNumber,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}
}

func noteFromColumns(m NoteColumns) domain.Note {
	var highlight *string
	if len(m.HighlightData) > 0 {
		raw := string(m.HighlightData)
		highlight = &raw
	}
	return domain.Note{
		ID:            m.ID,
		UserID:        m.UserID,
		CohortID:      m.CohortID,
		DocumentID:    m.DocumentID,
		Content:       m.Content,
		HighlightData: highlight,
		PageNumber:    m.PageNumber,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func chatMessageToModel(msg domain.ChatMessage) ChatMessageModel {
	return ChatMessageModel{
		ID:         msg.ID,
		UserID:     msg.UserID,
		CohortID:   msg.CohortID,
		DocumentID: msg.DocumentID,
		Message:    msg.Message,
		CreatedAt:  msg.CreatedAt,
	}
}

func chatMessageFromModel(m ChatMessageModel) domain.ChatMessage {
	return domain.ChatMessage{
		ID:         m.ID,
		UserID:     m.UserID,
		CohortID:   m.CohortID,
		DocumentID: m.DocumentID,
		Message:    m.Message,
		CreatedAt:  m.CreatedAt,
	}
}
