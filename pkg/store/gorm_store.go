package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"qualityportal/pkg/catalog"
	"qualityportal/pkg/domain"
)

const migrateLockID int64 = 41120250

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
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&ChapterModel{}, &SubchapterModel{}, &DocumentModel{}, &UserModel{}); err != nil {
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

// SaveDocument inserts or replaces a document row.
func (s *GormStore) SaveDocument(ctx context.Context, doc domain.Document) error {
	model := documentToModel(doc)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "file_name", "file_path", "file_size", "file_type", "mime_type", "chapter_id", "subchapter_id"}),
	}).Create(&model).Error
}

// GetDocument retrieves a document.
func (s *GormStore) GetDocument(ctx context.Context, id string) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// ListDocuments returns documents matching q, newest first.
func (s *GormStore) ListDocuments(ctx context.Context, q DocumentQuery) ([]domain.Document, error) {
	tx := s.db.WithContext(ctx).Model(&DocumentModel{})
	if q.ChapterID > 0 {
		tx = tx.Where("chapter_id = ?", q.ChapterID)
	}
	if q.SubchapterID != "" {
		// Rows written before subchapter_id existed carry the code as a title prefix.
		tx = tx.Where("(subchapter_id = ? OR ((subchapter_id IS NULL OR subchapter_id = '') AND title LIKE ?))",
			q.SubchapterID, "["+escapeLike(q.SubchapterID)+"]%")
	}
	if q.FileType != "" {
		tx = tx.Where("file_type = ?", string(q.FileType))
	}
	if !q.CreatedSince.IsZero() {
		tx = tx.Where("created_at >= ?", q.CreatedSince.UTC())
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := "%" + escapeLike(text) + "%"
		tx = tx.Where("(title ILIKE ? OR file_name ILIKE ?)", pattern, pattern)
	}
	tx = tx.Order("created_at DESC").Order("id DESC")
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var models []DocumentModel
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Document, 0, len(models))
	for _, m := range models {
		res = append(res, documentFromModel(m))
	}
	return res, nil
}

// UpdateDocumentSize records a new blob size after content was replaced.
func (s *GormStore) UpdateDocumentSize(ctx context.Context, id string, size int64) error {
	res := s.db.WithContext(ctx).Model(&DocumentModel{}).Where("id = ?", id).Update("file_size", size)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteDocument removes a document row.
func (s *GormStore) DeleteDocument(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&DocumentModel{}, "id = ?", id).Error
}

// ListFilePaths returns the blob keys referenced by any document.
func (s *GormStore) ListFilePaths(ctx context.Context) ([]string, error) {
	var paths []string
	if err := s.db.WithContext(ctx).Model(&DocumentModel{}).Pluck("file_path", &paths).Error; err != nil {
		return nil, err
	}
	return paths, nil
}

// SyncCatalog mirrors the static taxonomy into the chapters and subchapters tables.
func (s *GormStore) SyncCatalog(ctx context.Context, chapters []catalog.Chapter) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ch := range chapters {
			chapter := ChapterModel{ID: ch.ID, Title: ch.Title, Icon: ch.Icon, Description: ch.Description}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"title", "icon", "description"}),
			}).Create(&chapter).Error; err != nil {
				return fmt.Errorf("upsert chapter %d: %w", ch.ID, err)
			}
			for i, sub := range ch.Subchapters {
				model := SubchapterModel{Code: sub.Code, ChapterID: ch.ID, Title: sub.Title, Position: i + 1}
				if err := tx.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "code"}},
					DoUpdates: clause.AssignmentColumns([]string{"chapter_id", "title", "position"}),
				}).Create(&model).Error; err != nil {
					return fmt.Errorf("upsert subchapter %s: %w", sub.Code, err)
				}
			}
		}
		return nil
	})
}

// SaveAccount registers or updates a directory account.
func (s *GormStore) SaveAccount(ctx context.Context, acc domain.Account) error {
	model, err := accountToModel(acc)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "access_code_hash", "role", "permissions", "updated_at"}),
	}).Create(&model).Error
}

// GetAccountByUsername looks up an account.
func (s *GormStore) GetAccountByUsername(ctx context.Context, username string) (domain.Account, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Account{}, false, nil
		}
		return domain.Account{}, false, err
	}
	return accountFromModel(model), true, nil
}

// Ping checks database connectivity.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func documentToModel(d domain.Document) DocumentModel {
	return DocumentModel{
		ID:           d.ID,
		Title:        d.Title,
		FileName:     d.FileName,
		FilePath:     d.FilePath,
		FileSize:     d.FileSize,
		FileType:     string(d.FileType),
		MIMEType:     d.MIMEType,
		ChapterID:    d.ChapterID,
		SubchapterID: d.SubchapterID,
		UploadedBy:   d.UploadedBy,
		CreatedAt:    d.CreatedAt,
	}
}

func documentFromModel(m DocumentModel) domain.Document {
	fileType, ok := domain.ParseFileType(m.FileType)
	if !ok {
		fileType = domain.FileTypeFromMIME(m.MIMEType)
	}
	return domain.NormalizeLegacyTitle(domain.Document{
		ID:           m.ID,
		Title:        m.Title,
		FileName:     m.FileName,
		FilePath:     m.FilePath,
		FileSize:     m.FileSize,
		FileType:     fileType,
		MIMEType:     m.MIMEType,
		ChapterID:    m.ChapterID,
		SubchapterID: m.SubchapterID,
		UploadedBy:   m.UploadedBy,
		CreatedAt:    m.CreatedAt,
	})
}

func accountToModel(a domain.Account) (UserModel, error) {
	perms, err := json.Marshal(a.User.Permissions)
	if err != nil {
		return UserModel{}, fmt.Errorf("encode permissions: %w", err)
	}
	return UserModel{
		ID:             a.User.ID,
		Username:       a.Username,
		Name:           a.User.Name,
		Email:          a.User.Email,
		PasswordHash:   a.PasswordHash,
		AccessCodeHash: a.AccessCodeHash,
		Role:           string(a.User.Role),
		Permissions:    perms,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}, nil
}

func accountFromModel(m UserModel) domain.Account {
	var perms []string
	if len(m.Permissions) > 0 {
		_ = json.Unmarshal(m.Permissions, &perms)
	}
	return domain.Account{
		ID:             m.ID,
		Username:       m.Username,
		PasswordHash:   m.PasswordHash,
		AccessCodeHash: m.AccessCodeHash,
		User: domain.User{
			ID:          m.ID,
			Name:        m.Name,
			Email:       m.Email,
			Role:        domain.UserRole(m.Role),
			Permissions: perms,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
