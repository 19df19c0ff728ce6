package store

import (
	"context"
	"time"

	"qualityportal/pkg/catalog"
	"qualityportal/pkg/domain"
)

// DocumentQuery narrows a document listing. Zero fields do not filter.
// Results are always ordered by creation time, newest first.
type DocumentQuery struct {
	ChapterID    int
	SubchapterID string
	FileType     domain.FileType
	CreatedSince time.Time
	// Text matches title or file name, case-insensitively.
	Text  string
	Limit int
}

// Store defines persistence operations for documents, the taxonomy and the
// user directory.
type Store interface {
	// documents
	SaveDocument(ctx context.Context, doc domain.Document) error
	GetDocument(ctx context.Context, id string) (domain.Document, bool, error)
	ListDocuments(ctx context.Context, q DocumentQuery) ([]domain.Document, error)
	UpdateDocumentSize(ctx context.Context, id string, size int64) error
	DeleteDocument(ctx context.Context, id string) error
	ListFilePaths(ctx context.Context) ([]string, error)

	// taxonomy
	SyncCatalog(ctx context.Context, chapters []catalog.Chapter) error

	// accounts
	SaveAccount(ctx context.Context, acc domain.Account) error
	GetAccountByUsername(ctx context.Context, username string) (domain.Account, bool, error)

	Ping(ctx context.Context) error
}

// ProfileStore persists the user profile attached to a session id.
type ProfileStore interface {
	Put(ctx context.Context, sessionID string, user domain.User, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (domain.User, bool, error)
	Delete(ctx context.Context, sessionID string) error
}
