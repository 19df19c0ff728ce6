package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"qualityportal/pkg/catalog"
	"qualityportal/pkg/domain"
)

// MemoryStore keeps metadata in-process. Used by tests and local runs
// without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]domain.Document
	accounts map[string]domain.Account // key: username
	chapters []catalog.Chapter
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]domain.Document),
		accounts: make(map[string]domain.Account),
	}
}

// SaveDocument stores or replaces a document record.
func (m *MemoryStore) SaveDocument(_ context.Context, doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.docs {
		if id != doc.ID && existing.FilePath == doc.FilePath {
			return errors.New("duplicate file path")
		}
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *MemoryStore) GetDocument(_ context.Context, id string) (domain.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return domain.Document{}, false, nil
	}
	return domain.NormalizeLegacyTitle(doc), true, nil
}

// ListDocuments mirrors the filtering and ordering of GormStore.
func (m *MemoryStore) ListDocuments(_ context.Context, q DocumentQuery) ([]domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text := strings.ToLower(strings.TrimSpace(q.Text))
	res := make([]domain.Document, 0, len(m.docs))
	for _, raw := range m.docs {
		doc := domain.NormalizeLegacyTitle(raw)
		if q.ChapterID > 0 && doc.ChapterID != q.ChapterID {
			continue
		}
		if q.SubchapterID != "" && doc.SubchapterID != q.SubchapterID {
			continue
		}
		if q.FileType != "" && doc.FileType != q.FileType {
			continue
		}
		if !q.CreatedSince.IsZero() && doc.CreatedAt.Before(q.CreatedSince) {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(raw.Title), text) &&
			!strings.Contains(strings.ToLower(doc.FileName), text) {
			continue
		}
		res = append(res, doc)
	}
	slices.SortFunc(res, func(a, b domain.Document) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res, nil
}

func (m *MemoryStore) UpdateDocumentSize(_ context.Context, id string, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return errors.New("document not found")
	}
	doc.FileSize = size
	m.docs[id] = doc
	return nil
}

func (m *MemoryStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *MemoryStore) ListFilePaths(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.docs))
	for _, doc := range m.docs {
		paths = append(paths, doc.FilePath)
	}
	return paths, nil
}

func (m *MemoryStore) SyncCatalog(_ context.Context, chapters []catalog.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chapters = slices.Clone(chapters)
	return nil
}

// Chapters returns the taxonomy recorded by SyncCatalog.
func (m *MemoryStore) Chapters() []catalog.Chapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.chapters)
}

func (m *MemoryStore) SaveAccount(_ context.Context, acc domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.accounts[acc.Username]; ok && acc.CreatedAt.IsZero() {
		acc.CreatedAt = existing.CreatedAt
	}
	m.accounts[acc.Username] = acc
	return nil
}

func (m *MemoryStore) GetAccountByUsername(_ context.Context, username string) (domain.Account, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[username]
	return acc, ok, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
