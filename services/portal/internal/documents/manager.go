package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"qualityportal/internal/util"
	"qualityportal/pkg/domain"
	"qualityportal/pkg/storage"
	"qualityportal/pkg/store"
)

const (
	keyPrefix      = "documents/"
	downloadExpiry = 60 * time.Second
	viewExpiry     = time.Hour
	// orphanGrace covers the gap between an upload's blob write and its row
	// insert.
	orphanGrace = time.Hour
)

var (
	// ErrNotFound is returned when no document row has the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrNotEditable is returned by SaveHTML for anything but stored HTML pages.
	ErrNotEditable = errors.New("document is not an editable html page")
)

// FilterKind selects the attribute Filter matches on.
type FilterKind string

const (
	FilterType       FilterKind = "type"
	FilterSubchapter FilterKind = "subchapter"
	FilterDate       FilterKind = "date"
)

// Config wires the manager to its backends.
type Config struct {
	Store   store.Store
	Objects storage.ObjectStore
	// Location anchors the date filter buckets. Defaults to time.Local.
	Location *time.Location
	Now      func() time.Time
}

// Manager owns document metadata and blobs. It is safe for concurrent use.
type Manager struct {
	store   store.Store
	objects storage.ObjectStore
	loc     *time.Location
	now     func() time.Time
}

func New(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("documents: store is required")
	}
	if cfg.Objects == nil {
		return nil, errors.New("documents: object store is required")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{store: cfg.Store, objects: cfg.Objects, loc: loc, now: now}, nil
}

// Get loads one document.
func (m *Manager) Get(ctx context.Context, id string) (domain.Document, error) {
	doc, ok, err := m.store.GetDocument(ctx, id)
	if err != nil {
		util.LoggerFromContext(ctx).Error("document lookup failed", "document_id", id, "err", err)
		return domain.Document{}, fmt.Errorf("get document: %w", err)
	}
	if !ok {
		return domain.Document{}, ErrNotFound
	}
	return doc, nil
}

func (m *Manager) ListByChapter(ctx context.Context, chapterID int) ([]domain.Document, error) {
	return m.list(ctx, "list chapter documents", store.DocumentQuery{ChapterID: chapterID})
}

func (m *Manager) ListBySubchapter(ctx context.Context, chapterID int, code string) ([]domain.Document, error) {
	return m.list(ctx, "list subchapter documents", store.DocumentQuery{ChapterID: chapterID, SubchapterID: code})
}

// Search matches title or file name. A blank query returns nothing without
// touching the store.
func (m *Manager) Search(ctx context.Context, query string) ([]domain.Document, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Document{}, nil
	}
	return m.list(ctx, "search documents", store.DocumentQuery{Text: query})
}

// Filter narrows the full listing. Unknown kinds, unknown date buckets and
// blank values leave the listing unfiltered.
func (m *Manager) Filter(ctx context.Context, kind FilterKind, value string) ([]domain.Document, error) {
	value = strings.TrimSpace(value)
	var q store.DocumentQuery
	switch {
	case value == "":
	case kind == FilterType:
		q.FileType = domain.FileType(strings.ToLower(value))
	case kind == FilterSubchapter:
		q.SubchapterID = value
	case kind == FilterDate:
		if since, ok := m.dateBucketStart(value); ok {
			q.CreatedSince = since
		}
	}
	return m.list(ctx, "filter documents", q)
}

func (m *Manager) dateBucketStart(bucket string) (time.Time, bool) {
	now := m.now().In(m.loc)
	y, mo, d := now.Date()
	switch bucket {
	case "today":
		return time.Date(y, mo, d, 0, 0, 0, 0, m.loc), true
	case "week":
		return now.Add(-7 * 24 * time.Hour), true
	case "month":
		return time.Date(y, mo, 1, 0, 0, 0, 0, m.loc), true
	case "year":
		return time.Date(y, time.January, 1, 0, 0, 0, 0, m.loc), true
	default:
		return time.Time{}, false
	}
}

// Recent returns the n newest documents.
func (m *Manager) Recent(ctx context.Context, n int) ([]domain.Document, error) {
	return m.list(ctx, "list recent documents", store.DocumentQuery{Limit: n})
}

func (m *Manager) All(ctx context.Context) ([]domain.Document, error) {
	return m.list(ctx, "list documents", store.DocumentQuery{})
}

func (m *Manager) list(ctx context.Context, op string, q store.DocumentQuery) ([]domain.Document, error) {
	docs, err := m.store.ListDocuments(ctx, q)
	if err != nil {
		util.LoggerFromContext(ctx).Error(op+" failed", "err", err)
		return []domain.Document{}, fmt.Errorf("%s: %w", op, err)
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return docs, nil
}

// Upload stores every file of a batch under scope. Invalid files produce a
// failed result and the batch continues. Results follow input order.
func (m *Manager) Upload(ctx context.Context, scope domain.Scope, files []domain.UploadFile, uploadedBy string) []domain.UploadResult {
	results := make([]domain.UploadResult, 0, len(files))
	for _, f := range files {
		doc, err := m.UploadFile(ctx, scope, f, uploadedBy)
		if err != nil {
			results = append(results, domain.UploadResult{FileName: f.Name, Error: err.Error()})
			continue
		}
		results = append(results, domain.UploadResult{FileName: f.Name, Success: true, Document: &doc})
	}
	return results
}

// UploadFile validates, stores the blob and records the row. When the row
// cannot be written the blob is removed again.
func (m *Manager) UploadFile(ctx context.Context, scope domain.Scope, f domain.UploadFile, uploadedBy string) (domain.Document, error) {
	mimeType := domain.DetectMIME(f.Name, f.ContentType)
	if err := ValidateFile(f.Name, mimeType, f.Size); err != nil {
		return domain.Document{}, err
	}
	if f.Open == nil {
		return domain.Document{}, errors.New("upload file: no content")
	}
	logger := util.LoggerFromContext(ctx)
	now := m.now()
	key := keyPrefix + UniqueFileName(f.Name, now)

	body, err := f.Open()
	if err != nil {
		return domain.Document{}, fmt.Errorf("open upload: %w", err)
	}
	defer body.Close()
	if err := m.objects.Put(ctx, key, body, f.Size, mimeType); err != nil {
		logger.Error("blob upload failed", "key", key, "err", err)
		return domain.Document{}, fmt.Errorf("store file: %w", err)
	}

	doc := domain.Document{
		ID:           uuid.NewString(),
		Title:        f.Name,
		FileName:     f.Name,
		FilePath:     key,
		FileSize:     f.Size,
		FileType:     domain.FileTypeFromMIME(mimeType),
		MIMEType:     mimeType,
		ChapterID:    scope.ChapterID,
		SubchapterID: scope.SubchapterID,
		UploadedBy:   uploadedBy,
		CreatedAt:    now.UTC(),
	}
	if err := m.store.SaveDocument(ctx, doc); err != nil {
		if delErr := m.objects.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			logger.Warn("blob cleanup failed", "key", key, "err", delErr)
		}
		logger.Error("document insert failed", "key", key, "err", err)
		return domain.Document{}, fmt.Errorf("save document: %w", err)
	}
	logger.Info("document uploaded", "document_id", doc.ID, "chapter_id", scope.ChapterID, "subchapter_id", scope.SubchapterID, "size", f.Size)
	return doc, nil
}

// Delete removes the blob and then the row. A blob that cannot be removed is
// logged and left behind for CleanupOrphans.
func (m *Manager) Delete(ctx context.Context, id string) error {
	doc, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	logger := util.LoggerFromContext(ctx)
	if err := m.objects.Delete(ctx, doc.FilePath); err != nil {
		logger.Warn("blob delete failed", "document_id", id, "key", doc.FilePath, "err", err)
	}
	if err := m.store.DeleteDocument(ctx, id); err != nil {
		logger.Error("document delete failed", "document_id", id, "err", err)
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// DownloadURL returns a short-lived signed URL that downloads the blob under
// the uploaded file name, plus that name.
func (m *Manager) DownloadURL(ctx context.Context, id string) (string, string, error) {
	doc, err := m.Get(ctx, id)
	if err != nil {
		return "", "", err
	}
	u, err := m.objects.PresignDownload(ctx, doc.FilePath, downloadExpiry, doc.FileName)
	if err != nil {
		return "", "", fmt.Errorf("sign download url: %w", err)
	}
	return u, doc.FileName, nil
}

// ViewURL returns the signed URL used by the embedded viewer.
func (m *Manager) ViewURL(ctx context.Context, doc domain.Document) (string, error) {
	u, err := m.objects.PresignGet(ctx, doc.FilePath, viewExpiry)
	if err != nil {
		return "", fmt.Errorf("sign view url: %w", err)
	}
	return u, nil
}

func (m *Manager) PublicURL(doc domain.Document) string {
	return m.objects.PublicURL(doc.FilePath)
}

// Content reads up to limit bytes of the blob. truncated reports whether
// more data was available.
func (m *Manager) Content(ctx context.Context, doc domain.Document, limit int64) (data []byte, truncated bool, err error) {
	rc, err := m.objects.Get(ctx, doc.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("read document: %w", err)
	}
	defer rc.Close()
	if limit <= 0 {
		limit = domain.MaxFileSize
	}
	data, err = io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, false, fmt.Errorf("read document: %w", err)
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// Editable reports whether SaveHTML accepts the document.
func Editable(doc domain.Document) bool {
	return doc.FileType == domain.FileTypeHTML && doc.MIMEType == "text/html"
}

// SaveHTML sanitizes markup and overwrites the stored page in place.
func (m *Manager) SaveHTML(ctx context.Context, id, markup string) (domain.Document, error) {
	doc, err := m.Get(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	if !Editable(doc) {
		return domain.Document{}, ErrNotEditable
	}
	clean, err := SanitizeHTML(markup)
	if err != nil {
		return domain.Document{}, fmt.Errorf("sanitize html: %w", err)
	}
	size := int64(len(clean))
	if size > domain.MaxFileSize {
		return domain.Document{}, ValidateFile(doc.FileName, doc.MIMEType, size)
	}
	if err := m.objects.Put(ctx, doc.FilePath, bytes.NewReader(clean), size, "text/html"); err != nil {
		util.LoggerFromContext(ctx).Error("html save failed", "document_id", id, "err", err)
		return domain.Document{}, fmt.Errorf("store html: %w", err)
	}
	if err := m.store.UpdateDocumentSize(ctx, id, size); err != nil {
		return domain.Document{}, fmt.Errorf("update document size: %w", err)
	}
	doc.FileSize = size
	return doc, nil
}

// CleanupOrphans deletes blobs under the document prefix that no row points
// at. Blobs younger than orphanGrace are skipped: an upload writes its blob
// before its row. It keeps going after individual delete failures.
func (m *Manager) CleanupOrphans(ctx context.Context) ([]string, error) {
	objects, err := m.objects.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	// Rows are read after the listing so a row committed in between is seen.
	paths, err := m.store.ListFilePaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("list file paths: %w", err)
	}
	known := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		known[p] = struct{}{}
	}
	cutoff := m.now().Add(-orphanGrace)
	logger := util.LoggerFromContext(ctx)
	var removed []string
	var errs []error
	slices.SortFunc(objects, func(a, b storage.ObjectInfo) int { return strings.Compare(a.Key, b.Key) })
	for _, obj := range objects {
		if _, ok := known[obj.Key]; ok {
			continue
		}
		if !obj.LastModified.Before(cutoff) {
			logger.Debug("recent blob kept", "key", obj.Key, "last_modified", obj.LastModified)
			continue
		}
		if err := m.objects.Delete(ctx, obj.Key); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", obj.Key, err))
			continue
		}
		logger.Info("orphan blob removed", "key", obj.Key)
		removed = append(removed, obj.Key)
	}
	return removed, errors.Join(errs...)
}

// Ping checks both backends.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.store.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := m.objects.Ping(ctx); err != nil {
		return fmt.Errorf("object store: %w", err)
	}
	return nil
}
