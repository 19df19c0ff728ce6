package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir(), "http://portal.test/blobs", "secret")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return fs
}

func TestFileStorePutGetDelete(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	if err := fs.Put(ctx, "documents/a.txt", strings.NewReader("hola"), 4, "text/plain"); err != nil {
		t.Fatalf("put: %v", err)
	}
	rc, err := fs.Get(ctx, "documents/a.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "hola" {
		t.Fatalf("body = %q", body)
	}
	if err := fs.Delete(ctx, "documents/a.txt"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := fs.Get(ctx, "documents/a.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := fs.Delete(ctx, "documents/a.txt"); err != nil {
		t.Fatalf("deleting a missing object should succeed: %v", err)
	}
}

func TestFileStoreKeysCannotEscapeBase(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	if err := fs.Put(ctx, "../../etc/evil", strings.NewReader("x"), 1, ""); err != nil {
		t.Fatalf("put: %v", err)
	}
	objects, err := fs.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if keys := objectKeys(objects); !slices.Equal(keys, []string{"etc/evil"}) {
		t.Fatalf("keys = %v", keys)
	}
}

func TestFileStoreList(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	for _, k := range []string{"documents/1.pdf", "documents/2.pdf", "other/3.pdf"} {
		if err := fs.Put(ctx, k, strings.NewReader(k), int64(len(k)), ""); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	before := time.Now().Add(-time.Minute)
	objects, err := fs.List(ctx, "documents/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	keys := objectKeys(objects)
	slices.Sort(keys)
	if !slices.Equal(keys, []string{"documents/1.pdf", "documents/2.pdf"}) {
		t.Fatalf("keys = %v", keys)
	}
	for _, obj := range objects {
		if obj.LastModified.Before(before) {
			t.Fatalf("%s last modified %v, want recent", obj.Key, obj.LastModified)
		}
	}
}

func objectKeys(objects []ObjectInfo) []string {
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}
	return keys
}

func TestFileStoreSignedURL(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	if err := fs.Put(ctx, "documents/plan final.pdf", strings.NewReader("%PDF"), 4, "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	signed, err := fs.PresignGet(ctx, "documents/plan final.pdf", time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	h := http.StripPrefix("/blobs", fs.Handler())

	req := httptest.NewRequest(http.MethodGet, u.RequestURI(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "%PDF" {
		t.Fatalf("signed get = %d %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); got != "" {
		t.Fatalf("view url should render inline, got %q", got)
	}

	tampered := httptest.NewRequest(http.MethodGet, strings.Replace(u.RequestURI(), "signature=", "signature=0", 1), nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, tampered)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("tampered status = %d", rec.Code)
	}

	fs.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expired status = %d", rec.Code)
	}
}

func TestFileStoreDownloadURL(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	key := "documents/1758105000000-abc123-acta final.pdf"
	if err := fs.Put(ctx, key, strings.NewReader("%PDF"), 4, "application/pdf"); err != nil {
		t.Fatalf("put: %v", err)
	}
	signed, err := fs.PresignDownload(ctx, key, time.Minute, "acta final.pdf")
	if err != nil {
		t.Fatalf("presign download: %v", err)
	}
	u, err := url.Parse(signed)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	h := http.StripPrefix("/blobs", fs.Handler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if got, want := rec.Header().Get("Content-Disposition"), `attachment; filename="acta final.pdf"`; got != want {
		t.Fatalf("Content-Disposition = %q, want %q", got, want)
	}

	// The name is part of the signature.
	q := u.Query()
	q.Set("download", "otro.exe")
	u.RawQuery = q.Encode()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, u.RequestURI(), nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("renamed download status = %d", rec.Code)
	}
}

func TestAttachmentDisposition(t *testing.T) {
	if got := AttachmentDisposition("informe.pdf"); got != "attachment; filename=informe.pdf" {
		t.Fatalf("ascii = %q", got)
	}
	if got := AttachmentDisposition("señal.pdf"); !strings.HasPrefix(got, "attachment; filename*=utf-8''") {
		t.Fatalf("utf-8 = %q", got)
	}
}
