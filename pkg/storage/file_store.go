package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileStore keeps objects on local disk under a base directory. Signed URLs
// point at Handler, which the portal mounts at baseURL.
type FileStore struct {
	basePath string
	baseURL  string
	secret   []byte
	now      func() time.Time
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath, baseURL, secret string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("storage base path is required")
	}
	if secret == "" {
		return nil, errors.New("storage signing secret is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		secret:   []byte(secret),
		now:      time.Now,
	}, nil
}

func (f *FileStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	target, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("move file: %w", err)
	}
	return nil
}

func (f *FileStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	target, err := f.path(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return file, nil
}

// PresignGet returns a URL served by Handler that stops working after expiry.
func (f *FileStore) PresignGet(_ context.Context, key string, expiry time.Duration) (string, error) {
	return f.presign(key, expiry, "")
}

// PresignDownload is PresignGet with the response served as an attachment.
func (f *FileStore) PresignDownload(_ context.Context, key string, expiry time.Duration, fileName string) (string, error) {
	return f.presign(key, expiry, fileName)
}

func (f *FileStore) presign(key string, expiry time.Duration, download string) (string, error) {
	if _, err := f.path(key); err != nil {
		return "", err
	}
	expires := strconv.FormatInt(f.now().Add(expiry).Unix(), 10)
	q := url.Values{"expires": {expires}, "signature": {f.sign(key, expires, download)}}
	if download != "" {
		q.Set("download", download)
	}
	return f.PublicURL(key) + "?" + q.Encode(), nil
}

func (f *FileStore) PublicURL(key string) string {
	return f.baseURL + "/" + escapeKey(key)
}

// Delete removes an object; a missing object is not an error.
func (f *FileStore) Delete(_ context.Context, key string) error {
	target, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (f *FileStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	err := filepath.WalkDir(f.basePath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(f.basePath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{Key: key, LastModified: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return objects, nil
}

func (f *FileStore) Ping(context.Context) error {
	if _, err := os.Stat(f.basePath); err != nil {
		return fmt.Errorf("stat storage dir: %w", err)
	}
	return nil
}

// Handler serves objects for signed URLs. Mount it with http.StripPrefix so
// the request path is the object key.
func (f *FileStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/")
		q := r.URL.Query()
		expires, download := q.Get("expires"), q.Get("download")
		exp, err := strconv.ParseInt(expires, 10, 64)
		if err != nil || f.now().Unix() > exp || !hmac.Equal([]byte(q.Get("signature")), []byte(f.sign(key, expires, download))) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		target, err := f.path(key)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		file, err := os.Open(target)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer file.Close()
		info, err := file.Stat()
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if download != "" {
			w.Header().Set("Content-Disposition", AttachmentDisposition(download))
		}
		http.ServeContent(w, r, path.Base(key), info.ModTime(), file)
	})
}

func (f *FileStore) sign(key, expires, download string) string {
	mac := hmac.New(sha256.New, f.secret)
	mac.Write([]byte(key + "\n" + expires + "\n" + download))
	return hex.EncodeToString(mac.Sum(nil))
}

func (f *FileStore) path(key string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(key))
	if clean == "/" {
		return "", errors.New("object key is required")
	}
	return filepath.Join(f.basePath, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
