package domain

import (
	"io"
	"slices"
	"time"
)

type FileType string

const (
	FileTypePDF     FileType = "pdf"
	FileTypeWord    FileType = "word"
	FileTypeExcel   FileType = "excel"
	FileTypeHTML    FileType = "html"
	FileTypeImage   FileType = "image"
	FileTypeUnknown FileType = "unknown"
)

// FileTypes lists every file type in display order.
var FileTypes = []FileType{FileTypePDF, FileTypeWord, FileTypeExcel, FileTypeHTML, FileTypeImage, FileTypeUnknown}

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleEditor UserRole = "editor"
	RoleViewer UserRole = "viewer"
)

const (
	PermissionRead   = "read"
	PermissionWrite  = "write"
	PermissionDelete = "delete"
	PermissionAdmin  = "admin"
)

// Document is the metadata row of a stored file.
type Document struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	FileName     string    `json:"fileName"`
	FilePath     string    `json:"filePath"`
	FileSize     int64     `json:"fileSize"`
	FileType     FileType  `json:"fileType"`
	MIMEType     string    `json:"mimeType"`
	ChapterID    int       `json:"chapterId"`
	SubchapterID string    `json:"subchapterId,omitempty"`
	UploadedBy   string    `json:"uploadedBy"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Icon returns the icon class for the document's file type.
func (d Document) Icon() string { return d.FileType.Icon() }

// Size returns the human readable file size.
func (d Document) Size() string { return FormatFileSize(d.FileSize) }

type User struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        UserRole `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission reports whether the user holds perm directly or through admin.
func (u User) HasPermission(perm string) bool {
	return slices.Contains(u.Permissions, perm) || slices.Contains(u.Permissions, PermissionAdmin)
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Account is a directory entry the identity provider authenticates against.
type Account struct {
	ID             string
	Username       string
	PasswordHash   string
	AccessCodeHash string
	User           User
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Scope names the chapter, and optionally the subchapter, a document belongs to.
type Scope struct {
	ChapterID    int    `json:"chapterId"`
	SubchapterID string `json:"subchapterId,omitempty"`
}

// UploadFile is one file of an upload batch. Open is called at most once, when
// the file is actually sent to storage.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// UploadResult reports the outcome of a single file in a batch.
type UploadResult struct {
	FileName string    `json:"fileName"`
	Success  bool      `json:"success"`
	Document *Document `json:"document,omitempty"`
	Error    string    `json:"error,omitempty"`
}
