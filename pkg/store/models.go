package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type DocumentModel struct {
	ID           string    `gorm:"primaryKey"`
	Title        string    `gorm:"not null"`
	FileName     string    `gorm:"not null"`
	FilePath     string    `gorm:"not null;uniqueIndex"`
	FileSize     int64     `gorm:"not null"`
	FileType     string    `gorm:"not null;index"`
	MIMEType     string    `gorm:"column:mime_type;not null"`
	ChapterID    int       `gorm:"not null;index"`
	SubchapterID string    `gorm:"index"`
	UploadedBy   string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null;index"`
}

func (DocumentModel) TableName() string { return "documents" }

type ChapterModel struct {
	ID          int    `gorm:"primaryKey;autoIncrement:false"`
	Title       string `gorm:"not null"`
	Icon        string
	Description string
}

func (ChapterModel) TableName() string { return "chapters" }

type SubchapterModel struct {
	Code      string `gorm:"primaryKey"`
	ChapterID int    `gorm:"not null;index"`
	Title     string `gorm:"not null"`
	Position  int    `gorm:"not null"`
}

func (SubchapterModel) TableName() string { return "subchapters" }

type UserModel struct {
	ID             string         `gorm:"primaryKey"`
	Username       string         `gorm:"uniqueIndex;not null"`
	Name           string         `gorm:"not null"`
	Email          string         `gorm:"not null"`
	PasswordHash   string         `gorm:"not null"`
	AccessCodeHash string         `gorm:"not null"`
	Role           string         `gorm:"not null"`
	Permissions    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt      time.Time      `gorm:"not null"`
	UpdatedAt      time.Time
}

func (UserModel) TableName() string { return "users" }
