package domain

import (
	"fmt"
	"math"
	"mime"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// MaxFileSize is the largest accepted upload (50 MiB).
const MaxFileSize int64 = 50 * 1024 * 1024

// MaxFileNameLength bounds the length of an uploaded file name.
const MaxFileNameLength = 255

var allowedMIMETypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"text/html":  true,
	"text/plain": true,
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AllowedMIMEType reports whether uploads of the given type are accepted.
func AllowedMIMEType(mimeType string) bool {
	return allowedMIMETypes[normalizeMIME(mimeType)]
}

// FileTypeFromMIME classifies a MIME type.
func FileTypeFromMIME(mimeType string) FileType {
	mt := normalizeMIME(mimeType)
	switch {
	case mt == "application/pdf":
		return FileTypePDF
	case mt == "application/msword",
		mt == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FileTypeWord
	case mt == "application/vnd.ms-excel",
		mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FileTypeExcel
	case mt == "text/html", mt == "text/plain":
		return FileTypeHTML
	case strings.HasPrefix(mt, "image/"):
		return FileTypeImage
	default:
		return FileTypeUnknown
	}
}

// ParseFileType maps a stored value back to a FileType.
func ParseFileType(raw string) (FileType, bool) {
	for _, ft := range FileTypes {
		if string(ft) == strings.ToLower(strings.TrimSpace(raw)) {
			return ft, true
		}
	}
	return "", false
}

// Icon returns the Font Awesome class for the file type.
func (t FileType) Icon() string {
	switch t {
	case FileTypePDF:
		return "fas fa-file-pdf"
	case FileTypeWord:
		return "fas fa-file-word"
	case FileTypeExcel:
		return "fas fa-file-excel"
	case FileTypeHTML:
		return "fas fa-file-code"
	case FileTypeImage:
		return "fas fa-file-image"
	default:
		return "fas fa-file"
	}
}

// DetectMIME returns the declared content type, falling back to the file
// extension when the client sent nothing useful.
func DetectMIME(fileName, declared string) string {
	declared = normalizeMIME(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := normalizeMIME(mime.TypeByExtension(strings.ToLower(path.Ext(fileName)))); byExt != "" {
		return byExt
	}
	return declared
}

func normalizeMIME(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders a byte count the way the portal displays it,
// e.g. "0 Bytes", "1.5 KB", "50 MB".
func FormatFileSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	const k = 1024.0
	i := int(math.Floor(math.Log(float64(n)) / math.Log(k)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	v := float64(n) / math.Pow(k, float64(i))
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

var legacyTitlePrefix = regexp.MustCompile(`^\[(\d{1,2}\.\d)\]\s*`)

// NormalizeLegacyTitle handles rows written before subchapters had their own
// column, where the title carried a "[c.n] " prefix.
func NormalizeLegacyTitle(doc Document) Document {
	m := legacyTitlePrefix.FindStringSubmatch(doc.Title)
	if m == nil {
		return doc
	}
	if doc.SubchapterID == "" {
		doc.SubchapterID = m[1]
	}
	doc.Title = strings.TrimPrefix(doc.Title, m[0])
	return doc
}

// SubchapterCode builds the "c.n" code of a subchapter.
func SubchapterCode(chapterID, n int) string {
	return fmt.Sprintf("%d.%d", chapterID, n)
}
