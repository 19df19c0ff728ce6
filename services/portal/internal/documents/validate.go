package documents

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"qualityportal/pkg/domain"
)

const reasonNameTooLong = "Nombre de archivo demasiado largo"

// ValidationError explains why a file was rejected before reaching storage.
// Reason joins every failed check in Reasons.
type ValidationError struct {
	FileName string
	Reason   string
	Reasons  []string
}

func (e *ValidationError) Error() string { return e.Reason }

func rejected(name string, reasons []string) error {
	if len(reasons) == 0 {
		return nil
	}
	return &ValidationError{FileName: name, Reason: strings.Join(reasons, ", "), Reasons: reasons}
}

// ValidateFile checks the MIME allow-list, the size ceiling and the name
// length, reporting all failures at once.
func ValidateFile(name, mimeType string, size int64) error {
	var reasons []string
	if !domain.AllowedMIMEType(mimeType) {
		reasons = append(reasons, fmt.Sprintf("Tipo de archivo no permitido: %s", mimeType))
	}
	if size > domain.MaxFileSize {
		reasons = append(reasons, fmt.Sprintf("Archivo demasiado grande: %s (máximo: 50 MB)", domain.FormatFileSize(size)))
	}
	if !nameFits(name) {
		reasons = append(reasons, reasonNameTooLong)
	}
	return rejected(name, reasons)
}

// ValidateName checks the file name length limit.
func ValidateName(name string) error {
	if !nameFits(name) {
		return rejected(name, []string{reasonNameTooLong})
	}
	return nil
}

func nameFits(name string) bool {
	return utf8.RuneCountInString(name) <= domain.MaxFileNameLength
}
