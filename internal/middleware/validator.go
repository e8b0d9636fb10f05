package middleware

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

// ErrValidation marks every rejected input so handlers can map it to 400.
var ErrValidation = errors.New("validation failed")

// MaxUploadBytes caps one uploaded file.
const MaxUploadBytes = 20 << 20 // 20 MiB

// MaxQuestionLen caps one chat message or QA question.
const MaxQuestionLen = 4000

var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// ValidateUserID validates user ID format
func ValidateUserID(user string) error {
	if user == "" {
		return fmt.Errorf("%w: user ID cannot be empty", ErrValidation)
	}
	if !userIDPattern.MatchString(user) {
		return fmt.Errorf("%w: invalid user ID format (alphanumeric, dash, underscore only, max 64 chars)", ErrValidation)
	}
	return nil
}

// ValidateFilename checks upload filenames against the supported extensions
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: filename cannot be empty", ErrValidation)
	}

	// Block path traversal attempts
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: invalid characters in filename", ErrValidation)
	}

	allowed := map[string]bool{
		".pdf":  true,
		".docx": true,
		".txt":  true,
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !allowed[ext] {
		return fmt.Errorf("%w: unsupported file extension %q (allowed: .pdf, .docx, .txt)", ErrValidation, ext)
	}
	return nil
}

// ValidateFileSize rejects empty and oversized uploads
func ValidateFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: file is empty", ErrValidation)
	}
	if size > MaxUploadBytes {
		return fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, MaxUploadBytes)
	}
	return nil
}

// ValidateQuestion checks one chat message or QA question
func ValidateQuestion(q string) error {
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("%w: message cannot be empty", ErrValidation)
	}
	if len(q) > MaxQuestionLen {
		return fmt.Errorf("%w: message exceeds %d characters", ErrValidation, MaxQuestionLen)
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidatePage validates page number
func ValidatePage(page int) int {
	if page <= 0 {
		return 1
	}
	return page
}
