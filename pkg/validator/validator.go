// Package validator implements the bound-checking and regex-filtering
// gauntlet of spec §4.3: every externally supplied field is checked against
// an anchored pattern and a fixed upper bound before it is trusted anywhere
// else in the pipeline. No third-party validation library appears anywhere
// in the retrieval pack; a handful of anchored regexp patterns plus range
// checks is the idiomatic stdlib-only shape Go code in this space uses.
package validator

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/SpacksD/Printer-connect/pkg/apperr"
	"github.com/SpacksD/Printer-connect/pkg/model"
)

var (
	clientIDPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	usernamePattern     = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	jobIDPattern        = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	documentNameAllowed = regexp.MustCompile(`[^A-Za-z0-9 _.()-]`)
)

const (
	MaxClientIDLen     = 100
	MaxUsernameLen     = 50
	MinUsernameLen     = 3
	MaxJobIDLen        = 100
	MaxDocumentNameLen = 255
)

// DefaultMaxFileSizeBytes is the default payload ceiling (100 MiB),
// spec §4.3.
const DefaultMaxFileSizeBytes = 100 * 1024 * 1024

// AllowedExtensions is the closed set of acceptable file formats.
var AllowedExtensions = map[string]bool{
	"pdf":        true,
	"ps":         true,
	"postscript": true,
}

var allowedPageSizes = map[model.PageSize]bool{
	model.PageSizeA4:     true,
	model.PageSizeA3:     true,
	model.PageSizeA5:     true,
	model.PageSizeLetter: true,
	model.PageSizeLegal:  true,
}

var allowedOrientations = map[model.Orientation]bool{
	model.OrientationPortrait:  true,
	model.OrientationLandscape: true,
}

var allowedQualities = map[model.Quality]bool{
	model.QualityDraft:  true,
	model.QualityNormal: true,
	model.QualityHigh:   true,
}

func validationErr(field, message string) *apperr.Error {
	return apperr.New(apperr.Input, "VALIDATION_ERROR", message).WithField(field)
}

// ClientID validates a client_id field.
func ClientID(v string) error {
	if v == "" || len(v) > MaxClientIDLen || !clientIDPattern.MatchString(v) {
		return validationErr("client_id", "invalid client_id")
	}
	return nil
}

// Username validates a username field. The character class allows a
// single "." (e.g. a trailing initial) anywhere in the name, but two
// consecutive dots are rejected explicitly: the class would
// otherwise admit "..", which is indistinguishable from a path-traversal
// token once a username is ever used to build a filesystem path.
func Username(v string) error {
	if len(v) < MinUsernameLen || len(v) > MaxUsernameLen || !usernamePattern.MatchString(v) {
		return validationErr("username", "invalid username")
	}
	if strings.Contains(v, "..") {
		return validationErr("username", "invalid username")
	}
	return nil
}

// JobID validates a server-generated job_id (also used to validate
// admin-supplied job_id lookups).
func JobID(v string) error {
	if v == "" || len(v) > MaxJobIDLen || !jobIDPattern.MatchString(v) {
		return validationErr("job_id", "invalid job_id")
	}
	return nil
}

// DocumentName strips characters outside the allowed set and enforces the
// length bound. It never echoes the rejected characters back; it simply
// removes them.
func DocumentName(v string) (string, error) {
	cleaned := documentNameAllowed.ReplaceAllString(v, "")
	if cleaned == "" {
		return "", validationErr("document_name", "document_name is empty after sanitization")
	}
	if len(cleaned) > MaxDocumentNameLen {
		return "", validationErr("document_name", "document_name exceeds maximum length")
	}
	return cleaned, nil
}

// FileExtension validates a file extension against the closed allow-list.
func FileExtension(ext string) error {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if !AllowedExtensions[ext] {
		return validationErr("file_format", "file format not allowed")
	}
	return nil
}

// FileSize validates a declared payload size against the configured
// ceiling.
func FileSize(size int64, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileSizeBytes
	}
	if size <= 0 || size > maxBytes {
		return validationErr("file_size_bytes", "file size out of bounds")
	}
	return nil
}

// PageSize validates the page_size enum.
func PageSize(v model.PageSize) error {
	if !allowedPageSizes[v] {
		return validationErr("page_size", "unsupported page size")
	}
	return nil
}

// Orientation validates the orientation enum.
func Orientation(v model.Orientation) error {
	if !allowedOrientations[v] {
		return validationErr("orientation", "unsupported orientation")
	}
	return nil
}

// Quality validates the quality enum.
func Quality(v model.Quality) error {
	if !allowedQualities[v] {
		return validationErr("quality", "unsupported quality")
	}
	return nil
}

// Copies validates the copies field (>= 1).
func Copies(v int) error {
	if v < 1 {
		return validationErr("copies", "copies must be at least 1")
	}
	return nil
}

// Priority validates the priority field (1..10 inclusive).
func Priority(v int) error {
	if v < 1 || v > 10 {
		return validationErr("priority", "priority must be between 1 and 10")
	}
	return nil
}

// Margins validates that none of the four margins are negative or absurdly
// large (bounded at 500mm, well beyond any physical sheet).
func Margins(m model.Margins) error {
	for _, v := range []float64{m.TopMM, m.BottomMM, m.LeftMM, m.RightMM} {
		if v < 0 || v > 500 {
			return validationErr("margins", "margin out of bounds")
		}
	}
	return nil
}

// TempPath resolves name under root and rejects any path that escapes root
// or contains a ".." component, spec §4.3.
func TempPath(root, name string) (string, error) {
	if name == "" || strings.Contains(name, "..") {
		return "", validationErr("document_name", "path traversal rejected")
	}
	joined := filepath.Join(root, filepath.Clean(string(filepath.Separator)+name))
	cleanRoot, err := filepath.Abs(root)
	if err != nil {
		return "", apperr.Wrap(apperr.Resource, "SERVER_ERROR", "failed to resolve temp root", err)
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", apperr.Wrap(apperr.Resource, "SERVER_ERROR", "failed to resolve temp path", err)
	}
	if absJoined != cleanRoot && !strings.HasPrefix(absJoined, cleanRoot+string(filepath.Separator)) {
		return "", validationErr("document_name", "resolved path escapes temp root")
	}
	return absJoined, nil
}
