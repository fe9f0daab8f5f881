package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateTitle validates a course or item title before it is embedded in
// manifest metadata.
//
// The validation rules are intentionally conservative:
//   - No empty titles
//   - No control characters
//   - No null bytes
//   - Maximum length of 256 characters
//
// Titles are escaped again at serialization time; validation here only
// rejects values that no escaping layer can make sensible.
func ValidateTitle(title string) error {
	if title == "" {
		return New(ErrCodeInvalidInput, "title cannot be empty")
	}

	if len(title) > 256 {
		return New(ErrCodeInvalidInput, "title too long (max 256 characters)")
	}

	for _, r := range title {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "title contains invalid control characters")
		}
	}

	return nil
}

// ValidateArchivePath validates a path destined for the inside of a package
// archive. It prevents path traversal and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidateArchivePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "archive path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "archive path too long (max %d characters)", maxPathLength)
	}

	// Check for null bytes and control characters
	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "archive path contains invalid characters")
		}
	}

	// Must not be absolute path
	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "archive path must be relative (cannot start with /)")
	}

	// Check for path traversal
	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "archive path cannot contain path traversal sequences (..)")
	}

	// No backslashes (potential Windows path injection)
	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "archive path cannot contain backslashes")
	}

	return nil
}

// ValidateBaseURL validates the base URL used to build hosted-content pages.
// It ensures the URL has a safe scheme (http or https).
func ValidateBaseURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "base URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "base URL must use http or https scheme")
	}

	return nil
}

// identifierRegex matches valid manifest identifiers. Identifiers must start
// with a letter or underscore and continue with letters, digits, hyphens,
// underscores, or periods (the XML NCName subset the cartridge format
// accepts).
var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*$`)

// ValidateIdentifier validates a manifest identifier.
func ValidateIdentifier(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "identifier cannot be empty")
	}

	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "identifier too long (max 128 characters)")
	}

	if !identifierRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid identifier: %q", id)
	}

	return nil
}

// ValidateSectionPath validates a structural hint path ("Unit 1/Lesson A").
// Empty paths are valid: records without a hint are grouped under a default
// node by the builder.
func ValidateSectionPath(path string) error {
	if path == "" {
		return nil
	}

	if len(path) > 500 {
		return New(ErrCodeInvalidInput, "section path too long (max 500 characters)")
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "section path contains invalid characters")
		}
	}

	return nil
}

// ValidateOutputPath validates a destination path for a built package.
func ValidateOutputPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "output path cannot be empty")
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "output path contains invalid characters")
		}
	}

	if strings.HasSuffix(path, "/") {
		return New(ErrCodeInvalidPath, "output path cannot be a directory")
	}

	return nil
}
