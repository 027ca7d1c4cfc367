package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidatePackageName validates a package name received from a user or an
// HTTP request before it is used as a lookup key or a cache key component.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters or whitespace
//   - No path traversal sequences (.., //)
//   - No backslashes
//   - Maximum length of 256 characters
//
// Names such as "so:libc.musl-x86_64.so.1" or "cmd:sh" are accepted, since
// provider aliases are valid query targets.
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "package name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "package name contains invalid characters")
		}
	}

	dangerousPatterns := []string{
		"..", // Parent directory
		"//", // Double slash
		"\\", // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidInput, "package name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// repositoryNameRegex matches aports repository directory names.
var repositoryNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// ValidateRepository validates a repository name such as "main" or "community".
func ValidateRepository(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "repository name cannot be empty")
	}
	if !repositoryNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid repository name: %q", name)
	}
	return nil
}

// ValidatePath validates a file path relative to an aports root.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// snapshotIDRegex matches canonical UUID strings.
var snapshotIDRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateSnapshotID validates a snapshot identifier.
func ValidateSnapshotID(id string) error {
	if !snapshotIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid snapshot id: %q", id)
	}
	return nil
}
