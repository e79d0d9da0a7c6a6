// Package security guards the file names the tracker derives from clip
// sources before writing artefacts to disk.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// maxFilenameLen bounds a sanitised name, leaving room for suffixes.
const maxFilenameLen = 128

// SanitizeFilename maps a clip source onto a safe file name: characters
// other than ASCII letters, digits, dot, underscore and dash become a
// single underscore, and leading or trailing dots and underscores are
// dropped. An empty result is "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		safe := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		switch {
		case safe:
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

// ArtifactPath joins dir with the sanitised source and suffix, and
// rejects any result that would land outside dir.
func ArtifactPath(dir, source, suffix string) (string, error) {
	name := SanitizeFilename(source) + suffix
	path := filepath.Join(dir, name)
	if err := ValidatePathWithinDirectory(path, dir); err != nil {
		return "", err
	}
	return path, nil
}

// ValidatePathWithinDirectory checks that filePath, once cleaned and made
// absolute, does not escape dir.
func ValidatePathWithinDirectory(filePath, dir string) error {
	absPath, err := filepath.Abs(filepath.Clean(filePath))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory path: %w", err)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return fmt.Errorf("path is outside %s: %w", dir, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s escapes %s", filePath, dir)
	}
	return nil
}
