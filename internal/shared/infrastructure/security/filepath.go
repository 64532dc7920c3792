// Package security validates untrusted filesystem paths before the
// infrastructure layer opens them.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// shellMetaChars are characters that have no business in a database
// path and usually indicate an injection attempt.
var shellMetaChars = []string{";", "&", "|", "$", "`", "(", ")", "{", "}", "<", ">", "!", "\n", "\r"}

// ValidateFilePath normalises a path for safe use: it rejects shell
// metacharacters, collapses traversal segments, anchors relative paths
// at the working directory, and resolves symlinks when the target
// exists. A path to a file that does not exist yet is fine; the
// cleaned absolute path is returned so the caller can create it.
func ValidateFilePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}

	for _, char := range shellMetaChars {
		if strings.Contains(path, char) {
			return "", fmt.Errorf("file path contains forbidden character %q: %s", char, path)
		}
	}

	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		cleanPath = filepath.Join(cwd, cleanPath)
	}

	resolvedPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cleanPath, nil
		}
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}
	return resolvedPath, nil
}
