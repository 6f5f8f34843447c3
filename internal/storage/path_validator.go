package storage

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"

	"go-contacts-api/pkg/apierror"
)

// PathValidator maps object keys onto a local root directory and refuses
// anything that would escape it.
type PathValidator struct {
	rootAbs string
}

func NewPathValidator(root string) (*PathValidator, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root path cannot be empty")
	}

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	return &PathValidator{rootAbs: rootAbs}, nil
}

func (v *PathValidator) RootAbs() string {
	return v.rootAbs
}

// ResolveKey returns the absolute file path for key. Keys use forward
// slashes and must name a file below the root.
func (v *PathValidator) ResolveKey(key string) (string, error) {
	normalized := strings.Trim(strings.ReplaceAll(strings.TrimSpace(key), `\`, "/"), "/")
	if normalized == "" {
		return "", apierror.New("INVALID_KEY", "object key cannot be empty", key, http.StatusBadRequest)
	}

	if hasControlCharacters(normalized) {
		return "", apierror.New("INVALID_KEY", "object key contains invalid characters", key, http.StatusBadRequest)
	}

	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", apierror.New("PATH_TRAVERSAL", "path traversal attempt detected", key, http.StatusForbidden)
		}
	}

	resolvedAbs, err := filepath.Abs(filepath.Join(v.rootAbs, filepath.FromSlash(normalized)))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	if !isWithinRoot(v.rootAbs, resolvedAbs) || resolvedAbs == v.rootAbs {
		return "", apierror.New("PATH_TRAVERSAL", "resolved path is outside storage root", key, http.StatusForbidden)
	}

	return resolvedAbs, nil
}

func hasControlCharacters(value string) bool {
	for _, char := range value {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}

func isWithinRoot(rootAbs string, candidateAbs string) bool {
	if candidateAbs == rootAbs {
		return true
	}
	return strings.HasPrefix(candidateAbs, rootAbs+string(filepath.Separator))
}
