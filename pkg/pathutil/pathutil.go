// Package pathutil provides path normalization and validation for remedy.
package pathutil

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/remedy-project/remedy/pkg/errclass"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// Normalize canonicalizes a path for classification and pattern matching:
// NFC unicode normalization, backslashes converted to forward slashes,
// leading "./" stripped, repeated slashes collapsed.
func Normalize(path string) string {
	p := norm.NFC.String(path)
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	p = strings.TrimPrefix(p, "./")
	return p
}

// ValidateTag validates a snapshot tag string.
func ValidateTag(tag string) error {
	if tag == "" {
		return errclass.ErrNameInvalid.WithMessage("tag must not be empty")
	}
	if !nameRegex.MatchString(tag) {
		return errclass.ErrNameInvalid.WithMessagef("tag must match [a-zA-Z0-9._-]+: %s", tag)
	}
	return nil
}

// ValidateName checks recipe/repository name safety.
func ValidateName(name string) error {
	if name == "" {
		return errclass.ErrNameInvalid.WithMessage("name must not be empty")
	}

	name = norm.NFC.String(name)

	if strings.Contains(name, "..") {
		return errclass.ErrNameInvalid.WithMessagef("name must not contain '..': %s", name)
	}
	if strings.ContainsAny(name, "/\\") {
		return errclass.ErrNameInvalid.WithMessagef("name must not contain separators: %s", name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return errclass.ErrNameInvalid.WithMessagef("name must not contain control characters: %q", name)
		}
	}
	if !nameRegex.MatchString(name) {
		return errclass.ErrNameInvalid.WithMessagef("name must match [a-zA-Z0-9._-]+: %s", name)
	}

	return nil
}

// ValidatePathSafety verifies targetPath does not escape root once resolved.
func ValidatePathSafety(root, targetPath string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return errclass.ErrPathEscape.WithMessagef("cannot resolve root: %v", err)
	}
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return errclass.ErrPathEscape.WithMessagef("cannot resolve target: %v", err)
	}

	rel, err := filepath.Rel(absRoot, absTarget)
	if err != nil {
		return errclass.ErrPathEscape.WithMessagef("cannot relativize %s: %v", targetPath, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errclass.ErrPathEscape.WithMessagef("path escapes root: %s", targetPath)
	}
	return nil
}
