package security

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode"
)

// MaxFilenameLength caps stored upload names, in runes
const MaxFilenameLength = 255

var ErrEmptyFilename = errors.New("empty filename")

// SanitizeFilename reduces a client-supplied upload name to a bare file name
// safe to log and store: directory parts, NUL and control characters are
// dropped and the result is capped at MaxFilenameLength runes.
func SanitizeFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))

	var b strings.Builder
	for _, r := range name {
		if r == 0 || unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		b.WriteRune(r)
	}
	name = strings.TrimSpace(b.String())

	if name == "" || name == "." || name == "/" || name == ".." {
		return "", ErrEmptyFilename
	}

	if runes := []rune(name); len(runes) > MaxFilenameLength {
		ext := []rune(filepath.Ext(name))
		if len(ext) >= MaxFilenameLength {
			ext = nil
		}
		name = string(runes[:MaxFilenameLength-len(ext)]) + string(ext)
	}
	return name, nil
}
