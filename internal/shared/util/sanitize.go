// Package util holds small helpers shared by storage and HTTP code.
package util

import (
	"errors"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxFileNameBytes caps stored file names; longer names are cut before the
// extension.
const MaxFileNameBytes = 180

// SanitizeFileName keeps only the base name of an uploaded file, drops
// control characters and quotes (the name is echoed in Content-Disposition),
// and rejects names that are empty or pure traversal.
func SanitizeFileName(name string) (string, error) {
	s := strings.ReplaceAll(name, "\\", "/")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '"' || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
	s = path.Base(strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." || s == "/" {
		return "", errors.New("invalid file name")
	}
	s = strings.ReplaceAll(s, "..", "_")
	return truncateName(s), nil
}

func truncateName(s string) string {
	if len(s) <= MaxFileNameBytes {
		return s
	}
	ext := path.Ext(s)
	if len(ext) > 16 {
		ext = ""
	}
	stem := s[:MaxFileNameBytes-len(ext)]
	for !utf8.ValidString(stem) {
		stem = stem[:len(stem)-1]
	}
	return stem + ext
}
