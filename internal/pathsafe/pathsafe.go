// Package pathsafe validates and sanitizes relative paths before any
// filesystem write. Every file copied off a device passes through
// Sanitize first, so a hostile or corrupt directory entry can never
// escape the destination root.
package pathsafe

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// ErrUnsafePath indicates a relative path failed sanitization.
// The file carrying the path is skipped; the backup continues.
var ErrUnsafePath = errors.New("unsafe path")

// illegalChars are characters rejected on conservative cross-platform
// targets. Forward and back slashes are handled as separators, not here.
const illegalChars = `<>:"|?*`

// maxLabelRunes caps a cleaned device label used as a folder-name component.
const maxLabelRunes = 64

// reservedNames are Windows device names that cannot be used as file or
// directory names, with or without an extension.
var reservedNames = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {},
	"com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {},
	"lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// Sanitize validates a candidate relative path and returns a cleaned
// version that is safe to join with any destination root. Rules are
// checked in order; the first violation wins:
//
//  1. parent-directory segments ("..") are rejected
//  2. absolute paths and drive/volume prefixes are rejected
//  3. characters illegal on common target filesystems are replaced,
//     control characters dropped, trailing spaces and dots trimmed
//     per segment
//  4. paths left empty, or with an empty segment, after sanitization
//     are rejected
//
// Violations return an error wrapping ErrUnsafePath.
func Sanitize(rel string) (string, error) {
	if rel == "" {
		return "", errors.Wrap(ErrUnsafePath, "empty path")
	}

	slashed := filepath.ToSlash(rel)
	segments := strings.Split(slashed, "/")

	for _, seg := range segments {
		if seg == ".." {
			return "", errors.Wrapf(ErrUnsafePath, "parent directory segment in %q", rel)
		}
	}

	if filepath.IsAbs(rel) || strings.HasPrefix(slashed, "/") {
		return "", errors.Wrapf(ErrUnsafePath, "absolute path %q", rel)
	}
	if len(rel) >= 2 && rel[1] == ':' {
		return "", errors.Wrapf(ErrUnsafePath, "drive prefix in %q", rel)
	}

	cleaned := make([]string, 0, len(segments))
	for _, seg := range segments {
		c := cleanSegment(seg)
		if c == "" {
			return "", errors.Wrapf(ErrUnsafePath, "segment %q of %q empty after sanitization", seg, rel)
		}
		cleaned = append(cleaned, c)
	}

	return filepath.Join(cleaned...), nil
}

// cleanSegment removes control characters, replaces characters illegal
// on common target filesystems with underscores, and trims trailing
// spaces and dots.
func cleanSegment(seg string) string {
	var b strings.Builder
	b.Grow(len(seg))
	for _, r := range seg {
		switch {
		case r < 0x20 || r == 0x7f:
			// control characters dropped
		case strings.ContainsRune(illegalChars, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " .")
}

// CleanLabel turns a device label into a safe single folder-name
// component: separators and illegal characters become underscores,
// control characters are dropped, the result is trimmed of surrounding
// whitespace and trailing dots, capped at 64 runes, and Windows
// reserved device names are prefixed. An empty or fully-stripped label
// becomes "device".
func CleanLabel(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			// control characters dropped
		case r == '/' || r == '\\' || strings.ContainsRune(illegalChars, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	s := strings.TrimSpace(b.String())
	s = strings.TrimRight(s, " .")
	if s == "" {
		return "device"
	}

	if utf8.RuneCountInString(s) > maxLabelRunes {
		s = string([]rune(s)[:maxLabelRunes])
		s = strings.TrimRight(s, " .")
		if s == "" {
			return "device"
		}
	}

	base := strings.ToLower(s)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if _, ok := reservedNames[base]; ok {
		s = "_" + s
	}

	return s
}
