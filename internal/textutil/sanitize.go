package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// MaxTitleRunes caps the length of a sanitized title.
const MaxTitleRunes = 200

// fileNameReplacer drops filesystem-unsafe characters.
var fileNameReplacer = strings.NewReplacer(
	"/", "",
	"\\", "",
	":", "",
	"*", "",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeTitle converts a media title into a file name stem. Control
// characters and \/*?:"<>| are removed, the text is NFC normalized, runs of
// whitespace collapse to one space, and leading or trailing dots and spaces
// are trimmed. The result is at most MaxTitleRunes runes and may be empty.
func SanitizeTitle(title string) string {
	cleaned := fileNameReplacer.Replace(norm.NFC.String(title))
	var b strings.Builder
	b.Grow(len(cleaned))
	space := false
	for _, r := range cleaned {
		switch {
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		space = false
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), ". ")
	if runes := []rune(out); len(runes) > MaxTitleRunes {
		out = strings.TrimRight(string(runes[:MaxTitleRunes]), ". ")
	}
	return out
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}
