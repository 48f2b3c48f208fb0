package output

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const hexDigits = "0123456789abcdef"

// SanitizeTerminal rewrites control characters and invalid UTF-8 as visible
// escapes so process names, command lines and container labels cannot drive
// the terminal. Tabs and newlines are kept.
//
//	"web\x1b[2J"  -> `web\x1b[2J`
//	"bad\xff"     -> `bad\xff`
func SanitizeTerminal(s string) string {
	i := firstUnsafe(s)
	if i < 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 8)
	b.WriteString(s[:i])
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			writeEscape(&b, rune(s[i]))
		case unsafeRune(r):
			writeEscape(&b, r)
		default:
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

// SanitizeLine is SanitizeTerminal for single-line cells: newlines and tabs
// become spaces as well.
func SanitizeLine(s string) string {
	s = SanitizeTerminal(s)
	if !strings.ContainsAny(s, "\n\t") {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		return r
	}, s)
}

func firstUnsafe(s string) int {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if (r == utf8.RuneError && size == 1) || unsafeRune(r) {
			return i
		}
		i += size
	}
	return -1
}

func unsafeRune(r rune) bool {
	return (r != '\n' && r != '\t' && unicode.IsControl(r)) || r == '\u2028' || r == '\u2029'
}

// writeEscape emits \xHH for r <= 0xff, \uHHHH inside the BMP and
// \UHHHHHHHH above it.
func writeEscape(b *strings.Builder, r rune) {
	var width int
	switch {
	case r <= 0xff:
		b.WriteString(`\x`)
		width = 2
	case r <= 0xffff:
		b.WriteString(`\u`)
		width = 4
	default:
		b.WriteString(`\U`)
		width = 8
	}
	for shift := (width - 1) * 4; shift >= 0; shift -= 4 {
		b.WriteByte(hexDigits[(r>>uint(shift))&0x0f])
	}
}
