package output

import (
	"fmt"
	"strings"
	"testing"
	"unicode"
)

func TestSanitizeTerminal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"nginx", "nginx"},
		{"web\x1b[2J", `web\x1b[2J`},
		{"nul:\x00", `nul:\x00`},
		{"bad:\xff", `bad:\xff`},
		{"a\tb\nc", "a\tb\nc"},
		{"sep\u2028x", `sep\u2028x`},
		{"para\u2029", `para\u2029`},
		{"del\x7f", `del\x7f`},
		{"héllo", "héllo"},
	}
	for _, tt := range tests {
		if got := SanitizeTerminal(tt.in); got != tt.want {
			t.Errorf("SanitizeTerminal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeLine(t *testing.T) {
	if got := SanitizeLine("python3 -m\nhttp.server\t8080"); got != "python3 -m http.server 8080" {
		t.Errorf("SanitizeLine = %q", got)
	}
}

func FuzzWriteEscape(f *testing.F) {
	for _, r := range []uint32{0x00, 0x1b, 0x7f, 0x80, 0xff, 0x100, 0x20ac, 0xffff, 0x10000, 0x10ffff} {
		f.Add(r)
	}

	f.Fuzz(func(t *testing.T, raw uint32) {
		r := rune(raw % (unicode.MaxRune + 1))

		var b strings.Builder
		writeEscape(&b, r)
		got := b.String()

		var want string
		switch {
		case r <= 0xff:
			want = fmt.Sprintf(`\x%02x`, r)
		case r <= 0xffff:
			want = fmt.Sprintf(`\u%04x`, r)
		default:
			want = fmt.Sprintf(`\U%08x`, r)
		}
		if got != want {
			t.Fatalf("writeEscape(%#x) = %q, want %q", r, got, want)
		}
		for i := 0; i < len(got); i++ {
			if got[i] < 0x20 || got[i] >= 0x7f {
				t.Fatalf("writeEscape(%#x) produced unprintable byte 0x%02x", r, got[i])
			}
		}
	})
}

func FuzzSanitizeTerminal(f *testing.F) {
	f.Add("docker-proxy")
	f.Add("\x1b]0;title\x07")
	f.Add("\xc3\x28")

	f.Fuzz(func(t *testing.T, s string) {
		got := SanitizeTerminal(s)
		if firstUnsafe(got) >= 0 {
			t.Fatalf("SanitizeTerminal(%q) = %q still has control characters", s, got)
		}
		if SanitizeTerminal(got) != got {
			t.Fatalf("SanitizeTerminal is not stable on %q", got)
		}
	})
}
