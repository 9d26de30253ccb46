package router

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncatePreviewRuneBoundary(t *testing.T) {
	// A two-byte rune straddling the cut must survive whole.
	long := strings.Repeat("a", 139) + "ã" + strings.Repeat("b", 20)
	got := truncatePreview(long, 140)
	if !utf8.ValidString(got) {
		t.Fatalf("truncated preview is not valid UTF-8: %q", got)
	}
	if utf8.RuneCountInString(got) != 140 {
		t.Fatalf("expected 140 runes, got %d", utf8.RuneCountInString(got))
	}
	if last, _ := utf8.DecodeLastRuneInString(got); last != 'ã' {
		t.Fatalf("expected last rune 'ã', got %q", last)
	}
}

func TestTruncatePreviewShortUnchanged(t *testing.T) {
	for _, s := range []string{"", "oi", "Olá, tudo bem?", strings.Repeat("x", 140)} {
		if got := truncatePreview(s, 140); got != s {
			t.Fatalf("short preview changed: %q -> %q", s, got)
		}
	}
}

func TestStringArgMalformedEvents(t *testing.T) {
	if _, ok := stringArg(nil, 0); ok {
		t.Fatal("missing argument accepted")
	}
	if _, ok := stringArg([]interface{}{"7"}, 2); ok {
		t.Fatal("out-of-range argument accepted")
	}
	if _, ok := stringArg([]interface{}{42}, 0); ok {
		t.Fatal("non-string argument accepted")
	}
	if got, ok := stringArg([]interface{}{"7", "text", "oi"}, 1); !ok || got != "text" {
		t.Fatalf("valid argument refused: %q %v", got, ok)
	}
}
