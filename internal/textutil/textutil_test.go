package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "My Clip", "My Clip"},
		{"unsafe", `a/b\c*d?e:f"g<h>i|j`, "abcdefghij"},
		{"control", "tab\there\x00nul", "tab herenul"},
		{"trim dots and spaces", "  ..Title..  ", "Title"},
		{"collapse whitespace", "a   b \n c", "a b c"},
		{"nfc", "Café", "Café"},
		{"only unsafe", "???", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeTitle(tt.input); got != tt.want {
				t.Fatalf("SanitizeTitle(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeTitleCapsRunes(t *testing.T) {
	long := strings.Repeat("é", MaxTitleRunes+50)
	got := SanitizeTitle(long)
	if n := utf8.RuneCountInString(got); n != MaxTitleRunes {
		t.Fatalf("expected %d runes, got %d", MaxTitleRunes, n)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("YouTube:Tab"); got != "youtube_tab" {
		t.Fatalf("unexpected token %q", got)
	}
	if got := SanitizeToken("  "); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int]string{
		0:    "?",
		59:   "00:59",
		61:   "01:01",
		3600: "01:00:00",
		3725: "01:02:05",
	}
	for in, want := range cases {
		if got := FormatDuration(in); got != want {
			t.Fatalf("FormatDuration(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	if got := FormatSize(0); got != "?" {
		t.Fatalf("expected ?, got %q", got)
	}
	if got := FormatSize(5 * 1024 * 1024); got != "5.0 MiB" {
		t.Fatalf("unexpected size %q", got)
	}
}

func TestPlural(t *testing.T) {
	if Plural(1, "download", "downloads") != "download" {
		t.Fatal("expected singular")
	}
	if Plural(0, "download", "downloads") != "downloads" {
		t.Fatal("expected plural")
	}
}
