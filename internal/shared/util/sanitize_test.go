package util

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "passport.pdf", want: "passport.pdf"},
		{in: "  id card.png ", want: "id card.png"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: `C:\Users\me\bill.pdf`, want: "bill.pdf"},
		{in: "scan..pdf", want: "scan_pdf"},
		{in: "..", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "dir/", want: "dir"},
		{in: "bill\r\n\"march\".pdf", want: "billmarch.pdf"},
		{in: "\x00", wantErr: true},
		{in: strings.Repeat("a", 300) + ".pdf", want: strings.Repeat("a", MaxFileNameBytes-4) + ".pdf"},
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFileName(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("SanitizeFileName(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFileNameKeepsUTF8Valid(t *testing.T) {
	name := strings.Repeat("é", 200) + ".png"
	got, err := SanitizeFileName(name)
	if err != nil {
		t.Fatalf("SanitizeFileName: %v", err)
	}
	if len(got) > MaxFileNameBytes || !strings.HasSuffix(got, ".png") {
		t.Fatalf("unexpected truncation %q (%d bytes)", got, len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
}
