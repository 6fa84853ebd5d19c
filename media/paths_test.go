package media

import (
	"strings"
	"testing"
)

func TestSanitizeFolderName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Birthday 2024", "Birthday 2024"},
		{`a<b>c:d"e/f\g|h?i*j`, "abcdefghij"},
		{"  lots   of \t space  ", "lots of space"},
		{"../../etc", "....etc"},
		{"..", "untitled"},
		{"???", "untitled"},
		{"", "untitled"},
		{strings.Repeat("x", 150), strings.Repeat("x", 100)},
	}
	for _, tt := range tests {
		if got := SanitizeFolderName(tt.in); got != tt.want {
			t.Errorf("SanitizeFolderName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestThumbnailPath(t *testing.T) {
	tests := []struct {
		name, event, want string
	}{
		{"a.jpg", "", "thumbnails/thumb_a.jpg"},
		{"x.nef", "Wedding", "events/Wedding/thumbnails/thumb_x.nef"},
		{"../../escape.jpg", "", "thumbnails/thumb_escape.jpg"},
	}
	for _, tt := range tests {
		if got := ThumbnailPath(tt.name, tt.event); got != tt.want {
			t.Errorf("ThumbnailPath(%q, %q) = %q, want %q", tt.name, tt.event, got, tt.want)
		}
	}
}
