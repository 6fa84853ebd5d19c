package services

import "testing"

func TestNormalizePersonName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Zoë", "zoe"},
		{"  José   María ", "jose maria"},
		{"Anne-Sophie", "anne sophie"},
		{"ÅSA", "asa"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePersonName(tt.in); got != tt.want {
			t.Errorf("NormalizePersonName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNameMatches(t *testing.T) {
	tests := []struct {
		name, query string
		want        bool
	}{
		{"Zoë Smith", "zoe", true},
		{"Anne-Sophie Martin", "anne sophie", true},
		{"Renée", "RENEE", true},
		{"Bob", "alice", false},
	}
	for _, tt := range tests {
		if got := nameMatches(tt.name, tt.query); got != tt.want {
			t.Errorf("nameMatches(%q, %q) = %v, want %v", tt.name, tt.query, got, tt.want)
		}
	}
}
