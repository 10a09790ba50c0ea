package sanitize

import "testing"

func TestText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"  spaced \t out\n ", "spaced out"},
		{"<b>bold</b> text", "bold text"},
		{`<script>alert(1)</script>editor`, "editor"},
		{"AT&T", "AT&T"},
		{"a%20b", "ab"},
		{"bell\x07", "bell"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Text(tt.in); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Url_Pattern", "url_pattern"},
		{"match-type", "match-type"},
		{"bad key!", "badkey"},
		{"<x>", "x"},
	}

	for _, tt := range tests {
		if got := Key(tt.in); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://cdn.example.com/pf.js", "https://cdn.example.com/pf.js"},
		{"  http://api.example.com/v1 ", "http://api.example.com/v1"},
		{"cdn.example.com/pf.js", "http://cdn.example.com/pf.js"},
		{"javascript:alert(1)", ""},
		{"ftp://files.example.com", ""},
		{"/relative/path", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := URL(tt.in); got != tt.want {
			t.Errorf("URL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"1", "on", "yes", "true"} {
		if !Truthy(v) {
			t.Errorf("Truthy(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"", "0", "false", " 0 "} {
		if Truthy(v) {
			t.Errorf("Truthy(%q) = true, want false", v)
		}
	}
}
