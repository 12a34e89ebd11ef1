package verses

import "testing"

func TestCanonicalBook(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"John", "John", true},
		{"john", "John", true},
		{"JOHN", "John", true},
		{"jn", "John", true},
		{"Jn.", "John", true},
		{"1 John", "1 John", true},
		{"first john", "1 John", true},
		{"1   john", "1 John", true},
		{"psalm", "Psalms", true},
		{"Psalms", "Psalms", true},
		{"song of songs", "Song of Solomon", true},
		{"revelations", "Revelation", true},
		{"1 cor", "1 Corinthians", true},
		{"second timothy", "2 Timothy", true},
		{"gibberish", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := CanonicalBook(tt.input)
		if ok != tt.ok {
			t.Errorf("CanonicalBook(%q): ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("CanonicalBook(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
