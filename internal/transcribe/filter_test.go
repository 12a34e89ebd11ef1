package transcribe

import "testing"

func TestCleanPassesRealSpeech(t *testing.T) {
	text, reason := Clean("  Turn with me to John chapter three  ", 4)
	if reason != FilterNone {
		t.Fatalf("expected FilterNone, got %q", reason)
	}
	if text != "Turn with me to John chapter three" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestCleanPreservesCasing(t *testing.T) {
	text, reason := Clean("For God So Loved The World", 4)
	if reason != FilterNone {
		t.Fatalf("expected FilterNone, got %q", reason)
	}
	if text != "For God So Loved The World" {
		t.Errorf("casing was altered: %q", text)
	}
}

func TestCleanFillerPhrases(t *testing.T) {
	cases := []string{
		"Thank you.",
		"thanks for watching",
		"Thank you for watching!",
		"you",
		"You.",
		"Okay.",
		"THANK YOU SO MUCH",
	}
	for _, raw := range cases {
		if _, reason := Clean(raw, 4); reason != FilterFiller {
			t.Errorf("Clean(%q): expected FilterFiller, got %q", raw, reason)
		}
	}
}

func TestCleanNonSpeechAnnotations(t *testing.T) {
	cases := []string{
		"[Music]",
		"  (applause)  ",
		"*coughs*",
		"[ Silence ]",
	}
	for _, raw := range cases {
		if _, reason := Clean(raw, 4); reason != FilterNonSpeech {
			t.Errorf("Clean(%q): expected FilterNonSpeech, got %q", raw, reason)
		}
	}
}

func TestCleanTooShort(t *testing.T) {
	cases := []string{"", "   ", "hi", "no"}
	for _, raw := range cases {
		if _, reason := Clean(raw, 4); reason != FilterTooShort {
			t.Errorf("Clean(%q): expected FilterTooShort, got %q", raw, reason)
		}
	}
}

func TestCleanBracketedSpeechNotDropped(t *testing.T) {
	// Brackets inside real speech must not trip the annotation check.
	text, reason := Clean("turn to [the book of] John", 4)
	if reason != FilterNone {
		t.Fatalf("expected FilterNone, got %q", reason)
	}
	if text == "" {
		t.Error("expected text to survive")
	}
}
