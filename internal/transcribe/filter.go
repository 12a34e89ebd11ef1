package transcribe

import (
	"regexp"
	"strings"
)

// Whisper models hallucinate short stock phrases on silence or noise,
// most of them artifacts of video-caption training data. Transcripts
// that reduce to one of these are dropped rather than forwarded.
var fillerPhrases = map[string]struct{}{
	"you":                       {},
	"thank you":                 {},
	"thanks":                    {},
	"thank you for watching":    {},
	"thanks for watching":       {},
	"thank you so much":         {},
	"thank you very much":       {},
	"please subscribe":          {},
	"subscribe":                 {},
	"bye":                       {},
	"bye bye":                   {},
	"okay":                      {},
	"ok":                        {},
	"so":                        {},
	"the":                       {},
	"uh":                        {},
	"um":                        {},
	"hmm":                       {},
	"mm":                        {},
	"oh":                        {},
	"yeah":                      {},
	"music":                     {},
	"silence":                   {},
	"applause":                  {},
	"laughter":                  {},
	"foreign":                   {},
	"www.mooji.org":             {},
	"see you in the next video": {},
	"see you next time":         {},
}

// nonSpeechPattern matches transcripts that are entirely a bracketed
// annotation such as "[Music]", "(applause)" or "*coughs*".
var nonSpeechPattern = regexp.MustCompile(`^\s*[\[\(\*][^\]\)\*]*[\]\)\*]\s*$`)

// FilterReason explains why a transcript was rejected.
type FilterReason string

const (
	FilterNone      FilterReason = ""
	FilterFiller    FilterReason = "filler"
	FilterNonSpeech FilterReason = "non_speech"
	FilterTooShort  FilterReason = "too_short"
)

// Clean trims a raw transcript and decides whether it carries real
// speech. It returns the cleaned text and FilterNone when the
// transcript should be forwarded, or the empty string and a reason
// when it should be dropped. Original casing is preserved in the
// returned text; normalization is only applied for comparison.
func Clean(raw string, minLen int) (string, FilterReason) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", FilterTooShort
	}
	if nonSpeechPattern.MatchString(text) {
		return "", FilterNonSpeech
	}
	if _, ok := fillerPhrases[normalizeForComparison(text)]; ok {
		return "", FilterFiller
	}
	if len(text) < minLen {
		return "", FilterTooShort
	}
	return text, FilterNone
}

func normalizeForComparison(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRight(s, ".!?,;:")
	return strings.Join(strings.Fields(s), " ")
}
