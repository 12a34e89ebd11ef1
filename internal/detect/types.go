package detect

import "context"

// Reference is a scripture citation found in a transcript.
type Reference struct {
	Book       string  `json:"book"`
	Chapter    int     `json:"chapter"`
	Verse      int     `json:"verse"`
	VerseEnd   int     `json:"verseEnd,omitempty"`
	Confidence float64 `json:"confidence"`
	MatchType  string  `json:"matchType,omitempty"`
}

// CommandType identifies a spoken navigation command.
type CommandType string

const (
	CommandNextVerse   CommandType = "next_verse"
	CommandPrevVerse   CommandType = "prev_verse"
	CommandNextChapter CommandType = "next_chapter"
	CommandPrevChapter CommandType = "prev_chapter"
	CommandJumpToVerse CommandType = "jump_to_verse"
	CommandClear       CommandType = "clear"
)

// Command is a parsed navigation command.
type Command struct {
	Type  CommandType `json:"type"`
	Verse int         `json:"verse,omitempty"`
}

// Request is the payload sent to the detection service.
type Request struct {
	Transcript string `json:"transcript"`
	Context    string `json:"context,omitempty"`
}

// Response is the detection service's answer.
type Response struct {
	Scriptures []Reference `json:"scriptures"`
	Commands   []Command   `json:"commands"`
}

// ResolvedVerse pairs a detected reference with its text.
type ResolvedVerse struct {
	Reference Reference `json:"reference"`
	Label     string    `json:"label"`
	Text      string    `json:"text"`
}

// Event is what the aggregator emits downstream: resolved scripture
// references and navigation commands for one detection round.
type Event struct {
	Transcript string          `json:"transcript"`
	Verses     []ResolvedVerse `json:"verses,omitempty"`
	Commands   []Command       `json:"commands,omitempty"`
}

// Service finds scripture references and commands in a transcript.
type Service interface {
	Detect(ctx context.Context, req Request) (*Response, error)
}
