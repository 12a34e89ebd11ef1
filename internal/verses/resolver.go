package verses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Resolver turns detected reference candidates into display-ready verse
// text, normalizing book names and retrying alternate spellings before
// giving up.
type Resolver struct {
	store  Store
	logger zerolog.Logger
}

// NewResolver creates a resolver over the given store.
func NewResolver(store Store, logger zerolog.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Resolve looks up the text for a reference candidate. verseEnd of zero
// means a single verse; otherwise the range verse..verseEnd is joined.
// Returns the formatted reference label and the verse text, or ErrNotFound
// when the candidate cannot be resolved under any known spelling.
func (r *Resolver) Resolve(ctx context.Context, book string, chapter, verse, verseEnd int) (string, string, error) {
	canonical, ok := CanonicalBook(book)
	if !ok {
		// Unknown variant: fall through with the raw name so stores loaded
		// with nonstandard book labels still have a chance.
		canonical = strings.TrimSpace(book)
	}

	if verseEnd > 0 && verseEnd < verse {
		verseEnd = 0
	}

	end := verse
	if verseEnd > 0 {
		end = verseEnd
	}

	var parts []string
	for v := verse; v <= end; v++ {
		text, err := r.lookupWithRetries(ctx, canonical, chapter, v)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.logger.Debug().
					Str("book", book).
					Int("chapter", chapter).
					Int("verse", v).
					Msg("Verse not resolved, dropping candidate")
			}
			return "", "", err
		}
		parts = append(parts, text)
	}

	label := fmt.Sprintf("%s %d:%d", canonical, chapter, verse)
	if verseEnd > 0 && verseEnd != verse {
		label = fmt.Sprintf("%s %d:%d-%d", canonical, chapter, verse, verseEnd)
	}
	return label, strings.Join(parts, " "), nil
}

// lookupWithRetries tries the canonical name first, then a small set of
// alternate forms. Capitalization and stray whitespace in loaded data are
// the common causes of misses.
func (r *Resolver) lookupWithRetries(ctx context.Context, book string, chapter, verse int) (string, error) {
	text, err := r.store.Lookup(ctx, book, chapter, verse)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	for _, alt := range alternateForms(book) {
		text, err = r.store.Lookup(ctx, alt, chapter, verse)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", ErrNotFound
}

func alternateForms(book string) []string {
	var forms []string
	seen := map[string]struct{}{book: {}}
	add := func(s string) {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			forms = append(forms, s)
		}
	}
	add(strings.ToLower(book))
	add(strings.Join(strings.Fields(book), " "))
	add(strings.ToLower(strings.Join(strings.Fields(book), " ")))
	return forms
}
