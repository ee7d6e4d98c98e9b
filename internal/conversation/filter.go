package conversation

import (
	"regexp"
	"strings"
	"sync"
)

// DefaultFillerWords lists hesitation sounds stripped from user transcripts.
// Only pure hesitations belong here: discourse words like "so" or "right"
// carry meaning and must survive filtering.
var DefaultFillerWords = []string{
	"um", "uh", "uhh", "umm",
	"er", "ah", "hmm", "mm",
}

// TranscriptFilter removes filler words from speech transcripts before they
// enter the conversation buffer. Noisy transcripts degrade intent
// classification, and filler-only transcripts are not worth recording at all.
type TranscriptFilter struct {
	mu          sync.RWMutex
	fillerWords map[string]struct{}
	pattern     *regexp.Regexp
}

var (
	spacePattern = regexp.MustCompile(`\s+`)
	punctPattern = regexp.MustCompile(`^[.,!?;:\s]+$`)
)

// NewTranscriptFilter creates a filter with the given filler words, or
// DefaultFillerWords when nil.
func NewTranscriptFilter(fillerWords []string) *TranscriptFilter {
	if fillerWords == nil {
		fillerWords = DefaultFillerWords
	}

	f := &TranscriptFilter{
		fillerWords: make(map[string]struct{}, len(fillerWords)),
	}
	for _, word := range fillerWords {
		f.fillerWords[strings.ToLower(word)] = struct{}{}
	}
	f.buildPattern()
	return f
}

func (f *TranscriptFilter) buildPattern() {
	if len(f.fillerWords) == 0 {
		f.pattern = nil
		return
	}

	patterns := make([]string, 0, len(f.fillerWords))
	for word := range f.fillerWords {
		patterns = append(patterns, `\b`+regexp.QuoteMeta(word)+`\b`)
	}
	f.pattern = regexp.MustCompile(`(?i)(` + strings.Join(patterns, `|`) + `)`)
}

// AddFillerWord adds a word to the filler list.
func (f *TranscriptFilter) AddFillerWord(word string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fillerWords[strings.ToLower(word)] = struct{}{}
	f.buildPattern()
}

// RemoveFillerWord removes a word from the filler list.
func (f *TranscriptFilter) RemoveFillerWord(word string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.fillerWords, strings.ToLower(word))
	f.buildPattern()
}

// FillerWords returns a copy of the current filler word list.
func (f *TranscriptFilter) FillerWords() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	words := make([]string, 0, len(f.fillerWords))
	for word := range f.fillerWords {
		words = append(words, word)
	}
	return words
}

// Clean strips filler words and normalizes whitespace. The second return
// reports whether anything meaningful remains.
func (f *TranscriptFilter) Clean(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	f.mu.RLock()
	pattern := f.pattern
	f.mu.RUnlock()

	cleaned := text
	if pattern != nil {
		cleaned = pattern.ReplaceAllString(cleaned, "")
	}
	cleaned = spacePattern.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)

	// Punctuation left behind by removed fillers is noise too.
	if punctPattern.MatchString(cleaned) {
		cleaned = ""
	}

	return cleaned, len(cleaned) > 0
}

// IsFillerOnly reports whether the text carries no meaningful content.
func (f *TranscriptFilter) IsFillerOnly(text string) bool {
	_, meaningful := f.Clean(text)
	return !meaningful
}
