package analysis

import (
	"regexp"
	"strings"

	"github.com/normanking/jarvisbridge/internal/conversation"
)

// TurnClassification is the heuristic judgment of a single utterance, used
// when the inference endpoint is unreachable or returns unparsable output.
type TurnClassification struct {
	Intent     conversation.Intent
	Confidence float64
}

var confirmationPhrases = []string{
	"ship it", "do it", "go ahead", "yes", "confirm", "proceed",
	"yeah", "sure", "please do", "sounds good",
}

var commandVerbs = []string{
	"add", "create", "fix", "implement", "make", "build", "write",
	"update", "delete", "remove", "refactor", "rename", "install",
	"run", "deploy", "push", "commit", "test",
}

var smallTalkPhrases = []string{
	"hi", "hello", "hey", "how are you", "good morning", "good evening",
	"what's up", "thanks", "thank you", "nice",
}

// wordPattern matches s as a whole word, case already lowered by the caller.
func wordPattern(s string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(s) + `\b`)
}

var (
	confirmationPatterns = compileAll(confirmationPhrases)
	verbPatterns         = compileAll(commandVerbs)
	smallTalkPatterns    = compileAll(smallTalkPhrases)
)

func compileAll(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = wordPattern(w)
	}
	return out
}

// Classify judges a single utterance without conversational context.
// It never fails: anything unrecognized is low-confidence thinking.
func Classify(text string) TurnClassification {
	lower := strings.ToLower(strings.TrimSpace(text))

	for _, p := range confirmationPatterns {
		if p.MatchString(lower) {
			return TurnClassification{Intent: conversation.IntentConfirmation, Confidence: 0.9}
		}
	}

	for _, p := range verbPatterns {
		if p.MatchString(lower) {
			return TurnClassification{Intent: conversation.IntentActionable, Confidence: 0.8}
		}
	}

	for _, p := range smallTalkPatterns {
		if p.MatchString(lower) {
			return TurnClassification{Intent: conversation.IntentThinking, Confidence: 0.7}
		}
	}

	return TurnClassification{Intent: conversation.IntentThinking, Confidence: 0.5}
}
