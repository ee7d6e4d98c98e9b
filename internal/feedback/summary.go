// Package feedback detects and delivers completion summaries written by the
// external coding agent.
package feedback

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Summary is the structured completion payload the agent writes when it
// finishes a delegated task. Uniqueness is determined solely by Timestamp.
type Summary struct {
	TLDR          string   `json:"tldr"`
	Changes       []string `json:"changes"`
	Notes         []string `json:"notes"`
	Risks         []string `json:"risks"`
	NextQuestions []string `json:"next_questions"`
	ApplySafe     bool     `json:"apply_safe"`
	Timestamp     string   `json:"timestamp"`
}

// ParseSummary decodes a raw JSON payload.
func ParseSummary(data []byte) (*Summary, error) {
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid summary payload: %w", err)
	}
	if s.TLDR == "" && s.Timestamp == "" {
		return nil, fmt.Errorf("summary payload missing tldr and timestamp")
	}
	return &s, nil
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)```")

// ParseFromText extracts a Summary embedded as a fenced block inside
// free-form text, for when the agent cannot use the file-writing path. The
// block body is parsed with the same schema as direct file parsing.
func ParseFromText(text string) (*Summary, error) {
	for _, m := range fencedBlockRe.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(m[1])
		if !strings.HasPrefix(body, "{") {
			continue
		}
		if s, err := ParseSummary([]byte(body)); err == nil {
			return s, nil
		}
	}

	// Last resort: the whole text may be bare JSON
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		return ParseSummary([]byte(trimmed))
	}

	return nil, fmt.Errorf("no summary block found in text")
}

// ComposeAnnouncement flattens a summary into the sentence the voice service
// reads aloud. Long lists are abbreviated so the readout stays listenable:
// up to three changes and four notes are spoken in full, risks beyond two
// collapse to a count, and follow-up questions are always appended.
func ComposeAnnouncement(s *Summary) string {
	var sb strings.Builder
	sb.WriteString(s.TLDR)

	if len(s.Changes) > 0 {
		sb.WriteString(". ")
		if len(s.Changes) <= 3 {
			sb.WriteString(joinSpoken(s.Changes))
		} else {
			sb.WriteString(joinSpoken(s.Changes[:3]))
			remaining := len(s.Changes) - 3
			sb.WriteString(fmt.Sprintf(", and %d more %s", remaining, plural("change", remaining)))
		}
	}

	if len(s.Notes) > 0 {
		sb.WriteString(". ")
		if len(s.Notes) <= 4 {
			sb.WriteString(joinSpoken(s.Notes))
		} else {
			sb.WriteString(joinSpoken(s.Notes[:3]))
			remaining := len(s.Notes) - 3
			sb.WriteString(fmt.Sprintf(". There are %d more important things that need further investigation", remaining))
		}
	}

	if len(s.Risks) > 0 {
		if len(s.Risks) <= 2 {
			sb.WriteString(". However, ")
			sb.WriteString(joinSpoken(s.Risks))
		} else {
			sb.WriteString(fmt.Sprintf(". Note: %d potential risks to be aware of", len(s.Risks)))
		}
	}

	for i, q := range s.NextQuestions {
		if i == 0 {
			sb.WriteString(". ")
			sb.WriteString(q)
		} else {
			sb.WriteString(" Also, ")
			sb.WriteString(q)
		}
	}

	return sb.String()
}

// joinSpoken joins items for speech: "a", "a, and b", "a, b, and c".
func joinSpoken(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}

	var sb strings.Builder
	for i, item := range items {
		switch {
		case i == 0:
			sb.WriteString(item)
		case i == len(items)-1:
			sb.WriteString(", and ")
			sb.WriteString(item)
		default:
			sb.WriteString(", ")
			sb.WriteString(item)
		}
	}
	return sb.String()
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
