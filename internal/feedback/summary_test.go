package feedback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
	"tldr": "Added the login button",
	"changes": ["Created LoginButton.tsx", "Wired it into the navbar"],
	"notes": ["Uses the existing auth hook"],
	"risks": ["No loading state yet"],
	"next_questions": ["Want a loading spinner?"],
	"apply_safe": true,
	"timestamp": "2026-08-25T10:30:00"
}`

func TestParseSummary(t *testing.T) {
	s, err := ParseSummary([]byte(samplePayload))
	require.NoError(t, err)

	assert.Equal(t, "Added the login button", s.TLDR)
	assert.Len(t, s.Changes, 2)
	assert.True(t, s.ApplySafe)
	assert.Equal(t, "2026-08-25T10:30:00", s.Timestamp)
}

func TestParseSummary_Invalid(t *testing.T) {
	_, err := ParseSummary([]byte("not json"))
	assert.Error(t, err)

	_, err = ParseSummary([]byte("{}"))
	assert.Error(t, err, "payload without tldr or timestamp is rejected")
}

func TestParseFromText_FencedBlockMatchesFileParsing(t *testing.T) {
	text := "Here is the summary you asked for:\n\n```json\n" + samplePayload + "\n```\n\nLet me know if you need more."

	fromText, err := ParseFromText(text)
	require.NoError(t, err)

	fromFile, err := ParseSummary([]byte(samplePayload))
	require.NoError(t, err)

	assert.Equal(t, fromFile, fromText)
}

func TestParseFromText_PlainFence(t *testing.T) {
	text := "```\n" + samplePayload + "\n```"

	s, err := ParseFromText(text)
	require.NoError(t, err)
	assert.Equal(t, "Added the login button", s.TLDR)
}

func TestParseFromText_SkipsNonSummaryFences(t *testing.T) {
	text := "```\nfunc main() {}\n```\nand then\n```json\n" + samplePayload + "\n```"

	s, err := ParseFromText(text)
	require.NoError(t, err)
	assert.Equal(t, "Added the login button", s.TLDR)
}

func TestParseFromText_BareJSON(t *testing.T) {
	s, err := ParseFromText(samplePayload)
	require.NoError(t, err)
	assert.Equal(t, "Added the login button", s.TLDR)
}

func TestParseFromText_NoBlock(t *testing.T) {
	_, err := ParseFromText("I finished the task, everything looks good.")
	assert.Error(t, err)
}

func TestComposeAnnouncement_FewItems(t *testing.T) {
	var s Summary
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &s))

	got := ComposeAnnouncement(&s)

	assert.Contains(t, got, "Added the login button")
	assert.Contains(t, got, "Created LoginButton.tsx, and Wired it into the navbar")
	assert.Contains(t, got, "However, No loading state yet")
	assert.Contains(t, got, "Want a loading spinner?")
}

func TestComposeAnnouncement_ManyChangesAbbreviated(t *testing.T) {
	s := &Summary{
		TLDR:    "Refactored the API layer",
		Changes: []string{"one", "two", "three", "four", "five"},
	}

	got := ComposeAnnouncement(s)

	assert.Contains(t, got, "one, two, and three")
	assert.Contains(t, got, "and 2 more changes")
	assert.NotContains(t, got, "four")
}

func TestComposeAnnouncement_ManyRisksCollapseToCount(t *testing.T) {
	s := &Summary{
		TLDR:  "Done",
		Risks: []string{"r1", "r2", "r3"},
	}

	got := ComposeAnnouncement(s)
	assert.Contains(t, got, "Note: 3 potential risks to be aware of")
	assert.NotContains(t, got, "r1")
}

func TestComposeAnnouncement_TLDROnly(t *testing.T) {
	s := &Summary{TLDR: "All done"}
	assert.Equal(t, "All done", ComposeAnnouncement(s))
}
