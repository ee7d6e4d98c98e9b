package automation

import "testing"

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"smart double quotes", "say “hello” now", `say "hello" now`},
		{"smart single quotes", "it’s ‘fine’", "it's 'fine'"},
		{"em dash", "one—two", "one-two"},
		{"en dash", "pages 1–2", "pages 1-2"},
		{"ellipsis", "wait…", "wait..."},
		{"non-breaking space", "a b", "a b"},
		{"plain ascii untouched", "fix the login bug", "fix the login bug"},
		{
			"mixed typography in one string",
			"Add a “login” button — then test it… now please",
			`Add a "login" button - then test it... now please`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeText_StripsC1Controls(t *testing.T) {
	input := "before\u0085mid\u009Cafter"
	if got := SanitizeText(input); got != "beforemidafter" {
		t.Errorf("expected C1 controls stripped, got %q", got)
	}
}

func TestSanitizeText_ResultIsASCIIForTypography(t *testing.T) {
	input := "‘’“”–—… "
	got := SanitizeText(input)
	for _, r := range got {
		if r > 127 {
			t.Errorf("expected ASCII-only output, found %U in %q", r, got)
		}
	}
}
