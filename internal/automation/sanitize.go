package automation

import "strings"

// typographicReplacements maps common smart punctuation to ASCII equivalents.
// Injected text passes through the OS clipboard and the target's input layer,
// where non-ASCII punctuation has corrupted pasted instructions before.
var typographicReplacements = map[rune]string{
	'‘': "'",  // left single quote
	'’': "'",  // right single quote
	'‚': "'",  // single low quote
	'“': `"`,  // left double quote
	'”': `"`,  // right double quote
	'„': `"`,  // double low quote
	'–': "-",  // en dash
	'—': "-",  // em dash
	'―': "-",  // horizontal bar
	'…': "...", // ellipsis
	' ': " ",  // non-breaking space
	' ': " ",  // figure space
	' ': " ",  // narrow non-breaking space
}

// SanitizeText rewrites smart punctuation to ASCII equivalents and strips C1
// control characters before the text is handed to the clipboard step.
func SanitizeText(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	for _, r := range text {
		if repl, ok := typographicReplacements[r]; ok {
			sb.WriteString(repl)
			continue
		}
		// C1 control block
		if r >= 0x80 && r <= 0x9F {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
