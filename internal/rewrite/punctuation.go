// Package rewrite implements the post-ASR text pipeline: stripping the 0.6B
// model's inconsistent built-in punctuation normalization, applying learned
// word/phrase corrections, rendering punctuation words back to symbols, and
// reapplying secretary-mode capitalization rules.
package rewrite

import "strings"

// punctuation markers used internally by NormalizeBuiltinPunctuation to
// avoid substring collisions between a punctuation word and its own name
// (e.g. "period" appearing inside a marker for "period").
const (
	markerComma       = "⟪1⟫"
	markerPeriod      = "⟪2⟫"
	markerQuestion    = "⟪3⟫"
	markerExclamation = "⟪4⟫"
	markerSemicolon   = "⟪5⟫"
	markerColon       = "⟪6⟫"
	markerDash        = "⟪7⟫"
	markerEllipsis    = "⟪8⟫"
)

var punctMarkers = map[string]bool{
	markerComma: true, markerPeriod: true, markerQuestion: true, markerExclamation: true,
	markerSemicolon: true, markerColon: true, markerDash: true, markerEllipsis: true,
}

// NormalizeBuiltinPunctuation strips the 0.6B ASR variant's built-in inverse
// text normalization, which converts punctuation inconsistently ("comma" ->
// ",", "period" -> "period.", "semicolon" -> ",;"). It rewrites both word and
// symbol forms onto a single canonical word vocabulary so later pipeline
// stages see uniform input regardless of which ASR variant produced it.
func NormalizeBuiltinPunctuation(text string) string {
	text = strings.ToLower(text)

	// Punctuation words -> markers. Multi-word phrases must be replaced
	// before their single-word substrings ("exclamation mark" before "mark"
	// would otherwise never match since "mark" alone isn't a word we convert,
	// but "question mark" must win over a bare "question").
	text = strings.ReplaceAll(text, "exclamation point", markerExclamation)
	text = strings.ReplaceAll(text, "exclamation mark", markerExclamation)
	text = strings.ReplaceAll(text, "question mark", markerQuestion)
	text = strings.ReplaceAll(text, "full stop", markerPeriod)
	text = strings.ReplaceAll(text, "semi colon", markerSemicolon)
	text = strings.ReplaceAll(text, "three dots", markerEllipsis)
	text = strings.ReplaceAll(text, "ellipsis", markerEllipsis)
	text = strings.ReplaceAll(text, "semicolon", markerSemicolon)
	text = strings.ReplaceAll(text, "period", markerPeriod)
	text = strings.ReplaceAll(text, "comma", markerComma)
	text = strings.ReplaceAll(text, "colon", markerColon)
	text = strings.ReplaceAll(text, "dash", markerDash)

	// Punctuation symbols -> markers. Longer sequences first so "..." and
	// "--" aren't shredded by the single-character passes that follow.
	text = strings.ReplaceAll(text, "...", " "+markerEllipsis+" ")
	text = strings.ReplaceAll(text, "--", " "+markerDash+" ")
	text = strings.ReplaceAll(text, ",", " "+markerComma+" ")
	text = strings.ReplaceAll(text, ".", " "+markerPeriod+" ")
	text = strings.ReplaceAll(text, "?", " "+markerQuestion+" ")
	text = strings.ReplaceAll(text, "!", " "+markerExclamation+" ")
	text = strings.ReplaceAll(text, ";", " "+markerSemicolon+" ")
	text = strings.ReplaceAll(text, ":", " "+markerColon+" ")
	text = strings.ReplaceAll(text, "-", " "+markerDash+" ")

	tokens := strings.Fields(text)
	result := make([]string, 0, len(tokens))

	for i, token := range tokens {
		// Drop a duplicate punctuation marker immediately following itself
		// (word form + symbol form collapsing to one marker).
		if i > 0 && token == tokens[i-1] && punctMarkers[token] {
			continue
		}

		// Drop a spurious comma marker directly followed by a different
		// punctuation marker (0.6B artifact: ",;" -> comma, semicolon).
		if token == markerComma && i+1 < len(tokens) {
			next := tokens[i+1]
			if punctMarkers[next] && next != markerComma {
				continue
			}
		}

		// Drop a spurious period marker directly preceded by an exclamation
		// or question marker (0.6B artifact: "exclamation point." -> both).
		if token == markerPeriod && len(result) > 0 {
			prev := result[len(result)-1]
			if prev == markerExclamation || prev == markerQuestion {
				continue
			}
		}

		result = append(result, token)
	}

	out := strings.Join(result, " ")
	out = strings.ReplaceAll(out, markerComma, "comma")
	out = strings.ReplaceAll(out, markerPeriod, "period")
	out = strings.ReplaceAll(out, markerQuestion, "question mark")
	out = strings.ReplaceAll(out, markerExclamation, "exclamation point")
	out = strings.ReplaceAll(out, markerSemicolon, "semicolon")
	out = strings.ReplaceAll(out, markerColon, "colon")
	out = strings.ReplaceAll(out, markerDash, "dash")
	out = strings.ReplaceAll(out, markerEllipsis, "ellipsis")
	return out
}

// phraseSymbols and wordSymbols invert the canonical word vocabulary that
// NormalizeBuiltinPunctuation produces back into written symbols. The
// original daemon relied on an external text-transform crate for this step;
// it has no sibling source in this tree, so the mapping here is the direct
// inverse of the marker table above.
var phraseSymbols = map[string]string{
	"question mark":     "?",
	"exclamation point": "!",
}

var wordSymbols = map[string]string{
	"comma":     ",",
	"period":    ".",
	"semicolon": ";",
	"colon":     ":",
	"dash":      "-",
	"ellipsis":  "...",
}

// RenderMarkersToSymbols converts the canonical punctuation words produced by
// NormalizeBuiltinPunctuation (and left untouched by correction matching)
// into their written symbols, attached to the preceding word with no
// intervening space.
func RenderMarkersToSymbols(text string) string {
	words := strings.Fields(text)
	var b strings.Builder

	i := 0
	for i < len(words) {
		if i+1 < len(words) {
			if sym, ok := phraseSymbols[words[i]+" "+words[i+1]]; ok {
				b.WriteString(sym)
				i += 2
				continue
			}
		}
		if sym, ok := wordSymbols[words[i]]; ok {
			b.WriteString(sym)
			i++
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(words[i])
		i++
	}
	return b.String()
}
