package rewrite

import "testing"

func TestNormalizeBuiltinPunctuationWordExistsRemovesRedundantSymbol(t *testing.T) {
	cases := map[string]string{
		"hello period.":             "hello period",
		"what question mark?":       "what question mark",
		"stop exclamation point!":   "stop exclamation point",
	}
	for in, want := range cases {
		if got := NormalizeBuiltinPunctuation(in); got != want {
			t.Errorf("NormalizeBuiltinPunctuation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeBuiltinPunctuationSymbolToWord(t *testing.T) {
	cases := map[string]string{
		"hello, world":    "hello comma world",
		"what?":           "what question mark",
		"stop!":           "stop exclamation point",
		"note: important": "note colon important",
		"first; second":   "first semicolon second",
	}
	for in, want := range cases {
		if got := NormalizeBuiltinPunctuation(in); got != want {
			t.Errorf("NormalizeBuiltinPunctuation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeBuiltinPunctuationMixedBehavior(t *testing.T) {
	got := NormalizeBuiltinPunctuation("Hello, world period.")
	want := "hello comma world period"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeBuiltinPunctuationLowercases(t *testing.T) {
	if got := NormalizeBuiltinPunctuation("Hello World"); got != "hello world" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeBuiltinPunctuation("HELLO"); got != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeBuiltinPunctuationWhitespaceCleanup(t *testing.T) {
	if got := NormalizeBuiltinPunctuation("hello   world"); got != "hello world" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeBuiltinPunctuation("  hello  world  "); got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeBuiltinPunctuationNoPunctuationPassesThrough(t *testing.T) {
	if got := NormalizeBuiltinPunctuation("hello world"); got != "hello world" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeBuiltinPunctuationFullStopVariant(t *testing.T) {
	got := NormalizeBuiltinPunctuation("hello full stop.")
	if got != "hello period" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeBuiltinPunctuationExclamationMarkVariant(t *testing.T) {
	got := NormalizeBuiltinPunctuation("wow exclamation mark!")
	if got != "wow exclamation point" {
		t.Errorf("got %q", got)
	}
}

func TestNormalizeBuiltinPunctuationComplexSentence(t *testing.T) {
	got := NormalizeBuiltinPunctuation("Hello, how are you question mark? I am fine period.")
	want := "hello comma how are you question mark i am fine period"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// TestNormalizeBuiltinPunctuationSpuriousSemicolonComma replicates the
// original 0.6B bug report: speaking "second semicolon" came back as a
// spurious comma directly before the semicolon.
func TestNormalizeBuiltinPunctuationSpuriousSemicolonComma(t *testing.T) {
	cases := map[string]string{
		"First; second":     "first semicolon second",
		"First,; second":    "first semicolon second",
		"First,; second.":   "first semicolon second period",
		"First semicolon; second": "first semicolon second",
	}
	for in, want := range cases {
		if got := NormalizeBuiltinPunctuation(in); got != want {
			t.Errorf("NormalizeBuiltinPunctuation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRenderMarkersToSymbolsAttachesWithoutLeadingSpace(t *testing.T) {
	cases := map[string]string{
		"hello comma world period":                 "hello, world.",
		"what question mark":                       "what?",
		"stop exclamation point":                    "stop!",
		"note colon important":                      "note: important",
		"first semicolon second":                    "first; second",
		"hello world":                               "hello world",
		"list one comma two comma three period":     "list one, two, three.",
	}
	for in, want := range cases {
		if got := RenderMarkersToSymbols(in); got != want {
			t.Errorf("RenderMarkersToSymbols(%q) = %q, want %q", in, got, want)
		}
	}
}
