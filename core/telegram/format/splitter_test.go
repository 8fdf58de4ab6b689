package format

import (
	"strings"
	"testing"
)

func countMarker(s, marker string) int {
	switch marker {
	case "**", "__", "~~", "```":
		return strings.Count(s, marker)
	}
	// Single-char markers must not count occurrences inside longer ones.
	cleaned := s
	for _, longer := range []string{"```", "**", "__", "~~"} {
		if strings.Contains(longer, marker) {
			cleaned = strings.ReplaceAll(cleaned, longer, "")
		}
	}
	return strings.Count(cleaned, marker)
}

func assertBalanced(t *testing.T, fragment string) {
	t.Helper()
	for _, marker := range []string{"```", "**", "__", "~~"} {
		if countMarker(fragment, marker)%2 != 0 {
			t.Fatalf("unbalanced %q in fragment: %q", marker, fragment)
		}
	}
}

func TestSplitMarkdownShortText(t *testing.T) {
	parts := SplitMarkdown("hello *world*", 100)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0] != "hello *world*" {
		t.Fatalf("unexpected part: %q", parts[0])
	}
}

func TestSplitMarkdownRespectsLimit(t *testing.T) {
	text := strings.Repeat("word ", 200)
	parts := SplitMarkdown(text, 120)
	if len(parts) < 2 {
		t.Fatalf("expected multiple parts, got %d", len(parts))
	}
	for i, p := range parts {
		if len(p) > 120 {
			t.Fatalf("part %d exceeds limit: %d chars", i, len(p))
		}
	}
}

func TestSplitMarkdownClosesBoldAcrossCut(t *testing.T) {
	text := "**" + strings.Repeat("a", 300) + "**"
	parts := SplitMarkdown(text, 120)
	if len(parts) < 2 {
		t.Fatalf("expected split, got %d parts", len(parts))
	}
	for i, p := range parts {
		if len(p) > 120 {
			t.Fatalf("part %d exceeds limit: %d chars", i, len(p))
		}
		assertBalanced(t, p)
	}
	if !strings.HasSuffix(parts[0], "**") {
		t.Fatalf("first part should close bold: %q", parts[0])
	}
	if !strings.HasPrefix(parts[1], "**") {
		t.Fatalf("second part should reopen bold: %q", parts[1])
	}
}

func TestSplitMarkdownCodeBlock(t *testing.T) {
	text := "```\n" + strings.Repeat("line\n", 60) + "```"
	parts := SplitMarkdown(text, 150)
	for i, p := range parts {
		if len(p) > 150 {
			t.Fatalf("part %d exceeds limit: %d chars", i, len(p))
		}
		assertBalanced(t, p)
	}
}

func TestSplitMarkdownUnterminatedSpan(t *testing.T) {
	text := "**never closed " + strings.Repeat("b", 50)
	parts := SplitMarkdown(text, 200)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	assertBalanced(t, parts[0])
}

func TestSplitMarkdownLinkStaysAtomic(t *testing.T) {
	link := "[click here](https://example.com/some/long/path)"
	text := strings.Repeat("a", 100) + link + strings.Repeat("b", 100)
	parts := SplitMarkdown(text, 120)
	if len(parts) < 2 {
		t.Fatalf("expected split, got %d parts", len(parts))
	}

	whole := 0
	for i, p := range parts {
		if len(p) > 120 {
			t.Fatalf("part %d exceeds limit: %d chars", i, len(p))
		}
		whole += strings.Count(p, link)
		if strings.Contains(p, "[click") && !strings.Contains(p, link) {
			t.Fatalf("link broken across fragments: %q", p)
		}
	}
	if whole != 1 {
		t.Fatalf("link appears %d times across fragments, want 1", whole)
	}
}

func TestSplitMarkdownOversizeLinkFallsBack(t *testing.T) {
	link := "[x](https://example.com/" + strings.Repeat("p", 200) + ")"
	parts := SplitMarkdown(link, 100)
	if len(parts) < 2 {
		t.Fatalf("expected split, got %d parts", len(parts))
	}
	for i, p := range parts {
		if len(p) > 100 {
			t.Fatalf("part %d exceeds limit: %d chars", i, len(p))
		}
	}
}

func TestSplitMarkdownBracketAcrossLinesIsNotALink(t *testing.T) {
	text := "see [note\nelsewhere] (" + strings.Repeat("c", 150) + ")"
	parts := SplitMarkdown(text, 100)
	for i, p := range parts {
		if len(p) > 100 {
			t.Fatalf("part %d exceeds limit: %d chars", i, len(p))
		}
	}
}

func TestSplitMarkdownMarkersInsideCodeStayLiteral(t *testing.T) {
	text := "`**not bold**`"
	parts := SplitMarkdown(text, 100)
	if len(parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(parts))
	}
	if parts[0] != text {
		t.Fatalf("code span altered: %q", parts[0])
	}
}
