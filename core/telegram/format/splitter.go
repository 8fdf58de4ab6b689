package format

import (
	"strings"
	"unicode/utf8"
)

// MessageLimit is the Telegram hard cap for a single text message.
const MessageLimit = 4096

// Formatting span markers, longest first so that ``` wins over ` and ** over *.
var spanMarkers = []string{"```", "**", "__", "~~", "`", "*", "_"}

// SplitMarkdown splits text into fragments of at most limit bytes without
// breaking an open inline formatting span (bold, italic, code, strikethrough)
// across fragments. Open spans are closed before each cut and reopened at the
// start of the next fragment, so every fragment is balanced Markdown on its
// own. An unterminated span in the input is closed at the end of the last
// fragment. Links are atomic: a [text](url) that would straddle a cut moves
// whole into the next fragment.
func SplitMarkdown(text string, limit int) []string {
	if limit <= 0 {
		limit = MessageLimit
	}

	var (
		fragments []string
		cur       strings.Builder
		stack     []string
	)

	closingLen := func() int {
		n := 0
		for _, m := range stack {
			n += len(m)
		}
		return n
	}

	cut := func() {
		for i := len(stack) - 1; i >= 0; i-- {
			cur.WriteString(stack[i])
		}
		fragments = append(fragments, cur.String())
		cur.Reset()
		for _, m := range stack {
			cur.WriteString(m)
		}
	}

	i := 0
	for i < len(text) {
		if !insideCode(stack) {
			// A link wider than the limit cannot stay atomic and falls
			// through to plain scanning.
			if link := matchLink(text, i); link != "" && len(link)+closingLen() <= limit {
				if cur.Len() > 0 && cur.Len()+len(link)+closingLen() > limit {
					cut()
				}
				cur.WriteString(link)
				i += len(link)
				continue
			}
		}

		marker := matchMarker(text, i)
		if marker != "" && insideCode(stack) && stack[len(stack)-1] != marker {
			// markers are literal inside code spans
			marker = ""
		}

		var token string
		if marker != "" {
			token = marker
		} else {
			_, size := utf8.DecodeRuneInString(text[i:])
			token = text[i : i+size]
		}

		if cur.Len() > 0 && cur.Len()+len(token)+closingLen() > limit {
			cut()
		}

		if marker != "" {
			if len(stack) > 0 && stack[len(stack)-1] == marker {
				stack = stack[:len(stack)-1]
			} else {
				stack = append(stack, marker)
			}
		}
		cur.WriteString(token)
		i += len(token)
	}

	if cur.Len() > 0 || len(fragments) == 0 {
		for i := len(stack) - 1; i >= 0; i-- {
			cur.WriteString(stack[i])
		}
		fragments = append(fragments, cur.String())
	}
	return fragments
}

func matchMarker(text string, at int) string {
	for _, m := range spanMarkers {
		if strings.HasPrefix(text[at:], m) {
			return m
		}
	}
	return ""
}

// matchLink returns the full [text](url) substring starting at `at`, or ""
// when the position does not open a complete link.
func matchLink(text string, at int) string {
	if text[at] != '[' {
		return ""
	}
	mid := strings.Index(text[at:], "](")
	if mid < 0 {
		return ""
	}
	end := strings.IndexByte(text[at+mid+2:], ')')
	if end < 0 {
		return ""
	}
	link := text[at : at+mid+2+end+1]
	// A stray bracket closed on a later line is not a link.
	if strings.ContainsRune(link, '\n') {
		return ""
	}
	return link
}

func insideCode(stack []string) bool {
	if len(stack) == 0 {
		return false
	}
	top := stack[len(stack)-1]
	return top == "`" || top == "```"
}
