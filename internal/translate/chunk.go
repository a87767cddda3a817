package translate

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

var numericOnly = regexp.MustCompile(`^[\d\s.,:;%+\-−/()]+$`)

// IsNumeric reports whether text holds only numbers and numeric punctuation
func IsNumeric(text string) bool {
	return numericOnly.MatchString(strings.TrimSpace(text))
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '；':
		return true
	}
	return false
}

// sentences splits text after sentence punctuation followed by space or end
// of text, and at line breaks. Pieces keep their trailing whitespace so that
// joining them restores the text.
func sentences(text string) []string {
	runes := []rune(text)
	var out []string
	start := 0
	for i, r := range runes {
		boundary := r == '\n'
		if isSentenceEnd(r) {
			boundary = i+1 == len(runes) || unicode.IsSpace(runes[i+1]) || r >= 0x3000
		}
		if !boundary {
			continue
		}
		end := i + 1
		for end < len(runes) && unicode.IsSpace(runes[end]) && runes[end] != '\n' {
			end++
		}
		if end > start {
			out = append(out, string(runes[start:end]))
			start = end
		}
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

// Chunk splits text longer than threshold runes into pieces of at most size
// runes, preferring sentence boundaries. Sentences longer than size are
// split by rune count.
func Chunk(text string, threshold, size int) []string {
	if size <= 0 || len([]rune(text)) <= threshold {
		return []string{text}
	}

	var chunks []string
	var cur []rune
	flush := func() {
		if s := strings.TrimSpace(string(cur)); s != "" {
			chunks = append(chunks, s)
		}
		cur = cur[:0]
	}

	for _, s := range sentences(text) {
		piece := []rune(s)
		if len(cur)+len(piece) > size {
			flush()
		}
		for len(piece) > size {
			cur = append(cur, piece[:size]...)
			flush()
			piece = piece[size:]
		}
		cur = append(cur, piece...)
	}
	flush()
	return chunks
}

// joinSeparator returns the separator between translated chunks
func joinSeparator(targetLang string) string {
	tag, err := language.Parse(targetLang)
	if err != nil {
		return " "
	}
	base, _ := tag.Base()
	switch base.String() {
	case "zh", "ja", "ko":
		return ""
	}
	return " "
}

// tail returns the last n runes of s
func tail(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
