package translate

import (
	"regexp"
	"strings"
)

// maxPreambleStrips bounds the repeated prefix removal
const maxPreambleStrips = 10

var (
	reasoningBlocks = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<think>.*?</think>`),
		regexp.MustCompile(`(?is)<thinking>.*?</thinking>`),
		regexp.MustCompile(`(?is)<reasoning>.*?</reasoning>`),
	}
	// a closing tag whose opening tag the model left out
	danglingClose = regexp.MustCompile(`(?is)^.*?</(?:think|thinking|reasoning)>`)
	// an opening tag that is never closed swallows the rest of the output
	unterminatedOpen = regexp.MustCompile(`(?is)^\s*<(?:think|thinking|reasoning)>.*$`)

	translatorNotes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)\(\s*(?:translator'?s\s+)?note\s*:.*?\)`),
		regexp.MustCompile(`(?is)\[\s*translator'?s\s+note\s*:.*?\]`),
		regexp.MustCompile(`（\s*(?:譯註|译注|註|注)\s*[:：].*?）`),
		regexp.MustCompile(`(?m)^\s*(?:譯註|译注)\s*[:：].*$`),
	}
)

// preambles are conversational openers some models put before the answer
var preambles = []string{
	"Here is the translation:",
	"Here's the translation:",
	"SURE, here is the translation:",
	"Here's the translation in Traditional Chinese:",
	"Here is the translated text:",
	"I'm ready to help.",
	"Translation:",
	"Translated text:",
	"Sure!",
	"Sure,",
	"Certainly!",
	"好的，",
	"好的。",
	"當然，",
	"当然，",
	"這是翻譯：",
	"这是翻译：",
	"翻譯如下：",
	"翻译如下：",
	"以下是翻譯：",
	"以下是翻译：",
	"譯文：",
	"译文：",
}

// Clean strips reasoning blocks, preambles and translator's notes from a
// model response
func Clean(text string) string {
	for _, re := range reasoningBlocks {
		text = re.ReplaceAllString(text, "")
	}
	text = danglingClose.ReplaceAllString(text, "")
	text = unterminatedOpen.ReplaceAllString(text, "")

	text = stripPreambles(strings.TrimSpace(text))

	for _, re := range translatorNotes {
		text = re.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

func stripPreambles(text string) string {
	for i := 0; i < maxPreambleStrips; i++ {
		stripped := false
		for _, p := range preambles {
			if len(text) >= len(p) && strings.EqualFold(text[:len(p)], p) {
				text = strings.TrimSpace(text[len(p):])
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return text
}
