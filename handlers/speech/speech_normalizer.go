package speech

import (
	"regexp"
	"strings"
)

// normalizeTextForSpeech strips markup and symbols an engine would read out
// literally.
func normalizeTextForSpeech(text string) string {
	text = markdownReplacer.Replace(text)
	text = removeEmojiRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

var (
	markdownReplacer = strings.NewReplacer(
		"**", "",
		"*", "",
		"__", "",
		"~~", "",
		"`", "",
		"#", "",
	)
	removeEmojiRegex    = regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{Z}\s]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)
