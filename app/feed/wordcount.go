package feed

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// CountWords estimates the text volume of raw HTML content. CJK characters
// count one word each, everything else counts per whitespace-separated run.
// Malformed HTML degrades to counting the raw string, never to an error.
func CountWords(content string) int {
	text := content
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(content)); err == nil {
		doc.Find("script, style").Remove()
		text = doc.Text()
	}

	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			if inWord {
				count++
				inWord = false
			}
			count++
		case unicode.IsSpace(r) || unicode.IsPunct(r):
			if inWord {
				count++
				inWord = false
			}
		default:
			inWord = true
		}
	}
	if inWord {
		count++
	}

	return count
}
