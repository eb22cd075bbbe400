// Package sanitize cleans user-entered text before it is stored.
package sanitize

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var angleBrackets = strings.NewReplacer("<", "", ">", "")

// Text removes every '<' and '>' from s and trims surrounding whitespace.
// Everything else is kept as typed, entities included, so "a<b and c>d"
// becomes "ab and cd". Script and style elements are dropped whole.
func Text(s string) string {
	if hasScript(s) {
		s = dropScripts(s)
	}
	return strings.TrimSpace(angleBrackets.Replace(s))
}

func hasScript(s string) bool {
	if !strings.Contains(s, "<") {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return false
	}
	return doc.Find("script, style").Length() > 0
}

// dropScripts rewrites s token by token from the raw input, leaving out
// script and style elements with their bodies.
func dropScripts(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := ""
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return b.String()
		}
		raw := slices.Clone(z.Raw())
		switch tt {
		case html.StartTagToken:
			if name, _ := z.TagName(); skip == "" && isScript(string(name)) {
				skip = string(name)
				continue
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); skip != "" && string(name) == skip {
				skip = ""
				continue
			}
		}
		if skip == "" {
			b.Write(raw)
		}
	}
}

func isScript(name string) bool {
	return name == "script" || name == "style"
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
