// internal/healing/keywords.go
package healing

import (
	"regexp"
	"strings"
)

var (
	resourcePrefixRe = regexp.MustCompile(`com\.\w+:id/`)
	xpathScaffoldRe  = regexp.MustCompile(`//\w+\[@\w+=['"]?`)
	quoteBracketRe   = regexp.MustCompile(`['"\]]`)
	tokenSplitRe     = regexp.MustCompile(`[_\-./\s]+`)
)

// stopwords are widget-type abbreviations that carry no semantic signal.
var stopwords = map[string]struct{}{
	"id": {}, "btn": {}, "tv": {}, "et": {}, "img": {},
	"iv": {}, "ll": {}, "rl": {}, "fl": {}, "view": {},
}

// extractKeywords pulls discriminating tokens out of a locator value.
//
//	"com.app:id/btn_login"                      -> ["login"]
//	"//Button[@name='Submit']"                  -> ["submit"]
//	"Login"                                     -> ["login"]
//
// Resource-id prefixes and XPath scaffolding are stripped first; the rest
// is split on separators, lowercased, and filtered against the stopword
// list. If nothing survives, the whole cleaned value is the keyword.
func extractKeywords(value string) []string {
	clean := resourcePrefixRe.ReplaceAllString(value, "")
	clean = xpathScaffoldRe.ReplaceAllString(clean, "")
	clean = quoteBracketRe.ReplaceAllString(clean, "")

	var keywords []string
	for _, part := range tokenSplitRe.Split(clean, -1) {
		word := strings.ToLower(part)
		if len(word) <= 2 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
	}
	if len(keywords) == 0 && clean != "" {
		keywords = []string{strings.ToLower(clean)}
	}
	return keywords
}

// containsAny reports whether the attribute value contains one of the
// keywords, case-insensitively. Empty attributes never match.
func containsAny(attr string, keywords []string) bool {
	if attr == "" {
		return false
	}
	lower := strings.ToLower(attr)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
