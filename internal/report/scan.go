package report

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// indexFoldASCII returns the index of the first ASCII case-insensitive match
// of token in s at or after from, or -1.
func indexFoldASCII(s, token string, from int) int {
	for i := from; i+len(token) <= len(s); i++ {
		if equalFoldASCII(s[i:i+len(token)], token) {
			return i
		}
	}
	return -1
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

type headingHit struct {
	key   string
	start int
	end   int
}

// splitSections locates the first occurrence of each section heading and
// returns the trimmed text from the end of each heading to the start of the
// next numbered heading line (or the end of text). A numbered heading ends a
// section whatever name follows it, so "### 2. Environmental Impact" still
// closes section 1. Missing keys are reported in the second return value in
// section order.
func splitSections(text string, sections []Section) (map[string]string, []string) {
	var hits []headingHit
	var missing []string
	for _, sec := range sections {
		token := sec.Token()
		at := indexFoldASCII(text, token, 0)
		if at < 0 {
			missing = append(missing, sec.Key)
			continue
		}
		hits = append(hits, headingHit{key: sec.Key, start: at, end: at + len(token)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	out := make(map[string]string, len(sections))
	for _, key := range missing {
		out[key] = ""
	}
	for i, h := range hits {
		stop := nextNumberedHeading(text, h.end)
		for _, next := range hits[i+1:] {
			if next.start >= h.end {
				stop = min(stop, next.start)
				break
			}
		}
		out[h.key] = strings.TrimSpace(text[h.end:stop])
	}
	return out, missing
}

// nextNumberedHeading returns the offset of the first line at or after from
// that starts with "###", optional spaces, digits and a period, or len(text).
func nextNumberedHeading(text string, from int) int {
	for lineStart := from; lineStart < len(text); {
		if lineStart == 0 || text[lineStart-1] == '\n' {
			if isNumberedHeading(text[lineStart:]) {
				return lineStart
			}
		}
		nl := strings.IndexByte(text[lineStart:], '\n')
		if nl < 0 {
			break
		}
		lineStart += nl + 1
	}
	return len(text)
}

func isNumberedHeading(line string) bool {
	line = strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(line, "###") {
		return false
	}
	rest := strings.TrimLeft(line[len("###"):], " \t")
	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	return digits > 0 && digits < len(rest) && rest[digits] == '.'
}

// scanObjects returns every brace-delimited span of text that contains no
// nested braces, left to right and without overlap.
func scanObjects(text string) []string {
	var objects []string
	start := -1
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			start = i
		case '}':
			if start >= 0 {
				objects = append(objects, text[start:i+1])
				start = -1
			}
		}
	}
	return objects
}

type linePattern func(line string) (string, bool)

// bulletItem matches lines starting with "-", "*" or "•".
func bulletItem(line string) (string, bool) {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	for _, marker := range []string{"-", "*", "•"} {
		if strings.HasPrefix(trimmed, marker) {
			return strings.TrimSpace(trimmed[len(marker):]), true
		}
	}
	return "", false
}

// numberedItem matches lines starting with digits and a period, e.g. "3.".
func numberedItem(line string) (string, bool) {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	digits := 0
	for digits < len(trimmed) && trimmed[digits] >= '0' && trimmed[digits] <= '9' {
		digits++
	}
	if digits == 0 || digits >= len(trimmed) || trimmed[digits] != '.' {
		return "", false
	}
	return strings.TrimSpace(trimmed[digits+1:]), true
}

// plainLine matches any non-blank line.
func plainLine(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	return trimmed, trimmed != ""
}

const (
	minRecommendationLen = 10
	maxRecommendations   = 10
)

// extractRecommendations applies bullet, numbered and plain-line patterns in
// turn and keeps the items of the first pattern matching at least one line.
// Items must be longer than minRecommendationLen characters; at most
// maxRecommendations are returned.
func extractRecommendations(text string) []string {
	lines := strings.Split(text, "\n")
	for _, match := range []linePattern{bulletItem, numberedItem, plainLine} {
		var items []string
		matched := false
		for _, line := range lines {
			item, ok := match(line)
			if !ok {
				continue
			}
			matched = true
			if utf8.RuneCountInString(item) > minRecommendationLen {
				items = append(items, item)
			}
		}
		if matched {
			if len(items) > maxRecommendations {
				items = items[:maxRecommendations]
			}
			return items
		}
	}
	return nil
}
