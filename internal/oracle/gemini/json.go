package gemini

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\n?(.*?)```")

// ExtractJSON pulls the largest valid JSON value out of model output. Fenced
// blocks win over bare ones; the sanitized text is the last resort.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	var best string
	for _, m := range fencedJSON.FindAllStringSubmatch(text, -1) {
		candidate := SanitizeJSON(strings.TrimSpace(m[1]))
		if json.Valid([]byte(candidate)) && len(candidate) > len(best) {
			best = candidate
		}
	}
	if best != "" {
		return best
	}

	for i := 0; i < len(text); {
		start := strings.IndexAny(text[i:], "{[")
		if start == -1 {
			break
		}
		start += i

		end := closingIndex(text, start)
		if end == -1 {
			i = start + 1
			continue
		}

		candidate := SanitizeJSON(text[start : end+1])
		if json.Valid([]byte(candidate)) && len(candidate) > len(best) {
			best = candidate
		}
		i = end + 1
	}
	if best != "" {
		return best
	}

	return SanitizeJSON(text)
}

// closingIndex returns the index of the bracket balancing text[start], or
// -1 if it never closes.
func closingIndex(text string, start int) int {
	opener := text[start]
	closer := byte('}')
	if opener == '[' {
		closer = ']'
	}

	depth := 0
	inString, escaped := false, false
	for j := start; j < len(text); j++ {
		c := text[j]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == opener:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

var jsonString = regexp.MustCompile(`"(?:\\.|[^"\\])*"`)

// SanitizeJSON escapes raw newlines inside string literals.
func SanitizeJSON(s string) string {
	return jsonString.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ReplaceAll(m, "\n", "\\n")
	})
}
