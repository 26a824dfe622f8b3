package anthropic

import "strings"

// CleanJSON strips markdown code fences and any prose surrounding the
// first JSON object in a model response.
func CleanJSON(text string) string {
	return clean(text, "{", "}")
}

// CleanJSONArray is CleanJSON for responses whose top-level value is an
// array.
func CleanJSONArray(text string) string {
	return clean(text, "[", "]")
}

func clean(text, opener, closer string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, opener)
	end := strings.LastIndex(text, closer)
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
