package anthropic

import "strings"

// CleanJSON strips markdown fences and surrounding prose from a model reply
// and returns the outermost JSON object or array.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

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

	obj := strings.Index(text, "{")
	arr := strings.Index(text, "[")
	open, closer := obj, "}"
	if arr >= 0 && (obj < 0 || arr < obj) {
		open, closer = arr, "]"
	}
	if open >= 0 {
		if end := strings.LastIndex(text, closer); end > open {
			text = text[open : end+1]
		}
	}

	return strings.TrimSpace(text)
}
