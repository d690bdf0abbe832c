package telegram

import "strings"

// MessageLimit: максимальная длина сообщения Telegram в символах.
const MessageLimit = 4096

// SplitMessage режет текст под лимит Telegram.
func SplitMessage(text string) []string {
	return Split(text, MessageLimit)
}

// Split режет текст на куски не длиннее limit рун. Граница ищется сначала
// по переводу строки, затем по пробелу, иначе кусок режется ровно по лимиту.
func Split(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	runes := []rune(trimmed)
	if limit <= 0 || len(runes) <= limit {
		return []string{trimmed}
	}

	var parts []string
	for start := 0; start < len(runes); {
		end := min(start+limit, len(runes))
		cut := end
		if end < len(runes) && runes[end] != '\n' && runes[end] != ' ' {
			if i := lastIndex(runes[start:end], '\n'); i > 0 {
				cut = start + i + 1
			} else if i := lastIndex(runes[start:end], ' '); i > 0 {
				cut = start + i + 1
			}
		}
		if chunk := strings.TrimSpace(string(runes[start:cut])); chunk != "" {
			parts = append(parts, chunk)
		}
		start = cut
		for start < len(runes) && (runes[start] == '\n' || runes[start] == ' ') {
			start++
		}
	}
	return parts
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
