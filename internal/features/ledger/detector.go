// Package ledger — detector.go распознаёт жесты кудосов в ответах.
package ledger

import "strings"

// awardGestures — тексты ответа, которые считаются выдачей кудоса.
var awardGestures = map[string]bool{
	"+":       true,
	"++":      true,
	"спасибо": true,
	"спс":     true,
	"👍":       true,
}

// retractGestures — тексты ответа, которые считаются отзывом кудоса.
var retractGestures = map[string]bool{
	"-":  true,
	"--": true,
}

// IsAwardGesture проверяет, является ли текст жестом выдачи кудоса.
// Регистр не важен. Пунктуация в конце допускается.
func IsAwardGesture(text string) bool {
	return awardGestures[normalizeGesture(text)]
}

// IsRetractGesture проверяет, является ли текст жестом отзыва кудоса.
func IsRetractGesture(text string) bool {
	return retractGestures[normalizeGesture(text)]
}

func normalizeGesture(text string) string {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	return strings.TrimRight(cleaned, "!.,;:)")
}
