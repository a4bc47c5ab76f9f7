// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование чисел и работа
// с часовым поясом сообщества.
package common

import (
	"fmt"
	"math"
	"time"
)

// PluralizeKudos возвращает правильную форму слова «кудос» для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → "кудос" (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → "кудоса" (2, 3, 4, 22, ...)
//   - Остальные случаи → "кудосов" (0, 5-20, 25-30, 100, ...)
func PluralizeKudos(n int64) string {
	absN := int64(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "кудос"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "кудоса"
	}
	return "кудосов"
}

// FormatKudos форматирует баланс в читабельную строку.
// Пример: FormatKudos(150) → "150 кудосов"
func FormatKudos(balance int64) string {
	return fmt.Sprintf("%d %s", balance, PluralizeKudos(balance))
}

// FormatKudosAmount создаёт строку вида "+5 кудосов" или "-2 кудоса".
// Знак «+» добавляется автоматически для неотрицательных чисел.
func FormatKudosAmount(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%d %s", amount, PluralizeKudos(amount))
	}
	return fmt.Sprintf("%d %s", amount, PluralizeKudos(amount))
}

// PluralizeDays возвращает правильную форму слова «день» для числа n.
func PluralizeDays(n int) string {
	absN := int(math.Abs(float64(n)))
	lastDigit := absN % 10
	lastTwoDigits := absN % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return "день"
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return "дня"
	}
	return "дней"
}

// LoadLocation загружает часовой пояс сообщества.
// Все календарные границы (дневная квота, decay, месячный сброс)
// считаются именно в нём, а не в поясе хоста.
// Если пояс не загрузился — возвращает UTC, чтобы бот не падал.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04".
// Используется для отображения дат в истории.
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006 15:04")
}
