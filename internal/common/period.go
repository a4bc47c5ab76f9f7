// Package common — period.go вычисляет ключи календарных периодов.
// Планировщик сравнивает эти ключи со значением в system_state:
// «ключ изменился → переход ещё не выполнялся» вместо подсчёта
// прошедшего времени. Так пропущенный или повторный тик безопасен.
package common

import "time"

// DateKey возвращает ключ календарного дня в формате "2006-01-02".
// Время должно быть уже переведено в пояс сообщества.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// MonthKey возвращает ключ календарного месяца в формате "2006-01".
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// PrevMonthKey возвращает ключ ЗАКРЫВАЮЩЕГОСЯ месяца.
// Месячный переход выполняется в начале нового периода, поэтому
// архивная запись датируется периодом «на один назад».
func PrevMonthKey(t time.Time) string {
	year, month, _ := t.Date()
	firstOfMonth := time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
	return firstOfMonth.AddDate(0, -1, 0).Format("2006-01")
}

// SameDate сообщает, приходится ли отметка на тот же календарный день.
// Нулевое время (дата ещё не выставлена) никогда не совпадает.
func SameDate(stored *time.Time, now time.Time) bool {
	if stored == nil {
		return false
	}
	return DateKey(*stored) == DateKey(now)
}
