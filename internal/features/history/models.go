// Package history хранит архив закрытых месячных циклов
// в таблице monthly_history.
package history

import "time"

// Entry — итог одного закрытого месяца.
// Месяц хранится строкой «2006-01»: натуральная сортировка по строке
// совпадает с хронологической.
type Entry struct {
	Month       string    `db:"month"`        // ключ периода, формат «2006-01»
	WinnerID    *int64    `db:"winner_id"`    // nil — месяц без положительных балансов
	WinnerKudos int64     `db:"winner_kudos"` // финальный баланс победителя
	WinnerLevel int       `db:"winner_level"` // уровень ПОСЛЕ повышения
	ClosedAt    time.Time `db:"closed_at"`
}
