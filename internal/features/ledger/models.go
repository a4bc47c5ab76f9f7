// Package ledger реализует учёт кудосов: балансы, уровни и журнал выдач.
// models.go описывает структуры таблиц users и award_log.
package ledger

import (
	"time"

	"serotonyl.ru/kudos-bot/internal/common"
)

// Суммы начислений. Автор отмеченного сообщения получает больше,
// чем тот, кто его отметил — жест должен поощрять контент, а не клики.
const (
	CreatorAward  = 2 // автору сообщения
	ActorAward    = 1 // тому, кто дал кудос
	GreetingAward = 1 // системный бонус за первое сообщение дня
)

// SystemActorID — «актор» системных начислений (бонус за первое
// сообщение дня). Реального пользователя с таким ID не существует.
const SystemActorID int64 = 0

// User — запись участника в кудос-леджере.
// Создаётся лениво при первом контакте с ботом.
type User struct {
	UserID          int64      `db:"user_id"`           // Telegram user ID (первичный ключ)
	MonthlyKudos    int64      `db:"monthly_kudos"`     // Баланс текущего цикла (может уйти в минус)
	LifetimeLevel   int        `db:"lifetime_level"`    // Уровень, растёт только по итогам месяца
	DailyAwardsGive int        `db:"daily_awards_given"` // Сколько кудосов раздал с last_award_date
	LastAwardDate   *time.Time `db:"last_award_date"`   // Дата последней раздачи (nil — никогда)
	LastMessageDate *time.Time `db:"last_message_date"` // Дата последней активности (nil — новичок)
	GreetingEnabled bool       `db:"greeting_enabled"`  // Присылать ли приветствие за первое сообщение дня
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// AwardsGivenToday возвращает, сколько кудосов участник раздал СЕГОДНЯ.
// Счётчик daily_awards_given имеет смысл только в паре с last_award_date:
// если дата устарела, счётчик считается нулевым.
func (u *User) AwardsGivenToday(now time.Time) int {
	if !common.SameDate(u.LastAwardDate, now) {
		return 0
	}
	return u.DailyAwardsGive
}

// AwardEntry — запись журнала выдач.
// Ключ (stimulus_id, actor_id) — единственный оракул идемпотентности:
// запись существует ⇔ живая, ещё не отозванная выдача.
type AwardEntry struct {
	StimulusID    int64     `db:"stimulus_id"`    // ID сообщения-стимула
	ActorID       int64     `db:"actor_id"`       // Кто дал кудос (или SystemActorID)
	BeneficiaryID int64     `db:"beneficiary_id"` // Кто получил
	CreatedAt     time.Time `db:"created_at"`
}
