// Package ledger — repository.go выполняет операции с таблицами users и award_log.
// Каждый метод — одна атомарная единица: либо один SQL-запрос,
// либо транзакция pgx.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицами users и award_log.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий леджера.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const userColumns = `user_id, monthly_kudos, lifetime_level, daily_awards_given,
	       last_award_date, last_message_date, greeting_enabled, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(
		&u.UserID, &u.MonthlyKudos, &u.LifetimeLevel, &u.DailyAwardsGive,
		&u.LastAwardDate, &u.LastMessageDate, &u.GreetingEnabled,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrCreate возвращает запись участника, создавая её при первом контакте.
// Новая запись: баланс 0, уровень 1, приветствия включены.
func (r *Repository) GetOrCreate(ctx context.Context, userID int64) (*User, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (user_id, monthly_kudos, lifetime_level, daily_awards_given, greeting_enabled)
		VALUES ($1, 0, 1, 0, TRUE)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания участника леджера: %w", err)
	}

	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения участника (user_id=%d): %w", userID, err)
	}
	return u, nil
}

// AddKudos изменяет баланс на amount (может быть отрицательным).
// Безусловное изменение — floor не проверяется.
func (r *Repository) AddKudos(ctx context.Context, userID int64, amount int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET monthly_kudos = monthly_kudos + $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("ошибка изменения баланса: %w", err)
	}
	return nil
}

// DeductKudosGuarded списывает amount, только если баланс не уйдёт в минус.
// Используется при отзыве кудосов и админских списаниях: между выдачей
// и отзывом мог пройти decay, и слепое вычитание увело бы баланс ниже нуля.
func (r *Repository) DeductKudosGuarded(ctx context.Context, userID int64, amount int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET monthly_kudos = monthly_kudos - $2, updated_at = NOW()
		WHERE user_id = $1 AND monthly_kudos >= $2
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("ошибка списания: %w", err)
	}
	return nil
}

// SetDailyAwards выставляет счётчик раздач и дату последней раздачи.
// Сервис сам вычисляет новое значение счётчика (с учётом устаревшей даты).
func (r *Repository) SetDailyAwards(ctx context.Context, userID int64, count int, date time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET daily_awards_given = $2, last_award_date = $3, updated_at = NOW()
		WHERE user_id = $1
	`, userID, count, date)
	if err != nil {
		return fmt.Errorf("ошибка обновления квоты: %w", err)
	}
	return nil
}

// ResetDailyQuota сбрасывает дневной лимит участника (админская операция).
func (r *Repository) ResetDailyQuota(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET daily_awards_given = 0, last_award_date = NULL, updated_at = NOW()
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("ошибка сброса лимита: %w", err)
	}
	return nil
}

// ResetAllDailyQuotas сбрасывает дневные лимиты у всех участников.
func (r *Repository) ResetAllDailyQuotas(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET daily_awards_given = 0, last_award_date = NULL, updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("ошибка сброса лимитов: %w", err)
	}
	return nil
}

// SetLastMessageDate фиксирует дату последней активности участника.
func (r *Repository) SetLastMessageDate(ctx context.Context, userID int64, date time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET last_message_date = $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, date)
	if err != nil {
		return fmt.Errorf("ошибка обновления даты активности: %w", err)
	}
	return nil
}

// ToggleGreeting переключает приветствия и возвращает новое состояние.
func (r *Repository) ToggleGreeting(ctx context.Context, userID int64) (bool, error) {
	var enabled bool
	err := r.db.QueryRow(ctx, `
		UPDATE users
		SET greeting_enabled = NOT greeting_enabled, updated_at = NOW()
		WHERE user_id = $1
		RETURNING greeting_enabled
	`, userID).Scan(&enabled)
	if err != nil {
		return false, fmt.Errorf("ошибка переключения приветствий: %w", err)
	}
	return enabled, nil
}

// Leaderboard возвращает участников с положительным балансом,
// по убыванию баланса. Тай-брейк — меньший user_id, чтобы порядок
// был детерминированным, а не зависел от плана запроса.
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]*User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE monthly_kudos > 0
		ORDER BY monthly_kudos DESC, user_id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса лидеров: %w", err)
	}
	defer rows.Close()

	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

// --- Журнал выдач (award_log) ---

// RecordAward вставляет запись журнала, если её ещё нет.
// Возвращает false, если ключ (stimulus_id, actor_id) уже занят —
// повторная доставка стимула не должна начислить кудосы дважды.
func (r *Repository) RecordAward(ctx context.Context, stimulusID, actorID, beneficiaryID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO award_log (stimulus_id, actor_id, beneficiary_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (stimulus_id, actor_id) DO NOTHING
	`, stimulusID, actorID, beneficiaryID)
	if err != nil {
		return false, fmt.Errorf("ошибка записи журнала выдач: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AwardBeneficiary возвращает получателя живой выдачи по ключу журнала.
// Если записи нет (уже отозвана или не было) — ok == false, без ошибки.
func (r *Repository) AwardBeneficiary(ctx context.Context, stimulusID, actorID int64) (int64, bool, error) {
	var beneficiaryID int64
	err := r.db.QueryRow(ctx, `
		SELECT beneficiary_id FROM award_log
		WHERE stimulus_id = $1 AND actor_id = $2
	`, stimulusID, actorID).Scan(&beneficiaryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("ошибка чтения журнала выдач: %w", err)
	}
	return beneficiaryID, true, nil
}

// DeleteAward удаляет запись журнала (кудос отозван).
func (r *Repository) DeleteAward(ctx context.Context, stimulusID, actorID int64) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM award_log WHERE stimulus_id = $1 AND actor_id = $2
	`, stimulusID, actorID)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи журнала: %w", err)
	}
	return nil
}

// --- Примитивы обслуживания (вызываются только maintenance-сервисом) ---

// DecayBalances применяет дневное усыхание ко всем балансам с запасом.
// Условие monthly_kudos > decay-1 гарантирует, что decay никогда
// не уводит баланс в минус и не трогает нулевые/малые балансы.
func (r *Repository) DecayBalances(ctx context.Context, decay int) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE users
		SET monthly_kudos = monthly_kudos - $1, updated_at = NOW()
		WHERE monthly_kudos > $1 - 1
	`, decay)
	if err != nil {
		return 0, fmt.Errorf("ошибка применения decay: %w", err)
	}
	return tag.RowsAffected(), nil
}

// TopUser возвращает участника с максимальным положительным балансом.
// Тай-брейк — меньший user_id. Если положительных балансов нет — (nil, nil).
func (r *Repository) TopUser(ctx context.Context) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE monthly_kudos > 0
		ORDER BY monthly_kudos DESC, user_id ASC
		LIMIT 1
	`))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска лидера: %w", err)
	}
	return u, nil
}

// IncrementLevel повышает уровень победителя и возвращает новый уровень.
func (r *Repository) IncrementLevel(ctx context.Context, userID int64) (int, error) {
	var level int
	err := r.db.QueryRow(ctx, `
		UPDATE users
		SET lifetime_level = lifetime_level + 1, updated_at = NOW()
		WHERE user_id = $1
		RETURNING lifetime_level
	`, userID).Scan(&level)
	if err != nil {
		return 0, fmt.Errorf("ошибка повышения уровня: %w", err)
	}
	return level, nil
}

// ResetAllBalances обнуляет балансы всех участников (закрытие месяца).
func (r *Repository) ResetAllBalances(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET monthly_kudos = 0, updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("ошибка обнуления балансов: %w", err)
	}
	return nil
}

// ClearAwardLog стирает журнал выдач целиком.
// Транзакции закрытого месяца больше не отзываются и не проверяются
// на дубликаты — журнал живёт ровно один открытый период.
func (r *Repository) ClearAwardLog(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM award_log`)
	if err != nil {
		return fmt.Errorf("ошибка очистки журнала выдач: %w", err)
	}
	return nil
}
