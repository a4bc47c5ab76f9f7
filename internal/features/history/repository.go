// Package history — repository.go выполняет операции с таблицей monthly_history.
package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицей monthly_history.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий архива.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Upsert записывает итог месяца. Повторная запись того же месяца
// перезаписывает итог: закрытие месяца может ретраиться после сбоя,
// и последняя успешная попытка должна победить.
func (r *Repository) Upsert(ctx context.Context, e *Entry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO monthly_history (month, winner_id, winner_kudos, winner_level, closed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (month) DO UPDATE SET
			winner_id = EXCLUDED.winner_id,
			winner_kudos = EXCLUDED.winner_kudos,
			winner_level = EXCLUDED.winner_level,
			closed_at = NOW()
	`, e.Month, e.WinnerID, e.WinnerKudos, e.WinnerLevel)
	if err != nil {
		return fmt.Errorf("ошибка записи архива месяца: %w", err)
	}
	return nil
}

// List возвращает последние limit закрытых месяцев, новые первыми.
func (r *Repository) List(ctx context.Context, limit int) ([]*Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT month, winner_id, winner_kudos, winner_level, closed_at
		FROM monthly_history
		ORDER BY month DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса архива: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Month, &e.WinnerID, &e.WinnerKudos, &e.WinnerLevel, &e.ClosedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования архива: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк архива: %w", err)
	}
	return out, nil
}
