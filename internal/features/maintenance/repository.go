// Package maintenance — repository.go хранит маркеры периодов в таблице system_state.
package maintenance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository работает с таблицей system_state (ключ-значение).
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий маркеров.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetMarker возвращает значение маркера или пустую строку, если его нет.
// Отсутствующий маркер — штатная ситуация первого запуска.
func (r *Repository) GetMarker(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx,
		`SELECT value FROM system_state WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("ошибка чтения маркера %s: %w", key, err)
	}
	return value, nil
}

// SetMarker записывает значение маркера (создаёт или перезаписывает).
func (r *Repository) SetMarker(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO system_state (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, key, value)
	if err != nil {
		return fmt.Errorf("ошибка записи маркера %s: %w", key, err)
	}
	return nil
}
