// Package members — repository.go выполняет операции с таблицей members.
package members

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/kudos-bot/internal/common"
)

// Repository работает с таблицей members.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий участников.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const memberColumns = `user_id, username, first_name, last_name, is_admin, created_at, updated_at`

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(
		&m.UserID, &m.Username, &m.FirstName, &m.LastName,
		&m.IsAdmin, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Upsert создаёт или обновляет запись участника по свежим данным из Telegram.
func (r *Repository) Upsert(ctx context.Context, m *Member) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO members (user_id, username, first_name, last_name, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			is_admin = EXCLUDED.is_admin,
			updated_at = NOW()
	`, m.UserID, m.Username, m.FirstName, m.LastName, m.IsAdmin)
	if err != nil {
		return fmt.Errorf("ошибка сохранения участника: %w", err)
	}
	return nil
}

// GetByUserID возвращает участника по Telegram ID.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	m, err := scanMember(r.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка чтения участника: %w", err)
	}
	return m, nil
}

// GetByUsername возвращает участника по юзернейму (без «@», регистр не важен).
func (r *Repository) GetByUsername(ctx context.Context, username string) (*Member, error) {
	username = strings.TrimPrefix(strings.ToLower(username), "@")
	m, err := scanMember(r.db.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE LOWER(username) = $1`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка поиска участника: %w", err)
	}
	return m, nil
}
