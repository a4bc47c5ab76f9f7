// Package members — service.go синхронизирует реестр с данными Telegram.
package members

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/kudos-bot/internal/config"
)

// Service управляет реестром участников.
type Service struct {
	repo *Repository
	cfg  *config.Config
}

// NewService создаёт сервис участников.
func NewService(repo *Repository, cfg *config.Config) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// EnsureMember обновляет запись участника по данным из сообщения.
// Вызывается на каждом входящем апдейте: имена и юзернеймы меняются,
// реестр должен отражать актуальные.
func (s *Service) EnsureMember(ctx context.Context, from *tgbotapi.User) {
	if from == nil || from.IsBot {
		return
	}

	m := &Member{
		UserID:    from.ID,
		FirstName: from.FirstName,
		IsAdmin:   s.cfg.IsAdminID(from.ID),
	}
	if from.UserName != "" {
		username := from.UserName
		m.Username = &username
	}
	if from.LastName != "" {
		lastName := from.LastName
		m.LastName = &lastName
	}

	if err := s.repo.Upsert(ctx, m); err != nil {
		log.WithError(err).WithField("user_id", from.ID).Warn("Не удалось обновить реестр участников")
	}
}

// GetByUserID возвращает участника по Telegram ID.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// GetByUsername возвращает участника по юзернейму.
func (s *Service) GetByUsername(ctx context.Context, username string) (*Member, error) {
	return s.repo.GetByUsername(ctx, username)
}
