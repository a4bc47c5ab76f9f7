// Package ledger — service.go содержит бизнес-логику леджера:
// выдачу и отзыв кудосов, системные бонусы и админские корректировки.
//
// Все мутации выполняются под общим мьютексом (единая точка сериализации,
// разделяемая с maintenance-сервисом): выдача и отзыв по одному ключу
// журнала никогда не гонятся, а обслуживание получает эксклюзивный
// доступ ко всему леджеру.
package ledger

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/kudos-bot/internal/common"
	"serotonyl.ru/kudos-bot/internal/config"
)

// Store — примитивы хранилища, которые нужны сервису.
// Реализуется *Repository; в тестах подменяется in-memory хранилищем.
type Store interface {
	GetOrCreate(ctx context.Context, userID int64) (*User, error)
	AddKudos(ctx context.Context, userID int64, amount int64) error
	DeductKudosGuarded(ctx context.Context, userID int64, amount int64) error
	SetDailyAwards(ctx context.Context, userID int64, count int, date time.Time) error
	ResetDailyQuota(ctx context.Context, userID int64) error
	ResetAllDailyQuotas(ctx context.Context) error
	SetLastMessageDate(ctx context.Context, userID int64, date time.Time) error
	ToggleGreeting(ctx context.Context, userID int64) (bool, error)
	Leaderboard(ctx context.Context, limit int) ([]*User, error)
	RecordAward(ctx context.Context, stimulusID, actorID, beneficiaryID int64) (bool, error)
	AwardBeneficiary(ctx context.Context, stimulusID, actorID int64) (int64, bool, error)
	DeleteAward(ctx context.Context, stimulusID, actorID int64) error
}

// Service управляет кудос-леджером.
type Service struct {
	store Store
	cfg   *config.Config
	mu    *sync.Mutex      // общий writer-мьютекс леджера (см. app.New)
	now   func() time.Time // время в поясе сообщества; в тестах подменяется
}

// NewService создаёт сервис леджера.
// mu — общий мьютекс записи, один на леджер и обслуживание.
func NewService(store Store, cfg *config.Config, mu *sync.Mutex, loc *time.Location) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
		mu:    mu,
		now:   func() time.Time { return time.Now().In(loc) },
	}
}

// GetOrCreate возвращает запись участника, создавая её при необходимости.
func (s *Service) GetOrCreate(ctx context.Context, userID int64) (*User, error) {
	return s.store.GetOrCreate(ctx, userID)
}

// Award выдаёт кудос: +2 автору сообщения, +1 актору, счётчик квоты +1.
//
// Алгоритм:
//  1. Проверяем самовыдачу (дублирует проверку транспорта — дёшево)
//  2. Считаем, сколько актор раздал сегодня (устаревшая дата = 0)
//  3. Квота исчерпана → common.ErrQuotaExceeded, БЕЗ мутаций
//  4. Пишем запись журнала insert-if-absent; дубликат стимула → no-op
//  5. Начисляем балансы и обновляем квоту актора
func (s *Service) Award(ctx context.Context, beneficiaryID, actorID, stimulusID int64) error {
	if actorID == beneficiaryID {
		return common.ErrSelfAward
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	actor, err := s.store.GetOrCreate(ctx, actorID)
	if err != nil {
		return err
	}

	given := actor.AwardsGivenToday(now)
	if given >= s.cfg.KudosDailyLimit {
		return common.ErrQuotaExceeded
	}

	if _, err := s.store.GetOrCreate(ctx, beneficiaryID); err != nil {
		return err
	}

	inserted, err := s.store.RecordAward(ctx, stimulusID, actorID, beneficiaryID)
	if err != nil {
		return err
	}
	if !inserted {
		// Повторная доставка того же стимула — определённый no-op
		log.WithFields(log.Fields{
			"stimulus_id": stimulusID,
			"actor_id":    actorID,
		}).Debug("Дубликат выдачи проигнорирован")
		return nil
	}

	if err := s.store.AddKudos(ctx, beneficiaryID, CreatorAward); err != nil {
		return err
	}
	if err := s.store.AddKudos(ctx, actorID, ActorAward); err != nil {
		return err
	}
	if err := s.store.SetDailyAwards(ctx, actorID, given+1, now); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"actor_id":       actorID,
		"beneficiary_id": beneficiaryID,
		"stimulus_id":    stimulusID,
	}).Info("Кудос выдан")

	return nil
}

// Retract отзывает ранее выданный кудос.
// Возвращает false, если живой выдачи по ключу нет (уже отозван или
// не было) — повторный отзыв идемпотентен.
//
// Списания защищены floor-guard: если между выдачей и отзывом прошёл
// decay, баланс не уводится в минус. Потраченная квота актору НЕ
// возвращается («fire-and-forget»): цикл реакции уже состоялся.
func (s *Service) Retract(ctx context.Context, stimulusID, actorID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	beneficiaryID, ok, err := s.store.AwardBeneficiary(ctx, stimulusID, actorID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := s.store.DeductKudosGuarded(ctx, beneficiaryID, CreatorAward); err != nil {
		return false, err
	}
	if err := s.store.DeductKudosGuarded(ctx, actorID, ActorAward); err != nil {
		return false, err
	}
	if err := s.store.DeleteAward(ctx, stimulusID, actorID); err != nil {
		return false, err
	}

	log.WithFields(log.Fields{
		"actor_id":       actorID,
		"beneficiary_id": beneficiaryID,
		"stimulus_id":    stimulusID,
	}).Info("Кудос отозван")

	return true, nil
}

// BonusAward — системное начисление (+1 получателю): квота не тратится,
// запас бонусов бесконечен, но запись журнала пишется так же, чтобы
// повтор стимула не начислил бонус дважды.
func (s *Service) BonusAward(ctx context.Context, beneficiaryID, stimulusID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bonusAwardLocked(ctx, beneficiaryID, stimulusID)
}

func (s *Service) bonusAwardLocked(ctx context.Context, beneficiaryID, stimulusID int64) error {
	if _, err := s.store.GetOrCreate(ctx, beneficiaryID); err != nil {
		return err
	}

	inserted, err := s.store.RecordAward(ctx, stimulusID, SystemActorID, beneficiaryID)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	if err := s.store.AddKudos(ctx, beneficiaryID, GreetingAward); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"beneficiary_id": beneficiaryID,
		"stimulus_id":    stimulusID,
	}).Info("Системный бонус начислен")

	return nil
}

// TrackActivity обрабатывает сообщение участника для учёта активности.
// Первое сообщение нового календарного дня у ВЕРНУВШЕГОСЯ участника
// даёт системный бонус. Новичку только инициализируется дата — иначе
// бонус доставался бы за сам факт регистрации.
//
// Возвращает true, если участнику положено приветствие (бонус начислен
// и приветствия у него включены).
func (s *Service) TrackActivity(ctx context.Context, userID, messageID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	u, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return false, err
	}

	if common.SameDate(u.LastMessageDate, now) {
		return false, nil
	}

	returning := u.LastMessageDate != nil

	if err := s.store.SetLastMessageDate(ctx, userID, now); err != nil {
		return false, err
	}

	if !returning {
		log.WithField("user_id", userID).Info("Новый участник, дата активности инициализирована")
		return false, nil
	}

	if err := s.bonusAwardLocked(ctx, userID, messageID); err != nil {
		return false, err
	}

	return u.GreetingEnabled, nil
}

// Adjust — админская корректировка баланса (сырой примитив, знак любой).
func (s *Service) Adjust(ctx context.Context, userID int64, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetOrCreate(ctx, userID); err != nil {
		return err
	}
	return s.store.AddKudos(ctx, userID, amount)
}

// DeductGuarded — админское списание с floor-guard (не ниже нуля).
func (s *Service) DeductGuarded(ctx context.Context, userID int64, amount int64) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetOrCreate(ctx, userID); err != nil {
		return err
	}
	return s.store.DeductKudosGuarded(ctx, userID, amount)
}

// ResetDailyLimit сбрасывает дневной лимит одного участника.
func (s *Service) ResetDailyLimit(ctx context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ResetDailyQuota(ctx, userID)
}

// ResetAllDailyLimits сбрасывает дневные лимиты всех участников.
func (s *Service) ResetAllDailyLimits(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ResetAllDailyQuotas(ctx)
}

// ToggleGreeting переключает приветствия участника, возвращает новое состояние.
func (s *Service) ToggleGreeting(ctx context.Context, userID int64) (bool, error) {
	if _, err := s.store.GetOrCreate(ctx, userID); err != nil {
		return false, err
	}
	return s.store.ToggleGreeting(ctx, userID)
}

// Leaderboard возвращает топ участников по балансу (проекция только для чтения).
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]*User, error) {
	return s.store.Leaderboard(ctx, limit)
}

// Status возвращает запись участника и остаток дневной квоты.
func (s *Service) Status(ctx context.Context, userID int64) (*User, int, error) {
	u, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	remaining := s.cfg.KudosDailyLimit - u.AwardsGivenToday(s.now())
	if remaining < 0 {
		remaining = 0
	}
	return u, remaining, nil
}
