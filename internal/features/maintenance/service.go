// Package maintenance выполняет периодические переходы леджера:
// дневное усыхание с бонусом лидеру и закрытие месячного цикла.
//
// Переходы level-triggered: планировщик дёргает Run* каждый час, а
// сервис сам решает по персистентным маркерам, наступил ли новый
// период. Пропущенные тики (бот лежал) догоняются первым же тиком
// после старта — переход выполняется один раз за период, не по разу
// за пропущенный час.
package maintenance

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/kudos-bot/internal/common"
	"serotonyl.ru/kudos-bot/internal/config"
	"serotonyl.ru/kudos-bot/internal/features/history"
	"serotonyl.ru/kudos-bot/internal/features/ledger"
)

// Маркеры периодов в system_state.
const (
	markerDailyMaintenance = "last_daily_maintenance" // значение — common.DateKey
	markerMonthlyReset     = "last_monthly_reset"     // значение — common.MonthKey
)

// LedgerStore — примитивы леджера, которые нужны обслуживанию.
// Реализуется *ledger.Repository.
type LedgerStore interface {
	DecayBalances(ctx context.Context, decay int) (int64, error)
	TopUser(ctx context.Context) (*ledger.User, error)
	AddKudos(ctx context.Context, userID int64, amount int64) error
	IncrementLevel(ctx context.Context, userID int64) (int, error)
	ResetAllBalances(ctx context.Context) error
	ClearAwardLog(ctx context.Context) error
}

// HistoryStore — запись итогов месяца в архив.
type HistoryStore interface {
	Upsert(ctx context.Context, e *history.Entry) error
}

// MarkerStore — персистентные маркеры периодов.
type MarkerStore interface {
	GetMarker(ctx context.Context, key string) (string, error)
	SetMarker(ctx context.Context, key, value string) error
}

// DailyReport — итог выполненного дневного обслуживания.
type DailyReport struct {
	Date        string       // ключ дня, за который выполнен переход
	Decayed     int64        // сколько балансов усохло
	BonusWinner *ledger.User // лидер дня ДО бонуса; nil — положительных балансов нет
	Bonus       int          // начисленный лидеру бонус
}

// MonthlyReport — итог закрытого месяца.
type MonthlyReport struct {
	Month    string       // ключ закрытого месяца
	Winner   *ledger.User // nil — месяц без положительных балансов
	NewLevel int          // уровень победителя после повышения; 0 без победителя
}

// Service выполняет периодическое обслуживание леджера.
type Service struct {
	ledger  LedgerStore
	history HistoryStore
	markers MarkerStore
	cfg     *config.Config
	mu      *sync.Mutex      // общий writer-мьютекс леджера (см. app.New)
	now     func() time.Time // время в поясе сообщества; в тестах подменяется
}

// NewService создаёт сервис обслуживания.
// mu — тот же мьютекс, что у сервиса леджера: на время перехода
// выдача и отзыв кудосов блокируются целиком.
func NewService(ledgerStore LedgerStore, historyStore HistoryStore, markerStore MarkerStore,
	cfg *config.Config, mu *sync.Mutex, loc *time.Location) *Service {
	return &Service{
		ledger:  ledgerStore,
		history: historyStore,
		markers: markerStore,
		cfg:     cfg,
		mu:      mu,
		now:     func() time.Time { return time.Now().In(loc) },
	}
}

// RunDaily выполняет дневное обслуживание, если за сегодня оно ещё
// не выполнялось. Возвращает nil-отчёт, если переход не требовался.
//
// Порядок фиксирован: сначала усыхание всех балансов с запасом, затем
// бонус лидеру УЖЕ усохшей таблицы. Маркер пишется только после
// успешного завершения: упавший переход повторится следующим тиком
// (возможное повторное усыхание при сбое между шагами — принятый риск).
func (s *Service) RunDaily(ctx context.Context) (*DailyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := common.DateKey(s.now())

	last, err := s.markers.GetMarker(ctx, markerDailyMaintenance)
	if err != nil {
		return nil, err
	}
	if last == today {
		return nil, nil
	}

	decayed, err := s.ledger.DecayBalances(ctx, s.cfg.KudosDecay)
	if err != nil {
		return nil, err
	}

	top, err := s.ledger.TopUser(ctx)
	if err != nil {
		return nil, err
	}
	if top != nil {
		if err := s.ledger.AddKudos(ctx, top.UserID, int64(s.cfg.KudosTopBonus)); err != nil {
			return nil, err
		}
	}

	if err := s.markers.SetMarker(ctx, markerDailyMaintenance, today); err != nil {
		return nil, err
	}

	report := &DailyReport{Date: today, Decayed: decayed, BonusWinner: top}
	if top != nil {
		report.Bonus = s.cfg.KudosTopBonus
	}
	fields := log.Fields{"date": today, "decayed": decayed}
	if top != nil {
		fields["bonus_user_id"] = top.UserID
	}
	log.WithFields(fields).Info("Дневное обслуживание выполнено")

	return report, nil
}

// RunMonthly закрывает месячный цикл, если текущий месяц ещё не
// отмечен маркером. Возвращает nil-отчёт, если переход не требовался.
//
// Закрытие: повышение уровня лидера, запись итога в архив под ключом
// ПРЕДЫДУЩЕГО месяца, обнуление всех балансов, очистка журнала выдач.
// Месяц без положительных балансов архивируется без победителя, но
// балансы и журнал всё равно очищаются.
func (s *Service) RunMonthly(ctx context.Context) (*MonthlyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	thisMonth := common.MonthKey(now)

	last, err := s.markers.GetMarker(ctx, markerMonthlyReset)
	if err != nil {
		return nil, err
	}
	if last == thisMonth {
		return nil, nil
	}

	closedMonth := common.PrevMonthKey(now)
	report := &MonthlyReport{Month: closedMonth}
	entry := &history.Entry{Month: closedMonth}

	winner, err := s.ledger.TopUser(ctx)
	if err != nil {
		return nil, err
	}
	if winner != nil {
		newLevel, err := s.ledger.IncrementLevel(ctx, winner.UserID)
		if err != nil {
			return nil, err
		}
		report.Winner = winner
		report.NewLevel = newLevel
		winnerID := winner.UserID
		entry.WinnerID = &winnerID
		entry.WinnerKudos = winner.MonthlyKudos
		entry.WinnerLevel = newLevel
	}

	if err := s.history.Upsert(ctx, entry); err != nil {
		return nil, err
	}
	if err := s.ledger.ResetAllBalances(ctx); err != nil {
		return nil, err
	}
	if err := s.ledger.ClearAwardLog(ctx); err != nil {
		return nil, err
	}

	if err := s.markers.SetMarker(ctx, markerMonthlyReset, thisMonth); err != nil {
		return nil, err
	}

	fields := log.Fields{"month": closedMonth}
	if winner != nil {
		fields["winner_id"] = winner.UserID
		fields["winner_kudos"] = winner.MonthlyKudos
		fields["new_level"] = report.NewLevel
	}
	log.WithFields(fields).Info("Месячный цикл закрыт")

	return report, nil
}
