// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает ежечасный тик обслуживания леджера.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/kudos-bot/internal/common"
	"serotonyl.ru/kudos-bot/internal/features/maintenance"
)

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron               *cron.Cron
	maintenanceService *maintenance.Service
	announceFunc       func(text string)
}

// NewScheduler создаёт планировщик в часовом поясе сообщества.
// Тик ежечасный, а не ежедневный: сами переходы защищены маркерами
// периодов, поэтому частый тик просто быстрее догоняет пропуски
// после простоя бота.
func NewScheduler(maintenanceService *maintenance.Service, loc *time.Location, announceFunc func(text string)) *Scheduler {
	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:               c,
		maintenanceService: maintenanceService,
		announceFunc:       announceFunc,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) {
	// Ежечасный тик обслуживания
	s.cron.AddFunc("0 * * * *", func() {
		s.tick(ctx)
	})

	s.cron.Start()
	log.Info("Планировщик задач запущен")

	// Догоняем пропущенные переходы сразу при старте, не дожидаясь
	// ближайшего ровного часа
	go s.tick(ctx)
}

// Stop останавливает планировщик.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// tick выполняет оба перехода. Порядок фиксирован: сначала месячный
// (закрывает старый цикл), затем дневной (работает уже в новом).
func (s *Scheduler) tick(ctx context.Context) {
	log.Debug("[CRON] Тик обслуживания леджера")

	monthly, err := s.maintenanceService.RunMonthly(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка месячного перехода")
	} else if monthly != nil {
		s.announceMonthly(monthly)
	}

	daily, err := s.maintenanceService.RunDaily(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка дневного обслуживания")
	} else if daily != nil && daily.BonusWinner != nil {
		s.announceFunc(fmt.Sprintf(
			"🌟 Бонус дня: лидер леджера получает %s за удержание первого места!",
			common.FormatKudosAmount(int64(daily.Bonus))))
	}
}

func (s *Scheduler) announceMonthly(report *maintenance.MonthlyReport) {
	if report.Winner == nil {
		s.announceFunc(fmt.Sprintf(
			"🗓 Месяц %s закрыт без победителя. Новый цикл начался, все балансы обнулены!",
			report.Month))
		return
	}

	s.announceFunc(fmt.Sprintf(
		"🏆 Итоги месяца %s: победитель набрал %s и переходит на уровень %d! Балансы обнулены, новый цикл начался.",
		report.Month, common.FormatKudos(report.Winner.MonthlyKudos), report.NewLevel))
}
