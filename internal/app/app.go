// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики,
// фильтры и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/kudos-bot/internal/bot"
	"serotonyl.ru/kudos-bot/internal/bot/filters"
	"serotonyl.ru/kudos-bot/internal/common"
	"serotonyl.ru/kudos-bot/internal/config"
	"serotonyl.ru/kudos-bot/internal/db/postgres"
	"serotonyl.ru/kudos-bot/internal/features/admin"
	"serotonyl.ru/kudos-bot/internal/features/history"
	"serotonyl.ru/kudos-bot/internal/features/ledger"
	"serotonyl.ru/kudos-bot/internal/features/maintenance"
	"serotonyl.ru/kudos-bot/internal/features/members"
	"serotonyl.ru/kudos-bot/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// Все календарные границы леджера считаются в поясе сообщества
	loc := common.LoadLocation(cfg.AppTimezone)

	// === 3. Репозитории ===
	memberRepo := members.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	historyRepo := history.NewRepository(pool)
	markerRepo := maintenance.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 4. Сервисы ===
	// Один мьютекс на леджер и обслуживание: мутации балансов и
	// периодические переходы никогда не идут параллельно.
	ledgerMu := &sync.Mutex{}

	memberService := members.NewService(memberRepo, cfg)
	ledgerService := ledger.NewService(ledgerRepo, cfg, ledgerMu, loc)
	maintenanceService := maintenance.NewService(ledgerRepo, historyRepo, markerRepo, cfg, ledgerMu, loc)
	adminService := admin.NewService(adminRepo, cfg)

	// === 5. Обработчики ===
	ledgerHandler := ledger.NewHandler(ledgerService, memberService, botAPI, cfg)
	historyHandler := history.NewHandler(historyRepo, memberService, botAPI)
	adminHandler := admin.NewHandler(adminService, memberService, ledgerService, maintenanceService, botAPI)

	// === 6. Фильтры ===
	chatFilter := filters.NewChatFilter(cfg.CommunityChatID, memberService, botAPI)

	// === 7. Собираем бота ===
	b := bot.New(
		botAPI, cfg,
		memberService,
		ledgerHandler,
		historyHandler,
		adminHandler,
		chatFilter,
	)

	// === 8. Планировщик задач ===
	scheduler := jobs.NewScheduler(maintenanceService, loc, b.Announce)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	if err := postgres.EnsureMigrationTable(ctx, pool); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Members},
		{2, migration002Users},
		{3, migration003AwardLog},
		{4, migration004MonthlyHistory},
		{5, migration005SystemState},
		{6, migration006Admin},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    user_id BIGINT PRIMARY KEY,
    username VARCHAR(255),
    first_name VARCHAR(255) NOT NULL,
    last_name VARCHAR(255),
    is_admin BOOLEAN DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_members_username ON members(username);
`

var migration002Users = `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGINT PRIMARY KEY,
    monthly_kudos BIGINT NOT NULL DEFAULT 0,
    lifetime_level INTEGER NOT NULL DEFAULT 1,
    daily_awards_given INTEGER NOT NULL DEFAULT 0,
    last_award_date TIMESTAMP,
    last_message_date TIMESTAMP,
    greeting_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_monthly_kudos ON users(monthly_kudos DESC);
`

var migration003AwardLog = `
CREATE TABLE IF NOT EXISTS award_log (
    stimulus_id BIGINT NOT NULL,
    actor_id BIGINT NOT NULL,
    beneficiary_id BIGINT NOT NULL,
    created_at TIMESTAMP DEFAULT NOW(),
    PRIMARY KEY (stimulus_id, actor_id)
);
CREATE INDEX IF NOT EXISTS idx_award_log_beneficiary ON award_log(beneficiary_id);
`

var migration004MonthlyHistory = `
CREATE TABLE IF NOT EXISTS monthly_history (
    month VARCHAR(7) PRIMARY KEY,
    winner_id BIGINT,
    winner_kudos BIGINT NOT NULL DEFAULT 0,
    winner_level INTEGER NOT NULL DEFAULT 0,
    closed_at TIMESTAMP DEFAULT NOW()
);
`

var migration005SystemState = `
CREATE TABLE IF NOT EXISTS system_state (
    key VARCHAR(64) PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT NOW()
);
`

var migration006Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT REFERENCES members(user_id),
    session_token VARCHAR(255) UNIQUE,
    authenticated_at TIMESTAMP DEFAULT NOW(),
    expires_at TIMESTAMP,
    last_activity TIMESTAMP DEFAULT NOW(),
    is_active BOOLEAN DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id);
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT,
    attempt_time TIMESTAMP DEFAULT NOW(),
    success BOOLEAN DEFAULT FALSE
);
`
