// Package bot содержит главный модуль бота — инициализацию, запуск и остановку.
// bot.go запускает polling, распознаёт жесты кудосов и маршрутизирует команды.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/kudos-bot/internal/bot/filters"
	"serotonyl.ru/kudos-bot/internal/bot/middleware"
	"serotonyl.ru/kudos-bot/internal/config"
	"serotonyl.ru/kudos-bot/internal/features/admin"
	"serotonyl.ru/kudos-bot/internal/features/history"
	"serotonyl.ru/kudos-bot/internal/features/ledger"
	"serotonyl.ru/kudos-bot/internal/features/members"
)

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	ledgerHandler  *ledger.Handler
	historyHandler *history.Handler
	adminHandler   *admin.Handler

	memberService *members.Service

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	memberService *members.Service,
	ledgerHandler *ledger.Handler,
	historyHandler *history.Handler,
	adminHandler *admin.Handler,
	chatFilter *filters.ChatFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:            api,
		cfg:            cfg,
		chatFilter:     chatFilter,
		rateLimiter:    middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		ledgerHandler:  ledgerHandler,
		historyHandler: historyHandler,
		adminHandler:   adminHandler,
		memberService:  memberService,
		parser:         NewCommandParser(),
		inflight:       make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// Announce отправляет объявление в чат сообщества (для планировщика).
func (b *Bot) Announce(text string) {
	b.sendMessage(b.cfg.CommunityChatID, text)
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	if update.Message == nil || update.Message.Text == "" {
		return
	}

	message := update.Message

	middleware.LogMessage(message)

	if !b.chatFilter.CheckAccess(ctx, message) {
		return
	}

	if message.From != nil && !b.rateLimiter.Allow(message.From.ID) {
		log.WithField("user_id", message.From.ID).Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	b.memberService.EnsureMember(ctx, message.From)

	// В DM сначала отдаём сообщение админ-панели
	if message.Chat.IsPrivate() {
		if b.adminHandler.HandleAdminMessage(ctx, chatID, userID, message.Text) {
			return
		}
	}

	// Активность считается только в чате сообщества
	if chatID == b.cfg.CommunityChatID {
		b.ledgerHandler.HandleActivity(ctx, message)

		// Жесты кудосов — ответ на чужое сообщение
		if message.ReplyToMessage != nil {
			if ledger.IsAwardGesture(message.Text) {
				b.ledgerHandler.HandleAwardGesture(ctx, message)
				return
			}
			if ledger.IsRetractGesture(message.Text) {
				b.ledgerHandler.HandleRetractGesture(ctx, message)
				return
			}
		}
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	log.WithFields(log.Fields{
		"isCommand": isCommand,
		"cmd":       cmd,
		"args":      args,
	}).Debug("parsed command")

	if isCommand {
		b.routeCommand(ctx, chatID, userID, cmd, args)
	}
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID, userID int64, cmd string, args []string) {
	switch cmd {
	case "start", "help", "помощь":
		b.sendMessage(chatID, "Я считаю кудосы. Ответь «+» на хорошее сообщение — его автор получит +2, ты +1.\n"+
			"Команды: !кудос — твой баланс, !топ — лидеры цикла, !история — архив месяцев, !приветствие — переключить приветствия")

	case "кудос", "кудосы", "kudos":
		b.ledgerHandler.HandleMyKudos(ctx, chatID, userID)

	case "топ", "top":
		b.ledgerHandler.HandleLeaderboard(ctx, chatID)

	case "история", "архив":
		b.historyHandler.HandleHistory(ctx, chatID)

	case "приветствие":
		b.ledgerHandler.HandleToggleGreeting(ctx, chatID, userID)

	case "login":
		if chatID == userID {
			b.adminHandler.HandleAdminMessage(ctx, chatID, userID, strings.Join(args, " "))
		}
	}
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// CommandParser парсит русские команды с префиксами !, . и /
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"!", ".", "/"},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	text = strings.TrimSpace(text)
	parts := strings.Fields(text)

	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
