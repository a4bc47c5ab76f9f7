// Package ledger — handlers.go обрабатывает жесты кудосов и команды.
// Правила транспортного уровня (свой чат, не бот, не себе, возраст
// сообщения) проверяются здесь; сама механика леджера — в сервисе.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/kudos-bot/internal/common"
	"serotonyl.ru/kudos-bot/internal/config"
	"serotonyl.ru/kudos-bot/internal/features/members"
)

// Handler обрабатывает события кудос-леджера.
type Handler struct {
	service       *Service
	memberService *members.Service
	bot           *tgbotapi.BotAPI
	cfg           *config.Config
}

// NewHandler создаёт обработчик леджера.
func NewHandler(service *Service, memberService *members.Service, bot *tgbotapi.BotAPI, cfg *config.Config) *Handler {
	return &Handler{service: service, memberService: memberService, bot: bot, cfg: cfg}
}

// stimulusExpired проверяет возраст сообщения-стимула.
// За старые сообщения кудосы не даются и не отзываются.
func (h *Handler) stimulusExpired(msg *tgbotapi.Message) bool {
	age := time.Since(msg.Time())
	return age > time.Duration(h.cfg.KudosValidityDays)*24*time.Hour
}

// HandleAwardGesture обрабатывает жест выдачи («+» в ответе на сообщение).
// Стимул — ID сообщения, на которое ответили; получатель — его автор.
func (h *Handler) HandleAwardGesture(ctx context.Context, message *tgbotapi.Message) {
	reply := message.ReplyToMessage
	if reply == nil || reply.From == nil {
		return
	}
	// Ботам кудосы не положены
	if reply.From.IsBot {
		return
	}
	if reply.From.ID == message.From.ID {
		return
	}
	if h.stimulusExpired(reply) {
		log.WithField("stimulus_id", reply.MessageID).Debug("Стимул вне окна действия")
		h.sendMessage(message.Chat.ID, "⏳ Это сообщение слишком старое, кудос не засчитан")
		return
	}

	err := h.service.Award(ctx, reply.From.ID, message.From.ID, int64(reply.MessageID))
	if err != nil {
		if errors.Is(err, common.ErrQuotaExceeded) {
			// Отказ по квоте — не сбой, а вежливое уведомление
			h.sendMessage(message.Chat.ID,
				fmt.Sprintf("🚫 На сегодня кудосы закончились (лимит %d в день)", h.cfg.KudosDailyLimit))
			return
		}
		if errors.Is(err, common.ErrSelfAward) {
			return
		}
		log.WithError(err).Error("Ошибка выдачи кудоса")
		return
	}

	h.sendMessage(message.Chat.ID,
		fmt.Sprintf("👏 Кудос засчитан: %s автору, %s тебе",
			common.FormatKudosAmount(CreatorAward), common.FormatKudosAmount(ActorAward)))
}

// HandleRetractGesture обрабатывает жест отзыва («-» в ответе на сообщение).
// Отзыв идемпотентен: без живой записи в журнале это no-op.
func (h *Handler) HandleRetractGesture(ctx context.Context, message *tgbotapi.Message) {
	reply := message.ReplyToMessage
	if reply == nil || reply.From == nil || reply.From.IsBot {
		return
	}
	if h.stimulusExpired(reply) {
		return
	}

	retracted, err := h.service.Retract(ctx, int64(reply.MessageID), message.From.ID)
	if err != nil {
		log.WithError(err).Error("Ошибка отзыва кудоса")
		return
	}
	if !retracted {
		log.WithFields(log.Fields{
			"stimulus_id": reply.MessageID,
			"actor_id":    message.From.ID,
		}).Debug("Отзыв проигнорирован: записи в журнале нет")
		return
	}

	h.sendMessage(message.Chat.ID, "↩️ Кудос отозван. Потраченный дневной лимит не возвращается")
}

// HandleActivity учитывает сообщение для бонуса «первое сообщение дня».
func (h *Handler) HandleActivity(ctx context.Context, message *tgbotapi.Message) {
	greet, err := h.service.TrackActivity(ctx, message.From.ID, int64(message.MessageID))
	if err != nil {
		log.WithError(err).WithField("user_id", message.From.ID).Warn("TrackActivity failed")
		return
	}
	if !greet || !h.cfg.DailyGreetingEnabled {
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID,
		"☀️ С возвращением! +1 кудос за первое сообщение дня.\nОтключить приветствия: !приветствие")
	msg.ReplyToMessageID = message.MessageID
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Debug("Не удалось отправить приветствие")
	}
}

// HandleMyKudos — команда !кудос. Показывает свой баланс, уровень и квоту.
func (h *Handler) HandleMyKudos(ctx context.Context, chatID int64, userID int64) {
	u, remaining, err := h.service.Status(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Ошибка получения статуса")
		h.sendMessage(chatID, "❌ Ошибка получения данных леджера")
		return
	}

	h.sendMessage(chatID, fmt.Sprintf(
		"🏅 Твои кудосы\n\nБаланс цикла: %s\nУровень: %d\nОсталось раздать сегодня: %d",
		common.FormatKudos(u.MonthlyKudos), u.LifetimeLevel, remaining))
}

// HandleLeaderboard — команда !топ. Топ-10 положительных балансов.
func (h *Handler) HandleLeaderboard(ctx context.Context, chatID int64) {
	users, err := h.service.Leaderboard(ctx, 10)
	if err != nil {
		log.WithError(err).Error("Ошибка получения лидеров")
		h.sendMessage(chatID, "❌ Ошибка получения таблицы лидеров")
		return
	}

	if len(users) == 0 {
		h.sendMessage(chatID, "📊 Пока никто не заработал кудосов в этом цикле")
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 Таблица лидеров цикла\n\n")
	for i, u := range users {
		sb.WriteString(fmt.Sprintf("%d. %s — %s\n",
			i+1, h.displayName(ctx, u.UserID), common.FormatKudos(u.MonthlyKudos)))
	}
	sb.WriteString("\nЦикл закрывается в начале следующего месяца.")

	h.sendMessage(chatID, sb.String())
}

// HandleToggleGreeting — команда !приветствие.
func (h *Handler) HandleToggleGreeting(ctx context.Context, chatID int64, userID int64) {
	enabled, err := h.service.ToggleGreeting(ctx, userID)
	if err != nil {
		log.WithError(err).Error("Ошибка переключения приветствий")
		h.sendMessage(chatID, "❌ Не удалось переключить приветствия")
		return
	}

	if enabled {
		h.sendMessage(chatID, "🔔 Приветствия включены: бот будет отмечать твоё первое сообщение дня")
	} else {
		h.sendMessage(chatID, "🔕 Приветствия отключены. Бонус за первое сообщение дня начисляется по-прежнему")
	}
}

// displayName возвращает отображаемое имя участника или его ID.
func (h *Handler) displayName(ctx context.Context, userID int64) string {
	m, err := h.memberService.GetByUserID(ctx, userID)
	if err != nil {
		return fmt.Sprintf("id%d", userID)
	}
	return m.DisplayName()
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
