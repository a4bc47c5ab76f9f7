// Package filters ограничивает работу бота одним сообществом.
package filters

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/kudos-bot/internal/features/members"
)

// ChatFilter пропускает сообщения из чата сообщества и личные
// сообщения от его участников. Всё остальное игнорируется.
type ChatFilter struct {
	communityChatID int64
	memberService   *members.Service
	bot             *tgbotapi.BotAPI
}

func NewChatFilter(communityChatID int64, memberService *members.Service, bot *tgbotapi.BotAPI) *ChatFilter {
	return &ChatFilter{
		communityChatID: communityChatID,
		memberService:   memberService,
		bot:             bot,
	}
}

// CheckAccess решает, обрабатывать ли сообщение.
func (f *ChatFilter) CheckAccess(ctx context.Context, message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		log.WithField("component", "ChatFilter").Warn("nil message/chat")
		return false
	}
	if message.From == nil {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Warn("nil message.From (сервисное сообщение?)")
		return false
	}
	if f.communityChatID == 0 {
		log.WithField("component", "ChatFilter").Error("communityChatID = 0 (ошибка конфигурации)")
		return false
	}

	chatID := message.Chat.ID
	userID := message.From.ID

	logger := log.WithFields(log.Fields{
		"component":         "ChatFilter",
		"chat_id":           chatID,
		"chat_type":         message.Chat.Type,
		"user_id":           userID,
		"community_chat_id": f.communityChatID,
	})

	// 1) Чат сообщества
	if chatID == f.communityChatID {
		logger.Debug("allow: чат сообщества")
		return true
	}

	// 2) Личные сообщения — только от участников сообщества
	if message.Chat.IsPrivate() {
		if _, err := f.memberService.GetByUserID(ctx, userID); err == nil {
			logger.Debug("allow: DM известного участника")
			return true
		}

		// 2.1) БД не знает пользователя: проверяем членство через Telegram API
		cm, err := f.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				ChatID: f.communityChatID,
				UserID: userID,
			},
		})
		if err != nil {
			logger.WithError(err).Error("проверка членства через Telegram не удалась")
			return false
		}

		switch cm.Status {
		case "creator", "administrator", "member", "restricted":
			f.memberService.EnsureMember(ctx, message.From)
			logger.WithField("tg_status", cm.Status).Info("allow: DM участника (добавлен в реестр)")
			return true

		default:
			logger.WithField("tg_status", cm.Status).Info("deny: не участник сообщества")
			msg := tgbotapi.NewMessage(chatID, "❌ Бот работает только для участников чата сообщества")
			if _, sendErr := f.bot.Send(msg); sendErr != nil {
				logger.WithError(sendErr).Warn("не удалось отправить отказ")
			}
			return false
		}
	}

	// 3) Остальные чаты игнорируем
	logger.Info("deny: чужой чат")
	return false
}
