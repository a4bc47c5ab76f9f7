// Package history — handlers.go отвечает на команду !история.
package history

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/kudos-bot/internal/common"
	"serotonyl.ru/kudos-bot/internal/features/members"
)

// Handler отвечает на запросы архива месяцев.
type Handler struct {
	repo          *Repository
	memberService *members.Service
	bot           *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик архива.
func NewHandler(repo *Repository, memberService *members.Service, bot *tgbotapi.BotAPI) *Handler {
	return &Handler{repo: repo, memberService: memberService, bot: bot}
}

// HandleHistory — команда !история. Показывает последние 12 закрытых месяцев.
func (h *Handler) HandleHistory(ctx context.Context, chatID int64) {
	entries, err := h.repo.List(ctx, 12)
	if err != nil {
		log.WithError(err).Error("Ошибка чтения архива месяцев")
		h.sendMessage(chatID, "❌ Ошибка чтения архива")
		return
	}

	if len(entries) == 0 {
		h.sendMessage(chatID, "📜 Архив пуст: ни один месяц ещё не закрыт")
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 Архив месяцев\n\n")
	for _, e := range entries {
		if e.WinnerID == nil {
			sb.WriteString(fmt.Sprintf("%s — без победителя\n", e.Month))
			continue
		}
		sb.WriteString(fmt.Sprintf("%s — %s, %s (уровень %d)\n",
			e.Month, h.displayName(ctx, *e.WinnerID),
			common.FormatKudos(e.WinnerKudos), e.WinnerLevel))
	}

	h.sendMessage(chatID, sb.String())
}

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
