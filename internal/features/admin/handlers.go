// Package admin — handlers.go обрабатывает взаимодействие с админ-панелью.
// Панель работает через Reply Keyboard в личных сообщениях.
// Поток: аутентификация → клавиатура → выбор действия → пошаговый диалог.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/kudos-bot/internal/common"
	"serotonyl.ru/kudos-bot/internal/features/ledger"
	"serotonyl.ru/kudos-bot/internal/features/maintenance"
	"serotonyl.ru/kudos-bot/internal/features/members"
)

// Кнопки панели.
const (
	buttonGrant       = "Начислить кудосы"
	buttonDeduct      = "Списать кудосы"
	buttonResetLimit  = "Сбросить лимиты"
	buttonMaintenance = "Обслуживание"
	buttonLogout      = "Выход"
)

// Handler обрабатывает админ-команды.
type Handler struct {
	service            *Service
	memberService      *members.Service
	ledgerService      *ledger.Service
	maintenanceService *maintenance.Service
	bot                *tgbotapi.BotAPI
}

// NewHandler создаёт обработчик админ-панели.
func NewHandler(service *Service, memberService *members.Service,
	ledgerService *ledger.Service, maintenanceService *maintenance.Service,
	bot *tgbotapi.BotAPI) *Handler {
	return &Handler{
		service:            service,
		memberService:      memberService,
		ledgerService:      ledgerService,
		maintenanceService: maintenanceService,
		bot:                bot,
	}
}

// HandleAdminMessage обрабатывает любое сообщение от администратора в DM.
// Определяет текущее состояние диалога и маршрутизирует сообщение.
// Возвращает false, если сообщение не относится к панели.
func (h *Handler) HandleAdminMessage(ctx context.Context, chatID int64, userID int64, text string) bool {
	member, err := h.memberService.GetByUserID(ctx, userID)
	if err != nil || !member.IsAdmin {
		return false
	}

	state := h.service.GetState(userID)

	if state != nil && state.State == StateAwaitingPassword {
		h.handlePasswordInput(ctx, chatID, userID, text)
		return true
	}

	if !h.service.HasActiveSession(ctx, userID) {
		h.sendMessage(chatID, "🔐 Введите пароль для доступа к админ-панели:")
		h.service.SetState(userID, StateAwaitingPassword)
		return true
	}

	h.service.TouchSession(ctx, userID)

	if state != nil {
		switch state.State {
		case StateGrantInput:
			h.handleGrantInput(ctx, chatID, userID, text)
			return true
		case StateDeductInput:
			h.handleDeductInput(ctx, chatID, userID, text)
			return true
		case StateResetLimitInput:
			h.handleResetLimitInput(ctx, chatID, userID, text)
			return true
		}
	}

	switch text {
	case buttonGrant:
		h.service.SetState(userID, StateGrantInput)
		h.sendMessage(chatID, "Кому и сколько начислить? Формат: @username 5")
		return true
	case buttonDeduct:
		h.service.SetState(userID, StateDeductInput)
		h.sendMessage(chatID, "У кого и сколько списать? Формат: @username 5\nНиже нуля баланс не уйдёт")
		return true
	case buttonResetLimit:
		h.service.SetState(userID, StateResetLimitInput)
		h.sendMessage(chatID, "Чей дневной лимит сбросить? @username или «все»")
		return true
	case buttonMaintenance:
		h.runMaintenance(ctx, chatID)
		return true
	case buttonLogout:
		if err := h.service.Logout(ctx, userID); err != nil {
			log.WithError(err).Error("Ошибка выхода из панели")
		}
		h.sendMessage(chatID, "👋 Сессия завершена")
		return true
	case "Админ", "Панель", "админ", "панель":
		h.showKeyboard(chatID)
		return true
	}

	return false
}

// handlePasswordInput обрабатывает ввод пароля.
func (h *Handler) handlePasswordInput(ctx context.Context, chatID int64, userID int64, password string) {
	h.service.ClearState(userID)

	err := h.service.VerifyPassword(ctx, userID, password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrTooManyAttempts):
			h.sendMessage(chatID, "⛔ Слишком много попыток, подождите час")
		case errors.Is(err, common.ErrWrongPassword):
			h.sendMessage(chatID, "❌ Неверный пароль")
		default:
			log.WithError(err).Error("Ошибка проверки пароля")
			h.sendMessage(chatID, "❌ Ошибка аутентификации")
		}
		return
	}

	h.sendMessage(chatID, "✅ Аутентификация успешна!")
	h.showKeyboard(chatID)
}

// handleGrantInput начисляет кудосы по вводу «@username N».
func (h *Handler) handleGrantInput(ctx context.Context, chatID int64, userID int64, text string) {
	h.service.ClearState(userID)

	target, amount, err := h.parseUserAmount(ctx, text)
	if err != nil {
		h.sendMessage(chatID, "❌ "+err.Error())
		return
	}

	if err := h.ledgerService.Adjust(ctx, target.UserID, amount); err != nil {
		log.WithError(err).Error("Ошибка начисления кудосов")
		h.sendMessage(chatID, "❌ Ошибка начисления")
		return
	}

	log.WithFields(log.Fields{
		"admin_id":  userID,
		"target_id": target.UserID,
		"amount":    amount,
	}).Info("Админское начисление кудосов")

	h.sendMessage(chatID, fmt.Sprintf("✅ %s: %s",
		target.DisplayName(), common.FormatKudosAmount(amount)))
}

// handleDeductInput списывает кудосы с floor-guard.
func (h *Handler) handleDeductInput(ctx context.Context, chatID int64, userID int64, text string) {
	h.service.ClearState(userID)

	target, amount, err := h.parseUserAmount(ctx, text)
	if err != nil {
		h.sendMessage(chatID, "❌ "+err.Error())
		return
	}

	if err := h.ledgerService.DeductGuarded(ctx, target.UserID, amount); err != nil {
		if errors.Is(err, common.ErrInvalidAmount) {
			h.sendMessage(chatID, "❌ Сумма списания должна быть положительной")
			return
		}
		log.WithError(err).Error("Ошибка списания кудосов")
		h.sendMessage(chatID, "❌ Ошибка списания")
		return
	}

	log.WithFields(log.Fields{
		"admin_id":  userID,
		"target_id": target.UserID,
		"amount":    amount,
	}).Info("Админское списание кудосов")

	h.sendMessage(chatID, fmt.Sprintf("✅ %s: %s",
		target.DisplayName(), common.FormatKudosAmount(-amount)))
}

// handleResetLimitInput сбрасывает дневные лимиты.
func (h *Handler) handleResetLimitInput(ctx context.Context, chatID int64, userID int64, text string) {
	h.service.ClearState(userID)

	text = strings.TrimSpace(text)
	if strings.EqualFold(text, "все") || strings.EqualFold(text, "всем") {
		if err := h.ledgerService.ResetAllDailyLimits(ctx); err != nil {
			log.WithError(err).Error("Ошибка сброса лимитов")
			h.sendMessage(chatID, "❌ Ошибка сброса лимитов")
			return
		}
		log.WithField("admin_id", userID).Info("Дневные лимиты сброшены всем")
		h.sendMessage(chatID, "✅ Дневные лимиты сброшены у всех")
		return
	}

	target, err := h.memberService.GetByUsername(ctx, text)
	if err != nil {
		h.sendMessage(chatID, "❌ Участник не найден")
		return
	}

	if err := h.ledgerService.ResetDailyLimit(ctx, target.UserID); err != nil {
		log.WithError(err).Error("Ошибка сброса лимита")
		h.sendMessage(chatID, "❌ Ошибка сброса лимита")
		return
	}

	h.sendMessage(chatID, fmt.Sprintf("✅ Дневной лимит %s сброшен", target.DisplayName()))
}

// runMaintenance принудительно дёргает оба перехода.
// Маркеры периодов действуют как обычно: уже выполненный за период
// переход повторно не выполнится.
func (h *Handler) runMaintenance(ctx context.Context, chatID int64) {
	daily, err := h.maintenanceService.RunDaily(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка дневного обслуживания")
		h.sendMessage(chatID, "❌ Ошибка дневного обслуживания")
		return
	}

	monthly, err := h.maintenanceService.RunMonthly(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка месячного перехода")
		h.sendMessage(chatID, "❌ Ошибка месячного перехода")
		return
	}

	var sb strings.Builder
	sb.WriteString("🔧 Обслуживание\n\n")
	if daily != nil {
		sb.WriteString(fmt.Sprintf("Дневной переход выполнен: усохло %d балансов\n", daily.Decayed))
	} else {
		sb.WriteString("Дневной переход за сегодня уже выполнялся\n")
	}
	if monthly != nil {
		sb.WriteString(fmt.Sprintf("Месяц %s закрыт\n", monthly.Month))
	} else {
		sb.WriteString("Месячный переход в этом месяце уже выполнялся\n")
	}

	h.sendMessage(chatID, sb.String())
}

// parseUserAmount разбирает ввод вида «@username N».
func (h *Handler) parseUserAmount(ctx context.Context, text string) (*members.Member, int64, error) {
	fields := strings.Fields(text)
	if len(fields) != 2 {
		return nil, 0, fmt.Errorf("ожидается формат: @username 5")
	}

	amount, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("не удалось разобрать число «%s»", fields[1])
	}

	target, err := h.memberService.GetByUsername(ctx, fields[0])
	if err != nil {
		return nil, 0, fmt.Errorf("участник %s не найден", fields[0])
	}

	return target, amount, nil
}

// showKeyboard отображает клавиатуру админ-панели.
func (h *Handler) showKeyboard(chatID int64) {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonGrant),
			tgbotapi.NewKeyboardButton(buttonDeduct),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonResetLimit),
			tgbotapi.NewKeyboardButton(buttonMaintenance),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonLogout),
		),
	)
	keyboard.ResizeKeyboard = true

	msg := tgbotapi.NewMessage(chatID, "⚙️ Админ-панель кудос-леджера")
	msg.ReplyMarkup = keyboard
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки клавиатуры")
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
