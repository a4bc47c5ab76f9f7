// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки кудос-леджера
var (
	// ErrQuotaExceeded — дневной лимит выдачи кудосов исчерпан.
	// Это НЕ сбой: обработчик превращает её в вежливый отказ.
	ErrQuotaExceeded = errors.New("дневной лимит кудосов исчерпан")
	// ErrSelfAward — попытка дать кудос самому себе
	ErrSelfAward = errors.New("нельзя давать кудосы самому себе")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("сумма должна быть положительной")
	// ErrUserNotFound — пользователь не найден в базе
	ErrUserNotFound = errors.New("пользователь не найден")
)

// Ошибки админки
var (
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("неверный пароль")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("слишком много попыток, подождите 1 час")
)
