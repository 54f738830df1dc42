// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrSessionRequired — действие над записью без активной сессии.
	// Обработчики трактуют её как тихий отказ: список не меняется, сообщения нет.
	ErrSessionRequired = errors.New("действие требует активной сессии")
)
