package keyboard

import (
	"strings"

	"github.com/go-telegram/bot/models"
)

// Builder упрощает создание inline клавиатур
type Builder struct {
	rows [][]models.InlineKeyboardButton
}

// NewBuilder создаёт новый builder клавиатуры
func NewBuilder() *Builder {
	return &Builder{
		rows: make([][]models.InlineKeyboardButton, 0),
	}
}

// Row добавляет новый ряд кнопок
func (b *Builder) Row(buttons ...models.InlineKeyboardButton) *Builder {
	if len(buttons) > 0 {
		b.rows = append(b.rows, buttons)
	}
	return b
}

// Empty проверяет, что в клавиатуре нет кнопок
func (b *Builder) Empty() bool {
	return len(b.rows) == 0
}

// Build создаёт финальную клавиатуру, для пустой возвращает nil
func (b *Builder) Build() *models.InlineKeyboardMarkup {
	if b.Empty() {
		return nil
	}
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: b.rows,
	}
}

// Button создаёт кнопку
func Button(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// Data собирает callback data: Data("panel_retry:", "abc", "video") -> "panel_retry:abc:video"
func Data(prefix string, parts ...string) string {
	return prefix + strings.Join(parts, ":")
}
