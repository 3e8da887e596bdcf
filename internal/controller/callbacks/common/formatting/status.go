package formatting

import (
	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/session"
)

// StatusDisplay emoji и текст для отображения статуса
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetBookingStatusDisplay возвращает emoji и текст для статуса бронирования
func GetBookingStatusDisplay(status model.BookingStatus) StatusDisplay {
	displays := map[model.BookingStatus]StatusDisplay{
		model.BookingStatusPending:   {"⏳", "Awaiting confirmation"},
		model.BookingStatusConfirmed: {"✅", "Confirmed"},
		model.BookingStatusCompleted: {"✔️", "Completed"},
		model.BookingStatusCancelled: {"❌", "Cancelled"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Unknown"}
}

// GetPanelStateDisplay возвращает emoji и текст для состояния панели
func GetPanelStateDisplay(state session.PanelState) StatusDisplay {
	switch {
	case !state.Mounted:
		return StatusDisplay{"▫️", "Hidden"}
	case state.Failed:
		return StatusDisplay{"⚠️", "Failed to load"}
	default:
		return StatusDisplay{"🟢", "Working"}
	}
}
