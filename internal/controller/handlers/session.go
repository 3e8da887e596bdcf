package handlers

import (
	"context"

	"github.com/Freeeeeet/lessonroom/internal/controller/state"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// HandleJoin обрабатывает команду /join <номер брони>
func (h *Handlers) HandleJoin(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	arg := commandArg(update.Message.Text)
	if arg == "" {
		if update.Message.From != nil {
			h.stateManager.SetState(update.Message.From.ID, state.StateEnteringBookingID)
		}
		h.sendMessage(ctx, update.Message.Chat.ID, "🔢 Send the booking number of the lesson.\n\n/cancel to stop.")
		return
	}

	h.joinWithArg(ctx, update, arg)
}

func (h *Handlers) joinWithArg(ctx context.Context, update *models.Update, rawBookingID string) {
	user, ok := h.requireUser(ctx, update)
	if !ok {
		return
	}
	h.lobby.Join(ctx, update.Message.Chat.ID, user, update.Message.From.ID, rawBookingID)
}

// HandleStatus обрабатывает команду /status
func (h *Handlers) HandleStatus(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	h.lobby.Status(ctx, update.Message.Chat.ID, update.Message.From.ID, "")
}

// HandleEnd обрабатывает команду /end
func (h *Handlers) HandleEnd(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	h.lobby.End(ctx, update.Message.Chat.ID, update.Message.From.ID, "")
}

// HandleLeave обрабатывает команду /leave
func (h *Handlers) HandleLeave(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	h.lobby.Leave(ctx, update.Message.Chat.ID, update.Message.From.ID)
}
