package controller

import (
	"context"

	"github.com/Freeeeeet/lessonroom/internal/controller/callbacks"
	"github.com/Freeeeeet/lessonroom/internal/controller/callbacks/common"
	"github.com/Freeeeeet/lessonroom/internal/controller/handlers"
	"github.com/Freeeeeet/lessonroom/internal/controller/state"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type BotController struct {
	bot             *bot.Bot
	handlers        *handlers.Handlers
	callbackHandler *callbacks.Handler
	logger          *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	users handlers.UserDirectory,
	lessons common.Lessons,
	sessions common.Sessions,
	logger *zap.Logger,
) *BotController {
	// Создаём менеджер состояний
	stateManager := state.NewManager()

	lobby := common.NewLobby(sessions, stateManager, botInstance, logger)

	// Создаём обработчики команд
	cmdHandlers := handlers.NewHandlers(
		users,
		lessons,
		lobby,
		stateManager,
		botInstance,
		logger,
	)

	callbackHandler := callbacks.NewHandler(
		users,
		lessons,
		lobby,
		botInstance,
		logger,
	)

	return &BotController{
		bot:             botInstance,
		handlers:        cmdHandlers,
		callbackHandler: callbackHandler,
		logger:          logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handlers.HandleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handlers.HandleHelp)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypeExact, c.handlers.HandleCancel)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/lessons", bot.MatchTypeExact, c.handlers.HandleLessons)

	// Команды урока
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/join", bot.MatchTypePrefix, c.handlers.HandleJoin)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypeExact, c.handlers.HandleStatus)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/end", bot.MatchTypeExact, c.handlers.HandleEnd)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/leave", bot.MatchTypeExact, c.handlers.HandleLeave)

	// Обработчик текстовых сообщений (для диалогов с состояниями)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, c.handlers.HandleTextMessage)

	// Обработчик нажатий на inline кнопки
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, c.callbackHandler.HandleCallbackQuery)

	// Устанавливаем меню команд
	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Start"},
		{Command: "lessons", Description: "📅 My confirmed lessons"},
		{Command: "join", Description: "▶️ Join a lesson by number"},
		{Command: "status", Description: "⏱ Current lesson"},
		{Command: "leave", Description: "🚪 Leave the lesson"},
		{Command: "end", Description: "🏁 End the lesson"},
		{Command: "help", Description: "❓ Help"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})

	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает бота, блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}
