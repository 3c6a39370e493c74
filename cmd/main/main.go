package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	tele "gopkg.in/telebot.v3"

	"tg-gemini/internal/config"
	"tg-gemini/internal/database"
	"tg-gemini/internal/delivery/tgbot"
	"tg-gemini/internal/middleware"
	"tg-gemini/internal/repositories"
	"tg-gemini/internal/services"
	"tg-gemini/pkg/logging"
)

func main() {
	ctx := context.Background()
	if err := logging.SetupLogger(); err != nil {
		slog.ErrorContext(ctx, "Error setting up logger", "error", err)
		return
	}

	if err := godotenv.Load(); err != nil {
		slog.ErrorContext(ctx, "Error loading .env file", "error", err)
	}

	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "config"
	}
	appConfig, err := config.LoadConfig(configDir)
	if err != nil {
		slog.ErrorContext(ctx, "Error loading config", "error", err)
		return
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "data/tg-gemini.db"
	}

	db, err := database.NewDB(dbPath)
	if err != nil {
		slog.ErrorContext(ctx, "Error initializing database", "error", err)
		return
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		slog.ErrorContext(ctx, "Error running database migrations", "error", err)
		return
	}

	userRepo := repositories.NewUserRepo(db)
	dialogRepo := repositories.NewDialogRepo(db)

	dialogManager := services.NewDialogManager(userRepo, dialogRepo, appConfig.DefaultModel(), appConfig.NewDialogTimeout)
	llmClientProxy := services.NewClientProxyFromConfig(appConfig)
	completionService := services.NewCompletionService(llmClientProxy, appConfig.ChatModes)

	rateLimiter := &middleware.RateLimiter{}
	authenticator := middleware.UserAuthenticator{Manager: dialogManager, AllowedUserIds: appConfig.AllowedUserIds}

	pref := tele.Settings{
		Token:  os.Getenv("TOKEN"),
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		slog.ErrorContext(ctx, "Error creating bot", "error", err)
		return
	}
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			newCtx := context.WithValue(ctx, "tg_user_id", c.Sender().ID)
			requestID := uuid.New().String()
			newCtx = context.WithValue(newCtx, "request_id", requestID)
			c.Set("requestContext", newCtx)
			return next(c)
		}
	})
	b.Use(middleware.Logger())
	b.Use(authenticator.Middleware())

	err = b.SetCommands([]tele.Command{
		{Text: "/new", Description: "Start new dialog"},
		{Text: "/mode", Description: "Select chat mode"},
		{Text: "/retry", Description: "Re-generate response for previous query"},
		{Text: "/settings", Description: "Show settings"},
		{Text: "/cancel", Description: "Cancel the current request"},
		{Text: "/help", Description: "Show help message"},
	})
	if err != nil {
		slog.ErrorContext(ctx, "Error setting commands", "error", err)
		return
	}

	tgbot.RegisterHandlers(
		b,
		appConfig,
		rateLimiter,
		dialogManager,
		completionService,
		llmClientProxy,
	)

	slog.InfoContext(ctx, "Listening...")
	b.Start()
}
