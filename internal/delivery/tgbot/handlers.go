package tgbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"

	"tg-gemini/internal/config"
	"tg-gemini/internal/middleware"
	"tg-gemini/internal/models"
	"tg-gemini/internal/services"
	"tg-gemini/internal/telegram_utils"
)

const helpMessage = `Commands:
⚪ /retry – Regenerate last bot answer
⚪ /new – Start new dialog
⚪ /mode – Select chat mode
⚪ /settings – Show settings
⚪ /cancel – Cancel the current request
⚪ /help – Show help`

var (
	btnSetChatMode   = tele.Btn{Unique: "set_chat_mode"}
	btnChatModesPage = tele.Btn{Unique: "show_chat_modes"}
	btnSetModel      = tele.Btn{Unique: "set_settings"}
)

func RegisterHandlers(
	bot *tele.Bot,
	cfg *config.Config,
	rateLimiter *middleware.RateLimiter,
	manager *services.DialogManager,
	completion *services.CompletionService,
	proxy *services.LLMClientProxy,
) {
	handler := &BotHandler{
		cfg:         cfg,
		rateLimiter: rateLimiter,
		manager:     manager,
		completion:  completion,
		proxy:       proxy,
		botUsername: bot.Me.Username,
	}

	bot.Handle("/cancel", handler.Cancel)
	bot.Handle(tele.OnEdited, handler.EditedMessage)

	protected := bot.Group()
	protected.Use(rateLimiter.Middleware())
	protected.Handle("/start", handler.Start)
	protected.Handle("/help", handler.Help)
	protected.Handle("/new", handler.NewDialog)
	protected.Handle("/retry", handler.RetryLastMessage)
	protected.Handle("/mode", handler.ShowChatModes)
	protected.Handle("/settings", handler.ShowSettings)
	protected.Handle(tele.OnText, handler.HandleText)
	protected.Handle(&btnSetChatMode, handler.SetChatMode)
	protected.Handle(&btnChatModesPage, handler.ShowChatModesPage)
	protected.Handle(&btnSetModel, handler.SetModel)
}

type BotHandler struct {
	cfg         *config.Config
	rateLimiter *middleware.RateLimiter
	manager     *services.DialogManager
	completion  *services.CompletionService
	proxy       *services.LLMClientProxy
	botUsername string
}

func (h *BotHandler) Start(c tele.Context) error {
	user := c.Get("user").(models.User)
	if err := h.manager.Touch(user.Id); err != nil {
		return err
	}
	if _, err := h.manager.StartNewDialog(user.Id); err != nil {
		return err
	}

	reply := "Hi! I'm <b>Gemini</b> bot 🤖\n\n" + helpMessage
	if err := c.Send(reply, &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
		return err
	}
	text, selector := h.chatModeMenu(0)
	return c.Send(text, selector, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (h *BotHandler) Help(c tele.Context) error {
	return c.Send(helpMessage, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (h *BotHandler) NewDialog(c tele.Context) error {
	user := c.Get("user").(models.User)
	if _, err := h.manager.StartNewDialog(user.Id); err != nil {
		return err
	}
	if err := c.Send("Starting new dialog ✅"); err != nil {
		return err
	}
	if mode, ok := h.cfg.ChatModes[user.CurrentChatMode]; ok {
		return c.Send(mode.WelcomeMessage, &tele.SendOptions{ParseMode: tele.ModeHTML})
	}
	return nil
}

func (h *BotHandler) Cancel(c tele.Context) error {
	user := c.Get("user").(models.User)
	if !h.rateLimiter.CancelRequest(user.Id) {
		return c.Send("<i>Nothing to cancel...</i>", &tele.SendOptions{ParseMode: tele.ModeHTML})
	}
	return nil
}

func (h *BotHandler) HandleText(c tele.Context) error {
	user := c.Get("user").(models.User)

	// in group chats only react when addressed
	text := c.Message().Text
	if c.Chat().Type != tele.ChatPrivate {
		if !h.isBotMentioned(c.Message()) {
			return nil
		}
		text = strings.TrimSpace(strings.ReplaceAll(text, "@"+h.botUsername, ""))
	}
	return h.handleMessage(c, user, text, true)
}

func (h *BotHandler) EditedMessage(c tele.Context) error {
	return c.Send("🥲 Unfortunately, message <b>editing</b> is not supported", &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (h *BotHandler) isBotMentioned(message *tele.Message) bool {
	if message.ReplyTo != nil && message.ReplyTo.Sender != nil && message.ReplyTo.Sender.Username == h.botUsername {
		return true
	}
	return strings.Contains(message.Text, "@"+h.botUsername)
}

func (h *BotHandler) RetryLastMessage(c tele.Context) error {
	ctx := c.Get("requestContext").(context.Context)
	user := c.Get("user").(models.User)

	turn, err := h.manager.PopLastTurn(user.Id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.Send("No message to retry 🤷‍♂️")
		}
		slog.ErrorContext(ctx, "Error popping last turn", "error", err)
		return err
	}
	return h.handleMessage(c, user, turn.User, false)
}

func (h *BotHandler) handleMessage(c tele.Context, user models.User, text string, useTimeout bool) error {
	ctx := c.Get("requestContext").(context.Context)
	ctx, cancel := h.rateLimiter.TrackContext(user.Id, ctx)
	defer cancel()

	if text == "" {
		return c.Send("🥲 You sent an <b>empty message</b>. Please, try again!", &tele.SendOptions{ParseMode: tele.ModeHTML})
	}

	mode := h.cfg.ChatModes[user.CurrentChatMode]

	if useTimeout && h.manager.ShouldStartNewDialog(user) {
		hadDialog := user.CurrentDialogId != ""
		if _, err := h.manager.StartNewDialog(user.Id); err != nil {
			return err
		}
		if hadDialog {
			notice := fmt.Sprintf("Starting new dialog (<b>%s</b> mode) ✅", mode.Name)
			if err := c.Send(notice, &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
				return err
			}
		}
	}
	if err := h.manager.Touch(user.Id); err != nil {
		return err
	}

	history, err := h.manager.GetHistory(user.Id, "")
	if err != nil {
		return err
	}
	if err := c.Notify(tele.Typing); err != nil {
		return err
	}

	streamer := telegram_utils.NewStreamer(c, c.Message(), telegram_utils.ParseModeFor(mode.ParseMode))

	var answer string
	var usage models.TokenUsage
	if h.cfg.EnableMessageStreaming {
		answer, usage, err = h.streamAnswer(ctx, c, user, history, text, streamer)
	} else {
		answer, usage, _, err = h.completion.SendMessage(ctx, user.CurrentModel, user.CurrentChatMode, history, text)
		if err == nil {
			err = streamer.Finish(answer)
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// the backend was already charged for what streamed before the cancel
			if usage.InputTokens > 0 || usage.OutputTokens > 0 {
				if rerr := h.manager.RecordUsage(user.Id, user.CurrentModel, usage.InputTokens, usage.OutputTokens); rerr != nil {
					slog.ErrorContext(ctx, "Error recording usage", "error", rerr)
				}
			}
			return c.Send("✅ Canceled", &tele.SendOptions{ParseMode: tele.ModeHTML})
		}
		slog.ErrorContext(ctx, "Error handling message", "error", err)
		return c.Send(fmt.Sprintf("Something went wrong: %v", err))
	}

	if err := h.manager.AppendTurn(user.Id, "", text, answer); err != nil {
		slog.ErrorContext(ctx, "Error appending turn", "error", err)
		return err
	}
	if err := h.manager.RecordUsage(user.Id, user.CurrentModel, usage.InputTokens, usage.OutputTokens); err != nil {
		slog.ErrorContext(ctx, "Error recording usage", "error", err)
		return err
	}
	return nil
}

// streamAnswer consumes the completion event stream, live-editing the
// preview message, and returns the final answer and usage. A mid-stream
// failure discards what was rendered but still reports the usage seen so
// far, so a canceled request can be charged for the streamed part.
func (h *BotHandler) streamAnswer(
	ctx context.Context,
	c tele.Context,
	user models.User,
	history []models.Turn,
	text string,
	streamer *telegram_utils.Streamer,
) (string, models.TokenUsage, error) {
	eventsCh, err := h.completion.SendMessageStream(ctx, user.CurrentModel, user.CurrentChatMode, history, text)
	if err != nil {
		return "", models.TokenUsage{}, err
	}

	var final services.CompletionEvent
	var partial models.TokenUsage
	for event := range eventsCh {
		if event.Err != nil {
			return "", partial, event.Err
		}
		partial = models.TokenUsage{InputTokens: event.InputTokens, OutputTokens: event.OutputTokens}
		if event.Status == services.StatusFinished {
			final = event
			continue
		}
		if err := streamer.SendPartial(event.Answer); err != nil {
			slog.ErrorContext(ctx, "Error streaming preview", "error", err)
		}
	}

	if err := streamer.Finish(final.Answer); err != nil {
		return "", models.TokenUsage{}, err
	}
	usage := models.TokenUsage{InputTokens: final.InputTokens, OutputTokens: final.OutputTokens}
	return final.Answer, usage, nil
}

func (h *BotHandler) ShowChatModes(c tele.Context) error {
	text, selector := h.chatModeMenu(0)
	return c.Send(text, selector, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (h *BotHandler) ShowChatModesPage(c tele.Context) error {
	if err := c.Respond(); err != nil {
		return err
	}
	page, err := strconv.Atoi(c.Args()[0])
	if err != nil || page < 0 {
		return nil
	}
	text, selector := h.chatModeMenu(page)
	return c.Edit(text, selector, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (h *BotHandler) SetChatMode(c tele.Context) error {
	if err := c.Respond(); err != nil {
		return err
	}
	user := c.Get("user").(models.User)

	chatMode := c.Args()[0]
	mode, ok := h.cfg.ChatModes[chatMode]
	if !ok {
		return c.Send("Chat mode not found")
	}
	if err := h.manager.SetChatMode(user.Id, chatMode); err != nil {
		return err
	}
	if _, err := h.manager.StartNewDialog(user.Id); err != nil {
		return err
	}
	return c.Send(mode.WelcomeMessage, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (h *BotHandler) ShowSettings(c tele.Context) error {
	user := c.Get("user").(models.User)
	text, selector := h.settingsMenu(user)
	return c.Send(text, selector, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (h *BotHandler) SetModel(c tele.Context) error {
	if err := c.Respond(); err != nil {
		return err
	}
	user := c.Get("user").(models.User)

	modelId := c.Args()[0]
	if !h.proxy.IsModelRegistered(modelId) {
		return c.Send("Model not found")
	}
	if err := h.manager.SetModel(user.Id, modelId); err != nil {
		return err
	}
	if _, err := h.manager.StartNewDialog(user.Id); err != nil {
		return err
	}

	user.CurrentModel = modelId
	text, selector := h.settingsMenu(user)
	return c.Edit(text, selector, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

func (h *BotHandler) chatModeMenu(page int) (string, *tele.ReplyMarkup) {
	keys := h.cfg.ChatModeKeys()
	perPage := h.cfg.NChatModesPerPage

	start := page * perPage
	if start > len(keys) {
		start = len(keys)
	}
	end := min(start+perPage, len(keys))

	selector := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, end-start+1)
	for _, key := range keys[start:end] {
		btn := selector.Data(h.cfg.ChatModes[key].Name, btnSetChatMode.Unique, key)
		rows = append(rows, selector.Row(btn))
	}
	if len(keys) > perPage {
		var nav []tele.Btn
		if page > 0 {
			nav = append(nav, selector.Data("«", btnChatModesPage.Unique, strconv.Itoa(page-1)))
		}
		if end < len(keys) {
			nav = append(nav, selector.Data("»", btnChatModesPage.Unique, strconv.Itoa(page+1)))
		}
		rows = append(rows, selector.Row(nav...))
	}
	selector.Inline(rows...)

	text := fmt.Sprintf("Select <b>chat mode</b> (%d modes available):", len(keys))
	return text, selector
}

func (h *BotHandler) settingsMenu(user models.User) (string, *tele.ReplyMarkup) {
	text := h.cfg.Models.Info[user.CurrentModel].Description
	text += "\n\nSelect <b>model</b>:"

	selector := &tele.ReplyMarkup{}
	buttons := make([]tele.Btn, 0, len(h.cfg.Models.AvailableTextModels))
	for _, modelId := range h.cfg.Models.AvailableTextModels {
		title := h.cfg.Models.Info[modelId].Name
		if title == "" {
			title = modelId
		}
		if modelId == user.CurrentModel {
			title = "✅ " + title
		}
		buttons = append(buttons, selector.Data(title, btnSetModel.Unique, modelId))
	}
	selector.Inline(selector.Row(buttons...))
	return text, selector
}
