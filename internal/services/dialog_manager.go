package services

import (
	"fmt"
	"time"

	"tg-gemini/internal/models"
)

type UsersRepo interface {
	CheckIfUserExists(userId int64) (bool, error)
	Register(user models.User) error
	GetUser(userId int64) (models.User, error)
	SetCurrentDialog(userId int64, dialogId string) error
	SetCurrentChatMode(userId int64, chatMode string) error
	SetCurrentModel(userId int64, model string) error
	SetLastInteraction(userId int64, timestamp int64) error
	AddUsedTokens(userId int64, model string, inputTokens int64, outputTokens int64) error
}

type DialogsRepo interface {
	CreateDialog(userId int64) (models.Dialog, error)
	GetMessages(dialogId string, userId int64) ([]models.Turn, error)
	ReplaceMessages(dialogId string, userId int64, turns []models.Turn) error
	ListDialogs(userId int64) ([]models.DialogMeta, error)
}

const defaultChatMode = "assistant"

// DialogManager owns the per-user current-dialog pointer, history access and
// usage accounting. Single writer per dialog is assumed; concurrent appends
// to the same dialog race with last-write-wins semantics.
type DialogManager struct {
	usersRepo     UsersRepo
	dialogsRepo   DialogsRepo
	defaultModel  string
	dialogTimeout int64
}

func NewDialogManager(usersRepo UsersRepo, dialogsRepo DialogsRepo, defaultModel string, dialogTimeout int64) *DialogManager {
	return &DialogManager{
		usersRepo:     usersRepo,
		dialogsRepo:   dialogsRepo,
		defaultModel:  defaultModel,
		dialogTimeout: dialogTimeout,
	}
}

// EnsureUser registers the user on first contact. Re-contact never overwrites
// previously set fields.
func (m *DialogManager) EnsureUser(userId int64, chatId int64, username string, firstName string, lastName string) (models.User, error) {
	exists, err := m.usersRepo.CheckIfUserExists(userId)
	if err != nil {
		return models.User{}, err
	}
	if exists {
		return m.usersRepo.GetUser(userId)
	}

	now := time.Now().Unix()
	user := models.User{
		Id:              userId,
		ChatId:          chatId,
		Username:        username,
		FirstName:       firstName,
		LastName:        lastName,
		FirstSeen:       now,
		LastInteraction: now,
		CurrentChatMode: defaultChatMode,
		CurrentModel:    m.defaultModel,
		UsedTokens:      map[string]models.TokenUsage{},
	}
	if err := m.usersRepo.Register(user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// StartNewDialog creates a fresh dialog snapshotting the user's current mode
// and model, and makes it the user's current dialog.
func (m *DialogManager) StartNewDialog(userId int64) (string, error) {
	dialog, err := m.dialogsRepo.CreateDialog(userId)
	if err != nil {
		return "", err
	}
	if err := m.usersRepo.SetCurrentDialog(userId, dialog.Id); err != nil {
		return "", err
	}
	return dialog.Id, nil
}

// GetHistory returns the dialog's turns in order. An empty dialogId resolves
// to the user's current dialog; a user with no current dialog has an empty
// history, which is not an error.
func (m *DialogManager) GetHistory(userId int64, dialogId string) ([]models.Turn, error) {
	if dialogId == "" {
		user, err := m.usersRepo.GetUser(userId)
		if err != nil {
			return nil, err
		}
		if user.CurrentDialogId == "" {
			return []models.Turn{}, nil
		}
		dialogId = user.CurrentDialogId
	}
	return m.dialogsRepo.GetMessages(dialogId, userId)
}

// AppendTurn appends one (user, bot) pair to the dialog via a full replace.
// Not atomic against concurrent writers for the same dialog.
func (m *DialogManager) AppendTurn(userId int64, dialogId string, userText string, botText string) error {
	if dialogId == "" {
		user, err := m.usersRepo.GetUser(userId)
		if err != nil {
			return err
		}
		if user.CurrentDialogId == "" {
			return fmt.Errorf("no current dialog for user %d: %w", userId, models.ErrNotFound)
		}
		dialogId = user.CurrentDialogId
	}

	turns, err := m.dialogsRepo.GetMessages(dialogId, userId)
	if err != nil {
		return err
	}
	turns = append(turns, models.Turn{
		User: userText,
		Bot:  botText,
		Date: time.Now().Unix(),
	})
	return m.dialogsRepo.ReplaceMessages(dialogId, userId, turns)
}

// PopLastTurn removes and returns the most recent turn of the user's current
// dialog, for regenerating the last answer.
func (m *DialogManager) PopLastTurn(userId int64) (models.Turn, error) {
	user, err := m.usersRepo.GetUser(userId)
	if err != nil {
		return models.Turn{}, err
	}
	if user.CurrentDialogId == "" {
		return models.Turn{}, fmt.Errorf("no current dialog for user %d: %w", userId, models.ErrNotFound)
	}

	turns, err := m.dialogsRepo.GetMessages(user.CurrentDialogId, userId)
	if err != nil {
		return models.Turn{}, err
	}
	if len(turns) == 0 {
		return models.Turn{}, fmt.Errorf("no turns in dialog %s: %w", user.CurrentDialogId, models.ErrNotFound)
	}

	last := turns[len(turns)-1]
	if err := m.dialogsRepo.ReplaceMessages(user.CurrentDialogId, userId, turns[:len(turns)-1]); err != nil {
		return models.Turn{}, err
	}
	return last, nil
}

// RecordUsage accumulates approximate token counts onto the user's per-model
// counters.
func (m *DialogManager) RecordUsage(userId int64, model string, inputTokens int64, outputTokens int64) error {
	if inputTokens < 0 || outputTokens < 0 {
		return &models.ValidationError{Message: "token counts must be non-negative"}
	}
	return m.usersRepo.AddUsedTokens(userId, model, inputTokens, outputTokens)
}

func (m *DialogManager) SetChatMode(userId int64, chatMode string) error {
	return m.usersRepo.SetCurrentChatMode(userId, chatMode)
}

func (m *DialogManager) SetModel(userId int64, model string) error {
	return m.usersRepo.SetCurrentModel(userId, model)
}

func (m *DialogManager) Touch(userId int64) error {
	return m.usersRepo.SetLastInteraction(userId, time.Now().Unix())
}

func (m *DialogManager) ListDialogs(userId int64) ([]models.DialogMeta, error) {
	return m.dialogsRepo.ListDialogs(userId)
}

// ShouldStartNewDialog reports whether the user's dialog went stale: no
// current dialog at all, or the last interaction is older than the configured
// timeout.
func (m *DialogManager) ShouldStartNewDialog(user models.User) bool {
	if user.CurrentDialogId == "" {
		return true
	}
	return time.Now().Unix()-user.LastInteraction > m.dialogTimeout
}
