package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"tg-gemini/internal/database"
	"tg-gemini/internal/models"
)

type UserRepo struct {
	db *database.DB
}

func NewUserRepo(db *database.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (repo *UserRepo) CheckIfUserExists(userId int64) (bool, error) {
	var count int
	err := repo.db.QueryRow(`SELECT COUNT(*) FROM users WHERE id = ?`, userId).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}

// Register inserts a new user. Registering an already known user is a no-op,
// not an error.
func (repo *UserRepo) Register(user models.User) error {
	usedTokens, err := json.Marshal(user.UsedTokens)
	if err != nil {
		return fmt.Errorf("failed to encode token counters: %w", err)
	}

	query := `
		INSERT INTO users (
			id, chat_id, username, first_name, last_name,
			first_seen, last_interaction, current_dialog_id,
			current_chat_mode, current_model, n_used_tokens,
			n_generated_images, n_transcribed_seconds
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	_, err = repo.db.Exec(query,
		user.Id, user.ChatId, user.Username, user.FirstName, user.LastName,
		user.FirstSeen, user.LastInteraction, nullableString(user.CurrentDialogId),
		user.CurrentChatMode, user.CurrentModel, string(usedTokens),
		user.NGeneratedImages, user.NTranscribedSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}
	return nil
}

func (repo *UserRepo) GetUser(userId int64) (models.User, error) {
	query := `
		SELECT id, chat_id, username, first_name, last_name,
			first_seen, last_interaction, current_dialog_id,
			current_chat_mode, current_model, n_used_tokens,
			n_generated_images, n_transcribed_seconds
		FROM users WHERE id = ?
	`

	var user models.User
	var username, lastName, currentDialogId sql.NullString
	var usedTokens string
	err := repo.db.QueryRow(query, userId).Scan(
		&user.Id, &user.ChatId, &username, &user.FirstName, &lastName,
		&user.FirstSeen, &user.LastInteraction, &currentDialogId,
		&user.CurrentChatMode, &user.CurrentModel, &usedTokens,
		&user.NGeneratedImages, &user.NTranscribedSeconds,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.User{}, fmt.Errorf("user %d: %w", userId, models.ErrNotFound)
		}
		return models.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	user.Username = username.String
	user.LastName = lastName.String
	user.CurrentDialogId = currentDialogId.String
	if err := json.Unmarshal([]byte(usedTokens), &user.UsedTokens); err != nil {
		return models.User{}, fmt.Errorf("failed to decode token counters: %w", err)
	}
	if user.UsedTokens == nil {
		user.UsedTokens = make(map[string]models.TokenUsage)
	}
	return user, nil
}

func (repo *UserRepo) SetCurrentDialog(userId int64, dialogId string) error {
	return repo.setColumn(userId, "current_dialog_id", nullableString(dialogId))
}

func (repo *UserRepo) SetCurrentChatMode(userId int64, chatMode string) error {
	return repo.setColumn(userId, "current_chat_mode", chatMode)
}

func (repo *UserRepo) SetCurrentModel(userId int64, model string) error {
	return repo.setColumn(userId, "current_model", model)
}

func (repo *UserRepo) SetLastInteraction(userId int64, timestamp int64) error {
	return repo.setColumn(userId, "last_interaction", timestamp)
}

// AddUsedTokens accumulates onto the per-model counters. Counters are never
// decremented.
func (repo *UserRepo) AddUsedTokens(userId int64, model string, inputTokens int64, outputTokens int64) error {
	user, err := repo.GetUser(userId)
	if err != nil {
		return err
	}

	usage := user.UsedTokens[model]
	usage.InputTokens += inputTokens
	usage.OutputTokens += outputTokens
	user.UsedTokens[model] = usage

	encoded, err := json.Marshal(user.UsedTokens)
	if err != nil {
		return fmt.Errorf("failed to encode token counters: %w", err)
	}
	return repo.setColumn(userId, "n_used_tokens", string(encoded))
}

func (repo *UserRepo) setColumn(userId int64, column string, value any) error {
	result, err := repo.db.Exec(fmt.Sprintf(`UPDATE users SET %s = ? WHERE id = ?`, column), value, userId)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", column, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", column, err)
	}
	if affected == 0 {
		return fmt.Errorf("user %d: %w", userId, models.ErrNotFound)
	}
	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
