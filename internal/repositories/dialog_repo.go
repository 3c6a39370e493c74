package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tg-gemini/internal/database"
	"tg-gemini/internal/models"
)

type DialogRepo struct {
	db *database.DB
}

func NewDialogRepo(db *database.DB) *DialogRepo {
	return &DialogRepo{db: db}
}

// CreateDialog inserts a fresh dialog for the user, snapshotting the user's
// current chat mode and model. The snapshot is fixed for the dialog's
// lifetime.
func (repo *DialogRepo) CreateDialog(userId int64) (models.Dialog, error) {
	var chatMode, model string
	err := repo.db.QueryRow(
		`SELECT current_chat_mode, current_model FROM users WHERE id = ?`, userId,
	).Scan(&chatMode, &model)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.Dialog{}, fmt.Errorf("user %d: %w", userId, models.ErrNotFound)
		}
		return models.Dialog{}, fmt.Errorf("failed to look up user: %w", err)
	}

	dialog := models.Dialog{
		Id:        uuid.NewString(),
		UserId:    userId,
		ChatMode:  chatMode,
		Model:     model,
		StartTime: time.Now().Unix(),
		Turns:     []models.Turn{},
	}

	_, err = repo.db.Exec(
		`INSERT INTO dialogs (id, user_id, chat_mode, model, start_time, messages) VALUES (?, ?, ?, ?, ?, '[]')`,
		dialog.Id, dialog.UserId, dialog.ChatMode, dialog.Model, dialog.StartTime,
	)
	if err != nil {
		return models.Dialog{}, fmt.Errorf("failed to create dialog: %w", err)
	}
	return dialog, nil
}

// GetMessages returns the dialog's turns in stored order. A dialog that does
// not exist or is owned by another user is NotFound.
func (repo *DialogRepo) GetMessages(dialogId string, userId int64) ([]models.Turn, error) {
	var encoded string
	err := repo.db.QueryRow(
		`SELECT messages FROM dialogs WHERE id = ? AND user_id = ?`, dialogId, userId,
	).Scan(&encoded)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("dialog %s for user %d: %w", dialogId, userId, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get dialog messages: %w", err)
	}

	var turns []models.Turn
	if err := json.Unmarshal([]byte(encoded), &turns); err != nil {
		return nil, fmt.Errorf("failed to decode dialog messages: %w", err)
	}
	if turns == nil {
		turns = []models.Turn{}
	}
	return turns, nil
}

// ReplaceMessages overwrites the dialog's turn list as one synchronous write.
// Order of the given turns is preserved.
func (repo *DialogRepo) ReplaceMessages(dialogId string, userId int64, turns []models.Turn) error {
	encoded, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("failed to encode dialog messages: %w", err)
	}

	result, err := repo.db.Exec(
		`UPDATE dialogs SET messages = ? WHERE id = ? AND user_id = ?`,
		string(encoded), dialogId, userId,
	)
	if err != nil {
		return fmt.Errorf("failed to replace dialog messages: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to replace dialog messages: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("dialog %s for user %d: %w", dialogId, userId, models.ErrNotFound)
	}
	return nil
}

// ListDialogs returns dialog metadata for the user, newest first.
func (repo *DialogRepo) ListDialogs(userId int64) ([]models.DialogMeta, error) {
	rows, err := repo.db.Query(
		`SELECT id, start_time, chat_mode, model FROM dialogs WHERE user_id = ? ORDER BY start_time DESC`,
		userId,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list dialogs: %w", err)
	}
	defer rows.Close()

	var dialogs []models.DialogMeta
	for rows.Next() {
		var meta models.DialogMeta
		if err := rows.Scan(&meta.Id, &meta.StartTime, &meta.ChatMode, &meta.Model); err != nil {
			return nil, fmt.Errorf("failed to scan dialog: %w", err)
		}
		dialogs = append(dialogs, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list dialogs: %w", err)
	}
	return dialogs, nil
}
