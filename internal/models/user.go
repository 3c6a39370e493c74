package models

import "time"

// TokenUsage holds cumulative approximate token counts for a single model.
// Counters only ever grow.
type TokenUsage struct {
	InputTokens  int64 `json:"n_input_tokens"`
	OutputTokens int64 `json:"n_output_tokens"`
}

type User struct {
	Id                  int64
	ChatId              int64
	Username            string
	FirstName           string
	LastName            string
	FirstSeen           int64
	LastInteraction     int64
	CurrentDialogId     string // empty string means no current dialog
	CurrentChatMode     string
	CurrentModel        string
	UsedTokens          map[string]TokenUsage
	NGeneratedImages    int64
	NTranscribedSeconds float64
}

func (u *User) Touch() {
	u.LastInteraction = time.Now().Unix()
}
