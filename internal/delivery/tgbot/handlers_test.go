package tgbot

import (
	"testing"

	tele "gopkg.in/telebot.v3"
)

func TestIsBotMentioned(t *testing.T) {
	handler := &BotHandler{botUsername: "gembot"}

	tests := []struct {
		name    string
		message *tele.Message
		want    bool
	}{
		{
			name:    "plain group message",
			message: &tele.Message{Text: "what time is it"},
			want:    false,
		},
		{
			name:    "mention in text",
			message: &tele.Message{Text: "@gembot what time is it"},
			want:    true,
		},
		{
			name: "reply to the bot",
			message: &tele.Message{
				Text:    "and in Tokyo?",
				ReplyTo: &tele.Message{Sender: &tele.User{Username: "gembot"}},
			},
			want: true,
		},
		{
			name: "reply to someone else",
			message: &tele.Message{
				Text:    "and in Tokyo?",
				ReplyTo: &tele.Message{Sender: &tele.User{Username: "alice"}},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		if got := handler.isBotMentioned(tt.message); got != tt.want {
			t.Errorf("%s: isBotMentioned = %v, want %v", tt.name, got, tt.want)
		}
	}
}
