package telegram_utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	tele "gopkg.in/telebot.v3"
)

func TestTruncateKeepsRunesWhole(t *testing.T) {
	long := strings.Repeat("你", 2000) // 6000 bytes of 3-byte runes
	got := truncate(long)
	if len(got) > MaxTelegramMessageLength {
		t.Fatalf("truncate left %d bytes, cap is %d", len(got), MaxTelegramMessageLength)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8, last bytes %x", got[len(got)-4:])
	}

	short := "short answer"
	if got := truncate(short); got != short {
		t.Errorf("truncate changed a short answer: %q", got)
	}

	ascii := strings.Repeat("a", MaxTelegramMessageLength+100)
	if got := truncate(ascii); len(got) != MaxTelegramMessageLength {
		t.Errorf("ascii truncation kept %d bytes, want %d", len(got), MaxTelegramMessageLength)
	}
}

func TestGetUnclosedTag(t *testing.T) {
	tests := []struct {
		markdown string
		want     string
	}{
		{"plain text", ""},
		{"some *bold* text", ""},
		{"dangling *bold", "*"},
		{"`inline code", "`"},
		{"```go\nfunc main() {}\n```", ""},
		{"```go\nfunc main() {", "```"},
		{"_italic_ and *bold*", ""},
		{"escaped \\* star", ""},
		{"*outer `inner` still open", "*"},
	}

	for _, tt := range tests {
		if got := GetUnclosedTag(tt.markdown); got != tt.want {
			t.Errorf("GetUnclosedTag(%q) = %q, want %q", tt.markdown, got, tt.want)
		}
	}
}

func TestFixMarkdown(t *testing.T) {
	if got := FixMarkdown("dangling *bold"); got != "dangling *bold*" {
		t.Errorf("FixMarkdown did not close tag: %q", got)
	}
	if got := FixMarkdown("all *good*"); got != "all *good*" {
		t.Errorf("FixMarkdown changed valid markdown: %q", got)
	}
	if !IsValid("all *good*") {
		t.Error("expected valid markdown")
	}
	if IsValid("broken `code") {
		t.Error("expected invalid markdown")
	}
}

func TestParseModeFor(t *testing.T) {
	if got := ParseModeFor("html"); got != tele.ModeHTML {
		t.Errorf("expected HTML mode, got %v", got)
	}
	if got := ParseModeFor("markdown"); got != tele.ModeMarkdown {
		t.Errorf("expected Markdown mode, got %v", got)
	}
	if got := ParseModeFor(""); got != tele.ModeDefault {
		t.Errorf("expected default mode, got %v", got)
	}
}
