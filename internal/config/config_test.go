package config

import (
	"os"
	"path/filepath"
	"testing"
)

const applicationFixture = `new_dialog_timeout: 300
enable_message_streaming: true
n_chat_modes_per_page: 2
allowed_user_ids: [123, 456]

models:
  available_text_models:
    - gemini-1.5-flash
    - gemini-1.5-pro
  info:
    gemini-1.5-flash:
      name: Gemini 1.5 Flash
      description: Fast model
      provider: gemini
`

const chatModesFixture = `chat_modes:
  assistant:
    name: Assistant
    welcome_message: Hi!
    prompt_start: You are a helpful assistant.
    parse_mode: html
  code_assistant:
    name: Code Assistant
    welcome_message: Hello!
    prompt_start: You write code.
    parse_mode: markdown
`

func writeFixtures(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "application.yaml"), []byte(applicationFixture), 0644); err != nil {
		t.Fatalf("failed to write application.yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "chat_modes.yaml"), []byte(chatModesFixture), 0644); err != nil {
		t.Fatalf("failed to write chat_modes.yaml: %v", err)
	}
	return dir
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeFixtures(t))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.NewDialogTimeout != 300 {
		t.Errorf("expected timeout 300, got %d", cfg.NewDialogTimeout)
	}
	if !cfg.EnableMessageStreaming {
		t.Error("expected streaming enabled")
	}
	if len(cfg.AllowedUserIds) != 2 || cfg.AllowedUserIds[0] != 123 {
		t.Errorf("unexpected allowed user ids: %v", cfg.AllowedUserIds)
	}
	if cfg.DefaultModel() != "gemini-1.5-flash" {
		t.Errorf("expected first configured model as default, got %q", cfg.DefaultModel())
	}
	if cfg.Models.Info["gemini-1.5-flash"].Provider != "gemini" {
		t.Errorf("unexpected model info: %+v", cfg.Models.Info)
	}

	mode, ok := cfg.ChatModes["assistant"]
	if !ok {
		t.Fatal("assistant chat mode missing")
	}
	if mode.PromptStart != "You are a helpful assistant." {
		t.Errorf("unexpected prompt start: %q", mode.PromptStart)
	}

	keys := cfg.ChatModeKeys()
	if len(keys) != 2 || keys[0] != "assistant" || keys[1] != "code_assistant" {
		t.Errorf("expected stable sorted keys, got %v", keys)
	}
}

func TestLoadConfigMissingDir(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing config dir")
	}
}

func TestLoadConfigRejectsEmptyModelTable(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "application.yaml"), []byte("models:\n  available_text_models: []\n"), 0644); err != nil {
		t.Fatalf("failed to write application.yaml: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "chat_modes.yaml"), []byte(chatModesFixture), 0644); err != nil {
		t.Fatalf("failed to write chat_modes.yaml: %v", err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected error for empty model table")
	}
}
