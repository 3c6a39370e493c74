package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

type ChatMode struct {
	Name           string `yaml:"name"`
	WelcomeMessage string `yaml:"welcome_message"`
	PromptStart    string `yaml:"prompt_start"`
	ParseMode      string `yaml:"parse_mode"`
}

type ModelInfo struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Provider    string `yaml:"provider"`
}

type ModelsConfig struct {
	AvailableTextModels []string             `yaml:"available_text_models"`
	Info                map[string]ModelInfo `yaml:"info"`
}

type Config struct {
	NewDialogTimeout       int64        `yaml:"new_dialog_timeout"`
	EnableMessageStreaming bool         `yaml:"enable_message_streaming"`
	NChatModesPerPage      int          `yaml:"n_chat_modes_per_page"`
	AllowedUserIds         []int64      `yaml:"allowed_user_ids"`
	Models                 ModelsConfig `yaml:"models"`

	ChatModes map[string]ChatMode `yaml:"-"`
}

// LoadConfig reads application.yaml and chat_modes.yaml from dir.
func LoadConfig(dir string) (*Config, error) {
	var config Config
	if err := readYaml(filepath.Join(dir, "application.yaml"), &config); err != nil {
		return nil, err
	}

	var chatModes struct {
		ChatModes map[string]ChatMode `yaml:"chat_modes"`
	}
	if err := readYaml(filepath.Join(dir, "chat_modes.yaml"), &chatModes); err != nil {
		return nil, err
	}
	config.ChatModes = chatModes.ChatModes

	if config.NewDialogTimeout == 0 {
		config.NewDialogTimeout = 600
	}
	if config.NChatModesPerPage == 0 {
		config.NChatModesPerPage = 5
	}
	if len(config.Models.AvailableTextModels) == 0 {
		return nil, fmt.Errorf("config: no text models configured")
	}
	if len(config.ChatModes) == 0 {
		return nil, fmt.Errorf("config: no chat modes configured")
	}

	return &config, nil
}

func readYaml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error parsing %s: %w", path, err)
	}
	return nil
}

// DefaultModel is the first configured text model, assigned to new users.
func (c *Config) DefaultModel() string {
	return c.Models.AvailableTextModels[0]
}

// ChatModeKeys returns chat mode names in a stable order for menu rendering.
func (c *Config) ChatModeKeys() []string {
	keys := make([]string, 0, len(c.ChatModes))
	for key := range c.ChatModes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
