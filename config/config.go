package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// EnvDiscordToken overrides the Discord bot token from the config file.
	EnvDiscordToken = "GITCORD_DISCORD_TOKEN"
	// EnvWebhookSecret overrides the GitHub webhook secret from the config file.
	EnvWebhookSecret = "GITCORD_WEBHOOK_SECRET"
)

// Config represents the application configuration
type Config struct {
	// Discord bot token (can be set via GITCORD_DISCORD_TOKEN env var)
	DiscordToken string `json:"discord_token"`

	// Discord guild and forum channel being mirrored
	GuildID        string `json:"guild_id"`
	ForumChannelID string `json:"forum_channel_id"`

	// GitHub repository receiving the mirror
	GitHubOwner string `json:"github_owner"`
	GitHubRepo  string `json:"github_repo"`

	// GitHub App identity used for the installation token exchange
	GitHubAppID          int64  `json:"github_app_id"`
	GitHubInstallationID int64  `json:"github_installation_id"`
	PrivateKeyPath       string `json:"private_key_path"`

	// Webhook endpoint
	WebhookSecret string `json:"webhook_secret"`
	ListenAddr    string `json:"listen_addr"`

	// Path to the SQLite reconciliation journal
	JournalPath string `json:"journal_path"`
}

// LoadConfig loads the configuration from a JSON file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if envToken := os.Getenv(EnvDiscordToken); envToken != "" {
		config.DiscordToken = envToken
	}
	if envSecret := os.Getenv(EnvWebhookSecret); envSecret != "" {
		config.WebhookSecret = envSecret
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":5001"
	}
	if config.JournalPath == "" {
		config.JournalPath = "gitcord_journal.db"
	}
	if config.PrivateKeyPath == "" {
		config.PrivateKeyPath = "key.pem"
	}

	// Make file paths absolute relative to the config file's directory
	configDir := filepath.Dir(path)
	if !filepath.IsAbs(config.JournalPath) {
		config.JournalPath = filepath.Join(configDir, config.JournalPath)
	}
	if !filepath.IsAbs(config.PrivateKeyPath) {
		config.PrivateKeyPath = filepath.Join(configDir, config.PrivateKeyPath)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch {
	case c.DiscordToken == "":
		return fmt.Errorf("missing discord_token (or %s)", EnvDiscordToken)
	case c.GuildID == "":
		return fmt.Errorf("missing guild_id")
	case c.ForumChannelID == "":
		return fmt.Errorf("missing forum_channel_id")
	case c.GitHubOwner == "" || c.GitHubRepo == "":
		return fmt.Errorf("missing github_owner or github_repo")
	case c.GitHubAppID == 0 || c.GitHubInstallationID == 0:
		return fmt.Errorf("missing github_app_id or github_installation_id")
	}
	return nil
}

// SaveConfig saves the configuration to a JSON file
func SaveConfig(config *Config, path string) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// CreateDefaultConfig creates a default configuration file if it doesn't exist
func CreateDefaultConfig(path string) error {
	// Check if the file already exists
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, don't overwrite
	}

	config := &Config{
		DiscordToken:         "",
		GuildID:              "",
		ForumChannelID:       "",
		GitHubOwner:          "example",
		GitHubRepo:           "repo",
		GitHubAppID:          0,
		GitHubInstallationID: 0,
		PrivateKeyPath:       "key.pem",
		WebhookSecret:        "",
		ListenAddr:           ":5001",
		JournalPath:          "gitcord_journal.db",
	}

	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return SaveConfig(config, path)
}
