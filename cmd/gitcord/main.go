package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/gitcord/gitcord/config"
	"github.com/gitcord/gitcord/internal/api"
	"github.com/gitcord/gitcord/internal/auth"
	"github.com/gitcord/gitcord/internal/bridge"
	"github.com/gitcord/gitcord/internal/discord"
	"github.com/gitcord/gitcord/internal/journal"
	"github.com/gitcord/gitcord/internal/store"
	"github.com/gitcord/gitcord/internal/webhook"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to configuration file")
	createConfig := flag.Bool("init", false, "Create a default configuration file if it doesn't exist")
	journalDump := flag.Int("journal", 0, "Print the N most recent reconciliation journal entries and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *createConfig {
		if err := config.CreateDefaultConfig(*configPath); err != nil {
			logger.Error("failed to create default configuration", "error", err)
			os.Exit(1)
		}
		logger.Info("created default configuration", "path", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if *journalDump > 0 {
		if err := dumpJournal(cfg.JournalPath, *journalDump, logger); err != nil {
			logger.Error("failed to read journal", "path", cfg.JournalPath, "error", err)
			os.Exit(1)
		}
		return
	}

	key, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		logger.Error("failed to read private key", "path", cfg.PrivateKeyPath, "error", err)
		os.Exit(1)
	}

	tokens, err := auth.New(cfg.GitHubAppID, cfg.GitHubInstallationID, key)
	if err != nil {
		logger.Error("failed to initialize token manager", "error", err)
		os.Exit(1)
	}

	jnl, err := journal.Open(cfg.JournalPath, logger)
	if err != nil {
		logger.Error("failed to open journal", "path", cfg.JournalPath, "error", err)
		os.Exit(1)
	}
	defer jnl.Close()

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Error("failed to create discord session", "error", err)
		os.Exit(1)
	}

	gh := api.New(cfg.GitHubOwner, cfg.GitHubRepo, tokens)
	chat := discord.New(session, cfg.GuildID, cfg.ForumChannelID, logger)
	b := bridge.New(store.New(), gh, chat, jnl, logger, cfg.GuildID)
	chat.Attach(b)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := chat.Open(); err != nil {
		logger.Error("failed to connect to discord", "error", err)
		os.Exit(1)
	}
	defer chat.Close()

	if err := chat.LoadTags(ctx); err != nil {
		logger.Error("failed to load forum tags", "error", err)
		os.Exit(1)
	}
	if err := b.LoadState(ctx); err != nil {
		logger.Error("failed to rebuild correlation store", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /webhook", webhook.NewHandler([]byte(cfg.WebhookSecret), b, logger))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook server listening", "addr", cfg.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("webhook server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down webhook server", "error", err)
	}
}

// dumpJournal prints the most recent mirror failures, newest first,
// for manual reconciliation.
func dumpJournal(path string, n int, logger *slog.Logger) error {
	jnl, err := journal.Open(path, logger)
	if err != nil {
		return err
	}
	defer jnl.Close()

	entries, err := jnl.Recent(n)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("journal is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s | %s | %s\n    %s\n",
			e.CreatedAt.Format(time.RFC3339), e.Source, e.Action, e.ThreadURL, e.Detail)
	}
	return nil
}
