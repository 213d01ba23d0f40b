package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ames0k0/issuetracker/internal/bot"
	"github.com/ames0k0/issuetracker/internal/gateway"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the bot",
	Long: `Start the bot: open the bookkeeping database, connect to Telegram,
and long-poll for updates until interrupted.

Credentials come from the config file or the environment:
  ISSUETRACKER_TELEGRAM_TOKEN  Telegram bot token
  ISSUETRACKER_GITHUB_TOKEN    GitHub API token`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRun(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch viper.GetString("log.level") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runRun(ctx context.Context) error {
	tgToken := viper.GetString("telegram.token")
	if tgToken == "" {
		return fmt.Errorf("telegram token is not configured (ISSUETRACKER_TELEGRAM_TOKEN)")
	}
	ghToken := viper.GetString("github.token")
	if ghToken == "" {
		return fmt.Errorf("github token is not configured (ISSUETRACKER_GITHUB_TOKEN)")
	}

	log := newLogger()

	s, err := getStore()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	transport, err := bot.NewTelegram(tgToken, log)
	if err != nil {
		return err
	}

	b := bot.New(s, gateway.NewGitHubGateway(ghToken), transport, bot.Options{
		CleanupDelay: viper.GetDuration("bot.cleanup_delay"),
		SessionTTL:   viper.GetDuration("bot.session_ttl"),
		Logger:       log,
	})

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("bot started", "version", buildVersion)
	err = transport.Run(ctx, b.HandleEvent)

	// Let in-flight transient-message deletions finish before closing.
	b.Flush()
	if err != nil && ctx.Err() != nil {
		log.Info("bot stopped")
		return nil
	}
	return err
}
