// Package main is the entry point for the salesmind CLI: a conversational
// sales assistant with an interactive chat, an HTTP server, and data
// seeding over a local SQLite store.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/veract/salesmind/internal/config"
	"github.com/veract/salesmind/internal/handlers"
	"github.com/veract/salesmind/internal/logging"
	"github.com/veract/salesmind/internal/nlu"
	"github.com/veract/salesmind/internal/orchestrator"
	"github.com/veract/salesmind/internal/router"
	"github.com/veract/salesmind/internal/server"
	"github.com/veract/salesmind/internal/session"
	"github.com/veract/salesmind/internal/store"
	"github.com/veract/salesmind/internal/validate"
)

var version = "0.1.0"

var (
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	faintStyle     = lipgloss.NewStyle().Faint(true)
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "salesmind",
		Short:   "Conversational sales assistant",
		Long:    "salesmind manages products, sales, and vendors through natural-language conversation.",
		Version: version,
	}
	rootCmd.AddCommand(chatCmd(), serveCmd(), seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds the wired components shared by the chat and serve commands.
type app struct {
	cfg      *config.Config
	db       *store.DB
	rt       *router.Router
	sessions *session.Manager
	orch     *orchestrator.Orchestrator
}

func buildApp(console bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel, console)

	db, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	providerCfg := nlu.DefaultConfig(cfg.Classifier.Provider)
	if cfg.Classifier.Endpoint != "" {
		providerCfg.Endpoint = cfg.Classifier.Endpoint
	}
	if cfg.Classifier.Model != "" {
		providerCfg.Model = cfg.Classifier.Model
	}
	if cfg.Classifier.TimeoutSeconds > 0 {
		providerCfg.Timeout = cfg.Classifier.Timeout()
	}
	providerCfg.APIKey = cfg.Classifier.APIKey
	if providerCfg.APIKey == "" {
		providerCfg.APIKey = os.Getenv("GROQ_API_KEY")
	}

	extractor := nlu.NewExtractor(nlu.NewGroqProvider(providerCfg),
		nlu.WithModel(providerCfg.Model),
		nlu.WithMaxRetries(cfg.Classifier.MaxRetries),
		nlu.WithKeywordFallback(cfg.Classifier.KeywordFallback),
	)

	rt := router.New(validate.NewEngine(db),
		router.WithThresholds(cfg.Router.ThresholdLow, cfg.Router.ThresholdHigh))

	sessions := session.NewManager(
		session.WithIdleTimeout(cfg.Session.IdleTimeout()),
		session.WithHistoryWindow(cfg.Session.HistoryWindow),
		session.WithSnapshots(db),
	)

	return &app{
		cfg:      cfg,
		db:       db,
		rt:       rt,
		sessions: sessions,
		orch:     orchestrator.New(sessions, extractor, rt, handlers.NewRegistry(db)),
	}, nil
}

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive assistant session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(true)
			if err != nil {
				return err
			}
			defer a.db.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.sessions.StartSweeper(ctx, time.Minute)

			sessionID := uuid.NewString()
			fmt.Println(noticeStyle.Render("salesmind " + version))
			fmt.Println(faintStyle.Render("Ask about products, sales, vendors, or analytics. Type /reset to start over, /quit to exit."))

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print(promptStyle.Render("you> "))
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/quit", "/exit":
					fmt.Println(faintStyle.Render("bye"))
					return nil
				case "/reset":
					a.orch.Reset(ctx, sessionID)
					fmt.Println(noticeStyle.Render("Conversation reset."))
					continue
				}

				resp, err := a.orch.Submit(ctx, sessionID, line)
				if err != nil {
					fmt.Println(noticeStyle.Render("Something went wrong, please try again."))
					log.Error().Err(err).Msg("turn failed")
					continue
				}
				fmt.Println(assistantStyle.Render("assistant> ") + resp.Text)
				if resp.Status != orchestrator.StatusIdle {
					fmt.Println(faintStyle.Render("(" + string(resp.Status) + ")"))
				}
			}
			return scanner.Err()
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(false)
			if err != nil {
				return err
			}
			defer a.db.Close()

			if addr == "" {
				addr = a.cfg.Server.Address
			}

			srv := server.New(a.orch, a.rt, a.db)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.sessions.StartSweeper(ctx, time.Minute)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Listen(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				log.Info().Msg("shutting down")
				return srv.Shutdown()
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the starter catalogue into the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(true)
			if err != nil {
				return err
			}
			defer a.db.Close()

			if err := a.db.Seed(cmd.Context()); err != nil {
				return fmt.Errorf("seed store: %w", err)
			}
			fmt.Println(noticeStyle.Render("Starter catalogue loaded."))
			return nil
		},
	}
}
