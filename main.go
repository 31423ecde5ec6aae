package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zsprackett/flowcontrol/internal/api"
	"github.com/zsprackett/flowcontrol/internal/applog"
	"github.com/zsprackett/flowcontrol/internal/auth"
	"github.com/zsprackett/flowcontrol/internal/config"
	"github.com/zsprackett/flowcontrol/internal/db"
	"github.com/zsprackett/flowcontrol/internal/ui"
)

const (
	// eventRetention bounds how long received push events are kept.
	eventRetention = 30 * 24 * time.Hour
	pruneEvery     = 24 * time.Hour
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "flowcontrol",
		Short:         "Hospital queue client: patient ticket and admin flow dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file")

	rootCmd.AddCommand(patientCmd())
	rootCmd.AddCommand(adminCmd())
	rootCmd.AddCommand(adduserCmd())
	rootCmd.AddCommand(passwdCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(healthCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load config: %v\n", err)
		cfg = config.Defaults()
		config.ApplyEnv(&cfg)
	}
	return cfg
}

func openDB() (*db.DB, error) {
	dbPath := config.DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("database migration: %w", err)
	}
	return store, nil
}

func setupLogger(cfg config.Config, stderr bool) (*slog.Logger, io.Closer) {
	logger, closer, err := applog.Setup(applog.Options{
		Dir:    cfg.LogDir,
		Level:  cfg.LogLevel,
		Stderr: stderr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not init log file: %v\n", err)
		return slog.Default(), io.NopCloser(nil)
	}
	return logger, closer
}

// runUI is the shared setup of the interactive commands.
func runUI(run func(ctx context.Context, app *ui.App) error) error {
	cfg := loadConfig()
	if err := config.EnsureJWTSecret(configPath, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not persist JWT secret: %v\n", err)
	}

	logger, logCloser := setupLogger(cfg, false)
	defer logCloser.Close()

	store, err := openDB()
	if err != nil {
		return err
	}
	defer store.Close()

	pruneEventLog(store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := api.New(cfg.APIURL, applog.Component(logger, "api"))
	logger.Info("starting", "api", cfg.APIURL, "push", cfg.PushBaseURL())
	return run(ctx, ui.NewApp(store, client, cfg, logger))
}

// pruneEventLog trims the event log at most once per pruneEvery.
func pruneEventLog(store *db.DB, logger *slog.Logger) {
	last, err := store.EventsPrunedAt()
	if err != nil {
		logger.Warn("read prune time failed", "err", err)
	}
	if time.Since(last) < pruneEvery {
		return
	}
	n, err := store.PruneEvents(time.Now().Add(-eventRetention))
	if err != nil {
		logger.Warn("prune event log failed", "err", err)
		return
	}
	logger.Info("pruned event log", "removed", n, "previous", last)
}

func patientCmd() *cobra.Command {
	var patientID string
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Check in and follow your queue ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(func(ctx context.Context, app *ui.App) error {
				return app.RunPatient(ctx, patientID)
			})
		},
	}
	cmd.Flags().StringVar(&patientID, "id", "", "patient id to check in as")
	return cmd
}

func adminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "admin",
		Short: "Open the flow dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(func(ctx context.Context, app *ui.App) error {
				return app.RunAdmin(ctx)
			})
		},
	}
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Print(prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	return pw, err
}

func adduserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adduser <username>",
		Short: "Create a dashboard admin account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			pw, err := readPassword(fmt.Sprintf("Password for %s: ", username))
			if err != nil {
				return err
			}
			store, err := openDB()
			if err != nil {
				return err
			}
			defer store.Close()
			if _, err := auth.AddUser(store, username, pw); err != nil {
				return fmt.Errorf("creating account: %w", err)
			}
			fmt.Printf("Account created: %s\n", username)
			return nil
		},
	}
}

func passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <username>",
		Short: "Change a dashboard admin password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			pw, err := readPassword(fmt.Sprintf("New password for %s: ", username))
			if err != nil {
				return err
			}
			store, err := openDB()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := auth.SetPassword(store, username, pw); err != nil {
				return err
			}
			fmt.Printf("Password updated: %s\n", username)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var (
		limit    int
		clientID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently received push events",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openDB()
			if err != nil {
				return err
			}
			defer store.Close()
			events, err := store.RecentEvents(clientID, limit)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No events received yet.")
				return nil
			}
			for _, e := range events {
				fmt.Printf("%-16s %-22s %-20s %s\n", humanize.Time(e.Ts), e.ClientID, e.EventType, e.Payload)
			}
			if at, err := store.EventsPrunedAt(); err == nil && !at.IsZero() {
				fmt.Printf("\nEvents older than %d days are pruned; last pruned %s.\n",
					int(eventRetention/(24*time.Hour)), humanize.Time(at))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of events to show")
	cmd.Flags().StringVar(&clientID, "client", "", "only events for this client id, e.g. patient_P042")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			logger, closer := setupLogger(cfg, false)
			defer closer.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), api.DefaultTimeout)
			defer cancel()
			resp, err := api.New(cfg.APIURL, logger).Health(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", cfg.APIURL, err)
			}
			fmt.Printf("%s: %s (%s)\n", cfg.APIURL, resp.Status, resp.Timestamp)
			return nil
		},
	}
}
