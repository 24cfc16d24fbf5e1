package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgsearch-go/internal/app"
	"tgsearch-go/internal/config"
	"tgsearch-go/internal/search"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// a.Close(). operation identifies the CLI command being run.
func newApp(ctx context.Context, operation string) (*app.App, error) {
	cfg, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func readConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

func passphraseFromEnv() (string, error) {
	pass := os.Getenv("TGSEARCH_PASSPHRASE")
	if pass == "" {
		return "", fmt.Errorf("TGSEARCH_PASSPHRASE is not set")
	}
	return pass, nil
}

var rootCmd = &cobra.Command{
	Use:   "tgsearch",
	Short: "Searchable index over a Telegram channel backup",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init CHANNEL_DIR",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(args[0], defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Channel Dir: %s\n", cfg.ChannelDir)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Channel Dir:          %s\n", cfg.ChannelDir)
		fmt.Printf("Discussion Group Dir: %s\n", cfg.DiscussionGroupDir)
		fmt.Printf("Base Dir:             %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:              %s\n", cfg.LogDir)
		fmt.Printf("OCR Languages:        %v\n", cfg.OCR.Languages)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage snapshot encryption keys",
}

var configKeysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a snapshot key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		pass, err := passphraseFromEnv()
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "SetupEncryption")
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		if err := a.SetupEncryption(pass); err != nil {
			return fmt.Errorf("generating key pair: %w", err)
		}

		fmt.Println("Key pair generated.")
		return nil
	},
}

// ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Index new and changed messages from the backup",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Ingest")
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		stats, err := a.Ingest(cmd.Context())
		if err != nil {
			a.MarkFailed()
			return fmt.Errorf("ingest failed: %w", err)
		}

		fmt.Printf("Indexed %d day(s)\n", stats.DaysParsed)
		return nil
	},
}

// recognize command
var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Run OCR over unprocessed media",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Recognize")
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		count, err := a.Recognize(cmd.Context())
		if err != nil {
			a.MarkFailed()
			return fmt.Errorf("recognition failed: %w", err)
		}

		fmt.Printf("Recognized %d media\n", count)
		return nil
	},
}

// run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest the backup, then run OCR",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Run")
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		stats, err := a.Ingest(cmd.Context())
		if err != nil {
			a.MarkFailed()
			return fmt.Errorf("ingest failed: %w", err)
		}
		fmt.Printf("Indexed %d day(s)\n", stats.DaysParsed)

		count, err := a.Recognize(cmd.Context())
		if err != nil {
			a.MarkFailed()
			return fmt.Errorf("recognition failed: %w", err)
		}
		fmt.Printf("Recognized %d media\n", count)
		return nil
	},
}

// search command
var searchCmd = &cobra.Command{
	Use:   "search PROMPT",
	Short: "Search indexed messages and media",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, _ := cmd.Flags().GetString("mode")
		scope, _ := cmd.Flags().GetString("scope")
		offset, _ := cmd.Flags().GetInt("offset")
		count, _ := cmd.Flags().GetInt("count")

		a, err := newApp(cmd.Context(), "Search")
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		items, err := a.Search(cmd.Context(), search.Query{
			Prompt: args[0],
			Offset: offset,
			Count:  count,
			Mode:   search.Mode(mode),
			Scope:  search.Scope(scope),
		})
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No results.")
			return nil
		}

		for _, item := range items {
			text := item.Text
			if len(text) > 80 {
				text = text[:77] + "..."
			}
			fmt.Printf("%s  %-7s  %s\n  %s\n",
				item.Date.Format("2006-01-02"),
				string(item.Kind),
				a.Link(item),
				text,
			)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View index run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "History")
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		runs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No index runs recorded.")
			return nil
		}

		for _, run := range runs {
			duration := ""
			if run.FinishedAt.Valid {
				d := run.FinishedAt.Time.Sub(run.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-10s  %s\n",
				run.ID,
				run.Operation,
				run.StartedAt.Format("2006-01-02 15:04:05"),
				run.Status,
				duration,
			)
		}
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the index from the archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := readConfig()
		if err != nil {
			return err
		}

		pass := os.Getenv("TGSEARCH_PASSPHRASE")

		path, err := app.RestoreArchive(cmd.Context(), cfg, pass)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Index restored to %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	configKeysCmd.AddCommand(configKeysInitCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(recognizeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().String("mode", "text", "Search mode: text or recognition")
	searchCmd.Flags().String("scope", "both", "Limit results to post, comment or both")
	searchCmd.Flags().Int("offset", 0, "Skip this many results")
	searchCmd.Flags().IntP("count", "c", 20, "Maximum number of results")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	rootCmd.AddCommand(restoreCmd)
}
