// Package cli provides the command-line interface for linkograph.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/linkograph/internal/config"
	"github.com/raphaelgruber/linkograph/internal/embedding"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string

	// Loaded once per invocation
	cfg      config.Config
	runID    string
	closeLog = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "linkograph",
	Short: "Link the moves of recorded episodes by semantic similarity",
	Long: `Linkograph embeds the text of every move in an episode and records the cosine
similarity of each move to every earlier move of the same episode.

The input is a JSON (or YAML) mapping from episode ID to a list of moves, each
with a "text" field. The output keeps the moves untouched and adds a
lower-triangular link table per episode.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config for help and completion commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.HasParent() && cmd.Parent().Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Level()
		if verbose {
			level = slog.LevelDebug
		}
		runID = uuid.NewString()[:8]

		var logger *slog.Logger
		logger, closeLog = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger.With("run", runID))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
		}
	},
}

// newEmbedder creates the process's single embedding provider handle.
func newEmbedder(ctx context.Context) (embedding.Embedder, error) {
	e, err := embedding.New(ctx, cfg.EmbeddingConfig())
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	slog.Debug("embedder ready", "provider", cfg.EmbedProvider, "model", e.Model(), "dimension", e.Dimension())
	return e, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Interrupts cancel the running command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return withHint(rootCmd.ExecuteContext(ctx))
}

// withHint adds what to check when the provider rejected the run for good.
func withHint(err error) error {
	if errors.Is(err, embedding.ErrFatalAPI) {
		return fmt.Errorf("%w\nhint: check the provider's API key or credentials and the account's billing and quota", err)
	}
	return err
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (.toml, .yaml or .yml)")

	// Add subcommands
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(similarityCmd)
}
