package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/linkograph/internal/store"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <source> [episode-id]",
	Short: "Show a linked collection or one episode's link table",
	Long: `Show a linked collection written by "link".

Without an episode ID, lists the episodes with their move and pair counts.
With an episode ID, prints the episode's moves and its link table.

The source is any output "link" accepts: a JSON or YAML file, sqlite://,
postgres:// or surreal+ws:// URL. Sources are only read: a missing SQLite
file is an error and no schema is created.

Examples:
  linkograph show episodes.links.json
  linkograph show sqlite://links.db ep1
  linkograph show episodes.links.yaml ep1 --json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print as JSON")
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	src, err := store.OpenRead(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			slog.Warn("close source", "source", src.String(), "error", err)
		}
	}()

	collection, err := src.Load(ctx)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		if showJSON {
			return printJSON(w, collection)
		}
		if len(collection) == 0 {
			fmt.Fprintln(w, "No episodes.")
			return nil
		}
		fmt.Fprintln(w, episodesTable(collection))
		return nil
	}

	ep, ok := collection.Get(args[1])
	if !ok {
		return fmt.Errorf("episode not found: %s", args[1])
	}
	if showJSON {
		return printJSON(w, ep)
	}

	fmt.Fprintf(w, "Episode %s: %d moves, %d pairs\n\n", ep.ID, len(ep.Moves), ep.Links.Pairs())
	if len(ep.Moves) == 0 {
		return nil
	}
	fmt.Fprintln(w, movesTable(ep))
	if ep.Links.Pairs() > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, scoresTable(ep.Links))
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return nil
}
