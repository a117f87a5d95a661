package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/linkograph/internal/service"
	"github.com/raphaelgruber/linkograph/internal/similarity"
)

var similarityCmd = &cobra.Command{
	Use:   "similarity <text-a> <text-b>",
	Short: "Print the cosine similarity of two texts",
	Long: `Embed two texts with the configured provider and print their cosine similarity.

Useful for checking a provider and model before linking a whole collection.

Examples:
  linkograph similarity "open the door" "close the door"`,
	Args: cobra.ExactArgs(2),
	RunE: runSimilarity,
}

func runSimilarity(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := newEmbedder(ctx)
	if err != nil {
		return err
	}

	score, err := service.NewLinkService(e, similarity.NewEngine(1), nil).Similarity(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", score)
	return nil
}
