package cli

import (
	"fmt"

	"github.com/malbeclabs/datachat/internal/app"
	"github.com/spf13/cobra"
)

type IngestCmd struct{}

func NewIngestCmd() *IngestCmd {
	return &IngestCmd{}
}

func (c *IngestCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [dir|s3://bucket/prefix]",
		Short: "Chunk, embed and store markdown documents in the knowledge base",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			target := a.Config().Knowledge.DocsDir
			if len(args) == 1 {
				target = args[0]
			}
			src, err := app.DocumentSource(ctx, target)
			if err != nil {
				return err
			}

			ing, err := a.NewIngester()
			if err != nil {
				return err
			}
			defer ing.Close()

			stats, err := ing.Ingest(ctx, src)
			if err != nil {
				return fmt.Errorf("failed to ingest %s: %w", src.Name(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d documents from %s: %d chunks stored, %d replaced\n",
				stats.Documents, src.Name(), stats.Chunks, stats.Replaced)
			return nil
		},
	}
	return cmd
}
