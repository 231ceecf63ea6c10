package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type SourcesCmd struct{}

func NewSourcesCmd() *SourcesCmd {
	return &SourcesCmd{}
}

func (c *SourcesCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List configured data sources and ingested documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return fmt.Errorf("failed to get json flag: %w", err)
			}
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			docs, err := documentCounts(cmd.Context(), cfg.Knowledge.VectorDBPath)
			if err != nil {
				log.Warn("retrieval: failed to read knowledge base", "error", err)
			}

			listing := newSourceListing(cfg, docs)
			if asJSON {
				return encodeJSON(cmd.OutOrStdout(), listing)
			}
			renderSources(cmd.OutOrStdout(), listing)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "print as JSON")
	return cmd
}
