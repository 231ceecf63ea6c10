package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type SchemaCmd struct{}

func NewSchemaCmd() *SchemaCmd {
	return &SchemaCmd{}
}

func (c *SchemaCmd) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the schema context given to the model for the active source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Orchestrator.SchemaSummary(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to build schema summary: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), summary)
			return err
		},
	}
}
