package schema

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/areed1192/tap-federal-reserve/internal/schema"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists the bundled stream ids",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := schema.LoadBundled()
			if err != nil {
				return err
			}
			for _, id := range registry.IDs() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
