package schema

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/areed1192/tap-federal-reserve/internal/parquet"
	"github.com/areed1192/tap-federal-reserve/internal/schema"
)

func newParquetCommand() *cobra.Command {
	var stream string

	var cmd = &cobra.Command{
		Use:   "parquet",
		Short: "Prints the parquet fields derived from a stream schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := schema.LoadBundled()
			if err != nil {
				return err
			}
			s, err := registry.Get(stream)
			if err != nil {
				return err
			}

			fields, err := parquet.FromJSONSchema(s.Document)
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(map[string]any{"fields": fields}); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().StringVar(&stream, "stream", "federal_reserve_series", "Stream id of the schema to convert")

	return cmd
}
