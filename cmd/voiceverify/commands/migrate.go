package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/arcvoice/voiceverify/pkg/cli"
	"github.com/arcvoice/voiceverify/pkg/embedding"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply relational schema and ensure vector collections exist",
	Long: `migrate opens the voiceprint SQLite database (applying its schema if
needed) and ensures both the enrolled and cohort collections exist in the
vector store with the expected dimension and distance metric.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	d, err := wire(ctx, flagDBPath)
	if err != nil {
		return err
	}
	defer d.records.Close()
	defer d.extractor.Close()

	if err := d.cohort.EnsureCollection(ctx, d.cfg.EnrolledCollection, embedding.Dimension); err != nil {
		return err
	}
	if err := d.cohort.EnsureCollection(ctx, d.cfg.CohortCollection, embedding.Dimension); err != nil {
		return err
	}

	cli.PrintSuccess("database %q migrated; collections %q and %q ready", flagDBPath, d.cfg.EnrolledCollection, d.cfg.CohortCollection)
	return nil
}
