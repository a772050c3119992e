package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/arcvoice/voiceverify/pkg/audioload"
	"github.com/arcvoice/voiceverify/pkg/cli"
	"github.com/arcvoice/voiceverify/pkg/embedding"
)

var seedCohortCmd = &cobra.Command{
	Use:   "seed-cohort <dir>",
	Short: "Populate the background cohort collection from a directory of audio files",
	Long: `seed-cohort walks a directory of audio files, embeds each one, and
upserts it into the background cohort collection used by AS-Norm.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeedCohort,
}

func init() {
	rootCmd.AddCommand(seedCohortCmd)
}

func runSeedCohort(cmd *cobra.Command, args []string) error {
	dir := args[0]
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read cohort directory: %w", err)
	}

	ctx := context.Background()
	d, err := wire(ctx, flagDBPath)
	if err != nil {
		return err
	}
	defer d.records.Close()
	defer d.extractor.Close()

	if err := d.cohort.EnsureCollection(ctx, d.cfg.CohortCollection, embedding.Dimension); err != nil {
		return err
	}

	styles := cli.DefaultStyles
	fmt.Println(styles.Title.Render("seed-cohort"))

	var seeded, skipped int
	for i, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Println(styles.Error.Render(fmt.Sprintf("  skip %s: %v", entry.Name(), err)))
			skipped++
			continue
		}

		samples, err := audioload.Load(ctx, data, entry.Name())
		if err != nil {
			fmt.Println(styles.Error.Render(fmt.Sprintf("  skip %s: %v", entry.Name(), err)))
			skipped++
			continue
		}

		vec, err := d.extractor.Extract(ctx, samples)
		if err != nil {
			fmt.Println(styles.Error.Render(fmt.Sprintf("  skip %s: %v", entry.Name(), err)))
			skipped++
			continue
		}

		payload := map[string]string{
			"source": entry.Name(),
			"index":  strconv.Itoa(i),
		}
		if err := d.cohort.Upsert(ctx, d.cfg.CohortCollection, int64(i), vec, payload); err != nil {
			fmt.Println(styles.Error.Render(fmt.Sprintf("  skip %s: %v", entry.Name(), err)))
			skipped++
			continue
		}

		fmt.Printf("  %s %s\n", styles.Label.Render("+"), entry.Name())
		seeded++
	}

	fmt.Println(styles.Dim.Render(fmt.Sprintf("seeded %d, skipped %d", seeded, skipped)))
	cli.PrintSuccess(fmt.Sprintf("cohort collection %q now has %d new entries", d.cfg.CohortCollection, seeded))
	return nil
}
