package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "voiceverify",
	Short: "Speaker-verification service: enroll, verify, and manage voiceprints",
	Long: `voiceverify runs a speaker-verification core: ECAPA-TDNN embedding
extraction, PLDA scoring with AS-Norm cohort normalization, and a
relational voiceprint store, exposed over HTTP.

  voiceverify serve          run the HTTP service
  voiceverify seed-cohort    populate the background cohort collection
  voiceverify migrate        apply relational and vector-store schema`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var flagDBPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "voiceprints.db", "path to the voiceprint SQLite database")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
