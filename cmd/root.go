// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/naka-gawa/recent-activity/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Exit statuses.
const (
	exitFailure  = 1
	exitConflict = 3
)

var rootCmd = &cobra.Command{
	Use:   "recent-activity",
	Short: "Writes a digest of recent GitHub activity into a README section.",
	Long: `recent-activity fetches a user's recent public activity, collates it into a short
per-repository digest, and replaces the section between two markers in a file with it.
The updated file is committed back to the repository unless --test or --local is given.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A .env file is optional and never overrides variables already set.
		_ = godotenv.Load()
	},
	RunE: runUpdate,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode lets automation tell a lost race, which is worth re-running, from other failures.
func exitCode(err error) int {
	if errors.Is(err, domain.ErrPublishConflict) {
		return exitConflict
	}
	return exitFailure
}

// underscoreToDash accepts --max_lines style spellings for every flag.
func underscoreToDash(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.SetGlobalNormalizationFunc(underscoreToDash)
}
