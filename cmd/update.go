package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/naka-gawa/recent-activity/internal/config"
	"github.com/naka-gawa/recent-activity/internal/domain"
	"github.com/naka-gawa/recent-activity/internal/gateway"
	"github.com/naka-gawa/recent-activity/internal/usecase"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	verbose, _ := cmd.Flags().GetBool("verbose")
	logger := log.New(io.Discard, "", log.LstdFlags) // Default: discard all logs.
	if verbose {
		logger.SetOutput(os.Stderr) // If verbose, log to standard error.
	}

	env, err := config.FromEnv()
	if err != nil {
		return err
	}
	settings, err := settingsFromFlags(cmd.Flags(), env)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	rules, err := config.LoadRules(settings.ConfigFile)
	if err != nil {
		return err
	}

	// Inject dependencies and run the main business logic.
	source, publisher, err := newGateways(settings, logger)
	if err != nil {
		return err
	}
	local := gateway.NewLocalFile("", logger)
	if settings.Local {
		publisher = local
	}
	updater := usecase.NewUpdater(source, local, publisher, logger)

	result, err := updater.Run(ctx, usecase.Input{
		Account:  settings.Username,
		Repo:     settings.Repo,
		Path:     settings.Filename,
		Host:     settings.Host,
		MaxLines: settings.MaxLines,
		Rules:    rules,
		Committer: domain.Committer{
			Name:  settings.CommitName,
			Email: settings.CommitEmail,
		},
		Message:          settings.CommitMessage,
		DryRun:           settings.DryRun,
		SkipUnknownKinds: settings.SkipUnknown,
	})
	if err != nil {
		return err
	}

	for _, line := range result.Lines {
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	switch {
	case result.Published:
		logger.Printf("Updated %s in %s.", settings.Filename, settings.Repo)
	case result.Changed:
		logger.Printf("%s would change; not published.", settings.Filename)
	default:
		logger.Printf("%s is up to date.", settings.Filename)
	}
	return nil
}

// newGateways builds the activity source and, when the run publishes, the platform content store.
func newGateways(s config.Settings, logger *log.Logger) (gateway.ActivitySource, gateway.ContentStore, error) {
	switch s.Platform {
	case config.PlatformGitLab:
		gl, err := gateway.NewGitLabGateway(gateway.GitLabOptions{Token: s.Token, APIURL: s.APIURL, Branch: s.Branch}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create GitLab gateway: %w", err)
		}
		if !s.Publishes() {
			return gl, nil, nil
		}
		return gl, gl, nil
	default:
		gh, err := gateway.NewGitHubGateway(gateway.GitHubOptions{Token: s.Token, APIURL: s.APIURL, Branch: s.Branch}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
		}
		if !s.Publishes() {
			return gh, nil, nil
		}
		return gh, gh, nil
	}
}

// addUpdateFlags registers the update flags. Defaults shown in help are the built-in ones;
// environment variables take effect for flags that are not given.
func addUpdateFlags(f *pflag.FlagSet) {
	f.String("username", "", "Account to fetch activity for (env INPUT_GH_USERNAME, GH_USERNAME)")
	f.String("filename", config.DefaultFilename, "File holding the activity section (env INPUT_TARGET_FILE)")
	f.Int("max-lines", config.DefaultMaxLines, "Maximum number of repositories in the digest (env INPUT_MAX_LINES)")
	f.String("repo", "", "Repository to commit to as owner/name; defaults to <username>/<username> (env INPUT_REPO_NAME)")
	f.Bool("test", false, "Dry run: print the digest without publishing (env INPUT_TEST)")
	f.String("cfg", "", "YAML file overriding event types, labels, markers and ignored repos (env INPUT_CONFIG_FILE)")
	f.String("commit-name", config.DefaultCommitName, "Committer name (env INPUT_COMMIT_NAME)")
	f.String("commit-email", config.DefaultCommitEmail, "Committer email (env INPUT_COMMIT_EMAIL)")
	f.String("commit-msg", config.DefaultCommitMessage, "Commit message (env INPUT_COMMIT_MSG)")
	f.String("platform", config.PlatformGitHub, "Hosting platform: github or gitlab (env INPUT_PLATFORM)")
	f.String("host", "", "Web host used in repository links; defaults per platform (env INPUT_HOST)")
	f.String("api-url", "", "API endpoint for self-hosted instances (env GITHUB_API_URL, GITLAB_API_URL)")
	f.String("branch", "", "Branch to read and commit to; defaults to the repository's default branch (env INPUT_BRANCH)")
	f.Bool("local", false, "Write the updated file locally instead of committing it (env INPUT_LOCAL)")
	f.Bool("skip-unknown", false, "Skip events of unknown kinds instead of failing (env INPUT_SKIP_UNKNOWN)")
}

// settingsFromFlags overrides s with every flag given on the command line.
func settingsFromFlags(f *pflag.FlagSet, s config.Settings) (config.Settings, error) {
	var err error
	str := func(name string, dst *string) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetString(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if err == nil && f.Changed(name) {
			*dst, err = f.GetBool(name)
		}
	}

	if f.Changed("platform") {
		platform, _ := f.GetString("platform")
		s.SetPlatform(platform)
	}

	str("username", &s.Username)
	str("filename", &s.Filename)
	str("repo", &s.Repo)
	str("cfg", &s.ConfigFile)
	str("commit-name", &s.CommitName)
	str("commit-email", &s.CommitEmail)
	str("commit-msg", &s.CommitMessage)
	str("host", &s.Host)
	str("api-url", &s.APIURL)
	str("branch", &s.Branch)
	boolean("test", &s.DryRun)
	boolean("local", &s.Local)
	boolean("skip-unknown", &s.SkipUnknown)
	if err == nil && f.Changed("max-lines") {
		s.MaxLines, err = f.GetInt("max-lines")
	}
	if err != nil {
		return s, domain.ConfigurationErrorf("invalid flag: %v", err)
	}
	return s, nil
}

func init() {
	addUpdateFlags(rootCmd.Flags())
}
