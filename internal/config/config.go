// Package config resolves run settings from the environment and loads the rules file.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/naka-gawa/recent-activity/internal/domain"
)

// Supported hosting platforms.
const (
	PlatformGitHub = "github"
	PlatformGitLab = "gitlab"
)

// Settings holds all settings for a single run.
type Settings struct {
	Username   string
	Filename   string
	MaxLines   int
	Repo       string
	ConfigFile string
	Token      string

	CommitName    string
	CommitEmail   string
	CommitMessage string

	Platform string
	Host     string
	APIURL   string
	Branch   string

	DryRun      bool
	Local       bool
	SkipUnknown bool
}

// Built-in defaults.
const (
	DefaultFilename      = "README.md"
	DefaultMaxLines      = 5
	DefaultCommitName    = "github-actions[bot]"
	DefaultCommitEmail   = "41898282+github-actions[bot]@users.noreply.github.com"
	DefaultCommitMessage = "chore: update README with recent activity"
)

// FromEnv returns the built-in defaults overridden by any environment variables that are set.
// A variable that is set but does not parse is an ErrConfiguration.
func FromEnv() (Settings, error) {
	s := Settings{
		Username:      getenv("INPUT_GH_USERNAME", os.Getenv("GH_USERNAME")),
		Filename:      getenv("INPUT_TARGET_FILE", DefaultFilename),
		Repo:          os.Getenv("INPUT_REPO_NAME"),
		ConfigFile:    os.Getenv("INPUT_CONFIG_FILE"),
		CommitName:    getenv("INPUT_COMMIT_NAME", DefaultCommitName),
		CommitEmail:   getenv("INPUT_COMMIT_EMAIL", DefaultCommitEmail),
		CommitMessage: getenv("INPUT_COMMIT_MSG", DefaultCommitMessage),
		Host:          os.Getenv("INPUT_HOST"),
		Branch:        os.Getenv("INPUT_BRANCH"),
	}
	var err error
	if s.MaxLines, err = getenvInt("INPUT_MAX_LINES", DefaultMaxLines); err != nil {
		return s, err
	}
	if s.DryRun, err = getenvBool("INPUT_TEST", false); err != nil {
		return s, err
	}
	if s.Local, err = getenvBool("INPUT_LOCAL", false); err != nil {
		return s, err
	}
	if s.SkipUnknown, err = getenvBool("INPUT_SKIP_UNKNOWN", false); err != nil {
		return s, err
	}
	s.SetPlatform(getenv("INPUT_PLATFORM", PlatformGitHub))
	return s, nil
}

// SetPlatform switches the platform and takes the token and API URL from that platform's
// environment variables.
func (s *Settings) SetPlatform(platform string) {
	s.Platform = strings.ToLower(platform)
	switch s.Platform {
	case PlatformGitLab:
		s.Token = os.Getenv("GITLAB_TOKEN")
		s.APIURL = os.Getenv("GITLAB_API_URL")
	default:
		s.Token = getenv("INPUT_GH_TOKEN", os.Getenv("GITHUB_TOKEN"))
		s.APIURL = os.Getenv("GITHUB_API_URL")
	}
}

// Validate checks the settings and fills in values derived from others.
// Every failure is an ErrConfiguration and is reported before any network call.
func (s *Settings) Validate() error {
	if s.Username == "" {
		return errors.WithHint(
			domain.ConfigurationErrorf("username is required"),
			"set INPUT_GH_USERNAME or pass --username",
		)
	}
	if s.MaxLines <= 0 {
		return domain.ConfigurationErrorf("max lines must be positive, got %d", s.MaxLines)
	}
	if s.Filename == "" {
		return domain.ConfigurationErrorf("filename must not be empty")
	}

	switch s.Platform {
	case PlatformGitHub:
		if s.Host == "" {
			s.Host = "github.com"
		}
	case PlatformGitLab:
		if s.Host == "" {
			s.Host = "gitlab.com"
		}
	default:
		return domain.ConfigurationErrorf("unsupported platform %q", s.Platform)
	}

	if s.Repo == "" {
		s.Repo = s.Username + "/" + s.Username
	}
	if !validRepo(s.Repo) {
		return errors.WithHint(
			domain.ConfigurationErrorf("repository %q is not of the form owner/name", s.Repo),
			"pass --repo owner/name",
		)
	}

	if s.Publishes() && s.Token == "" {
		return errors.WithHint(
			domain.ConfigurationErrorf("a token is required to publish to %s", s.Platform),
			"set GITHUB_TOKEN (or GITLAB_TOKEN), or use --test / --local",
		)
	}
	return nil
}

// Publishes reports whether the run writes to the hosting platform.
func (s Settings) Publishes() bool {
	return !s.DryRun && !s.Local
}

// validRepo accepts owner/name, and nested groups as GitLab allows.
func validRepo(repo string) bool {
	parts := strings.Split(repo, "/")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, domain.ConfigurationErrorf("invalid %s=%q: %v", key, v, err)
	}
	return n, nil
}

func getenvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, domain.ConfigurationErrorf("invalid %s=%q: %v", key, v, err)
	}
	return b, nil
}
