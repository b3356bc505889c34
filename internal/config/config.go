package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	ErrMissingCredential = errors.New("github_user and github_token are required")
	ErrNoSearchDirs      = errors.New("at least one search directory is required")
)

type Config struct {
	SearchDirs          []string      `mapstructure:"search_dirs"`
	Exclude             []string      `mapstructure:"exclude"`
	GitHubUser          string        `mapstructure:"github_user"`
	GitHubToken         string        `mapstructure:"github_token"`
	APIURL              string        `mapstructure:"api_url"`
	CommitMessage       string        `mapstructure:"commit_message"`
	DeleteEmptyRepos    bool          `mapstructure:"delete_empty_repos"`
	DryRun              bool          `mapstructure:"dry_run"`
	FailClosedDetection bool          `mapstructure:"fail_closed_detection"`
	DBPath              string        `mapstructure:"db_path"`
	DaemonPort          int           `mapstructure:"daemon_port"`
	DashboardURL        string        `mapstructure:"dashboard_url"`
	Interval            time.Duration `mapstructure:"interval"`
	Workers             int           `mapstructure:"workers"`
	LockPath            string        `mapstructure:"lock_path"`
}

var Default = Config{
	Exclude:       []string{"node_modules", ".cache", "*.bak"},
	APIURL:        "https://api.github.com",
	CommitMessage: "Auto-sync: {date}",
	DBPath:        "reposync.db",
	DaemonPort:    9101,
	Interval:      30 * time.Minute,
	Workers:       1,
	LockPath:      "reposync.lock",
}

// Dir returns ~/.reposync, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}

	dir := filepath.Join(home, ".reposync")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}

	return dir, nil
}

func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	return LoadFrom(configDir)
}

// LoadFrom reads config.yaml and .env from configDir. Relative db and lock
// paths are resolved against configDir.
func LoadFrom(configDir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetDefault("search_dirs", Default.SearchDirs)
	v.SetDefault("exclude", Default.Exclude)
	v.SetDefault("github_user", "")
	v.SetDefault("github_token", "")
	v.SetDefault("api_url", Default.APIURL)
	v.SetDefault("commit_message", Default.CommitMessage)
	v.SetDefault("delete_empty_repos", false)
	v.SetDefault("dry_run", false)
	v.SetDefault("fail_closed_detection", false)
	v.SetDefault("db_path", Default.DBPath)
	v.SetDefault("daemon_port", Default.DaemonPort)
	v.SetDefault("dashboard_url", "")
	v.SetDefault("interval", Default.Interval)
	v.SetDefault("workers", Default.Workers)
	v.SetDefault("lock_path", Default.LockPath)

	v.SetEnvPrefix("REPOSYNC")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// REPOSYNC_SEARCH_DIRS arrives as a single string.
	if len(cfg.SearchDirs) == 1 && strings.Contains(cfg.SearchDirs[0], string(os.PathListSeparator)) {
		cfg.SearchDirs = filepath.SplitList(cfg.SearchDirs[0])
	}

	if !filepath.IsAbs(cfg.DBPath) {
		cfg.DBPath = filepath.Join(configDir, cfg.DBPath)
	}
	if !filepath.IsAbs(cfg.LockPath) {
		cfg.LockPath = filepath.Join(configDir, cfg.LockPath)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return &cfg, nil
}

// Validate reports configuration problems that must abort a run before any
// repository is touched.
func (c *Config) Validate() error {
	var errs []error
	if c.GitHubUser == "" || c.GitHubToken == "" {
		errs = append(errs, ErrMissingCredential)
	}

	if len(c.SearchDirs) == 0 {
		errs = append(errs, ErrNoSearchDirs)
	}

	return errors.Join(errs...)
}

// CommitMessageFor expands the {date} token of the commit template.
func (c *Config) CommitMessageFor(now time.Time) string {
	return strings.ReplaceAll(c.CommitMessage, "{date}", now.Format("2006-01-02"))
}

// SaveCredentials stores the account credentials in configDir/.env, keeping
// any other variables already there.
func SaveCredentials(configDir, user, token string) error {
	path := filepath.Join(configDir, ".env")

	env, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read .env: %w", err)
		}
		env = map[string]string{}
	}

	env["REPOSYNC_GITHUB_USER"] = user
	env["REPOSYNC_GITHUB_TOKEN"] = token

	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("failed to write .env: %w", err)
	}

	return os.Chmod(path, 0600)
}
