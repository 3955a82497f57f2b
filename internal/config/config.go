package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type GitHubConfig struct {
	Token    string `yaml:"token"`
	Username string `yaml:"username"`

	// TrackedRepos entries look like "owner/repo".
	TrackedRepos []string `yaml:"tracked_repos"`
	// WatchedPRs entries look like "owner/repo#123". Watched pull
	// requests are synced regardless of authorship or review requests.
	WatchedPRs []string `yaml:"watched_prs"`
}

type JiraConfig struct {
	BaseURL  string `yaml:"base_url"`
	Email    string `yaml:"email"`
	APIToken string `yaml:"api_token"`
	Username string `yaml:"username"`
}

func (j JiraConfig) Enabled() bool {
	return j.BaseURL != "" && j.Email != "" && j.APIToken != ""
}

type PollConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	ListLimit       int `yaml:"list_limit"`
}

func (p PollConfig) Interval() time.Duration {
	if p.IntervalSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(p.IntervalSeconds) * time.Second
}

func (p PollConfig) Limit() int {
	if p.ListLimit <= 0 {
		return 20
	}
	return p.ListLimit
}

// LaneTargets lists the issue statuses each dashboard lane accepts as a
// transition destination. Empty lists fall back to built-in defaults.
type LaneTargets struct {
	Draft       []string `yaml:"draft"`
	NeedsReview []string `yaml:"needs_review"`
	Reviewed    []string `yaml:"reviewed"`
	Merged      []string `yaml:"merged"`
}

type Config struct {
	HTTP   *HTTPConfig    `yaml:"http"`
	DB     DatabaseConfig `yaml:"database"`
	GitHub GitHubConfig   `yaml:"github"`
	Jira   JiraConfig     `yaml:"jira"`
	Poll   PollConfig     `yaml:"poll"`
	Lanes  LaneTargets    `yaml:"lane_statuses"`

	// ComponentRepos maps a tracker component name to the repository it
	// belongs to. Keys are matched after normalization.
	ComponentRepos map[string]string `yaml:"component_repos"`

	// AllowedKeyPrefixes restricts issue-key extraction; empty means
	// any prefix is accepted.
	AllowedKeyPrefixes []string `yaml:"allowed_key_prefixes"`

	// TransitionPathFile points at the operator path table, reloaded
	// live when the file changes. Empty means no operator table.
	TransitionPathFile string `yaml:"transition_path_file"`
}

func (c Config) HTTPAddr() string {
	if c.HTTP == nil {
		return ":8080"
	}
	return c.HTTP.Addr
}

func (db DatabaseConfig) ConnString() string {
	host := db.Host
	if host == "" {
		host = "localhost"
	}

	port := db.Port
	if port == 0 {
		port = 5432
	}

	sslMode := db.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User,
		db.Password,
		host,
		port,
		db.Name,
		sslMode,
	)
}

type Repo struct {
	Owner string
	Name  string
}

type WatchedPR struct {
	Owner  string
	Name   string
	Number int
}

func (g GitHubConfig) RepoList() ([]Repo, error) {
	repos := make([]Repo, 0, len(g.TrackedRepos))
	for _, item := range g.TrackedRepos {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		owner, name, ok := strings.Cut(item, "/")
		if !ok || owner == "" || name == "" {
			return nil, fmt.Errorf("tracked repo %q: want owner/repo", item)
		}
		repos = append(repos, Repo{Owner: owner, Name: name})
	}
	return repos, nil
}

func (g GitHubConfig) WatchedPRList() ([]WatchedPR, error) {
	prs := make([]WatchedPR, 0, len(g.WatchedPRs))
	for _, item := range g.WatchedPRs {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		repoPart, numStr, ok := strings.Cut(item, "#")
		if !ok {
			return nil, fmt.Errorf("watched PR %q: want owner/repo#number", item)
		}
		owner, name, ok := strings.Cut(repoPart, "/")
		if !ok || owner == "" || name == "" {
			return nil, fmt.Errorf("watched PR %q: want owner/repo#number", item)
		}
		number, err := strconv.Atoi(numStr)
		if err != nil {
			return nil, fmt.Errorf("watched PR %q: bad number: %w", item, err)
		}
		prs = append(prs, WatchedPR{Owner: owner, Name: name, Number: number})
	}
	return prs, nil
}

func load(path string) (*Config, error) {
	// #nosec G304 -- config file path is provided via command line flag
	data, err := os.ReadFile(path)
	if err != nil {
		return &Config{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &Config{}, fmt.Errorf("unmarshal config yaml: %w", err)
	}

	if cfg.DB.User == "" || cfg.DB.Password == "" {
		return &Config{}, fmt.Errorf("database user and password must be set in config")
	}
	if cfg.GitHub.Token == "" || cfg.GitHub.Username == "" {
		return &Config{}, fmt.Errorf("github token and username must be set in config")
	}
	if _, err := cfg.GitHub.RepoList(); err != nil {
		return &Config{}, err
	}
	if _, err := cfg.GitHub.WatchedPRList(); err != nil {
		return &Config{}, err
	}

	return cfg, nil
}

func ParseConfig() (*Config, error) {
	configPath := flag.String("config", "", "Path to config file")

	flag.Parse()

	if *configPath == "" {
		return nil, fmt.Errorf("config path is required")
	}

	cfg, err := load(*configPath)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
