// Package correlate links pull-request records to their issue-tracker
// counterparts and computes component/assignee identity matches.
package correlate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"prdash/internal/domain"
)

// IssueFetcher is the slice of the tracker client the correlator needs.
type IssueFetcher interface {
	Enabled() bool
	GetIssue(ctx context.Context, key string) (*domain.IssueSnapshot, error)
}

// Config holds the identity and mapping tables used for matching. It is
// immutable after construction.
type Config struct {
	// ComponentRepos maps component names to repository names. Keys are
	// normalized at construction.
	ComponentRepos map[string]string

	JiraUsername   string
	JiraEmail      string
	GitHubUsername string
}

type Correlator struct {
	issues  IssueFetcher
	cfg     Config
	logger  *slog.Logger
	nowFunc func() time.Time
}

func New(issues IssueFetcher, cfg Config, logger *slog.Logger, nowFunc func() time.Time) *Correlator {
	if nowFunc == nil {
		nowFunc = time.Now
	}

	normalized := make(map[string]string, len(cfg.ComponentRepos))
	for component, repo := range cfg.ComponentRepos {
		normalized[Normalize(component)] = repo
	}
	cfg.ComponentRepos = normalized

	return &Correlator{
		issues:  issues,
		cfg:     cfg,
		logger:  logger,
		nowFunc: nowFunc,
	}
}

// Apply resolves the record's primary issue key, fetches its snapshot,
// and fills the correlation block. Failures leave the block empty and
// never abort the caller's pass.
func (c *Correlator) Apply(ctx context.Context, rec *domain.PullRequestRecord) {
	if len(rec.JiraKeys) == 0 || !c.issues.Enabled() {
		return
	}
	rec.JiraKey = rec.JiraKeys[0]

	snapshot, err := c.issues.GetIssue(ctx, rec.JiraKey)
	if err != nil {
		c.logger.Warn("issue fetch failed",
			"key", rec.JiraKey,
			"repo", rec.RepoOwner+"/"+rec.RepoName,
			"number", rec.Number,
			"error", err,
		)
		return
	}

	rec.JiraStatus = snapshot.Status
	rec.JiraSummary = snapshot.Summary
	rec.JiraURL = snapshot.URL
	rec.JiraComponents = snapshot.Components
	rec.JiraComponentsMatch = c.MatchComponents(snapshot.Components, rec.RepoName)
	rec.JiraAssignee, rec.JiraAssigneeMatch = c.MatchAssignee(snapshot.Assignee)

	now := c.nowFunc()
	rec.JiraLastSyncedAt = &now
}

// Normalize lower-cases a name and strips everything that is not a
// letter or digit, so "Web API" and "web-api" compare equal.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ComponentMatchesRepo reports whether one component name resolves to
// the repository, either through the configured mapping or because the
// normalized repo name appears inside the normalized component name.
// componentRepos must have normalized keys.
func ComponentMatchesRepo(componentRepos map[string]string, component, repoName string) bool {
	normalized := Normalize(component)
	if mapped, ok := componentRepos[normalized]; ok && strings.EqualFold(mapped, repoName) {
		return true
	}
	repoNorm := Normalize(repoName)
	return repoNorm != "" && strings.Contains(normalized, repoNorm)
}

// MatchComponents is tri-state: nil when the issue has no components,
// true when any component resolves to the repo, false otherwise.
func (c *Correlator) MatchComponents(components []string, repoName string) *bool {
	if len(components) == 0 {
		return nil
	}
	for _, component := range components {
		if ComponentMatchesRepo(c.cfg.ComponentRepos, component, repoName) {
			return boolPtr(true)
		}
	}
	return boolPtr(false)
}

// MatchAssignee compares the issue's assignee against the configured
// identities. Match is nil when no identities are configured, and both
// name and match are empty/false when the issue has no assignee.
func (c *Correlator) MatchAssignee(assignee *domain.IssueUser) (string, *bool) {
	if assignee == nil {
		return "", boolPtr(false)
	}

	allow := make(map[string]struct{})
	for _, identity := range []string{c.cfg.JiraUsername, c.cfg.JiraEmail, c.cfg.GitHubUsername} {
		if identity == "" {
			continue
		}
		lowered := strings.ToLower(identity)
		allow[lowered] = struct{}{}
		allow[stripSpaces(lowered)] = struct{}{}
	}

	if len(allow) == 0 {
		return assignee.DisplayName, nil
	}

	for _, candidate := range []string{assignee.DisplayName, assignee.EmailAddress} {
		if candidate == "" {
			continue
		}
		lowered := strings.ToLower(candidate)
		if _, ok := allow[lowered]; ok {
			return assignee.DisplayName, boolPtr(true)
		}
		if _, ok := allow[stripSpaces(lowered)]; ok {
			return assignee.DisplayName, boolPtr(true)
		}
	}
	return assignee.DisplayName, boolPtr(false)
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

func boolPtr(v bool) *bool {
	return &v
}
