package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"prdash/internal/correlate"
	"prdash/internal/domain"
)

// IssueMutator is the slice of the tracker client used for component
// and assignee fixes.
type IssueMutator interface {
	Enabled() bool
	GetProjectComponents(ctx context.Context, projectKey string) ([]domain.ProjectComponent, error)
	AddComponents(ctx context.Context, key string, componentIDs []string) error
	ResolveAccountID(ctx context.Context) (string, error)
	AssignIssue(ctx context.Context, key, accountID string) error
}

// TrackerOps implements the user-triggered tracker mutations that round
// out the dashboard: tagging an issue with its repository's components
// and self-assigning. Both are gated to issues linked to the caller's
// own pull requests.
type TrackerOps struct {
	tracker        IssueMutator
	records        OwnershipChecker
	componentRepos map[string]string
	logger         *slog.Logger
}

func NewTrackerOps(tracker IssueMutator, records OwnershipChecker, componentRepos map[string]string, logger *slog.Logger) *TrackerOps {
	normalized := make(map[string]string, len(componentRepos))
	for component, repo := range componentRepos {
		normalized[correlate.Normalize(component)] = repo
	}

	return &TrackerOps{
		tracker:        tracker,
		records:        records,
		componentRepos: normalized,
		logger:         logger,
	}
}

func (o *TrackerOps) gate(ctx context.Context, key string) error {
	if !o.tracker.Enabled() {
		return domain.NewDomainError(domain.ErrorCodeConfigurationGap, "issue tracker integration is not enabled")
	}
	linked, err := o.records.IsLinkedToMine(ctx, key)
	if err != nil {
		return fmt.Errorf("check issue ownership: %w", err)
	}
	if !linked {
		return domain.NewDomainError(domain.ErrorCodeAuthorizationDenied,
			fmt.Sprintf("issue %s is not linked to your pull requests", key))
	}
	return nil
}

// FixComponents adds the project components matching repoName to the
// issue and returns the names it added.
func (o *TrackerOps) FixComponents(ctx context.Context, key, repoName string) ([]string, error) {
	if err := o.gate(ctx, key); err != nil {
		return nil, err
	}

	projectKey, _, ok := strings.Cut(key, "-")
	if !ok || projectKey == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeNotFound,
			fmt.Sprintf("issue key %q has no project prefix", key))
	}

	components, err := o.tracker.GetProjectComponents(ctx, projectKey)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrorCodeRemoteUnavailable,
			fmt.Sprintf("list components for project %s: %v", projectKey, err))
	}

	var ids, names []string
	for _, component := range components {
		if correlate.ComponentMatchesRepo(o.componentRepos, component.Name, repoName) {
			ids = append(ids, component.ID)
			names = append(names, component.Name)
		}
	}
	if len(ids) == 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeNotFound,
			fmt.Sprintf("project %s has no component matching repository %q", projectKey, repoName))
	}

	if err := o.tracker.AddComponents(ctx, key, ids); err != nil {
		return nil, domain.NewDomainError(domain.ErrorCodeRemoteUnavailable,
			fmt.Sprintf("add components to %s: %v", key, err))
	}

	o.logger.Info("issue components fixed", "key", key, "components", names)
	return names, nil
}

// AssignToMe assigns the issue to the credential owner and returns the
// resolved account id.
func (o *TrackerOps) AssignToMe(ctx context.Context, key string) (string, error) {
	if err := o.gate(ctx, key); err != nil {
		return "", err
	}

	accountID, err := o.tracker.ResolveAccountID(ctx)
	if err != nil {
		return "", domain.NewDomainError(domain.ErrorCodeRemoteUnavailable,
			fmt.Sprintf("resolve account id: %v", err))
	}

	if err := o.tracker.AssignIssue(ctx, key, accountID); err != nil {
		return "", domain.NewDomainError(domain.ErrorCodeRemoteUnavailable,
			fmt.Sprintf("assign issue %s: %v", key, err))
	}

	o.logger.Info("issue assigned", "key", key, "account_id", accountID)
	return accountID, nil
}
