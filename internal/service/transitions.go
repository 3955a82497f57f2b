package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"prdash/internal/config"
	"prdash/internal/domain"
)

// Lane names accepted by the transition resolver.
const (
	LaneNeedsReview = "needs review"
	LaneReviewed    = "reviewed"
	LaneMerged      = "merged"
)

// maxTransitionHops bounds the multi-hop fallback. Each hop is a real
// remote mutation, so the bound is the only stop besides success.
const maxTransitionHops = 6

// IssueTracker is the slice of the tracker client the resolver needs.
type IssueTracker interface {
	Enabled() bool
	GetIssue(ctx context.Context, key string) (*domain.IssueSnapshot, error)
	GetTransitions(ctx context.Context, key string) ([]domain.TransitionStep, error)
	ApplyTransition(ctx context.Context, key, transitionID string) error
}

// OwnershipChecker gates mutations to issues linked to the caller's own
// pull requests.
type OwnershipChecker interface {
	IsLinkedToMine(ctx context.Context, jiraKey string) (bool, error)
}

// PathSource supplies the operator-configured transition path table.
type PathSource interface {
	Steps() []domain.PathStep
}

// TransitionResolver moves an issue toward a lane's accepted statuses,
// applying a direct transition when one exists and otherwise walking a
// bounded chain of path-table steps.
type TransitionResolver struct {
	tracker IssueTracker
	records OwnershipChecker
	paths   PathSource
	targets config.LaneTargets
	logger  *slog.Logger
}

func NewTransitionResolver(
	tracker IssueTracker,
	records OwnershipChecker,
	paths PathSource,
	targets config.LaneTargets,
	logger *slog.Logger,
) *TransitionResolver {
	return &TransitionResolver{
		tracker: tracker,
		records: records,
		paths:   paths,
		targets: targets,
		logger:  logger,
	}
}

// targetStatuses maps (lane, draft) to the acceptable destination
// status names, falling back to built-in defaults when the operator
// configured none.
func (r *TransitionResolver) targetStatuses(lane string, draft bool) []string {
	withDefault := func(configured, defaults []string) []string {
		if len(configured) > 0 {
			return configured
		}
		return defaults
	}

	switch strings.ToLower(strings.TrimSpace(lane)) {
	case LaneNeedsReview:
		if draft {
			return withDefault(r.targets.Draft, []string{"In Development"})
		}
		return withDefault(r.targets.NeedsReview, []string{"In Review"})
	case LaneReviewed:
		return withDefault(r.targets.Reviewed, []string{"In Review"})
	case LaneMerged:
		return withDefault(r.targets.Merged, []string{
			"Ready for QA", "QA", "In QA", "Released", "Done", "Closed", "Production",
		})
	default:
		return nil
	}
}

// builtinPath is the fixed step table for the standard workflow shape.
// Operator-configured steps are consulted after these.
func builtinPath(lane string) []domain.PathStep {
	common := []domain.PathStep{
		{Source: "Open", Transition: "Start Development", Label: "start development"},
		{Source: "To Do", Transition: "Start Development", Label: "start development"},
		{Source: "In Development", Transition: "Ready for Review", Label: "send to review"},
	}
	if strings.ToLower(strings.TrimSpace(lane)) == LaneMerged {
		return append(common, domain.PathStep{
			Source: "In Review", Transition: "Approve", Label: "approve review",
		})
	}
	return common
}

// Resolve finds and applies a transition chain moving the issue toward
// the lane's accepted statuses. Applied steps are reported even on
// failure: they are remote mutations with no rollback.
func (r *TransitionResolver) Resolve(ctx context.Context, key, lane string, draft bool) (*domain.TransitionResult, error) {
	if !r.tracker.Enabled() {
		return nil, domain.NewDomainError(domain.ErrorCodeConfigurationGap, "issue tracker integration is not enabled")
	}

	linked, err := r.records.IsLinkedToMine(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check issue ownership: %w", err)
	}
	if !linked {
		return nil, domain.NewDomainError(domain.ErrorCodeAuthorizationDenied,
			fmt.Sprintf("issue %s is not linked to your pull requests", key))
	}

	targets := r.targetStatuses(lane, draft)
	if len(targets) == 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeConfigurationGap,
			fmt.Sprintf("no target statuses configured for lane %q", lane))
	}

	result := &domain.TransitionResult{
		Key:            key,
		Lane:           lane,
		TargetStatuses: targets,
	}

	transitions, err := r.tracker.GetTransitions(ctx, key)
	if err != nil {
		return result, domain.NewDomainError(domain.ErrorCodeRemoteUnavailable,
			fmt.Sprintf("list transitions for %s: %v", key, err))
	}

	if direct := pickDirect(transitions, targets); direct != nil {
		if err := r.apply(ctx, key, result, direct, "", ""); err != nil {
			return result, err
		}
		result.Reached = true
		result.FinalStatus = direct.ToStatus
		r.logger.Info("issue transitioned directly", "key", key, "lane", lane, "to", direct.ToStatus)
		return result, nil
	}

	candidates := append(builtinPath(lane), r.paths.Steps()...)
	return r.walkPath(ctx, key, targets, candidates, result)
}

// walkPath is the multi-hop fallback: refetch status and permitted
// transitions each iteration, prefer a direct hit, otherwise advance
// via the first path step matching the current status.
func (r *TransitionResolver) walkPath(
	ctx context.Context,
	key string,
	targets []string,
	candidates []domain.PathStep,
	result *domain.TransitionResult,
) (*domain.TransitionResult, error) {
	for hop := 0; hop < maxTransitionHops; hop++ {
		snapshot, err := r.tracker.GetIssue(ctx, key)
		if err != nil {
			return result, domain.NewDomainError(domain.ErrorCodeRemoteUnavailable,
				fmt.Sprintf("fetch issue %s: %v", key, err))
		}
		result.FinalStatus = snapshot.Status

		transitions, err := r.tracker.GetTransitions(ctx, key)
		if err != nil {
			return result, domain.NewDomainError(domain.ErrorCodeRemoteUnavailable,
				fmt.Sprintf("list transitions for %s: %v", key, err))
		}

		if direct := pickDirect(transitions, targets); direct != nil {
			if err := r.apply(ctx, key, result, direct, "", snapshot.Status); err != nil {
				return result, err
			}
			result.Reached = true
			result.FinalStatus = direct.ToStatus
			r.logger.Info("issue reached target via path",
				"key", key, "to", direct.ToStatus, "hops", len(result.StepsApplied))
			return result, nil
		}

		step := matchStep(candidates, snapshot.Status)
		if step == nil {
			return result, domain.NewDomainError(domain.ErrorCodeTransitionUnreachable,
				fmt.Sprintf("no matching transition for target status: issue %s is %q, candidates %s",
					key, snapshot.Status, describeSteps(candidates)))
		}

		transition := resolveStep(step, transitions)
		if transition == nil {
			return result, domain.NewDomainError(domain.ErrorCodeTransitionUnreachable,
				fmt.Sprintf("step %q from %q names transition %q, but the tracker does not permit it now",
					step.Label, step.Source, step.Transition))
		}

		if err := r.apply(ctx, key, result, transition, step.Label, snapshot.Status); err != nil {
			return result, err
		}
	}

	return result, domain.NewDomainError(domain.ErrorCodeTransitionUnreachable,
		fmt.Sprintf("cannot reach target status for %s after %d steps, last status %q",
			key, maxTransitionHops, result.FinalStatus))
}

func (r *TransitionResolver) apply(
	ctx context.Context,
	key string,
	result *domain.TransitionResult,
	transition *domain.TransitionStep,
	label string,
	fromStatus string,
) error {
	if err := r.tracker.ApplyTransition(ctx, key, transition.ID); err != nil {
		return domain.NewDomainError(domain.ErrorCodeRemoteUnavailable,
			fmt.Sprintf("apply transition %q on %s: %v", transition.Name, key, err))
	}

	result.StepsApplied = append(result.StepsApplied, domain.AppliedStep{
		TransitionID:   transition.ID,
		TransitionName: transition.Name,
		Label:          label,
		FromStatus:     fromStatus,
		ToStatus:       transition.ToStatus,
	})
	return nil
}

// pickDirect returns the first transition whose destination status
// matches a target, falling back to matching the transition's own name.
// Both phases are case-insensitive and order-preserving.
func pickDirect(transitions []domain.TransitionStep, targets []string) *domain.TransitionStep {
	for i := range transitions {
		if containsFold(targets, transitions[i].ToStatus) {
			return &transitions[i]
		}
	}
	for i := range transitions {
		if containsFold(targets, transitions[i].Name) {
			return &transitions[i]
		}
	}
	return nil
}

// matchStep returns the first path step declared for the current status.
func matchStep(candidates []domain.PathStep, currentStatus string) *domain.PathStep {
	for i := range candidates {
		if strings.EqualFold(candidates[i].Source, currentStatus) {
			return &candidates[i]
		}
	}
	return nil
}

// resolveStep maps a path step onto a currently permitted transition:
// by id first, then exact name, then substring.
func resolveStep(step *domain.PathStep, transitions []domain.TransitionStep) *domain.TransitionStep {
	for i := range transitions {
		if transitions[i].ID == step.Transition {
			return &transitions[i]
		}
	}
	for i := range transitions {
		if strings.EqualFold(transitions[i].Name, step.Transition) {
			return &transitions[i]
		}
	}
	hint := strings.ToLower(step.Transition)
	for i := range transitions {
		if strings.Contains(strings.ToLower(transitions[i].Name), hint) {
			return &transitions[i]
		}
	}
	return nil
}

func containsFold(values []string, target string) bool {
	if target == "" {
		return false
	}
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

func describeSteps(steps []domain.PathStep) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		parts = append(parts, fmt.Sprintf("%s -> %s", s.Source, s.Transition))
	}
	return strings.Join(parts, ", ")
}
