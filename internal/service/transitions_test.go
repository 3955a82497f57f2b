package service

import (
	"context"
	"errors"
	"testing"

	"prdash/internal/config"
	"prdash/internal/domain"
	"prdash/internal/service/mocks"
)

func newResolver(tracker *mocks.MockIssueTracker, checker *mocks.MockOwnershipChecker, paths []domain.PathStep) *TransitionResolver {
	return NewTransitionResolver(tracker, checker, &mocks.MockPathSource{StepsResult: paths}, config.LaneTargets{}, testLogger())
}

func assertDomainCode(t *testing.T, err error, want domain.ErrorCode) {
	t.Helper()
	var de *domain.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected domain error, got %v", err)
	}
	if de.Code != want {
		t.Fatalf("expected code %s, got %s (%s)", want, de.Code, de.Message)
	}
}

func TestResolveDirectTransition(t *testing.T) {
	tracker := &mocks.MockIssueTracker{
		EnabledValue: true,
		Statuses:     []string{"In Development"},
		TransitionsSeq: [][]domain.TransitionStep{
			{{ID: "21", Name: "Ready for Review", ToStatus: "In Review"}},
		},
	}
	checker := &mocks.MockOwnershipChecker{LinkedResult: true}

	result, err := newResolver(tracker, checker, nil).Resolve(context.Background(), "ABC-1", LaneReviewed, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if !result.Reached {
		t.Fatal("expected target reached")
	}
	if result.FinalStatus != "In Review" {
		t.Errorf("expected final status In Review, got %q", result.FinalStatus)
	}
	if len(result.StepsApplied) != 1 || result.StepsApplied[0].TransitionID != "21" {
		t.Errorf("expected single applied step 21, got %+v", result.StepsApplied)
	}
	if len(checker.CheckedKeys) != 1 || checker.CheckedKeys[0] != "ABC-1" {
		t.Errorf("expected ownership check for ABC-1, got %v", checker.CheckedKeys)
	}
}

func TestResolveDirectByTransitionName(t *testing.T) {
	tracker := &mocks.MockIssueTracker{
		EnabledValue: true,
		Statuses:     []string{"In Development"},
		TransitionsSeq: [][]domain.TransitionStep{
			{{ID: "31", Name: "In Review", ToStatus: "Review in Progress"}},
		},
	}
	checker := &mocks.MockOwnershipChecker{LinkedResult: true}

	result, err := newResolver(tracker, checker, nil).Resolve(context.Background(), "ABC-1", LaneNeedsReview, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.Reached {
		t.Fatal("expected target reached via transition name fallback")
	}
	if tracker.Applied[0] != "31" {
		t.Errorf("expected transition 31 applied, got %v", tracker.Applied)
	}
}

func TestResolveWalksMultiHopPath(t *testing.T) {
	tracker := &mocks.MockIssueTracker{
		EnabledValue: true,
		Statuses:     []string{"To Do", "In Development", "In Review"},
		TransitionsSeq: [][]domain.TransitionStep{
			{{ID: "11", Name: "Start Development", ToStatus: "In Development"}},
			{{ID: "21", Name: "Ready for Review", ToStatus: "In Review"}},
			{{ID: "31", Name: "Approve", ToStatus: "Ready for QA"}},
		},
	}
	checker := &mocks.MockOwnershipChecker{LinkedResult: true}

	result, err := newResolver(tracker, checker, nil).Resolve(context.Background(), "ABC-1", LaneMerged, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if !result.Reached {
		t.Fatal("expected target reached after walking the path")
	}
	if len(result.StepsApplied) != 3 {
		t.Fatalf("expected 3 applied steps, got %d", len(result.StepsApplied))
	}
	want := []string{"11", "21", "31"}
	for i, id := range want {
		if tracker.Applied[i] != id {
			t.Errorf("step %d: expected transition %s, got %s", i, id, tracker.Applied[i])
		}
	}
	if result.FinalStatus != "Ready for QA" {
		t.Errorf("expected final status Ready for QA, got %q", result.FinalStatus)
	}
}

func TestResolveUsesOperatorPathSteps(t *testing.T) {
	tracker := &mocks.MockIssueTracker{
		EnabledValue: true,
		Statuses:     []string{"Triage", "In Development"},
		TransitionsSeq: [][]domain.TransitionStep{
			{{ID: "5", Name: "Accept", ToStatus: "In Development"}},
			{{ID: "21", Name: "Ready for Review", ToStatus: "In Review"}},
		},
	}
	checker := &mocks.MockOwnershipChecker{LinkedResult: true}
	paths := []domain.PathStep{
		{Source: "Triage", Transition: "Accept", Label: "accept issue"},
	}

	result, err := newResolver(tracker, checker, paths).Resolve(context.Background(), "ABC-1", LaneNeedsReview, false)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !result.Reached {
		t.Fatal("expected target reached through the operator step")
	}
	if result.StepsApplied[0].Label != "accept issue" {
		t.Errorf("expected operator step label recorded, got %+v", result.StepsApplied[0])
	}
}

func TestResolveNoMatchingStep(t *testing.T) {
	tracker := &mocks.MockIssueTracker{
		EnabledValue:   true,
		Statuses:       []string{"Blocked"},
		TransitionsSeq: [][]domain.TransitionStep{{}},
	}
	checker := &mocks.MockOwnershipChecker{LinkedResult: true}

	result, err := newResolver(tracker, checker, nil).Resolve(context.Background(), "ABC-1", LaneNeedsReview, false)
	assertDomainCode(t, err, domain.ErrorCodeTransitionUnreachable)

	if result == nil {
		t.Fatal("expected partial result alongside the error")
	}
	if result.FinalStatus != "Blocked" {
		t.Errorf("expected final status Blocked, got %q", result.FinalStatus)
	}
	if len(result.StepsApplied) != 0 {
		t.Errorf("expected no applied steps, got %+v", result.StepsApplied)
	}
}

func TestResolveHopBound(t *testing.T) {
	// The tracker keeps permitting the same transition without ever
	// leaving "To Do", so the walk must stop at the bound.
	tracker := &mocks.MockIssueTracker{
		EnabledValue: true,
		Statuses:     []string{"To Do"},
		TransitionsSeq: [][]domain.TransitionStep{
			{{ID: "11", Name: "Start Development", ToStatus: "In Development"}},
		},
	}
	checker := &mocks.MockOwnershipChecker{LinkedResult: true}

	result, err := newResolver(tracker, checker, nil).Resolve(context.Background(), "ABC-1", LaneNeedsReview, false)
	assertDomainCode(t, err, domain.ErrorCodeTransitionUnreachable)

	if len(tracker.Applied) != maxTransitionHops {
		t.Fatalf("expected exactly %d applied transitions, got %d", maxTransitionHops, len(tracker.Applied))
	}
	if len(result.StepsApplied) != maxTransitionHops {
		t.Fatalf("expected partial result to carry all %d steps, got %d", maxTransitionHops, len(result.StepsApplied))
	}
}

func TestResolveTrackerDisabled(t *testing.T) {
	tracker := &mocks.MockIssueTracker{EnabledValue: false}
	checker := &mocks.MockOwnershipChecker{LinkedResult: true}

	_, err := newResolver(tracker, checker, nil).Resolve(context.Background(), "ABC-1", LaneNeedsReview, false)
	assertDomainCode(t, err, domain.ErrorCodeConfigurationGap)

	if len(checker.CheckedKeys) != 0 {
		t.Errorf("expected no ownership check when the tracker is disabled")
	}
}

func TestResolveUnlinkedIssue(t *testing.T) {
	tracker := &mocks.MockIssueTracker{EnabledValue: true}
	checker := &mocks.MockOwnershipChecker{LinkedResult: false}

	_, err := newResolver(tracker, checker, nil).Resolve(context.Background(), "XYZ-9", LaneNeedsReview, false)
	assertDomainCode(t, err, domain.ErrorCodeAuthorizationDenied)

	if len(tracker.Applied) != 0 {
		t.Errorf("expected no transitions applied for an unlinked issue")
	}
}

func TestResolveUnknownLane(t *testing.T) {
	tracker := &mocks.MockIssueTracker{EnabledValue: true}
	checker := &mocks.MockOwnershipChecker{LinkedResult: true}

	_, err := newResolver(tracker, checker, nil).Resolve(context.Background(), "ABC-1", "nonsense", false)
	assertDomainCode(t, err, domain.ErrorCodeConfigurationGap)
}

func TestResolveRemoteFailure(t *testing.T) {
	tracker := &mocks.MockIssueTracker{
		EnabledValue:   true,
		TransitionsErr: errors.New("connection reset"),
	}
	checker := &mocks.MockOwnershipChecker{LinkedResult: true}

	result, err := newResolver(tracker, checker, nil).Resolve(context.Background(), "ABC-1", LaneNeedsReview, false)
	assertDomainCode(t, err, domain.ErrorCodeRemoteUnavailable)

	if result == nil {
		t.Fatal("expected result carrying the lane context even on remote failure")
	}
}

func TestTargetStatuses(t *testing.T) {
	tests := []struct {
		name    string
		targets config.LaneTargets
		lane    string
		draft   bool
		want    []string
	}{
		{
			name:  "draft falls back to development",
			lane:  LaneNeedsReview,
			draft: true,
			want:  []string{"In Development"},
		},
		{
			name: "needs review default",
			lane: LaneNeedsReview,
			want: []string{"In Review"},
		},
		{
			name:    "configured statuses win",
			targets: config.LaneTargets{Reviewed: []string{"Code Review Done"}},
			lane:    LaneReviewed,
			want:    []string{"Code Review Done"},
		},
		{
			name: "lane name is case and space tolerant",
			lane: "  Merged ",
			want: []string{"Ready for QA", "QA", "In QA", "Released", "Done", "Closed", "Production"},
		},
		{
			name: "unknown lane",
			lane: "bogus",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewTransitionResolver(&mocks.MockIssueTracker{}, &mocks.MockOwnershipChecker{}, &mocks.MockPathSource{}, tt.targets, testLogger())

			got := r.targetStatuses(tt.lane, tt.draft)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}
