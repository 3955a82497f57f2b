package domain

import (
	"encoding/json"
	"time"
)

type PRState string

const (
	PRStateOpen   PRState = "OPEN"
	PRStateClosed PRState = "CLOSED"
	PRStateMerged PRState = "MERGED"
)

// PullRequestRecord is the canonical local copy of one pull request.
// The (RepoOwner, RepoName, Number) triple identifies it and never
// changes once the record exists; every other polled field is fully
// replaced on each sync cycle.
type PullRequestRecord struct {
	RepoOwner string `json:"repo_owner"`
	RepoName  string `json:"repo_name"`
	Number    int    `json:"number"`

	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`

	State   PRState `json:"state"`
	IsDraft bool    `json:"is_draft"`

	ReviewStatus   string  `json:"review_status"`
	CISummary      string  `json:"ci_summary"`
	MergeCISummary *string `json:"merge_ci_summary"`

	LastCommitSHA  string `json:"last_commit_sha"`
	MergeCommitSHA string `json:"merge_commit_sha"`
	HasConflicts   bool   `json:"has_conflicts"`
	SizeTier       int    `json:"size_tier"`

	IsMine bool `json:"is_mine"`

	UpdatedAt    time.Time  `json:"updated_at"`
	MergedAt     *time.Time `json:"merged_at"`
	LastSyncedAt time.Time  `json:"last_synced_at"`

	// Raw is the unmodified upstream payload, kept for audit and
	// display. Core logic never reads it back.
	Raw json.RawMessage `json:"raw,omitempty"`

	JiraKey             string     `json:"jira_key"`
	JiraKeys            []string   `json:"jira_keys"`
	JiraStatus          string     `json:"jira_status"`
	JiraSummary         string     `json:"jira_summary"`
	JiraURL             string     `json:"jira_url"`
	JiraLastSyncedAt    *time.Time `json:"jira_last_synced_at"`
	JiraComponents      []string   `json:"jira_components"`
	JiraComponentsMatch *bool      `json:"jira_components_match"`
	JiraAssignee        string     `json:"jira_assignee"`
	JiraAssigneeMatch   *bool      `json:"jira_assignee_match"`

	// Review-request data drives the poll-pass filter. It travels with
	// the record in memory but is persisted only inside Raw.
	RequestedReviewers []string `json:"-"`
	RequestedTeams     []string `json:"-"`
}

func (r *PullRequestRecord) IsMerged() bool {
	return r.State == PRStateMerged
}

// IssueUser identifies an issue-tracker account.
type IssueUser struct {
	DisplayName  string
	EmailAddress string
	AccountID    string
}

// IssueStatusNotFound marks a snapshot for an issue the tracker does
// not know. A 404 is a representable state, not an error.
const IssueStatusNotFound = "not found"

// IssueSnapshot is a transient view of one issue-tracker record.
// Selected fields are copied into PullRequestRecord by the correlator.
type IssueSnapshot struct {
	Key        string
	Status     string
	Summary    string
	URL        string
	Components []string
	Assignee   *IssueUser
}

func (s *IssueSnapshot) NotFound() bool {
	return s.Status == IssueStatusNotFound
}

// ProjectComponent is one component registered on a tracker project.
type ProjectComponent struct {
	ID   string
	Name string
}

// TransitionStep is one state-machine edge the tracker currently
// permits for an issue.
type TransitionStep struct {
	ID       string
	Name     string
	ToStatus string
}

// PathStep is one entry of a transition path table: when the issue sits
// in Source, apply the transition named or identified by Transition.
type PathStep struct {
	Source     string `yaml:"source"`
	Transition string `yaml:"transition"`
	Label      string `yaml:"label"`
}

// AppliedStep records one transition the resolver actually executed on
// the remote tracker.
type AppliedStep struct {
	TransitionID   string `json:"transition_id"`
	TransitionName string `json:"transition_name"`
	Label          string `json:"label,omitempty"`
	FromStatus     string `json:"from_status"`
	ToStatus       string `json:"to_status,omitempty"`
}

// TransitionResult reports what a resolver run did. StepsApplied are
// real remote mutations and persist even when Reached is false.
type TransitionResult struct {
	Key            string        `json:"key"`
	Lane           string        `json:"lane"`
	TargetStatuses []string      `json:"target_statuses"`
	StepsApplied   []AppliedStep `json:"steps_applied"`
	FinalStatus    string        `json:"final_status"`
	Reached        bool          `json:"reached"`
}
