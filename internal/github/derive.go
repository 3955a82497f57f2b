package github

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"prdash/internal/domain"
)

// Review status vocabulary. These strings are user-visible and pinned
// by the dashboard, so they are constants rather than free text.
const (
	ReviewStatusNeedsReview      = "needs review"
	ReviewStatusNeedsReReview    = "needs re-review"
	ReviewStatusApproved         = "approved"
	ReviewStatusChangesRequested = "changes requested"
)

// SummarizeReviews derives the review status from the last reviews on a
// pull request. Dismissed reviews do not count as review state but
// their presence downgrades "needs review" to "needs re-review". An
// empty review list also reads "needs review".
func SummarizeReviews(node *PRNode) string {
	dismissed := false
	states := make([]string, 0, len(node.Reviews.Nodes))
	for _, review := range node.Reviews.Nodes {
		if review.State == "" {
			continue
		}
		if review.State == "DISMISSED" {
			dismissed = true
			continue
		}
		states = append(states, review.State)
	}

	if len(states) == 0 {
		if dismissed {
			return ReviewStatusNeedsReReview
		}
		return ReviewStatusNeedsReview
	}

	for _, state := range states {
		if state == "APPROVED" {
			return ReviewStatusApproved
		}
	}
	for _, state := range states {
		if state == "CHANGES_REQUESTED" {
			return ReviewStatusChangesRequested
		}
	}

	return strings.ToLower(states[len(states)-1])
}

// summarizeRollup renders one commit's status-check rollup.
func summarizeRollup(rollup *StatusCheckRollup, label string) string {
	if rollup == nil {
		return "no " + label
	}
	state := rollup.State
	if state == "" {
		state = "UNKNOWN"
	}
	return fmt.Sprintf("%s (%d %s)", state, len(rollup.Contexts.Nodes), label)
}

// SummarizeCI summarizes the most recent commit's check rollup.
func SummarizeCI(node *PRNode) string {
	if len(node.CommitsWithStatus.Nodes) == 0 {
		return "no commits"
	}
	return summarizeRollup(node.CommitsWithStatus.Nodes[0].Commit.Rollup, "checks")
}

// SummarizeMergeCI summarizes the merge commit's check rollup. Nil
// means there is no merge commit at all, which is distinct from a merge
// commit without checks.
func SummarizeMergeCI(node *PRNode) *string {
	if node.MergeCommit == nil {
		return nil
	}
	summary := summarizeRollup(node.MergeCommit.Rollup, "merge checks")
	return &summary
}

// SizeTier buckets a pull request's review effort into 0..5 from a
// churn/file/commit score. The score formula and thresholds are pinned
// by the dashboard's size column.
func SizeTier(node *PRNode) int {
	churn := node.Additions + node.Deletions
	score := float64(churn)*0.01 + float64(node.ChangedFiles)*0.2 + float64(node.CommitTotals.TotalCount)*0.05

	switch {
	case score < 2:
		return 0
	case score < 4:
		return 1
	case score < 7:
		return 2
	case score < 11:
		return 3
	case score < 18:
		return 4
	default:
		return 5
	}
}

// SizeSparkline produces the normalized size signal the presentation
// layer renders next to each pull request.
func SizeSparkline(node *PRNode) []float64 {
	churn := node.Additions + node.Deletions
	signal := churn + node.ChangedFiles*20

	capped := signal
	if capped > 2000 {
		capped = 2000
	}
	norm := float64(capped) / 2000

	points := make([]float64, 0, 10)
	for i := 1; i <= 10; i++ {
		points = append(points, norm*float64(i)/10)
	}
	return points
}

// HasConflicts reports whether the merge-state indicator says the pull
// request cannot merge cleanly.
func HasConflicts(node *PRNode) bool {
	return strings.ToUpper(node.MergeStateStatus) == "DIRTY"
}

var issueKeyPattern = regexp.MustCompile(`(?i)\b([A-Z][A-Z0-9]+)[\s-]?(\d+)\b`)

// ExtractIssueKeys scans text for issue-tracker keys like "ABC-123",
// normalizes them to upper case, and dedupes preserving first-seen
// order. A non-empty allow-list drops keys with other prefixes.
func ExtractIssueKeys(text string, allowedPrefixes []string) []string {
	if text == "" {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowedPrefixes))
	for _, prefix := range allowedPrefixes {
		allowed[strings.ToUpper(prefix)] = struct{}{}
	}

	seen := make(map[string]struct{})
	var keys []string
	for _, match := range issueKeyPattern.FindAllStringSubmatch(text, -1) {
		prefix := strings.ToUpper(match[1])
		key := prefix + "-" + match[2]
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if len(allowed) > 0 {
			if _, ok := allowed[prefix]; !ok {
				continue
			}
		}
		keys = append(keys, key)
	}
	return keys
}

// MapNode turns one raw pull-request node into the canonical record
// with all derived signals filled in. Correlation fields and IsMine are
// left for the correlator and the poller.
func MapNode(owner, name string, node *PRNode, allowedPrefixes []string) domain.PullRequestRecord {
	author := "unknown"
	if node.Author != nil {
		author = node.Author.Login
	}

	var reviewers, teams []string
	for _, rr := range node.ReviewRequests.Nodes {
		if rr.RequestedReviewer == nil {
			continue
		}
		if rr.RequestedReviewer.Login != "" {
			reviewers = append(reviewers, rr.RequestedReviewer.Login)
		}
		if rr.RequestedReviewer.Slug != "" {
			teams = append(teams, rr.RequestedReviewer.Slug)
		}
	}

	var lastCommitSHA string
	if len(node.CommitsWithStatus.Nodes) > 0 {
		lastCommitSHA = node.CommitsWithStatus.Nodes[0].Commit.OID
	}
	var mergeCommitSHA string
	if node.MergeCommit != nil {
		mergeCommitSHA = node.MergeCommit.OID
	}

	return domain.PullRequestRecord{
		RepoOwner:          owner,
		RepoName:           name,
		Number:             node.Number,
		Title:              node.Title,
		Author:             author,
		URL:                node.URL,
		State:              domain.PRState(node.State),
		IsDraft:            node.IsDraft,
		ReviewStatus:       SummarizeReviews(node),
		CISummary:          SummarizeCI(node),
		MergeCISummary:     SummarizeMergeCI(node),
		LastCommitSHA:      lastCommitSHA,
		MergeCommitSHA:     mergeCommitSHA,
		HasConflicts:       HasConflicts(node),
		SizeTier:           SizeTier(node),
		UpdatedAt:          node.UpdatedAt,
		MergedAt:           node.MergedAt,
		Raw:                snapshotWithSparkline(node),
		JiraKeys:           ExtractIssueKeys(node.Title+"\n"+node.BodyText, allowedPrefixes),
		RequestedReviewers: reviewers,
		RequestedTeams:     teams,
	}
}

// snapshotWithSparkline attaches the size sparkline to the raw payload
// so the presentation layer can render it without recomputing.
func snapshotWithSparkline(node *PRNode) json.RawMessage {
	var snapshot map[string]any
	if err := json.Unmarshal(node.Raw, &snapshot); err != nil {
		return node.Raw
	}
	snapshot["size_sparkline"] = SizeSparkline(node)

	enriched, err := json.Marshal(snapshot)
	if err != nil {
		return node.Raw
	}
	return enriched
}

// Source adapts the client into the poll scheduler's fetch interface,
// returning fully derived records.
type Source struct {
	Client          *Client
	AllowedPrefixes []string
}

func (s *Source) ListPullRequests(ctx context.Context, owner, name string, limit int) ([]domain.PullRequestRecord, error) {
	nodes, err := s.Client.FetchRepoPullRequests(ctx, owner, name, limit)
	if err != nil {
		return nil, err
	}

	records := make([]domain.PullRequestRecord, 0, len(nodes))
	for i := range nodes {
		records = append(records, MapNode(owner, name, &nodes[i], s.AllowedPrefixes))
	}
	return records, nil
}

func (s *Source) GetPullRequest(ctx context.Context, owner, name string, number int) (*domain.PullRequestRecord, error) {
	node, err := s.Client.FetchPullRequest(ctx, owner, name, number)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, nil
	}

	record := MapNode(owner, name, node, s.AllowedPrefixes)
	return &record, nil
}
