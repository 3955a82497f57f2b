package github

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}

func reviews(states ...string) ReviewConnection {
	nodes := make([]ReviewNode, 0, len(states))
	for _, s := range states {
		nodes = append(nodes, ReviewNode{State: s})
	}
	return ReviewConnection{Nodes: nodes}
}

func TestSummarizeReviews(t *testing.T) {
	tests := []struct {
		name string
		node PRNode
		want string
	}{
		{
			name: "no reviews",
			node: PRNode{},
			want: ReviewStatusNeedsReview,
		},
		{
			name: "only dismissed reviews",
			node: PRNode{Reviews: reviews("DISMISSED", "DISMISSED")},
			want: ReviewStatusNeedsReReview,
		},
		{
			name: "approved wins over changes requested",
			node: PRNode{Reviews: reviews("CHANGES_REQUESTED", "APPROVED")},
			want: ReviewStatusApproved,
		},
		{
			name: "changes requested wins over comments",
			node: PRNode{Reviews: reviews("COMMENTED", "CHANGES_REQUESTED")},
			want: ReviewStatusChangesRequested,
		},
		{
			name: "comments only reads as most recent state",
			node: PRNode{Reviews: reviews("COMMENTED", "COMMENTED")},
			want: "commented",
		},
		{
			name: "dismissed approval with a remaining comment",
			node: PRNode{Reviews: reviews("DISMISSED", "COMMENTED")},
			want: "commented",
		},
		{
			name: "empty states are skipped",
			node: PRNode{Reviews: reviews("", "")},
			want: ReviewStatusNeedsReview,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SummarizeReviews(&tt.node))
		})
	}
}

func TestSummarizeCI(t *testing.T) {
	tests := []struct {
		name string
		node PRNode
		want string
	}{
		{
			name: "no commits",
			node: PRNode{},
			want: "no commits",
		},
		{
			name: "commit without rollup",
			node: PRNode{CommitsWithStatus: CommitConnection{Nodes: []CommitNode{
				{Commit: Commit{OID: "abc"}},
			}}},
			want: "no checks",
		},
		{
			name: "rollup with contexts",
			node: PRNode{CommitsWithStatus: CommitConnection{Nodes: []CommitNode{
				{Commit: Commit{OID: "abc", Rollup: &StatusCheckRollup{
					State:    "SUCCESS",
					Contexts: ContextConnection{Nodes: []CheckContext{{Name: "build"}, {Name: "lint"}}},
				}}},
			}}},
			want: "SUCCESS (2 checks)",
		},
		{
			name: "rollup without state",
			node: PRNode{CommitsWithStatus: CommitConnection{Nodes: []CommitNode{
				{Commit: Commit{Rollup: &StatusCheckRollup{}}},
			}}},
			want: "UNKNOWN (0 checks)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SummarizeCI(&tt.node))
		})
	}
}

func TestSummarizeMergeCI(t *testing.T) {
	t.Run("no merge commit", func(t *testing.T) {
		assert.Nil(t, SummarizeMergeCI(&PRNode{}))
	})

	t.Run("merge commit without checks", func(t *testing.T) {
		got := SummarizeMergeCI(&PRNode{MergeCommit: &Commit{OID: "abc"}})
		require.NotNil(t, got)
		assert.Equal(t, "no merge checks", *got)
	})

	t.Run("merge commit with rollup", func(t *testing.T) {
		got := SummarizeMergeCI(&PRNode{MergeCommit: &Commit{
			OID:    "abc",
			Rollup: &StatusCheckRollup{State: "FAILURE", Contexts: ContextConnection{Nodes: []CheckContext{{Name: "e2e"}}}},
		}})
		require.NotNil(t, got)
		assert.Equal(t, "FAILURE (1 merge checks)", *got)
	})
}

func TestSizeTier(t *testing.T) {
	// Score = churn*0.01 + files*0.2 + commits*0.05. Boundaries are
	// half-open: a score exactly on a threshold lands in the next tier.
	tests := []struct {
		name      string
		additions int
		deletions int
		files     int
		commits   int
		want      int
	}{
		{name: "empty PR", want: 0},
		{name: "just below first boundary", additions: 199, want: 0},
		{name: "exactly on first boundary", additions: 200, want: 1},
		{name: "second boundary", additions: 400, want: 2},
		{name: "third boundary", additions: 700, want: 3},
		{name: "fourth boundary", additions: 1100, want: 4},
		{name: "fifth boundary", additions: 1800, want: 5},
		{name: "huge PR", additions: 50000, deletions: 50000, files: 300, commits: 40, want: 5},
		{name: "files and commits count too", files: 8, commits: 8, want: 1},
		{name: "mixed churn", additions: 100, deletions: 100, files: 10, commits: 20, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := PRNode{
				Additions:    tt.additions,
				Deletions:    tt.deletions,
				ChangedFiles: tt.files,
				CommitTotals: CommitCount{TotalCount: tt.commits},
			}
			assert.Equal(t, tt.want, SizeTier(&node))
		})
	}
}

func TestSizeSparkline(t *testing.T) {
	t.Run("signal above cap saturates", func(t *testing.T) {
		points := SizeSparkline(&PRNode{Additions: 5000})
		require.Len(t, points, 10)
		assert.Equal(t, 1.0, points[9])
	})

	t.Run("points grow monotonically", func(t *testing.T) {
		points := SizeSparkline(&PRNode{Additions: 400, ChangedFiles: 10})
		require.Len(t, points, 10)
		for i := 1; i < len(points); i++ {
			assert.Greater(t, points[i], points[i-1])
		}
		// signal = 400 + 10*20 = 600, norm = 0.3
		assert.InDelta(t, 0.3, points[9], 1e-9)
	})

	t.Run("empty PR yields zeroes", func(t *testing.T) {
		points := SizeSparkline(&PRNode{})
		require.Len(t, points, 10)
		assert.Equal(t, 0.0, points[0])
		assert.Equal(t, 0.0, points[9])
	})
}

func TestHasConflicts(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{status: "DIRTY", want: true},
		{status: "dirty", want: true},
		{status: "CLEAN", want: false},
		{status: "BLOCKED", want: false},
		{status: "", want: false},
	}

	for _, tt := range tests {
		t.Run("status "+tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, HasConflicts(&PRNode{MergeStateStatus: tt.status}))
		})
	}
}

func TestExtractIssueKeys(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		prefixes []string
		want     []string
	}{
		{
			name: "plain key",
			text: "ABC-123: fix the flaky test",
			want: []string{"ABC-123"},
		},
		{
			name: "duplicates collapse preserving order",
			text: "Fixes ABC-123 and also ABC-123, see DEF-9",
			want: []string{"ABC-123", "DEF-9"},
		},
		{
			name: "lower case and space separator normalize",
			text: "follow up to abc 123",
			want: []string{"ABC-123"},
		},
		{
			name:     "allow-list drops foreign prefixes",
			text:     "ABC-1 relates to XYZ-2",
			prefixes: []string{"abc"},
			want:     []string{"ABC-1"},
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
		{
			name: "no keys present",
			text: "bump dependencies",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractIssueKeys(tt.text, tt.prefixes))
		})
	}
}

func TestMapNode(t *testing.T) {
	raw := json.RawMessage(`{"number": 7, "title": "ABC-42 add cache"}`)
	merged := mustTime(t, "2026-08-20T10:00:00Z")

	node := PRNode{
		Number:           7,
		Title:            "ABC-42 add cache",
		BodyText:         "also touches ABC-43",
		URL:              "https://github.test/acme/gateway/pull/7",
		Author:           &Actor{Login: "octocat"},
		State:            "MERGED",
		Additions:        150,
		Deletions:        50,
		ChangedFiles:     4,
		CommitTotals:     CommitCount{TotalCount: 3},
		MergeStateStatus: "CLEAN",
		MergedAt:         &merged,
		ReviewRequests: ReviewRequestConnection{Nodes: []ReviewRequestNode{
			{RequestedReviewer: &RequestedReviewer{Login: "reviewer1"}},
			{RequestedReviewer: &RequestedReviewer{Slug: "backend-team"}},
			{RequestedReviewer: nil},
		}},
		Reviews: reviews("APPROVED"),
		CommitsWithStatus: CommitConnection{Nodes: []CommitNode{
			{Commit: Commit{OID: "headsha"}},
		}},
		MergeCommit: &Commit{OID: "mergesha"},
		Raw:         raw,
	}

	rec := MapNode("acme", "gateway", &node, nil)

	assert.Equal(t, "acme", rec.RepoOwner)
	assert.Equal(t, "gateway", rec.RepoName)
	assert.Equal(t, 7, rec.Number)
	assert.Equal(t, "octocat", rec.Author)
	assert.Equal(t, "approved", rec.ReviewStatus)
	assert.Equal(t, "headsha", rec.LastCommitSHA)
	assert.Equal(t, "mergesha", rec.MergeCommitSHA)
	assert.False(t, rec.HasConflicts)
	assert.Equal(t, []string{"ABC-42", "ABC-43"}, rec.JiraKeys)
	assert.Equal(t, []string{"reviewer1"}, rec.RequestedReviewers)
	assert.Equal(t, []string{"backend-team"}, rec.RequestedTeams)
	require.NotNil(t, rec.MergedAt)
	assert.True(t, rec.MergedAt.Equal(merged))

	var snapshot map[string]any
	require.NoError(t, json.Unmarshal(rec.Raw, &snapshot))
	assert.Contains(t, snapshot, "size_sparkline")
	assert.Equal(t, "ABC-42 add cache", snapshot["title"])
}

func TestMapNodeMissingAuthor(t *testing.T) {
	rec := MapNode("acme", "gateway", &PRNode{Number: 1, Raw: json.RawMessage(`{}`)}, nil)
	assert.Equal(t, "unknown", rec.Author)
}
