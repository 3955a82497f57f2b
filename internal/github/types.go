// Package github fetches pull-request data from the GitHub GraphQL API
// and derives the dashboard's categorical signals from it.
package github

import (
	"encoding/json"
	"time"
)

type Actor struct {
	Login string `json:"login"`
}

type ReviewNode struct {
	Author *Actor `json:"author"`
	State  string `json:"state"`
}

type ReviewConnection struct {
	Nodes []ReviewNode `json:"nodes"`
}

// RequestedReviewer is a union of User and Team; exactly one of Login
// and Slug is set.
type RequestedReviewer struct {
	Login string `json:"login"`
	Slug  string `json:"slug"`
}

type ReviewRequestNode struct {
	RequestedReviewer *RequestedReviewer `json:"requestedReviewer"`
}

type ReviewRequestConnection struct {
	Nodes []ReviewRequestNode `json:"nodes"`
}

type CheckContext struct {
	Typename   string `json:"__typename"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	Context    string `json:"context"`
	State      string `json:"state"`
}

type ContextConnection struct {
	Nodes []CheckContext `json:"nodes"`
}

// StatusCheckRollup aggregates all CI check contexts for one commit.
type StatusCheckRollup struct {
	State    string            `json:"state"`
	Contexts ContextConnection `json:"contexts"`
}

type Commit struct {
	OID    string             `json:"oid"`
	Rollup *StatusCheckRollup `json:"statusCheckRollup"`
}

type CommitNode struct {
	Commit Commit `json:"commit"`
}

type CommitConnection struct {
	Nodes []CommitNode `json:"nodes"`
}

type CommitCount struct {
	TotalCount int `json:"totalCount"`
}

// PRNode is the raw pull-request structure as the GraphQL API returns
// it. Raw holds the undecoded payload for the record snapshot.
type PRNode struct {
	Number            int                     `json:"number"`
	Title             string                  `json:"title"`
	BodyText          string                  `json:"bodyText"`
	URL               string                  `json:"url"`
	Author            *Actor                  `json:"author"`
	IsDraft           bool                    `json:"isDraft"`
	State             string                  `json:"state"`
	Additions         int                     `json:"additions"`
	Deletions         int                     `json:"deletions"`
	ChangedFiles      int                     `json:"changedFiles"`
	CommitTotals      CommitCount             `json:"commitTotals"`
	MergeStateStatus  string                  `json:"mergeStateStatus"`
	UpdatedAt         time.Time               `json:"updatedAt"`
	MergedAt          *time.Time              `json:"mergedAt"`
	ReviewRequests    ReviewRequestConnection `json:"reviewRequests"`
	Reviews           ReviewConnection        `json:"reviews"`
	CommitsWithStatus CommitConnection        `json:"commitsWithStatus"`
	MergeCommit       *Commit                 `json:"mergeCommit"`

	Raw json.RawMessage `json:"-"`
}
