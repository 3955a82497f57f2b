package service

import (
	"prdash/internal/domain"
)

// Dashboard lane titles, in display order.
const (
	LaneTitleReviewMe      = "PRs I need to review"
	LaneTitleMyNeedsReview = "My PRs that need review"
	LaneTitleMyReviewed    = "My PRs that have been reviewed"
	LaneTitleMergedToday   = "Merged PRs (today)"
)

// Lane is one named dashboard bucket with its records.
type Lane struct {
	Title   string                     `json:"title"`
	Records []domain.PullRequestRecord `json:"pull_requests"`
}

// reviewedStatuses are the review statuses that count as "someone has
// looked at this".
func isReviewed(status string) bool {
	switch status {
	case "approved", "changes requested", "reviewed":
		return true
	}
	return false
}

// ClassifyLanes buckets records into the dashboard lanes. Input order
// is preserved within each lane.
func ClassifyLanes(records []domain.PullRequestRecord) []Lane {
	var reviewMe, myNeedsReview, myReviewed, merged []domain.PullRequestRecord

	for _, rec := range records {
		switch {
		case rec.IsMerged():
			merged = append(merged, rec)
		case rec.IsMine && isReviewed(rec.ReviewStatus):
			myReviewed = append(myReviewed, rec)
		case rec.IsMine:
			myNeedsReview = append(myNeedsReview, rec)
		default:
			reviewMe = append(reviewMe, rec)
		}
	}

	return []Lane{
		{Title: LaneTitleReviewMe, Records: reviewMe},
		{Title: LaneTitleMyNeedsReview, Records: myNeedsReview},
		{Title: LaneTitleMyReviewed, Records: myReviewed},
		{Title: LaneTitleMergedToday, Records: merged},
	}
}
