package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"prdash/internal/config"
	"prdash/internal/domain"
)

// PullRequestSource fetches and derives records from the code host.
type PullRequestSource interface {
	ListPullRequests(ctx context.Context, owner, name string, limit int) ([]domain.PullRequestRecord, error)
	GetPullRequest(ctx context.Context, owner, name string, number int) (*domain.PullRequestRecord, error)
}

// RecordCorrelator fills a record's issue-tracker correlation block.
// It reports failures as absent fields, never as errors.
type RecordCorrelator interface {
	Apply(ctx context.Context, rec *domain.PullRequestRecord)
}

// RecordStore persists records with atomic replace-or-insert semantics.
type RecordStore interface {
	Upsert(ctx context.Context, rec *domain.PullRequestRecord) error
}

// Poller drives the periodic fetch-derive-correlate-upsert cycle. Every
// failure inside a pass is logged and isolated; the loop never stops.
type Poller struct {
	source     PullRequestSource
	correlator RecordCorrelator
	store      RecordStore
	logger     *slog.Logger

	username string
	repos    []config.Repo
	watched  []config.WatchedPR
	interval time.Duration
	limit    int
}

func NewPoller(
	source PullRequestSource,
	correlator RecordCorrelator,
	store RecordStore,
	cfg *config.Config,
	logger *slog.Logger,
) (*Poller, error) {
	repos, err := cfg.GitHub.RepoList()
	if err != nil {
		return nil, err
	}
	watched, err := cfg.GitHub.WatchedPRList()
	if err != nil {
		return nil, err
	}

	return &Poller{
		source:     source,
		correlator: correlator,
		store:      store,
		logger:     logger,
		username:   cfg.GitHub.Username,
		repos:      repos,
		watched:    watched,
		interval:   cfg.Poll.Interval(),
		limit:      cfg.Poll.Limit(),
	}, nil
}

// Run loops until the context is cancelled: one pass, then sleep.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started",
		"repos", len(p.repos),
		"watched", len(p.watched),
		"interval", p.interval,
	)

	for {
		p.PollOnce(ctx)

		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-time.After(p.interval):
		}
	}
}

// PollOnce runs a single pass over all tracked repositories and watched
// pull requests. Already-upserted records survive later failures in the
// same pass.
func (p *Poller) PollOnce(ctx context.Context) {
	for _, repo := range p.repos {
		records, err := p.source.ListPullRequests(ctx, repo.Owner, repo.Name, p.limit)
		if err != nil {
			p.logger.Error("fetch repo pull requests failed",
				"owner", repo.Owner,
				"repo", repo.Name,
				"error", err,
			)
			continue
		}

		for i := range records {
			rec := &records[i]
			if !p.tracked(rec) {
				continue
			}
			p.syncRecord(ctx, rec)
		}
	}

	for _, watched := range p.watched {
		rec, err := p.source.GetPullRequest(ctx, watched.Owner, watched.Name, watched.Number)
		if err != nil {
			p.logger.Error("fetch watched pull request failed",
				"owner", watched.Owner,
				"repo", watched.Name,
				"number", watched.Number,
				"error", err,
			)
			continue
		}
		if rec == nil {
			continue
		}
		// Watched PRs bypass the authorship/review filter.
		p.syncRecord(ctx, rec)
	}
}

// tracked keeps pull requests authored by the tracked account, with the
// tracked account requested as reviewer, or with any team review
// request.
func (p *Poller) tracked(rec *domain.PullRequestRecord) bool {
	if strings.EqualFold(rec.Author, p.username) {
		return true
	}
	for _, reviewer := range rec.RequestedReviewers {
		if strings.EqualFold(reviewer, p.username) {
			return true
		}
	}
	return len(rec.RequestedTeams) > 0
}

func (p *Poller) syncRecord(ctx context.Context, rec *domain.PullRequestRecord) {
	rec.IsMine = strings.EqualFold(rec.Author, p.username)
	p.correlator.Apply(ctx, rec)

	if err := p.store.Upsert(ctx, rec); err != nil {
		p.logger.Error("upsert pull request failed",
			"owner", rec.RepoOwner,
			"repo", rec.RepoName,
			"number", rec.Number,
			"error", err,
		)
	}
}
