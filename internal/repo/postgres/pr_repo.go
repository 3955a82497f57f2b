package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"prdash/internal/domain"
)

type PRRepo struct {
	db *sql.DB
}

func NewPRRepo(db *sql.DB) *PRRepo {
	return &PRRepo{db: db}
}

const recordColumns = `repo_owner, repo_name, number, title, author, url, state, is_draft,
        review_status, ci_summary, merge_ci_summary, last_commit_sha, merge_commit_sha,
        has_conflicts, size_tier, is_mine,
        jira_key, jira_keys, jira_status, jira_summary, jira_url, jira_last_synced_at,
        jira_components, jira_components_match, jira_assignee, jira_assignee_match,
        updated_at, merged_at, last_synced_at, raw`

// Upsert replaces or inserts the record for its (owner, name, number)
// key. A single statement keeps replace-or-insert atomic per record, so
// concurrent cycles cannot produce duplicate rows or interleave fields,
// and a failed pass keeps the records it already wrote. last_synced_at
// is refreshed on every call.
func (r *PRRepo) Upsert(ctx context.Context, rec *domain.PullRequestRecord) error {
	jiraKeys, err := json.Marshal(rec.JiraKeys)
	if err != nil {
		return fmt.Errorf("marshal jira keys: %w", err)
	}
	jiraComponents, err := json.Marshal(rec.JiraComponents)
	if err != nil {
		return fmt.Errorf("marshal jira components: %w", err)
	}

	raw := rec.Raw
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO pull_requests (
            repo_owner, repo_name, number, title, author, url, state, is_draft,
            review_status, ci_summary, merge_ci_summary, last_commit_sha, merge_commit_sha,
            has_conflicts, size_tier, is_mine,
            jira_key, jira_keys, jira_status, jira_summary, jira_url, jira_last_synced_at,
            jira_components, jira_components_match, jira_assignee, jira_assignee_match,
            updated_at, merged_at, last_synced_at, raw
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8,
            $9, $10, $11, $12, $13,
            $14, $15, $16,
            $17, $18, $19, $20, $21, $22,
            $23, $24, $25, $26,
            $27, $28, now(), $29
        )
        ON CONFLICT (repo_owner, repo_name, number) DO UPDATE SET
            title                 = EXCLUDED.title,
            author                = EXCLUDED.author,
            url                   = EXCLUDED.url,
            state                 = EXCLUDED.state,
            is_draft              = EXCLUDED.is_draft,
            review_status         = EXCLUDED.review_status,
            ci_summary            = EXCLUDED.ci_summary,
            merge_ci_summary      = EXCLUDED.merge_ci_summary,
            last_commit_sha       = EXCLUDED.last_commit_sha,
            merge_commit_sha      = EXCLUDED.merge_commit_sha,
            has_conflicts         = EXCLUDED.has_conflicts,
            size_tier             = EXCLUDED.size_tier,
            is_mine               = EXCLUDED.is_mine,
            jira_key              = EXCLUDED.jira_key,
            jira_keys             = EXCLUDED.jira_keys,
            jira_status           = EXCLUDED.jira_status,
            jira_summary          = EXCLUDED.jira_summary,
            jira_url              = EXCLUDED.jira_url,
            jira_last_synced_at   = EXCLUDED.jira_last_synced_at,
            jira_components       = EXCLUDED.jira_components,
            jira_components_match = EXCLUDED.jira_components_match,
            jira_assignee         = EXCLUDED.jira_assignee,
            jira_assignee_match   = EXCLUDED.jira_assignee_match,
            updated_at            = EXCLUDED.updated_at,
            merged_at             = EXCLUDED.merged_at,
            last_synced_at        = now(),
            raw                   = EXCLUDED.raw`,
		rec.RepoOwner, rec.RepoName, rec.Number, rec.Title, rec.Author, rec.URL, string(rec.State), rec.IsDraft,
		nullString(rec.ReviewStatus), nullString(rec.CISummary), rec.MergeCISummary, nullString(rec.LastCommitSHA), nullString(rec.MergeCommitSHA),
		rec.HasConflicts, rec.SizeTier, rec.IsMine,
		nullString(rec.JiraKey), jiraKeys, nullString(rec.JiraStatus), nullString(rec.JiraSummary), nullString(rec.JiraURL), rec.JiraLastSyncedAt,
		jiraComponents, rec.JiraComponentsMatch, nullString(rec.JiraAssignee), rec.JiraAssigneeMatch,
		rec.UpdatedAt, rec.MergedAt, []byte(raw),
	)
	if err != nil {
		return fmt.Errorf("upsert pull_request %s/%s#%d: %w", rec.RepoOwner, rec.RepoName, rec.Number, err)
	}

	return nil
}

// Get returns the record for one (owner, name, number) key.
func (r *PRRepo) Get(ctx context.Context, owner, name string, number int) (*domain.PullRequestRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+`
         FROM pull_requests
         WHERE repo_owner = $1 AND repo_name = $2 AND number = $3`,
		owner, name, number,
	)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, domain.NewDomainError(domain.ErrorCodeNotFound, fmt.Sprintf("pull request %s/%s#%d not known", owner, name, number))
	}
	if err != nil {
		return nil, fmt.Errorf("get pull_request: %w", err)
	}
	return rec, nil
}

// ListActive returns the records the dashboard shows: everything not
// merged, plus records merged at or after mergedSince. Ordered with the
// caller's own pull requests first, most recently updated first.
func (r *PRRepo) ListActive(ctx context.Context, mergedSince time.Time) ([]domain.PullRequestRecord, error) {
	dbRows, err := r.db.QueryContext(ctx,
		`SELECT `+recordColumns+`
         FROM pull_requests
         WHERE state <> 'MERGED' OR merged_at >= $1
         ORDER BY is_mine DESC, updated_at DESC`,
		mergedSince,
	)
	if err != nil {
		return nil, fmt.Errorf("list active pull_requests: %w", err)
	}
	defer func() { _ = dbRows.Close() }()

	records := make([]domain.PullRequestRecord, 0)
	for dbRows.Next() {
		rec, err := scanRecord(dbRows)
		if err != nil {
			return nil, fmt.Errorf("scan pull_request: %w", err)
		}
		records = append(records, *rec)
	}
	if err := dbRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pull_requests: %w", err)
	}

	return records, nil
}

// IsLinkedToMine reports whether any of the caller's own pull requests
// carries the issue key. Mutations on unlinked issues are rejected
// before any remote call.
func (r *PRRepo) IsLinkedToMine(ctx context.Context, jiraKey string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM pull_requests
         WHERE is_mine AND (jira_key = $1 OR jira_keys @> to_jsonb($1::text))
         LIMIT 1`,
		jiraKey,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check issue link: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.PullRequestRecord, error) {
	var (
		rec              domain.PullRequestRecord
		state            string
		reviewStatus     sql.NullString
		ciSummary        sql.NullString
		mergeCISummary   sql.NullString
		lastCommitSHA    sql.NullString
		mergeCommitSHA   sql.NullString
		jiraKey          sql.NullString
		jiraKeysRaw      []byte
		jiraStatus       sql.NullString
		jiraSummary      sql.NullString
		jiraURL          sql.NullString
		jiraSyncedRaw    sql.NullTime
		jiraComponents   []byte
		componentsMatch  sql.NullBool
		jiraAssignee     sql.NullString
		assigneeMatch    sql.NullBool
		mergedRaw        sql.NullTime
		raw              []byte
	)

	err := row.Scan(
		&rec.RepoOwner, &rec.RepoName, &rec.Number, &rec.Title, &rec.Author, &rec.URL, &state, &rec.IsDraft,
		&reviewStatus, &ciSummary, &mergeCISummary, &lastCommitSHA, &mergeCommitSHA,
		&rec.HasConflicts, &rec.SizeTier, &rec.IsMine,
		&jiraKey, &jiraKeysRaw, &jiraStatus, &jiraSummary, &jiraURL, &jiraSyncedRaw,
		&jiraComponents, &componentsMatch, &jiraAssignee, &assigneeMatch,
		&rec.UpdatedAt, &mergedRaw, &rec.LastSyncedAt, &raw,
	)
	if err != nil {
		return nil, err
	}

	rec.State = domain.PRState(state)
	rec.ReviewStatus = reviewStatus.String
	rec.CISummary = ciSummary.String
	if mergeCISummary.Valid {
		rec.MergeCISummary = &mergeCISummary.String
	}
	rec.LastCommitSHA = lastCommitSHA.String
	rec.MergeCommitSHA = mergeCommitSHA.String
	rec.JiraKey = jiraKey.String
	if len(jiraKeysRaw) > 0 {
		if err := json.Unmarshal(jiraKeysRaw, &rec.JiraKeys); err != nil {
			return nil, fmt.Errorf("unmarshal jira keys: %w", err)
		}
	}
	rec.JiraStatus = jiraStatus.String
	rec.JiraSummary = jiraSummary.String
	rec.JiraURL = jiraURL.String
	if jiraSyncedRaw.Valid {
		t := jiraSyncedRaw.Time
		rec.JiraLastSyncedAt = &t
	}
	if len(jiraComponents) > 0 {
		if err := json.Unmarshal(jiraComponents, &rec.JiraComponents); err != nil {
			return nil, fmt.Errorf("unmarshal jira components: %w", err)
		}
	}
	if componentsMatch.Valid {
		rec.JiraComponentsMatch = &componentsMatch.Bool
	}
	rec.JiraAssignee = jiraAssignee.String
	if assigneeMatch.Valid {
		rec.JiraAssigneeMatch = &assigneeMatch.Bool
	}
	if mergedRaw.Valid {
		t := mergedRaw.Time
		rec.MergedAt = &t
	}
	rec.Raw = raw

	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
