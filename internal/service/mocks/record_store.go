package mocks

import (
	"context"

	"prdash/internal/domain"
)

type MockRecordStore struct {
	UpsertErr error
	Upserted  []domain.PullRequestRecord
}

func (m *MockRecordStore) Upsert(ctx context.Context, rec *domain.PullRequestRecord) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.Upserted = append(m.Upserted, *rec)
	return nil
}

type MockOwnershipChecker struct {
	LinkedResult bool
	LinkedErr    error
	CheckedKeys  []string
}

func (m *MockOwnershipChecker) IsLinkedToMine(ctx context.Context, jiraKey string) (bool, error) {
	m.CheckedKeys = append(m.CheckedKeys, jiraKey)
	return m.LinkedResult, m.LinkedErr
}

type MockCorrelator struct {
	Applied []string
}

func (m *MockCorrelator) Apply(ctx context.Context, rec *domain.PullRequestRecord) {
	m.Applied = append(m.Applied, rec.Title)
}
