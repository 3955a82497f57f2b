package mocks

import (
	"context"

	"prdash/internal/domain"
)

type MockPullRequestSource struct {
	// ListResults is keyed by "owner/name".
	ListResults map[string][]domain.PullRequestRecord
	ListErrs    map[string]error
	ListCalls   []string

	GetResult *domain.PullRequestRecord
	GetErr    error
	GetCalls  int
}

func (m *MockPullRequestSource) ListPullRequests(ctx context.Context, owner, name string, limit int) ([]domain.PullRequestRecord, error) {
	key := owner + "/" + name
	m.ListCalls = append(m.ListCalls, key)
	if err, ok := m.ListErrs[key]; ok {
		return nil, err
	}
	return m.ListResults[key], nil
}

func (m *MockPullRequestSource) GetPullRequest(ctx context.Context, owner, name string, number int) (*domain.PullRequestRecord, error) {
	m.GetCalls++
	return m.GetResult, m.GetErr
}
