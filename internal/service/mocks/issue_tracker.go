package mocks

import (
	"context"

	"prdash/internal/domain"
)

// MockIssueTracker scripts a tracker whose state advances with each
// applied transition: index i of Statuses and TransitionsSeq describes
// the world after i applications. The last entry repeats once the
// script runs out.
type MockIssueTracker struct {
	EnabledValue   bool
	Statuses       []string
	TransitionsSeq [][]domain.TransitionStep
	GetIssueErr    error
	TransitionsErr error
	ApplyErr       error

	Applied []string
}

func (m *MockIssueTracker) Enabled() bool {
	return m.EnabledValue
}

func (m *MockIssueTracker) index(max int) int {
	i := len(m.Applied)
	if i >= max {
		i = max - 1
	}
	return i
}

func (m *MockIssueTracker) GetIssue(ctx context.Context, key string) (*domain.IssueSnapshot, error) {
	if m.GetIssueErr != nil {
		return nil, m.GetIssueErr
	}
	status := ""
	if len(m.Statuses) > 0 {
		status = m.Statuses[m.index(len(m.Statuses))]
	}
	return &domain.IssueSnapshot{Key: key, Status: status}, nil
}

func (m *MockIssueTracker) GetTransitions(ctx context.Context, key string) ([]domain.TransitionStep, error) {
	if m.TransitionsErr != nil {
		return nil, m.TransitionsErr
	}
	if len(m.TransitionsSeq) == 0 {
		return nil, nil
	}
	return m.TransitionsSeq[m.index(len(m.TransitionsSeq))], nil
}

func (m *MockIssueTracker) ApplyTransition(ctx context.Context, key, transitionID string) error {
	if m.ApplyErr != nil {
		return m.ApplyErr
	}
	m.Applied = append(m.Applied, transitionID)
	return nil
}

type MockPathSource struct {
	StepsResult []domain.PathStep
}

func (m *MockPathSource) Steps() []domain.PathStep {
	return m.StepsResult
}

type MockIssueMutator struct {
	EnabledValue     bool
	ComponentsResult []domain.ProjectComponent
	ComponentsErr    error
	AddErr           error
	AddedIDs         []string
	AccountID        string
	AccountErr       error
	AssignErr        error
	AssignedKeys     []string
}

func (m *MockIssueMutator) Enabled() bool {
	return m.EnabledValue
}

func (m *MockIssueMutator) GetProjectComponents(ctx context.Context, projectKey string) ([]domain.ProjectComponent, error) {
	return m.ComponentsResult, m.ComponentsErr
}

func (m *MockIssueMutator) AddComponents(ctx context.Context, key string, componentIDs []string) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.AddedIDs = append(m.AddedIDs, componentIDs...)
	return nil
}

func (m *MockIssueMutator) ResolveAccountID(ctx context.Context) (string, error) {
	return m.AccountID, m.AccountErr
}

func (m *MockIssueMutator) AssignIssue(ctx context.Context, key, accountID string) error {
	if m.AssignErr != nil {
		return m.AssignErr
	}
	m.AssignedKeys = append(m.AssignedKeys, key)
	return nil
}
