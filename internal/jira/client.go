// Package jira provides HTTP access to the issue-tracker REST API:
// issue reads, transition listing and execution, component and assignee
// mutation.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"prdash/internal/domain"
)

// DefaultTimeout bounds every remote call. The client never retries;
// failed reads are picked up by the next poll cycle.
const DefaultTimeout = 8 * time.Second

// ErrNotFound reports a 404 from the tracker. Issue reads translate it
// into a "not found" snapshot; mutations surface it to the caller.
var ErrNotFound = errors.New("jira: not found")

// Client talks to one Jira instance with basic credentials.
type Client struct {
	BaseURL    string
	Email      string
	APIToken   string
	HTTPClient *http.Client
}

// NewClient creates a Jira client. An empty base URL, email or token
// leaves the client disabled.
func NewClient(baseURL, email, apiToken string) *Client {
	return &Client{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		Email:    email,
		APIToken: apiToken,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL returns a copy of the client pointed at another instance.
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Email:      c.Email,
		APIToken:   c.APIToken,
		HTTPClient: c.HTTPClient,
	}
}

// WithHTTPClient returns a copy of the client using a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		BaseURL:    c.BaseURL,
		Email:      c.Email,
		APIToken:   c.APIToken,
		HTTPClient: httpClient,
	}
}

// Enabled reports whether the tracker integration is configured.
func (c *Client) Enabled() bool {
	return c.BaseURL != "" && c.Email != "" && c.APIToken != ""
}

// BrowseURL returns the human-facing URL for an issue key.
func (c *Client) BrowseURL(key string) string {
	return c.BaseURL + "/browse/" + key
}

// doRequest executes an authenticated request and returns the response
// body. A 404 maps to ErrNotFound.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body []byte) ([]byte, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("jira integration not configured")
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(c.Email + ":" + c.APIToken))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("jira API returned %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

type userField struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
}

type issuePayload struct {
	Key    string `json:"key"`
	Fields struct {
		Summary string `json:"summary"`
		Status  *struct {
			Name string `json:"name"`
		} `json:"status"`
		Components []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"components"`
		Assignee *userField `json:"assignee"`
	} `json:"fields"`
}

// GetIssue fetches one issue's snapshot. A 404 yields a snapshot with
// status "not found" and a nil error; other faults are errors the
// caller may retry next cycle.
func (c *Client) GetIssue(ctx context.Context, key string) (*domain.IssueSnapshot, error) {
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s?fields=summary,status,components,assignee", c.BaseURL, url.PathEscape(key))

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if errors.Is(err, ErrNotFound) {
		return &domain.IssueSnapshot{
			Key:    key,
			Status: domain.IssueStatusNotFound,
			URL:    c.BrowseURL(key),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issue %s: %w", key, err)
	}

	var payload issuePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse issue response: %w", err)
	}

	snapshot := &domain.IssueSnapshot{
		Key:     key,
		Summary: payload.Fields.Summary,
		URL:     c.BrowseURL(key),
	}
	if payload.Fields.Status != nil {
		snapshot.Status = payload.Fields.Status.Name
	}
	for _, component := range payload.Fields.Components {
		snapshot.Components = append(snapshot.Components, component.Name)
	}
	if payload.Fields.Assignee != nil {
		snapshot.Assignee = &domain.IssueUser{
			DisplayName:  payload.Fields.Assignee.DisplayName,
			EmailAddress: payload.Fields.Assignee.EmailAddress,
			AccountID:    payload.Fields.Assignee.AccountID,
		}
	}
	return snapshot, nil
}

// GetTransitions lists the transitions the tracker currently permits
// from the issue's present status.
func (c *Client) GetTransitions(ctx context.Context, key string) ([]domain.TransitionStep, error) {
	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/transitions", c.BaseURL, url.PathEscape(key))

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("get transitions for %s: %w", key, err)
	}

	var payload struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			To   struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse transitions response: %w", err)
	}

	steps := make([]domain.TransitionStep, 0, len(payload.Transitions))
	for _, t := range payload.Transitions {
		steps = append(steps, domain.TransitionStep{ID: t.ID, Name: t.Name, ToStatus: t.To.Name})
	}
	return steps, nil
}

// ApplyTransition executes one permitted transition by id.
func (c *Client) ApplyTransition(ctx context.Context, key, transitionID string) error {
	payload, err := json.Marshal(map[string]any{
		"transition": map[string]string{"id": transitionID},
	})
	if err != nil {
		return fmt.Errorf("marshal transition request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/transitions", c.BaseURL, url.PathEscape(key))
	if _, err := c.doRequest(ctx, http.MethodPost, apiURL, payload); err != nil {
		return fmt.Errorf("apply transition %s on %s: %w", transitionID, key, err)
	}
	return nil
}

// GetProjectComponents lists the components registered on a project.
func (c *Client) GetProjectComponents(ctx context.Context, projectKey string) ([]domain.ProjectComponent, error) {
	apiURL := fmt.Sprintf("%s/rest/api/3/project/%s/components", c.BaseURL, url.PathEscape(projectKey))

	body, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("get components for project %s: %w", projectKey, err)
	}

	var payload []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse components response: %w", err)
	}

	components := make([]domain.ProjectComponent, 0, len(payload))
	for _, component := range payload {
		components = append(components, domain.ProjectComponent{ID: component.ID, Name: component.Name})
	}
	return components, nil
}

// AddComponents adds components to an issue by id, keeping the ones
// already set.
func (c *Client) AddComponents(ctx context.Context, key string, componentIDs []string) error {
	adds := make([]map[string]any, 0, len(componentIDs))
	for _, id := range componentIDs {
		adds = append(adds, map[string]any{"add": map[string]string{"id": id}})
	}

	payload, err := json.Marshal(map[string]any{
		"update": map[string]any{"components": adds},
	})
	if err != nil {
		return fmt.Errorf("marshal component update: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s", c.BaseURL, url.PathEscape(key))
	if _, err := c.doRequest(ctx, http.MethodPut, apiURL, payload); err != nil {
		return fmt.Errorf("add components to %s: %w", key, err)
	}
	return nil
}

// ResolveAccountID returns the account id of the credential owner.
func (c *Client) ResolveAccountID(ctx context.Context) (string, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.BaseURL+"/rest/api/3/myself", nil)
	if err != nil {
		return "", fmt.Errorf("resolve account id: %w", err)
	}

	var payload struct {
		AccountID string `json:"accountId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parse myself response: %w", err)
	}
	if payload.AccountID == "" {
		return "", fmt.Errorf("myself response has no account id")
	}
	return payload.AccountID, nil
}

// AssignIssue sets the issue's assignee by account id.
func (c *Client) AssignIssue(ctx context.Context, key, accountID string) error {
	payload, err := json.Marshal(map[string]string{"accountId": accountID})
	if err != nil {
		return fmt.Errorf("marshal assignee request: %w", err)
	}

	apiURL := fmt.Sprintf("%s/rest/api/3/issue/%s/assignee", c.BaseURL, url.PathEscape(key))
	if _, err := c.doRequest(ctx, http.MethodPut, apiURL, payload); err != nil {
		return fmt.Errorf("assign issue %s: %w", key, err)
	}
	return nil
}
