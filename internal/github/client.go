package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultEndpoint is the public GitHub GraphQL endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

// DefaultTimeout bounds every remote call. Retry policy lives with the
// poll scheduler, not here.
const DefaultTimeout = 8 * time.Second

const prFields = `
      number
      title
      bodyText
      url
      author { login }
      isDraft
      state
      additions
      deletions
      changedFiles
      commitTotals: commits { totalCount }
      mergeStateStatus
      updatedAt
      mergedAt
      reviewRequests(first: 10) {
        nodes {
          requestedReviewer {
            ... on User { login }
            ... on Team { slug }
          }
        }
      }
      reviews(last: 10) {
        nodes {
          author { login }
          state
        }
      }
      commitsWithStatus: commits(last: 1) {
        nodes {
          commit {
            oid
            statusCheckRollup {
              state
              contexts(first: 10) {
                nodes {
                  __typename
                  ... on CheckRun { name status conclusion }
                  ... on StatusContext { context state }
                }
              }
            }
          }
        }
      }
      mergeCommit {
        oid
        statusCheckRollup {
          state
          contexts(first: 10) {
            nodes {
              __typename
              ... on CheckRun { name status conclusion }
              ... on StatusContext { context state }
            }
          }
        }
      }
`

const prListQuery = `
query RepoPRs($owner: String!, $name: String!, $first: Int!) {
  repository(owner: $owner, name: $name) {
    pullRequests(
      first: $first,
      states: [OPEN, MERGED],
      orderBy: {field: UPDATED_AT, direction: DESC}
    ) {
      nodes {` + prFields + `}
    }
  }
}`

const prSingleQuery = `
query SinglePR($owner: String!, $name: String!, $number: Int!) {
  repository(owner: $owner, name: $name) {
    pullRequest(number: $number) {` + prFields + `}
  }
}`

// Client issues GraphQL queries against the code-hosting API.
type Client struct {
	Token      string
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient creates a GitHub client authenticated with a bearer token.
func NewClient(token string) *Client {
	return &Client{
		Token:    token,
		Endpoint: DefaultEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithBaseURL returns a copy of the client pointed at another endpoint.
func (c *Client) WithBaseURL(endpoint string) *Client {
	return &Client{
		Token:      c.Token,
		Endpoint:   endpoint,
		HTTPClient: c.HTTPClient,
	}
}

// WithHTTPClient returns a copy of the client using a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		Token:      c.Token,
		Endpoint:   c.Endpoint,
		HTTPClient: httpClient,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// execute posts one query and unmarshals the data envelope into out.
// There is no retry here: a failed call surfaces to the caller and the
// next poll cycle tries again.
func (c *Client) execute(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create graphql request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read graphql response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("github API returned %d: %s", resp.StatusCode, string(body))
	}

	var envelope gqlResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("parse graphql envelope: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("parse graphql data: %w", err)
	}
	return nil
}

// decodeNodes unmarshals raw PR payloads, keeping the original bytes on
// each node for the record snapshot.
func decodeNodes(raws []json.RawMessage) ([]PRNode, error) {
	nodes := make([]PRNode, 0, len(raws))
	for _, raw := range raws {
		var node PRNode
		if err := json.Unmarshal(raw, &node); err != nil {
			return nil, fmt.Errorf("parse pull request node: %w", err)
		}
		node.Raw = raw
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// FetchRepoPullRequests returns a repository's most recently updated
// pull requests, filtered server-side to OPEN and MERGED. An unknown
// repository yields an empty slice.
func (c *Client) FetchRepoPullRequests(ctx context.Context, owner, name string, limit int) ([]PRNode, error) {
	var data struct {
		Repository *struct {
			PullRequests struct {
				Nodes []json.RawMessage `json:"nodes"`
			} `json:"pullRequests"`
		} `json:"repository"`
	}

	variables := map[string]any{"owner": owner, "name": name, "first": limit}
	if err := c.execute(ctx, prListQuery, variables, &data); err != nil {
		return nil, fmt.Errorf("fetch pull requests for %s/%s: %w", owner, name, err)
	}
	if data.Repository == nil {
		return nil, nil
	}

	return decodeNodes(data.Repository.PullRequests.Nodes)
}

// FetchPullRequest returns one pull request by number, or nil when the
// repository or pull request does not exist.
func (c *Client) FetchPullRequest(ctx context.Context, owner, name string, number int) (*PRNode, error) {
	var data struct {
		Repository *struct {
			PullRequest json.RawMessage `json:"pullRequest"`
		} `json:"repository"`
	}

	variables := map[string]any{"owner": owner, "name": name, "number": number}
	if err := c.execute(ctx, prSingleQuery, variables, &data); err != nil {
		return nil, fmt.Errorf("fetch pull request %s/%s#%d: %w", owner, name, number, err)
	}
	if data.Repository == nil || len(data.Repository.PullRequest) == 0 || string(data.Repository.PullRequest) == "null" {
		return nil, nil
	}

	nodes, err := decodeNodes([]json.RawMessage{data.Repository.PullRequest})
	if err != nil {
		return nil, err
	}
	return &nodes[0], nil
}
