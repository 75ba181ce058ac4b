package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"jira-mcp-server/internal/domain"
)

// JiraClient is the upstream gateway: one method per REST verb+path consumed
// by the tool handlers. The httpClient is expected to carry authentication
// (see domain.NewAuthenticatedClient).
type JiraClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewJiraClient creates a new Jira API client.
// The baseURL should be the root URL of the Jira instance
// (e.g., "https://yourcompany.atlassian.net").
func NewJiraClient(baseURL string, httpClient *http.Client) *JiraClient {
	return &JiraClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// BaseURL returns the configured base URL for the Jira instance.
func (c *JiraClient) BaseURL() string {
	return c.baseURL
}

// get issues a GET request and decodes the JSON response into out.
func (c *JiraClient) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, http.StatusOK, out)
}

// post issues a POST request with a JSON body. out may be nil when the caller
// does not need the response body.
func (c *JiraClient) post(ctx context.Context, endpoint string, payload interface{}, wantStatus int, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, wantStatus, out)
}

// do executes the request with common headers and maps non-2xx responses to
// domain.HTTPError so the dispatcher can subdivide them by status.
func (c *JiraClient) do(req *http.Request, wantStatus int, out interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.NewHTTPError(resp.StatusCode, http.StatusText(resp.StatusCode), string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetProjects retrieves all projects visible to the authenticated user.
func (c *JiraClient) GetProjects(ctx context.Context) ([]domain.Project, error) {
	endpoint := fmt.Sprintf("%s/rest/api/2/project", c.baseURL)

	var projects []domain.Project
	if err := c.get(ctx, endpoint, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetIssue retrieves a Jira issue by its key (e.g., "TEST-123").
func (c *JiraClient) GetIssue(ctx context.Context, issueKey string) (*domain.JiraIssue, error) {
	endpoint := fmt.Sprintf("%s/rest/api/2/issue/%s", c.baseURL, url.PathEscape(issueKey))

	var issue domain.JiraIssue
	if err := c.get(ctx, endpoint, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// SearchOptions contains options for JQL search operations.
type SearchOptions struct {
	StartAt    int      // The index of the first issue to return (0-based)
	MaxResults int      // The maximum number of issues to return
	Fields     []string // The fields to include in the response (optional)
}

// SearchIssues performs a JQL (Jira Query Language) search.
// Returns search results including issues and pagination metadata.
func (c *JiraClient) SearchIssues(ctx context.Context, jql string, options *SearchOptions) (*domain.SearchResults, error) {
	params := url.Values{}
	params.Set("jql", jql)

	if options != nil {
		if options.StartAt > 0 {
			params.Set("startAt", strconv.Itoa(options.StartAt))
		}
		if options.MaxResults > 0 {
			params.Set("maxResults", strconv.Itoa(options.MaxResults))
		}
		for _, field := range options.Fields {
			params.Add("fields", field)
		}
	}

	endpoint := fmt.Sprintf("%s/rest/api/2/search?%s", c.baseURL, params.Encode())

	var results domain.SearchResults
	if err := c.get(ctx, endpoint, &results); err != nil {
		return nil, err
	}
	return &results, nil
}

// GetProjectRoles retrieves the role map of a project: a mapping from role
// name to the URL of that role's detail resource.
func (c *JiraClient) GetProjectRoles(ctx context.Context, projectKey string) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s/rest/api/2/project/%s/role", c.baseURL, url.PathEscape(projectKey))

	var roles map[string]string
	if err := c.get(ctx, endpoint, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRoleDetails fetches a role-detail resource by the URL obtained from
// GetProjectRoles. The URL is absolute and already carries the instance host.
func (c *JiraClient) GetRoleDetails(ctx context.Context, roleURL string) (*domain.RoleDetails, error) {
	var details domain.RoleDetails
	if err := c.get(ctx, roleURL, &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// SearchUsers searches for users matching the query string.
func (c *JiraClient) SearchUsers(ctx context.Context, query string) ([]domain.User, error) {
	params := url.Values{}
	params.Set("query", query)
	endpoint := fmt.Sprintf("%s/rest/api/2/user/search?%s", c.baseURL, params.Encode())

	var users []domain.User
	if err := c.get(ctx, endpoint, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateIssue creates a new Jira issue.
// Returns the created issue with its assigned key and ID.
func (c *JiraClient) CreateIssue(ctx context.Context, issue *domain.JiraIssueCreate) (*domain.JiraIssue, error) {
	endpoint := fmt.Sprintf("%s/rest/api/2/issue", c.baseURL)

	var createdIssue domain.JiraIssue
	if err := c.post(ctx, endpoint, issue, http.StatusCreated, &createdIssue); err != nil {
		return nil, err
	}
	return &createdIssue, nil
}

// GetBoards retrieves Agile boards. A non-empty projectKey filters boards to
// that project; an empty projectKey lists all boards.
func (c *JiraClient) GetBoards(ctx context.Context, projectKey string) ([]domain.Board, error) {
	endpoint := fmt.Sprintf("%s/rest/agile/1.0/board", c.baseURL)
	if projectKey != "" {
		params := url.Values{}
		params.Set("projectKeyOrId", projectKey)
		endpoint += "?" + params.Encode()
	}

	var list domain.BoardList
	if err := c.get(ctx, endpoint, &list); err != nil {
		return nil, err
	}
	return list.Values, nil
}

// GetBoardSprints retrieves the sprints of a board. A non-empty state filters
// sprints server-side ("active", "future", "closed").
func (c *JiraClient) GetBoardSprints(ctx context.Context, boardID int, state string) ([]domain.Sprint, error) {
	endpoint := fmt.Sprintf("%s/rest/agile/1.0/board/%d/sprint", c.baseURL, boardID)
	if state != "" {
		params := url.Values{}
		params.Set("state", state)
		endpoint += "?" + params.Encode()
	}

	var list domain.SprintList
	if err := c.get(ctx, endpoint, &list); err != nil {
		return nil, err
	}
	return list.Values, nil
}

// GetSprintIssues retrieves the issues of a sprint with the given field
// projection.
func (c *JiraClient) GetSprintIssues(ctx context.Context, sprintID int, fields []string) ([]domain.JiraIssue, error) {
	params := url.Values{}
	for _, field := range fields {
		params.Add("fields", field)
	}

	endpoint := fmt.Sprintf("%s/rest/agile/1.0/sprint/%d/issue", c.baseURL, sprintID)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var results domain.SearchResults
	if err := c.get(ctx, endpoint, &results); err != nil {
		return nil, err
	}
	return results.Issues, nil
}

// MoveIssuesToSprint attaches the given issues to a sprint.
func (c *JiraClient) MoveIssuesToSprint(ctx context.Context, sprintID int, issueKeys []string) error {
	endpoint := fmt.Sprintf("%s/rest/agile/1.0/sprint/%d/issue", c.baseURL, sprintID)

	payload := map[string]interface{}{"issues": issueKeys}
	return c.post(ctx, endpoint, payload, http.StatusNoContent, nil)
}
