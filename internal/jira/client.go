package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/orchestrai/orchestrai/internal/telemetry"
)

const (
	DefaultProjectKey = "PROJ"
	DefaultIssueType  = "Task"
	DefaultMaxResults = 50
	RequestTimeout    = 15 * time.Second

	StatusMockCreated = "mock_created"
	StatusCreated     = "created"
	StatusError       = "error"

	mockBrowseURL   = "https://mock-jira.atlassian.net/browse/"
	maxErrorBodyLen = 200
)

type Config struct {
	URL        string
	Email      string
	Token      string
	ProjectKey string
	Timeout    time.Duration
}

// Client creates and queries issues in Jira Cloud, or simulates both when any
// credential is missing. The mode is fixed at construction.
type Client struct {
	baseURL    string
	email      string
	token      string
	projectKey string
	mock       bool
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = RequestTimeout
	}
	projectKey := cfg.ProjectKey
	if projectKey == "" {
		projectKey = DefaultProjectKey
	}
	c := &Client{
		baseURL:    cfg.URL,
		email:      cfg.Email,
		token:      cfg.Token,
		projectKey: projectKey,
		mock:       cfg.URL == "" || cfg.Email == "" || cfg.Token == "",
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	if c.mock {
		logger.Warn("jira credentials not set, using mock mode")
	} else {
		logger.Info("jira client initialized", "url", c.baseURL, "project_key", projectKey)
	}
	return c
}

func (c *Client) MockMode() bool { return c.mock }

func (c *Client) ProjectKey() string { return c.projectKey }

type TaskInput struct {
	Summary     string
	Description string
	IssueType   string
	ProjectKey  string
}

type TaskResult struct {
	Status   string `json:"status"`
	IssueKey string `json:"issue_key,omitempty"`
	URL      string `json:"url,omitempty"`
	ID       string `json:"id,omitempty"`
	Error    string `json:"error,omitempty"`
	Mock     bool   `json:"mock"`
}

type Issue struct {
	ID     string      `json:"id,omitempty"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

type IssueFields struct {
	Summary  string      `json:"summary"`
	Status   IssueStatus `json:"status"`
	Assignee *User       `json:"assignee,omitempty"`
	Created  string      `json:"created,omitempty"`
}

type IssueStatus struct {
	Name string `json:"name"`
}

type User struct {
	DisplayName string `json:"displayName"`
}

type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s HTTP %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (e *APIError) ErrorCode() string {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return "jira_auth_failed"
	case http.StatusForbidden:
		return "jira_permission_denied"
	case http.StatusNotFound:
		return "jira_not_found"
	default:
		return "jira_api_error"
	}
}

// CreateTask never returns an error; failures are reported with Status "error".
func (c *Client) CreateTask(ctx context.Context, in TaskInput) TaskResult {
	if in.IssueType == "" {
		in.IssueType = DefaultIssueType
	}
	if in.ProjectKey == "" {
		in.ProjectKey = c.projectKey
	}
	c.logger.Info("creating jira task", "summary", truncate(in.Summary, 50), "mode", c.mode())
	telemetry.IncTrackerCall("create issue", c.mode())

	if c.mock {
		key := mockIssueKey(in.ProjectKey, in.Summary)
		return TaskResult{
			Status:   StatusMockCreated,
			IssueKey: key,
			URL:      mockBrowseURL + key,
			Mock:     true,
		}
	}

	created, err := c.createIssue(ctx, in)
	if err != nil {
		msg := err.Error()
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			msg = fmt.Sprintf("HTTP %d: %s", apiErr.StatusCode, truncate(apiErr.Body, maxErrorBodyLen))
			c.logger.Error("jira api error", "status", apiErr.StatusCode, "err", apiErr.Body)
		} else {
			c.logger.Error("jira creation failed", "err", err)
		}
		return TaskResult{Status: StatusError, Error: msg}
	}

	c.logger.Info("jira task created", "issue_key", created.Key)
	return TaskResult{
		Status:   StatusCreated,
		IssueKey: created.Key,
		URL:      c.baseURL + "/browse/" + created.Key,
		ID:       created.ID,
	}
}

// ProjectIssues lists issues of projectKey, or of the configured project when
// empty. Failures are logged and yield an empty slice.
func (c *Client) ProjectIssues(ctx context.Context, projectKey string, maxResults int) []Issue {
	if projectKey == "" {
		projectKey = c.projectKey
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	telemetry.IncTrackerCall("search issues", c.mode())

	if c.mock {
		return mockIssues(projectKey)
	}

	issues, err := c.searchIssues(ctx, projectKey, maxResults)
	if err != nil {
		c.logger.Error("failed to fetch jira issues", "project_key", projectKey, "err", err)
		return []Issue{}
	}
	return issues
}

type createdIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

func (c *Client) createIssue(ctx context.Context, in TaskInput) (*createdIssue, error) {
	payload := map[string]any{
		"fields": map[string]any{
			"project":     map[string]string{"key": in.ProjectKey},
			"summary":     in.Summary,
			"description": adfParagraph(in.Description),
			"issuetype":   map[string]string{"name": in.IssueType},
		},
	}

	resp, err := c.doAPI(ctx, http.MethodPost, c.baseURL+"/rest/api/3/issue", payload)
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		telemetry.IncTrackerAPIError("create issue", resp.StatusCode)
		return nil, &APIError{Operation: "create issue", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out createdIssue
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode created issue: %w", err)
	}
	if out.Key == "" {
		return nil, fmt.Errorf("decode created issue: missing key")
	}
	return &out, nil
}

func (c *Client) searchIssues(ctx context.Context, projectKey string, maxResults int) ([]Issue, error) {
	q := url.Values{}
	q.Set("jql", "project="+projectKey)
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("fields", "summary,status,assignee,created")

	resp, err := c.doAPI(ctx, http.MethodGet, c.baseURL+"/rest/api/3/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		telemetry.IncTrackerAPIError("search issues", resp.StatusCode)
		return nil, &APIError{Operation: "search issues", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out struct {
		Issues []Issue `json:"issues"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	if out.Issues == nil {
		return []Issue{}, nil
	}
	return out.Issues, nil
}

func (c *Client) doAPI(ctx context.Context, method, endpoint string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func (c *Client) mode() string {
	if c.mock {
		return "mock"
	}
	return "real"
}

// adfParagraph wraps plain text in a single-paragraph Atlassian Document Format body.
func adfParagraph(text string) map[string]any {
	return map[string]any{
		"type":    "doc",
		"version": 1,
		"content": []any{
			map[string]any{
				"type": "paragraph",
				"content": []any{
					map[string]any{"type": "text", "text": text},
				},
			},
		},
	}
}

func mockIssueKey(projectKey, summary string) string {
	h := fnv.New32a()
	h.Write([]byte(summary))
	return fmt.Sprintf("%s-%d", projectKey, h.Sum32()%1000)
}

func mockIssues(projectKey string) []Issue {
	canned := []struct{ summary, status string }{
		{"Implement authentication", "Done"},
		{"Add API documentation", "In Progress"},
		{"Setup CI/CD", "To Do"},
	}
	out := make([]Issue, 0, len(canned))
	for i, c := range canned {
		out = append(out, Issue{
			Key: fmt.Sprintf("%s-%d", projectKey, i+1),
			Fields: IssueFields{
				Summary: c.summary,
				Status:  IssueStatus{Name: c.status},
			},
		})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
