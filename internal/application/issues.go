package application

import (
	"context"

	"jira-mcp-server/internal/domain"
	"jira-mcp-server/internal/infrastructure"
)

// handleListProjects handles the jira_list_projects tool call.
func (t *Toolset) handleListProjects(ctx context.Context, client *infrastructure.JiraClient, args map[string]interface{}) (*domain.ToolResponse, error) {
	projects, err := client.GetProjects(ctx)
	if err != nil {
		return nil, err
	}

	return domain.NewTextResponse(domain.FormatProjects(projects)), nil
}

// handleGetIssue handles the jira_get_issue tool call.
func (t *Toolset) handleGetIssue(ctx context.Context, client *infrastructure.JiraClient, args map[string]interface{}) (*domain.ToolResponse, error) {
	issueKey, err := getStringParam(args, "issueKey", true)
	if err != nil {
		return nil, err
	}

	issue, err := client.GetIssue(ctx, issueKey)
	if err != nil {
		return nil, err
	}

	return domain.NewTextResponse(domain.FormatIssue(issue)), nil
}

// handleSearchIssues handles the jira_search_issues tool call.
func (t *Toolset) handleSearchIssues(ctx context.Context, client *infrastructure.JiraClient, args map[string]interface{}) (*domain.ToolResponse, error) {
	jql, err := getStringParam(args, "jql", true)
	if err != nil {
		return nil, err
	}
	startAt, err := getIntParam(args, "startAt", false)
	if err != nil {
		return nil, err
	}
	maxResults, err := getIntParam(args, "maxResults", false)
	if err != nil {
		return nil, err
	}

	results, err := client.SearchIssues(ctx, jql, &infrastructure.SearchOptions{
		StartAt:    startAt,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, err
	}

	return domain.NewTextResponse(domain.FormatSearchResults(results)), nil
}
