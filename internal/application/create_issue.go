package application

import (
	"context"
	"fmt"
	"strings"

	"jira-mcp-server/internal/domain"
	"jira-mcp-server/internal/infrastructure"
)

// resolveAccountID maps a display name to an account id via user search.
// Matching is a deliberate best-effort heuristic: a case-insensitive exact
// match on display name wins, otherwise the first candidate is taken. An
// ambiguous name can silently resolve to the wrong user; callers must treat
// the result as advisory and keep the lookup non-fatal.
func resolveAccountID(ctx context.Context, client *infrastructure.JiraClient, name string) (string, error) {
	users, err := client.SearchUsers(ctx, name)
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "", fmt.Errorf("no users matched %q", name)
	}

	for _, u := range users {
		if strings.EqualFold(u.DisplayName, name) {
			return u.AccountID, nil
		}
	}
	return users[0].AccountID, nil
}

// handleCreateIssue handles the jira_create_issue tool call. The assignee and
// reporter lookups and the post-creation sprint attach are each individually
// best-effort: a failure downgrades to a note in the response instead of
// aborting (or rolling back) the creation.
func (t *Toolset) handleCreateIssue(ctx context.Context, client *infrastructure.JiraClient, args map[string]interface{}) (*domain.ToolResponse, error) {
	projectKey, err := getStringParam(args, "projectKey", true)
	if err != nil {
		return nil, err
	}
	summary, err := getStringParam(args, "summary", true)
	if err != nil {
		return nil, err
	}
	issueType, err := getStringParam(args, "issueType", true)
	if err != nil {
		return nil, err
	}

	description, _ := getStringParam(args, "description", false)
	assignee, _ := getStringParam(args, "assignee", false)
	reporter, _ := getStringParam(args, "reporter", false)
	priority, _ := getStringParam(args, "priority", false)
	labels, err := getStringSliceParam(args, "labels")
	if err != nil {
		return nil, err
	}
	sprintID, err := getIntParam(args, "sprintId", false)
	if err != nil {
		return nil, err
	}

	fields := domain.JiraFieldsCreate{
		Summary:     summary,
		Description: description,
		IssueType:   domain.IssueTypeRef{Name: issueType},
		Project:     domain.ProjectRef{Key: projectKey},
		Labels:      labels,
	}
	if priority != "" {
		fields.Priority = &domain.PriorityRef{Name: priority}
	}

	var notes []string

	if assignee != "" {
		if accountID, err := resolveAccountID(ctx, client, assignee); err != nil {
			notes = append(notes, fmt.Sprintf("could not resolve assignee %q: %v; field omitted", assignee, err))
		} else {
			fields.Assignee = &domain.AccountRef{AccountID: accountID}
		}
	}
	if reporter != "" {
		if accountID, err := resolveAccountID(ctx, client, reporter); err != nil {
			notes = append(notes, fmt.Sprintf("could not resolve reporter %q: %v; field omitted", reporter, err))
		} else {
			fields.Reporter = &domain.AccountRef{AccountID: accountID}
		}
	}

	issue, err := client.CreateIssue(ctx, &domain.JiraIssueCreate{Fields: fields})
	if err != nil {
		return nil, err
	}

	attached := false
	if sprintID > 0 {
		if err := client.MoveIssuesToSprint(ctx, sprintID, []string{issue.Key}); err != nil {
			notes = append(notes, fmt.Sprintf("issue created but could not be added to sprint %d: %v", sprintID, err))
		} else {
			attached = true
		}
	}

	text := fmt.Sprintf("Created issue **%s**: %s", issue.Key, summary)
	if attached {
		text += fmt.Sprintf("\n\nAdded to sprint %d.", sprintID)
	}
	for _, note := range notes {
		text += "\n\n> Note: " + note
	}

	return domain.NewTextResponse(text), nil
}
