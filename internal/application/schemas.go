package application

import (
	"encoding/json"

	"jira-mcp-server/internal/domain"
)

// Tool name constants for the Jira operations exposed by this server.
const (
	ToolJiraListProjects       = "jira_list_projects"
	ToolJiraGetIssue           = "jira_get_issue"
	ToolJiraSearchIssues       = "jira_search_issues"
	ToolJiraListProjectMembers = "jira_list_project_members"
	ToolJiraCheckUserIssues    = "jira_check_user_issues"
	ToolJiraCreateIssue        = "jira_create_issue"
	ToolJiraListSprints        = "jira_list_sprints"
)

// credentialProps is the schema fragment for the optional per-call
// credentials every tool accepts. When absent, process-wide defaults apply.
const credentialProps = `
		"jiraHost": {
			"type": "string",
			"description": "Jira instance host (e.g. yourcompany.atlassian.net); overrides the configured default"
		},
		"loginName": {
			"type": "string",
			"description": "Login name (email) for Basic auth; overrides the configured default"
		},
		"loginToken": {
			"type": "string",
			"description": "API token for Basic auth; overrides the configured default"
		}`

// Toolset holds the handler dependencies that come from configuration rather
// than from the per-call credentials.
type Toolset struct {
	members domain.MembersConfig
}

// NewToolset creates the Jira toolset with the given member-filter settings.
func NewToolset(members domain.MembersConfig) *Toolset {
	return &Toolset{members: members}
}

// RegisterAll registers every Jira tool on the registry.
func (t *Toolset) RegisterAll(r *Registry) error {
	for _, reg := range []struct {
		def     domain.ToolDefinition
		handler HandlerFunc
	}{
		{
			def: domain.ToolDefinition{
				Name:        ToolJiraListProjects,
				Description: "List all Jira projects visible to the authenticated user",
				InputSchema: json.RawMessage(`{
	"type": "object",
	"properties": {` + credentialProps + `
	}
}`),
			},
			handler: t.handleListProjects,
		},
		{
			def: domain.ToolDefinition{
				Name:        ToolJiraGetIssue,
				Description: "Retrieve a Jira issue by its key (e.g., TEST-123)",
				InputSchema: json.RawMessage(`{
	"type": "object",
	"properties": {
		"issueKey": {
			"type": "string",
			"description": "The issue key (e.g., TEST-123)",
			"minLength": 1
		},` + credentialProps + `
	},
	"required": ["issueKey"]
}`),
			},
			handler: t.handleGetIssue,
		},
		{
			def: domain.ToolDefinition{
				Name:        ToolJiraSearchIssues,
				Description: "Search for Jira issues using JQL (Jira Query Language)",
				InputSchema: json.RawMessage(`{
	"type": "object",
	"properties": {
		"jql": {
			"type": "string",
			"description": "The JQL query string",
			"minLength": 1
		},
		"startAt": {
			"type": "integer",
			"description": "Index of the first issue to return (0-based)",
			"minimum": 0
		},
		"maxResults": {
			"type": "integer",
			"description": "Maximum number of issues to return",
			"minimum": 1,
			"maximum": 100
		},` + credentialProps + `
	},
	"required": ["jql"]
}`),
			},
			handler: t.handleSearchIssues,
		},
		{
			def: domain.ToolDefinition{
				Name:        ToolJiraListProjectMembers,
				Description: "List all members of a project, aggregated across its roles",
				InputSchema: json.RawMessage(`{
	"type": "object",
	"properties": {
		"projectKey": {
			"type": "string",
			"description": "The project key (e.g., TEST)",
			"minLength": 1
		},` + credentialProps + `
	},
	"required": ["projectKey"]
}`),
			},
			handler: t.handleListProjectMembers,
		},
		{
			def: domain.ToolDefinition{
				Name:        ToolJiraCheckUserIssues,
				Description: "Check whether a user is a member of a project and list their assigned issues",
				InputSchema: json.RawMessage(`{
	"type": "object",
	"properties": {
		"projectKey": {
			"type": "string",
			"description": "The project key (e.g., TEST)",
			"minLength": 1
		},
		"userName": {
			"type": "string",
			"description": "The user's display name (matched case-insensitively)",
			"minLength": 1
		},` + credentialProps + `
	},
	"required": ["projectKey", "userName"]
}`),
			},
			handler: t.handleCheckUserIssues,
		},
		{
			def: domain.ToolDefinition{
				Name:        ToolJiraCreateIssue,
				Description: "Create a new Jira issue, optionally resolving assignee/reporter names and attaching it to a sprint",
				InputSchema: json.RawMessage(`{
	"type": "object",
	"properties": {
		"projectKey": {
			"type": "string",
			"description": "The project key (e.g., TEST)",
			"minLength": 1
		},
		"summary": {
			"type": "string",
			"description": "The issue summary/title",
			"minLength": 1
		},
		"issueType": {
			"type": "string",
			"description": "The issue type name (e.g., Bug, Story, Task)",
			"minLength": 1
		},
		"description": {
			"type": "string",
			"description": "The issue description (optional)"
		},
		"assignee": {
			"type": "string",
			"description": "Assignee display name; resolved to an account id best-effort (optional)"
		},
		"reporter": {
			"type": "string",
			"description": "Reporter display name; resolved to an account id best-effort (optional)"
		},
		"priority": {
			"type": "string",
			"description": "Priority name (optional)"
		},
		"labels": {
			"type": "array",
			"items": {"type": "string"},
			"description": "Labels to apply (optional)"
		},
		"sprintId": {
			"type": "integer",
			"description": "Sprint to attach the created issue to, best-effort (optional)",
			"minimum": 1
		},` + credentialProps + `
	},
	"required": ["projectKey", "summary", "issueType"]
}`),
			},
			handler: t.handleCreateIssue,
		},
		{
			def: domain.ToolDefinition{
				Name:        ToolJiraListSprints,
				Description: "List sprints across boards with their issues, sorted by start date (newest first)",
				InputSchema: json.RawMessage(`{
	"type": "object",
	"properties": {
		"boardId": {
			"type": "integer",
			"description": "Query exactly this board (takes precedence over projectKey)",
			"minimum": 1
		},
		"projectKey": {
			"type": "string",
			"description": "Query all boards of this project"
		},
		"state": {
			"type": "string",
			"enum": ["active", "future", "closed", "all"],
			"description": "Sprint state filter (default: all)"
		},` + credentialProps + `
	}
}`),
			},
			handler: t.handleListSprints,
		},
	} {
		if err := r.Register(reg.def, reg.handler); err != nil {
			return err
		}
	}
	return nil
}
