package application

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"jira-mcp-server/internal/domain"
	"jira-mcp-server/internal/infrastructure"
)

// assignedIssuesPageSize caps the assigned-issue listing of the check-user
// variant.
const assignedIssuesPageSize = 50

// assignedIssueFields is the field projection for assigned-issue lookups.
var assignedIssueFields = []string{"summary", "status", "assignee", "created", "issuetype", "priority"}

// aggregateMembers fetches a project's role map, fans out one concurrent
// request per role, and merges the actors into member records. The fan-out is
// all-or-nothing: a single failed role fetch fails the whole aggregation,
// because a partial member list could produce a false "user not found".
// roleCount reports how many roles the project has, so callers can
// distinguish "no roles" from "roles but no named actors".
func aggregateMembers(ctx context.Context, client *infrastructure.JiraClient, projectKey string) (records []domain.MemberRecord, roleCount int, err error) {
	roles, err := client.GetProjectRoles(ctx, projectKey)
	if err != nil {
		return nil, 0, err
	}
	if len(roles) == 0 {
		return nil, 0, nil
	}

	// Fix an input order for the fan-out; map iteration order is random.
	roleNames := make([]string, 0, len(roles))
	for name := range roles {
		roleNames = append(roleNames, name)
	}
	sort.Strings(roleNames)

	results, err := fanOut(ctx, len(roleNames), failFast, func(ctx context.Context, i int) (*domain.RoleDetails, error) {
		return client.GetRoleDetails(ctx, roles[roleNames[i]])
	})
	if err != nil {
		return nil, len(roles), err
	}

	details := make([]*domain.RoleDetails, len(results))
	for i, res := range results {
		details[i] = res.Value
	}
	return mergeRoleActors(roleNames, details), len(roles), nil
}

// mergeRoleActors folds per-role actor lists into member records. Records are
// keyed by exact display name and created in first-seen order; an actor
// observed in several roles accumulates each role name once, in first-seen
// order. Actors without a display name are skipped. The result depends only
// on the content of the inputs, not on the order the upstream responses
// arrived in.
func mergeRoleActors(roleNames []string, details []*domain.RoleDetails) []domain.MemberRecord {
	index := make(map[string]int)
	var records []domain.MemberRecord

	for i, roleDetails := range details {
		if roleDetails == nil {
			continue
		}
		roleName := roleNames[i]

		for _, actor := range roleDetails.Actors {
			if actor.DisplayName == "" {
				continue
			}

			pos, seen := index[actor.DisplayName]
			if !seen {
				index[actor.DisplayName] = len(records)
				records = append(records, domain.MemberRecord{
					DisplayName: actor.DisplayName,
					Type:        actor.Type,
					Email:       actor.EmailAddress,
					Roles:       []string{roleName},
				})
				continue
			}

			if !records[pos].HasRole(roleName) {
				records[pos].Roles = append(records[pos].Roles, roleName)
			}
		}
	}

	return records
}

// findMember looks up a member by display name, case-insensitively. The
// returned record keeps the casing of the first observation.
func findMember(records []domain.MemberRecord, userName string) *domain.MemberRecord {
	for i := range records {
		if strings.EqualFold(records[i].DisplayName, userName) {
			return &records[i]
		}
	}
	return nil
}

// handleListProjectMembers handles the jira_list_project_members tool call.
func (t *Toolset) handleListProjectMembers(ctx context.Context, client *infrastructure.JiraClient, args map[string]interface{}) (*domain.ToolResponse, error) {
	projectKey, err := getStringParam(args, "projectKey", true)
	if err != nil {
		return nil, err
	}

	records, roleCount, err := aggregateMembers(ctx, client, projectKey)
	if err != nil {
		return nil, err
	}
	if roleCount == 0 {
		return domain.NewTextResponse(fmt.Sprintf("No roles found for project %s.", projectKey)), nil
	}

	return domain.NewTextResponse(domain.FormatMembers(projectKey, records)), nil
}

// handleCheckUserIssues handles the jira_check_user_issues tool call: a
// case-insensitive membership check followed, on success, by a lookup of the
// issues assigned to that user (newest first). When the user is not found the
// response lists the known members instead, minus hidden integration
// accounts.
func (t *Toolset) handleCheckUserIssues(ctx context.Context, client *infrastructure.JiraClient, args map[string]interface{}) (*domain.ToolResponse, error) {
	projectKey, err := getStringParam(args, "projectKey", true)
	if err != nil {
		return nil, err
	}
	userName, err := getStringParam(args, "userName", true)
	if err != nil {
		return nil, err
	}

	records, roleCount, err := aggregateMembers(ctx, client, projectKey)
	if err != nil {
		return nil, err
	}
	if roleCount == 0 {
		return domain.NewTextResponse(fmt.Sprintf("No roles found for project %s.", projectKey)), nil
	}

	member := findMember(records, userName)
	if member == nil {
		visible := make([]domain.MemberRecord, 0, len(records))
		for _, rec := range records {
			if t.members.ShouldHide(rec.Type, rec.DisplayName) {
				continue
			}
			visible = append(visible, rec)
		}

		text := fmt.Sprintf("User %q is not a member of project %s.\n\n%s",
			userName, projectKey, domain.FormatMembers(projectKey, visible))
		return domain.NewTextResponse(text), nil
	}

	// Query by the stored original-casing display name, not the caller's
	// input casing.
	jql := fmt.Sprintf(`project = %s AND assignee = "%s" ORDER BY created DESC`,
		projectKey, escapeJQLString(member.DisplayName))

	results, err := client.SearchIssues(ctx, jql, &infrastructure.SearchOptions{
		MaxResults: assignedIssuesPageSize,
		Fields:     assignedIssueFields,
	})
	if err != nil {
		return nil, err
	}

	header := fmt.Sprintf("User **%s** is a member of project %s (roles: %s).",
		member.DisplayName, projectKey, strings.Join(member.Roles, ", "))

	if len(results.Issues) == 0 {
		return domain.NewTextResponse(header + "\n\nNo issues currently assigned."), nil
	}

	text := fmt.Sprintf("%s\n\n%d assigned issue(s), newest first:\n\n%s",
		header, len(results.Issues), domain.FormatIssueTable(results.Issues))
	return domain.NewTextResponse(text), nil
}

// escapeJQLString escapes quotes and backslashes for embedding in a quoted
// JQL string literal.
func escapeJQLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
