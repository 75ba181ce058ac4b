package domain

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// HTTPError represents a non-2xx upstream response with status code and body.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       string
}

// Error implements the error interface for HTTPError.
func (e HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("HTTP %d: %s - %s", e.StatusCode, e.Message, e.Body)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NewHTTPError creates a new HTTPError with the given status code and message.
func NewHTTPError(statusCode int, message string, body string) HTTPError {
	return HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Body:       body,
	}
}

// MapError converts any failure into a JSON-RPC domain Error. HTTP errors are
// subdivided by the observed status for message clarity.
func MapError(err error) *Error {
	if err == nil {
		return nil
	}

	if httpErr, ok := err.(HTTPError); ok {
		return mapHTTPError(httpErr)
	}

	if domainErr, ok := err.(*Error); ok {
		return domainErr
	}

	// No response received at all is a network failure, everything else is
	// an internal error.
	if strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "no such host") {
		return &Error{
			Code:    NetworkError,
			Message: err.Error(),
		}
	}

	return &Error{
		Code:    InternalError,
		Message: err.Error(),
	}
}

// mapHTTPError maps HTTP status codes to JSON-RPC error codes.
func mapHTTPError(httpErr HTTPError) *Error {
	var code int
	var message string

	switch httpErr.StatusCode {
	case http.StatusUnauthorized:
		code = AuthenticationError
		message = "Authentication failed"
	case http.StatusForbidden:
		code = AuthenticationError
		message = "Access forbidden - insufficient permissions"
	case http.StatusNotFound:
		code = APIError
		message = "Resource not found"
	case http.StatusBadRequest:
		code = InvalidParams
		message = "Bad request - invalid parameters"
	case http.StatusTooManyRequests:
		code = RateLimitError
		message = "Rate limit exceeded"
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		code = NetworkError
		message = "Upstream unavailable"
	default:
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			code = APIError
			message = fmt.Sprintf("Client error: %s", httpErr.Message)
		} else if httpErr.StatusCode >= 500 {
			code = APIError
			message = fmt.Sprintf("Server error: %s", httpErr.Message)
		} else {
			code = InternalError
			message = httpErr.Message
		}
	}

	errorData := map[string]interface{}{
		"statusCode": httpErr.StatusCode,
		"message":    httpErr.Message,
	}
	if httpErr.Body != "" {
		errorData["body"] = httpErr.Body
	}

	return &Error{
		Code:    code,
		Message: message,
		Data:    errorData,
	}
}

// errorTitles maps error codes to short user-visible titles.
var errorTitles = map[int]string{
	InvalidParams:       "Invalid parameters",
	MethodNotFound:      "Unknown tool",
	AuthenticationError: "Authentication error",
	APIError:            "Jira API error",
	NetworkError:        "Network error",
	RateLimitError:      "Rate limit exceeded",
	InternalError:       "Internal error",
}

// FormatError renders an error as a short title, a human-readable message,
// and (when available) a structured detail block. Never a stack trace.
func FormatError(err error) string {
	mapped := MapError(err)
	if mapped == nil {
		return ""
	}

	title, ok := errorTitles[mapped.Code]
	if !ok {
		title = "Error"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n%s", title, mapped.Message)

	if mapped.Data != nil {
		if detail, err := json.MarshalIndent(mapped.Data, "", "  "); err == nil {
			fmt.Fprintf(&b, "\n\n```\n%s\n```", string(detail))
		}
	}

	return b.String()
}

// markdownTable renders a pipe-delimited markdown table. Cell values have
// their pipe characters stripped so user data cannot break the layout.
func markdownTable(headers []string, rows [][]string) string {
	var b strings.Builder

	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = strings.ReplaceAll(cell, "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}

	return b.String()
}

// FormatProjects renders a project listing as a markdown table.
func FormatProjects(projects []Project) string {
	if len(projects) == 0 {
		return "No projects found."
	}

	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, []string{p.Key, p.Name, p.ID.String()})
	}

	return fmt.Sprintf("Found %d project(s):\n\n%s",
		len(projects), markdownTable([]string{"Key", "Name", "ID"}, rows))
}

// FormatIssue renders a single issue with its projected fields.
func FormatIssue(issue *JiraIssue) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %s: %s\n\n", issue.Key, issue.Fields.Summary)
	fmt.Fprintf(&b, "- **Status**: %s\n", issue.Fields.Status.Name)
	fmt.Fprintf(&b, "- **Type**: %s\n", issue.Fields.IssueType.Name)
	fmt.Fprintf(&b, "- **Assignee**: %s\n", userName(issue.Fields.Assignee))
	fmt.Fprintf(&b, "- **Reporter**: %s\n", userName(issue.Fields.Reporter))
	if issue.Fields.Priority != nil {
		fmt.Fprintf(&b, "- **Priority**: %s\n", issue.Fields.Priority.Name)
	}
	if issue.Fields.Created != "" {
		fmt.Fprintf(&b, "- **Created**: %s\n", issue.Fields.Created)
	}
	if issue.Fields.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", issue.Fields.Description)
	}

	return b.String()
}

// FormatIssueTable renders a list of issues as a markdown table.
func FormatIssueTable(issues []JiraIssue) string {
	rows := make([][]string, 0, len(issues))
	for _, issue := range issues {
		priority := ""
		if issue.Fields.Priority != nil {
			priority = issue.Fields.Priority.Name
		}
		rows = append(rows, []string{
			issue.Key,
			issue.Fields.Summary,
			issue.Fields.Status.Name,
			userName(issue.Fields.Assignee),
			issue.Fields.IssueType.Name,
			priority,
			issue.Fields.Created,
		})
	}

	return markdownTable([]string{"Key", "Summary", "Status", "Assignee", "Type", "Priority", "Created"}, rows)
}

// FormatSearchResults renders a JQL result page with pagination info.
func FormatSearchResults(results *SearchResults) string {
	if len(results.Issues) == 0 {
		return "No issues matched the query."
	}

	return fmt.Sprintf("%s\nShowing %d-%d of %d total results.",
		FormatIssueTable(results.Issues),
		results.StartAt+1,
		results.StartAt+len(results.Issues),
		results.Total)
}

// FormatMembers renders the aggregated member records as a markdown table.
func FormatMembers(projectKey string, members []MemberRecord) string {
	if len(members) == 0 {
		return fmt.Sprintf("No members found for project %s.", projectKey)
	}

	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{m.DisplayName, m.Type, m.Email, strings.Join(m.Roles, ", ")})
	}

	return fmt.Sprintf("Project %s has %d member(s):\n\n%s",
		projectKey, len(members), markdownTable([]string{"Name", "Type", "Email", "Roles"}, rows))
}

// FormatSprintReport renders the full sprint report: every sprint section in
// the already-sorted order, preceded by any per-board skip diagnostics.
func FormatSprintReport(sections []SprintSection, boardWarnings []string) string {
	var b strings.Builder

	for _, w := range boardWarnings {
		fmt.Fprintf(&b, "> Warning: %s\n", w)
	}
	if len(boardWarnings) > 0 {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Found %d sprint(s):\n", len(sections))

	for _, section := range sections {
		s := section.Record
		fmt.Fprintf(&b, "\n## %s (%s)\n\n", s.Name, s.State)
		fmt.Fprintf(&b, "- **Board**: %d\n", s.BoardID)
		if s.StartDate != "" {
			fmt.Fprintf(&b, "- **Start**: %s\n", s.StartDate)
		}
		if s.EndDate != "" {
			fmt.Fprintf(&b, "- **End**: %s\n", s.EndDate)
		}
		if s.Goal != "" {
			fmt.Fprintf(&b, "- **Goal**: %s\n", s.Goal)
		}

		b.WriteString("\n")
		switch {
		case section.FetchErr != "":
			fmt.Fprintf(&b, "Could not fetch issues for this sprint: %s\n", section.FetchErr)
		case len(section.Issues) == 0:
			b.WriteString("No issues in this sprint.\n")
		default:
			rows := make([][]string, 0, len(section.Issues))
			for _, issue := range section.Issues {
				rows = append(rows, []string{
					issue.Key,
					issue.Fields.Summary,
					issue.Fields.Status.Name,
					userName(issue.Fields.Assignee),
					issue.Fields.IssueType.Name,
				})
			}
			b.WriteString(markdownTable([]string{"Key", "Summary", "Status", "Assignee", "Type"}, rows))
		}
	}

	return b.String()
}

// userName returns the display name of a possibly-nil user.
func userName(u *User) string {
	if u == nil {
		return "Unassigned"
	}
	return u.DisplayName
}
