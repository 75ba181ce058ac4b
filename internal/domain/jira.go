package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// FlexibleID is a type that can unmarshal both string and numeric IDs from JSON.
type FlexibleID string

// UnmarshalJSON implements custom unmarshaling to handle both string and numeric IDs.
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	// Try to unmarshal as string first
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexibleID(s)
		return nil
	}

	// Try to unmarshal as number
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexibleID(n.String())
		return nil
	}

	return fmt.Errorf("id must be a string or number")
}

// String returns the string representation of the ID.
func (f FlexibleID) String() string {
	return string(f)
}

// JiraIssue represents a Jira issue with the fields this server projects.
type JiraIssue struct {
	ID     FlexibleID `json:"id"`
	Key    string     `json:"key"`
	Fields JiraFields `json:"fields"`
}

// JiraFields contains the field data for a Jira issue.
type JiraFields struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	IssueType   IssueType `json:"issuetype"`
	Project     Project   `json:"project,omitempty"`
	Status      Status    `json:"status"`
	Assignee    *User     `json:"assignee,omitempty"`
	Reporter    *User     `json:"reporter,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Created     string    `json:"created,omitempty"`
	Updated     string    `json:"updated,omitempty"`
}

// IssueType represents a Jira issue type (e.g., Bug, Story, Task).
type IssueType struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
}

// Project represents a Jira project.
type Project struct {
	ID   FlexibleID `json:"id"`
	Key  string     `json:"key"`
	Name string     `json:"name"`
}

// Status represents a Jira issue status (e.g., Open, In Progress, Done).
type Status struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
}

// Priority represents a Jira issue priority.
type Priority struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
}

// User represents a Jira user as returned by issue fields and user search.
type User struct {
	AccountID    string `json:"accountId,omitempty"`
	Name         string `json:"name,omitempty"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
	AccountType  string `json:"accountType,omitempty"`
}

// SearchResults represents the results of a JQL search.
type SearchResults struct {
	Issues     []JiraIssue `json:"issues"`
	Total      int         `json:"total"`
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
}

// RoleDetails is the detail resource behind one entry of a project's role map.
type RoleDetails struct {
	ID     FlexibleID  `json:"id"`
	Name   string      `json:"name"`
	Actors []RoleActor `json:"actors"`
}

// RoleActor is a single actor (user or group) holding a project role.
type RoleActor struct {
	ID           FlexibleID `json:"id"`
	DisplayName  string     `json:"displayName"`
	Type         string     `json:"type"`
	EmailAddress string     `json:"emailAddress,omitempty"`
}

// MemberRecord is the aggregation intermediate for project membership.
// It accumulates every role in which the same display name was observed.
// Display names are compared case-insensitively for user lookup, but the
// record keeps the casing of the first observation.
type MemberRecord struct {
	DisplayName string
	Type        string
	Email       string
	Roles       []string
}

// HasRole reports whether the record already carries the given role name.
func (m *MemberRecord) HasRole(role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Board represents a Jira Agile board.
type Board struct {
	ID       int           `json:"id"`
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	Location BoardLocation `json:"location,omitempty"`
}

// BoardLocation identifies the project a board belongs to.
type BoardLocation struct {
	ProjectKey  string `json:"projectKey,omitempty"`
	ProjectName string `json:"projectName,omitempty"`
}

// BoardList is the paginated response shape of the board listing endpoint.
type BoardList struct {
	Values     []Board `json:"values"`
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	IsLast     bool    `json:"isLast"`
}

// Sprint represents a Jira Agile sprint.
type Sprint struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	State         string `json:"state"`
	StartDate     string `json:"startDate,omitempty"`
	EndDate       string `json:"endDate,omitempty"`
	Goal          string `json:"goal,omitempty"`
	OriginBoardID int    `json:"originBoardId,omitempty"`
}

// StartTime parses the sprint's start date. A sprint with no start date (or an
// unparseable one) yields the zero time, which sorts as the oldest.
func (s Sprint) StartTime() time.Time {
	if s.StartDate == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s.StartDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SprintList is the paginated response shape of the board sprint endpoint.
type SprintList struct {
	Values     []Sprint `json:"values"`
	StartAt    int      `json:"startAt"`
	MaxResults int      `json:"maxResults"`
	IsLast     bool     `json:"isLast"`
}

// SprintRecord is the aggregation intermediate for sprint discovery: an
// upstream sprint tagged with the board it was collected from.
type SprintRecord struct {
	Sprint
	BoardID int
}

// SprintSection is one sprint's slice of the final report: the sprint record,
// its issues, and an inline diagnostic when the issue fetch failed.
type SprintSection struct {
	Record   SprintRecord
	Issues   []JiraIssue
	FetchErr string
}

// JiraIssueCreate represents the request body for creating a new Jira issue.
type JiraIssueCreate struct {
	Fields JiraFieldsCreate `json:"fields"`
}

// JiraFieldsCreate contains the fields sent when creating an issue.
type JiraFieldsCreate struct {
	Summary     string       `json:"summary"`
	Description string       `json:"description,omitempty"`
	IssueType   IssueTypeRef `json:"issuetype"`
	Project     ProjectRef   `json:"project"`
	Assignee    *AccountRef  `json:"assignee,omitempty"`
	Reporter    *AccountRef  `json:"reporter,omitempty"`
	Priority    *PriorityRef `json:"priority,omitempty"`
	Labels      []string     `json:"labels,omitempty"`
}

// IssueTypeRef is a reference to an issue type (used in create operations).
type IssueTypeRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// ProjectRef is a reference to a project (used in create operations).
type ProjectRef struct {
	ID  string `json:"id,omitempty"`
	Key string `json:"key,omitempty"`
}

// AccountRef is a reference to a user account (used in create operations).
type AccountRef struct {
	AccountID string `json:"accountId"`
}

// PriorityRef is a reference to a priority (used in create operations).
type PriorityRef struct {
	Name string `json:"name"`
}
