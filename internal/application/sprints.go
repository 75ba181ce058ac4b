package application

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"jira-mcp-server/internal/domain"
	"jira-mcp-server/internal/infrastructure"
)

// maxUnfilteredBoards caps the fan-out when neither boardId nor projectKey is
// supplied; listing every board of a large instance would be unbounded.
const maxUnfilteredBoards = 5

// sprintIssueFields is the field projection for per-sprint issue fetches.
var sprintIssueFields = []string{"summary", "status", "assignee", "issuetype"}

// resolveBoards picks the board set to query. Precedence, first match wins:
// an explicit boardId, then all boards of an explicit projectKey, then the
// first maxUnfilteredBoards of the unfiltered listing.
func resolveBoards(ctx context.Context, client *infrastructure.JiraClient, boardID int, projectKey string) ([]domain.Board, error) {
	switch {
	case boardID > 0:
		return []domain.Board{{ID: boardID}}, nil
	case projectKey != "":
		return client.GetBoards(ctx, projectKey)
	default:
		boards, err := client.GetBoards(ctx, "")
		if err != nil {
			return nil, err
		}
		if len(boards) > maxUnfilteredBoards {
			boards = boards[:maxUnfilteredBoards]
		}
		return boards, nil
	}
}

// handleListSprints handles the jira_list_sprints tool call: resolve boards,
// fan out per-board sprint fetches, merge and sort, then fan out per-sprint
// issue fetches. Board and issue fetches are best-effort: a failing board is
// skipped with a warning and a failing issue fetch is reported inline, so one
// bad board never aborts the rest of the report.
func (t *Toolset) handleListSprints(ctx context.Context, client *infrastructure.JiraClient, args map[string]interface{}) (*domain.ToolResponse, error) {
	boardID, err := getIntParam(args, "boardId", false)
	if err != nil {
		return nil, err
	}
	projectKey, err := getStringParam(args, "projectKey", false)
	if err != nil {
		return nil, err
	}
	state, err := getStringParam(args, "state", false)
	if err != nil {
		return nil, err
	}
	if state == "" {
		state = "all"
	}

	boards, err := resolveBoards(ctx, client, boardID, projectKey)
	if err != nil {
		return nil, err
	}
	if len(boards) == 0 {
		return domain.NewTextResponse(fmt.Sprintf("No boards found (%s).",
			filterDescription(state, boardID, projectKey))), nil
	}

	// "all" means no server-side state filter.
	stateFilter := state
	if state == "all" {
		stateFilter = ""
	}

	sprintResults, _ := fanOut(ctx, len(boards), bestEffort, func(ctx context.Context, i int) ([]domain.Sprint, error) {
		return client.GetBoardSprints(ctx, boards[i].ID, stateFilter)
	})

	var records []domain.SprintRecord
	var warnings []string
	for i, res := range sprintResults {
		if res.Err != nil {
			warnings = append(warnings, fmt.Sprintf("skipping board %d: could not fetch sprints: %v", boards[i].ID, res.Err))
			continue
		}
		for _, sprint := range res.Value {
			records = append(records, domain.SprintRecord{Sprint: sprint, BoardID: boards[i].ID})
		}
	}

	if len(records) == 0 {
		text := fmt.Sprintf("No sprints found (%s).", filterDescription(state, boardID, projectKey))
		if len(warnings) > 0 {
			text += "\n\n> Warning: " + strings.Join(warnings, "\n> Warning: ")
		}
		return domain.NewTextResponse(text), nil
	}

	sortSprintRecords(records)

	issueResults, _ := fanOut(ctx, len(records), bestEffort, func(ctx context.Context, i int) ([]domain.JiraIssue, error) {
		return client.GetSprintIssues(ctx, records[i].ID, sprintIssueFields)
	})

	sections := make([]domain.SprintSection, len(records))
	for i := range records {
		sections[i] = domain.SprintSection{
			Record: records[i],
			Issues: issueResults[i].Value,
		}
		if issueResults[i].Err != nil {
			sections[i].FetchErr = issueResults[i].Err.Error()
		}
	}

	return domain.NewTextResponse(domain.FormatSprintReport(sections, warnings)), nil
}

// sortSprintRecords orders sprints newest first by start date. Sprints
// without a parseable start date have a zero start time and sort last.
func sortSprintRecords(records []domain.SprintRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartTime().After(records[j].StartTime())
	})
}

// filterDescription names the active filters for diagnostic clarity in
// terminal "no boards"/"no sprints" results.
func filterDescription(state string, boardID int, projectKey string) string {
	parts := []string{"state=" + state}
	if boardID > 0 {
		parts = append(parts, fmt.Sprintf("board=%d", boardID))
	}
	if projectKey != "" {
		parts = append(parts, "project="+projectKey)
	}
	return strings.Join(parts, ", ")
}
