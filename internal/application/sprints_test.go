package application

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira-mcp-server/internal/domain"
)

func encodeSprints(w http.ResponseWriter, sprints ...domain.Sprint) {
	json.NewEncoder(w).Encode(domain.SprintList{Values: sprints, IsLast: true})
}

func encodeBoards(w http.ResponseWriter, boards ...domain.Board) {
	json.NewEncoder(w).Encode(domain.BoardList{Values: boards, IsLast: true})
}

func encodeSprintIssues(w http.ResponseWriter, issues ...domain.JiraIssue) {
	json.NewEncoder(w).Encode(domain.SearchResults{Issues: issues, Total: len(issues)})
}

func TestListSprintsExplicitBoardSkipsBoardListing(t *testing.T) {
	registry, server := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/agile/1.0/board/42/sprint":
			encodeSprints(w, domain.Sprint{ID: 7, Name: "Sprint 7", State: "active", StartDate: "2024-03-01T09:00:00Z"})
		case "/rest/agile/1.0/sprint/7/issue":
			encodeSprintIssues(w)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	resp := registry.Dispatch(context.Background(), ToolJiraListSprints, map[string]interface{}{
		"boardId":    float64(42),
		"projectKey": "DEMO",
	})

	assert.False(t, resp.IsError, responseText(t, resp))
	text := responseText(t, resp)
	assert.Contains(t, text, "## Sprint 7 (active)")
	assert.Contains(t, text, "- **Board**: 42")

	// boardId takes precedence over projectKey and needs no discovery call.
	assert.Zero(t, server.count("/rest/agile/1.0/board"))
}

func TestListSprintsUnfilteredTruncatesBoards(t *testing.T) {
	registry, server := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/agile/1.0/board" {
			var boards []domain.Board
			for i := 1; i <= 7; i++ {
				boards = append(boards, domain.Board{ID: i, Name: fmt.Sprintf("Board %d", i), Type: "scrum"})
			}
			encodeBoards(w, boards...)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/sprint") {
			encodeSprints(w)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	resp := registry.Dispatch(context.Background(), ToolJiraListSprints, map[string]interface{}{})

	assert.False(t, resp.IsError)
	assert.Contains(t, responseText(t, resp), "No sprints found (state=all).")

	for i := 1; i <= 5; i++ {
		assert.Equal(t, 1, server.count(fmt.Sprintf("/rest/agile/1.0/board/%d/sprint", i)))
	}
	for i := 6; i <= 7; i++ {
		assert.Zero(t, server.count(fmt.Sprintf("/rest/agile/1.0/board/%d/sprint", i)),
			"boards beyond the cap must not be queried")
	}
}

func TestListSprintsSortedNewestFirst(t *testing.T) {
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rest/agile/1.0/board/1/sprint":
			// Deliberately unordered, with one dateless sprint.
			encodeSprints(w,
				domain.Sprint{ID: 1, Name: "Dateless", State: "future"},
				domain.Sprint{ID: 2, Name: "January", State: "closed", StartDate: "2024-01-10T09:00:00Z"},
				domain.Sprint{ID: 3, Name: "March", State: "active", StartDate: "2024-03-01T09:00:00Z"},
			)
		case strings.HasSuffix(r.URL.Path, "/issue"):
			encodeSprintIssues(w)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	resp := registry.Dispatch(context.Background(), ToolJiraListSprints, map[string]interface{}{
		"boardId": float64(1),
	})

	assert.False(t, resp.IsError)
	text := responseText(t, resp)

	march := strings.Index(text, "## March")
	january := strings.Index(text, "## January")
	dateless := strings.Index(text, "## Dateless")
	require.True(t, march >= 0 && january >= 0 && dateless >= 0, text)

	assert.Less(t, march, january, "newest sprint first")
	assert.Less(t, january, dateless, "dateless sprints sort last")
}

func TestListSprintsSkipsFailingBoard(t *testing.T) {
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/agile/1.0/board":
			encodeBoards(w,
				domain.Board{ID: 1, Name: "Healthy", Type: "scrum"},
				domain.Board{ID: 2, Name: "Broken", Type: "scrum"},
			)
		case "/rest/agile/1.0/board/1/sprint":
			encodeSprints(w, domain.Sprint{ID: 5, Name: "Sprint 5", State: "active", StartDate: "2024-02-01T09:00:00Z"})
		case "/rest/agile/1.0/board/2/sprint":
			w.WriteHeader(http.StatusInternalServerError)
		case "/rest/agile/1.0/sprint/5/issue":
			encodeSprintIssues(w, domain.JiraIssue{ID: "1", Key: "DEMO-1", Fields: domain.JiraFields{
				Summary: "Alive", Status: domain.Status{Name: "Open"}, IssueType: domain.IssueType{Name: "Task"},
			}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	resp := registry.Dispatch(context.Background(), ToolJiraListSprints, map[string]interface{}{
		"projectKey": "DEMO",
	})

	// One broken board degrades the report, never aborts it.
	assert.False(t, resp.IsError)
	text := responseText(t, resp)
	assert.Contains(t, text, "> Warning: skipping board 2: could not fetch sprints:")
	assert.Contains(t, text, "## Sprint 5 (active)")
	assert.Contains(t, text, "DEMO-1")
}

func TestListSprintsIssueFetchFailureIsInline(t *testing.T) {
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/agile/1.0/board/1/sprint":
			encodeSprints(w,
				domain.Sprint{ID: 5, Name: "Good", State: "active", StartDate: "2024-03-01T09:00:00Z"},
				domain.Sprint{ID: 6, Name: "Bad", State: "active", StartDate: "2024-02-01T09:00:00Z"},
			)
		case "/rest/agile/1.0/sprint/5/issue":
			encodeSprintIssues(w, domain.JiraIssue{ID: "1", Key: "DEMO-1", Fields: domain.JiraFields{
				Summary: "Fine", Status: domain.Status{Name: "Open"}, IssueType: domain.IssueType{Name: "Task"},
			}})
		case "/rest/agile/1.0/sprint/6/issue":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	resp := registry.Dispatch(context.Background(), ToolJiraListSprints, map[string]interface{}{
		"boardId": float64(1),
	})

	assert.False(t, resp.IsError)
	text := responseText(t, resp)
	assert.Contains(t, text, "DEMO-1")
	assert.Contains(t, text, "## Bad (active)")
	assert.Contains(t, text, "Could not fetch issues for this sprint:")
}

func TestListSprintsNoBoards(t *testing.T) {
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		encodeBoards(w)
	})

	resp := registry.Dispatch(context.Background(), ToolJiraListSprints, map[string]interface{}{
		"projectKey": "NONE",
	})

	assert.False(t, resp.IsError)
	assert.Equal(t, "No boards found (state=all, project=NONE).", responseText(t, resp))
}

func TestListSprintsStateFilterForwarded(t *testing.T) {
	var states []string
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rest/agile/1.0/board/1/sprint" {
			states = append(states, r.URL.Query().Get("state"))
			encodeSprints(w)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	registry.Dispatch(context.Background(), ToolJiraListSprints, map[string]interface{}{
		"boardId": float64(1),
		"state":   "active",
	})
	registry.Dispatch(context.Background(), ToolJiraListSprints, map[string]interface{}{
		"boardId": float64(1),
		"state":   "all",
	})
	registry.Dispatch(context.Background(), ToolJiraListSprints, map[string]interface{}{
		"boardId": float64(1),
	})

	// "active" is forwarded; "all" and absent both mean no server-side filter.
	require.Len(t, states, 3)
	assert.Equal(t, []string{"active", "", ""}, states)
}

func TestListSprintsRejectsUnknownState(t *testing.T) {
	registry, server := newTestRegistry(t, failingUpstream)

	resp := registry.Dispatch(context.Background(), ToolJiraListSprints, map[string]interface{}{
		"state": "paused",
	})

	assert.True(t, resp.IsError)
	assert.Zero(t, server.total())
}

func TestSortSprintRecords(t *testing.T) {
	records := []domain.SprintRecord{
		{Sprint: domain.Sprint{ID: 1, Name: "Dateless"}, BoardID: 1},
		{Sprint: domain.Sprint{ID: 2, Name: "January", StartDate: "2024-01-10T09:00:00Z"}, BoardID: 1},
		{Sprint: domain.Sprint{ID: 3, Name: "March", StartDate: "2024-03-01T09:00:00Z"}, BoardID: 2},
		{Sprint: domain.Sprint{ID: 4, Name: "Garbled", StartDate: "yesterday-ish"}, BoardID: 2},
	}

	sortSprintRecords(records)

	assert.Equal(t, "March", records[0].Name)
	assert.Equal(t, "January", records[1].Name)
	// Dateless and unparseable both carry a zero start time; the sort is
	// stable, so their input order is preserved.
	assert.Equal(t, "Dateless", records[2].Name)
	assert.Equal(t, "Garbled", records[3].Name)
}

func TestFilterDescription(t *testing.T) {
	assert.Equal(t, "state=all", filterDescription("all", 0, ""))
	assert.Equal(t, "state=active, board=7", filterDescription("active", 7, ""))
	assert.Equal(t, "state=closed, project=DEMO", filterDescription("closed", 0, "DEMO"))
	assert.Equal(t, "state=all, board=7, project=DEMO", filterDescription("all", 7, "DEMO"))
}
