// Package mcpadapter exposes meeting notes as MCP tools.
package mcpadapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
	"github.com/kirillkom/meeting-notes/internal/core/ports"
)

const (
	serverName    = "meeting-notes"
	serverVersion = "1.0.0"
)

// Meetings is the slice of the meeting lifecycle the tools need.
type Meetings interface {
	ListMeetings(ctx context.Context, query domain.MeetingQuery) ([]domain.Meeting, error)
	GetMeetingDetails(ctx context.Context, meetingID string) (*domain.MeetingDetails, error)
	ExportToDocument(ctx context.Context, meetingID string) (*domain.ExportRecord, error)
}

var _ Meetings = (ports.MeetingLifecycle)(nil)

type Tools struct {
	meetings Meetings
}

func NewTools(meetings Meetings) *Tools {
	return &Tools{meetings: meetings}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(meetings Meetings) *server.MCPServer {
	s := server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))
	NewTools(meetings).Register(s)
	return s
}

func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(mcp.NewTool("list_meetings",
		mcp.WithDescription("List meetings, newest first. Optionally filter by a case-insensitive title search."),
		mcp.WithString("search", mcp.Description("Substring of the meeting title")),
	), t.listMeetings)

	s.AddTool(mcp.NewTool("get_meeting_notes",
		mcp.WithDescription("Return the protocol draft of a finalized meeting."),
		mcp.WithString("meeting_id", mcp.Required(), mcp.Description("Meeting id")),
	), t.getMeetingNotes)

	s.AddTool(mcp.NewTool("export_meeting",
		mcp.WithDescription("Export the notes of a finalized meeting to the configured document backend."),
		mcp.WithString("meeting_id", mcp.Required(), mcp.Description("Meeting id")),
	), t.exportMeeting)
}

func (t *Tools) listMeetings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	meetings, err := t.meetings.ListMeetings(ctx, domain.MeetingQuery{
		Search: strings.TrimSpace(request.GetString("search", "")),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(meetings) == 0 {
		return mcp.NewToolResultText("no meetings found"), nil
	}

	var b strings.Builder
	for _, m := range meetings {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\n", m.ID, m.Title, m.Status, m.StartedAt.Format(time.RFC3339))
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func (t *Tools) getMeetingNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	meetingID, err := request.RequireString("meeting_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	details, err := t.meetings.GetMeetingDetails(ctx, meetingID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if details.Artifacts == nil {
		return mcp.NewToolResultError(fmt.Sprintf("meeting %s is %s and has no notes yet", meetingID, details.Meeting.Status)), nil
	}
	return mcp.NewToolResultText(details.Artifacts.ProtocolDraft), nil
}

func (t *Tools) exportMeeting(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	meetingID, err := request.RequireString("meeting_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	record, err := t.meetings.ExportToDocument(ctx, meetingID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := fmt.Sprintf("status: %s\nprovider: %s\nretries: %d", record.Status, record.Provider, record.Retries)
	if record.URL != "" {
		text += "\nurl: " + record.URL
	}
	if record.ErrorMessage != "" {
		text += "\nerror: " + record.ErrorMessage
	}
	return mcp.NewToolResultText(text), nil
}
