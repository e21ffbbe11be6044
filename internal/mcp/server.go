package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hcl-hz/PMS-board/internal/access"
	"github.com/hcl-hz/PMS-board/internal/board"
	"github.com/hcl-hz/PMS-board/internal/models"
	"github.com/hcl-hz/PMS-board/internal/query"
	"github.com/hcl-hz/PMS-board/internal/session"
)

// Server exposes the board as MCP tools.
type Server struct {
	board   *board.Service
	version string

	mu       sync.Mutex
	sessions map[string]*session.Session // actor ID -> session
}

// NewServer creates the MCP server wrapper.
func NewServer(svc *board.Service, version string) *Server {
	return &Server{
		board:    svc,
		version:  version,
		sessions: make(map[string]*session.Session),
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("board", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listIssuesTool())
	srv.AddTool(s.getIssueTool())
	srv.AddTool(s.createIssueTool())
	srv.AddTool(s.updateStatusTool())
	srv.AddTool(s.addCommentTool())
	srv.AddTool(s.listTagsTool())
	srv.AddTool(s.listStatusesTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Output shapes
// ---------------------------------------------------------------------------

type commentOut struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	Internal  bool   `json:"internal,omitempty"`
	CreatedAt string `json:"created_at"`
}

type attachmentOut struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"download_url"`
}

type issueOut struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Title       string          `json:"title"`
	Body        string          `json:"body,omitempty"`
	Author      string          `json:"author"`
	Status      string          `json:"status"`
	Tags        []string        `json:"tags"`
	Secret      bool            `json:"secret,omitempty"`
	Views       int             `json:"views"`
	WorkHours   *float64        `json:"work_hours,omitempty"`
	Comments    []commentOut    `json:"comments,omitempty"`
	Attachments []attachmentOut `json:"attachments,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

// toIssueOut renders an issue. detail adds the body, comments and attachments.
func toIssueOut(issue *models.Issue, detail bool) issueOut {
	tags := make([]string, len(issue.Tags))
	for i, t := range issue.Tags {
		tags[i] = t.Name
	}
	out := issueOut{
		ID:        issue.ID,
		ProjectID: issue.ProjectID,
		Title:     issue.Title,
		Author:    issue.Author.Name,
		Status:    string(issue.Status.Code),
		Tags:      tags,
		Secret:    issue.IsSecret,
		Views:     issue.ViewCount,
		WorkHours: issue.WorkHours,
		CreatedAt: issue.CreatedAt.Format(time.RFC3339),
		UpdatedAt: issue.UpdatedAt.Format(time.RFC3339),
	}
	if !detail {
		return out
	}
	out.Body = issue.BodyText
	for _, c := range issue.Comments {
		out.Comments = append(out.Comments, commentOut{
			ID:        c.ID,
			Author:    c.Author.Name,
			Content:   c.Content,
			Internal:  c.IsInternal,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		})
	}
	for _, a := range issue.Attachments {
		out.Attachments = append(out.Attachments, attachmentOut{
			ID:          a.ID,
			Name:        a.OriginalName,
			Size:        a.SizeBytes,
			DownloadURL: a.DownloadURL,
		})
	}
	return out
}

func jsonResult(v any, what string) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal %s: %v", what, err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult renders a board error as a tool error.
func errorResult(action string, err error) *mcp.CallToolResult {
	var verr *board.ValidationError
	switch {
	case errors.As(err, &verr):
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", action, verr))
	case errors.Is(err, board.ErrUnauthorized):
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: an actor is required", action))
	case errors.Is(err, board.ErrForbidden):
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: not permitted for this actor", action))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("failed to %s: %v", action, err))
	}
}

var actorParam = mcp.WithString("actor", mcp.Description("Acting user id (e.g. user-1). Omit to act anonymously."))

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// board_list_issues
func (s *Server) listIssuesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_list_issues",
		mcp.WithDescription("List issues visible to the actor, newest first. Returns a JSON page object with issues, total_count and has_more."),
		actorParam,
		mcp.WithString("query", mcp.Description("Free-text search over title, body, author, tags and comments")),
		mcp.WithString("status", mcp.Description("Status code: received, confirmed, in_progress, completed, hold, cancelled, notice")),
		mcp.WithString("project", mcp.Description("Project id")),
		mcp.WithString("from", mcp.Description("Created on or after this date (YYYY-MM-DD)")),
		mcp.WithString("to", mcp.Description("Created on or before this date (YYYY-MM-DD)")),
		mcp.WithNumber("page", mcp.Description("1-based page number (default 1)")),
	)
	return tool, s.handleListIssues
}

func (s *Server) handleListIssues(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actor, res := s.resolveActor(ctx, request)
	if res != nil {
		return res, nil
	}

	filter := query.Filter{
		Status:    models.StatusCode(request.GetString("status", "")),
		ProjectID: request.GetString("project", ""),
		DateFrom:  request.GetString("from", ""),
		DateTo:    request.GetString("to", ""),
	}
	issues, err := s.board.VisibleIssues(ctx, actor, filter, request.GetString("query", ""))
	if err != nil {
		return errorResult("list issues", err), nil
	}

	p := query.Paginate(issues, request.GetInt("page", 1), query.DefaultPageSize)
	out := struct {
		Issues     []issueOut `json:"issues"`
		TotalCount int        `json:"total_count"`
		Page       int        `json:"page"`
		HasMore    bool       `json:"has_more"`
	}{
		Issues:     make([]issueOut, len(p.Issues)),
		TotalCount: p.TotalCount,
		Page:       p.Page,
		HasMore:    p.HasMore,
	}
	for i, issue := range p.Issues {
		out.Issues[i] = toIssueOut(issue, false)
	}
	return jsonResult(out, "issues")
}

// board_get_issue
func (s *Server) getIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_get_issue",
		mcp.WithDescription("Get one issue with its body, comments and attachments. Counts as a view once per actor."),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue id (full id or unique prefix)")),
		actorParam,
	)
	return tool, s.handleGetIssue
}

func (s *Server) handleGetIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	actor, res := s.resolveActor(ctx, request)
	if res != nil {
		return res, nil
	}

	id, err := s.findIssueID(ctx, issueID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	issue, err := s.board.ViewIssue(ctx, s.session(actor), id)
	if err != nil {
		return errorResult("get issue", err), nil
	}
	return jsonResult(toIssueOut(issue, true), "issue")
}

// board_create_issue
func (s *Server) createIssueTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_create_issue",
		mcp.WithDescription("Create a new issue. Returns the new issue id as JSON."),
		mcp.WithString("actor", mcp.Required(), mcp.Description("Acting user id")),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project id")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Issue title")),
		mcp.WithString("body", mcp.Required(), mcp.Description("Issue body as plain text")),
		mcp.WithString("tags", mcp.Required(), mcp.Description("Comma-separated tag ids")),
		mcp.WithBoolean("secret", mcp.Description("Hide the issue from everyone except admins and the author")),
	)
	return tool, s.handleCreateIssue
}

func (s *Server) handleCreateIssue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actor, res := s.resolveActor(ctx, request)
	if res != nil {
		return res, nil
	}

	body := request.GetString("body", "")
	draft := board.Draft{
		ProjectID: request.GetString("project", ""),
		Title:     request.GetString("title", ""),
		BodyHTML:  "<p>" + html.EscapeString(body) + "</p>",
		BodyText:  body,
		IsSecret:  request.GetBool("secret", false),
		TagIDs:    splitList(request.GetString("tags", "")),
	}

	id, err := s.board.CreateIssue(ctx, actor, draft)
	if err != nil {
		return errorResult("create issue", err), nil
	}
	return jsonResult(map[string]string{"id": id}, "issue")
}

// board_update_status
func (s *Server) updateStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_update_status",
		mcp.WithDescription("Move an issue to another status. Admin only. Accepts a status id or status code."),
		mcp.WithString("actor", mcp.Required(), mcp.Description("Acting user id")),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue id (full id or unique prefix)")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Status id (status-3) or code (in_progress)")),
	)
	return tool, s.handleUpdateStatus
}

func (s *Server) handleUpdateStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	status, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}
	actor, res := s.resolveActor(ctx, request)
	if res != nil {
		return res, nil
	}

	id, err := s.findIssueID(ctx, issueID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	statusID, err := s.resolveStatus(ctx, status)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.board.UpdateStatus(ctx, actor, id, statusID); err != nil {
		return errorResult("update status", err), nil
	}

	issue, err := s.board.GetIssue(ctx, id)
	if err != nil {
		return errorResult("update status", err), nil
	}
	return jsonResult(toIssueOut(issue, false), "issue")
}

// board_add_comment
func (s *Server) addCommentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_add_comment",
		mcp.WithDescription("Add a comment to an issue. Internal comments are admin only."),
		mcp.WithString("actor", mcp.Required(), mcp.Description("Acting user id")),
		mcp.WithString("issue_id", mcp.Required(), mcp.Description("Issue id (full id or unique prefix)")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Comment text")),
		mcp.WithBoolean("internal", mcp.Description("Post as an internal note")),
	)
	return tool, s.handleAddComment
}

func (s *Server) handleAddComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issueID, err := request.RequireString("issue_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: issue_id"), nil
	}
	content := strings.TrimSpace(request.GetString("content", ""))
	if content == "" {
		return mcp.NewToolResultError("missing required parameter: content"), nil
	}
	actor, res := s.resolveActor(ctx, request)
	if res != nil {
		return res, nil
	}
	if actor == nil {
		return errorResult("add comment", board.ErrUnauthorized), nil
	}
	internal := request.GetBool("internal", false)
	if internal && !actor.IsAdmin() {
		return errorResult("add comment", board.ErrForbidden), nil
	}

	id, err := s.findIssueID(ctx, issueID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.canView(ctx, id, actor) {
		return errorResult("add comment", board.ErrForbidden), nil
	}

	commentID, err := s.board.AddComment(ctx, actor, id, content, internal)
	if err != nil {
		return errorResult("add comment", err), nil
	}
	return jsonResult(map[string]string{"id": commentID, "issue_id": id}, "comment")
}

// board_list_tags
func (s *Server) listTagsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_list_tags",
		mcp.WithDescription("List all tags. Returns a JSON array with id, name, code and project_id."),
		actorParam,
	)
	return tool, s.handleListTags
}

func (s *Server) handleListTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.board.Tags(ctx)
	if err != nil {
		return errorResult("list tags", err), nil
	}

	type tagOut struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Code      string `json:"code"`
		ProjectID string `json:"project_id"`
	}
	out := make([]tagOut, len(tags))
	for i, t := range tags {
		out[i] = tagOut{ID: t.ID, Name: t.Name, Code: t.Code, ProjectID: t.ProjectID}
	}
	return jsonResult(out, "tags")
}

// board_list_statuses
func (s *Server) listStatusesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("board_list_statuses",
		mcp.WithDescription("List the status registry in display order. Returns a JSON array with id, code and label."),
	)
	return tool, s.handleListStatuses
}

func (s *Server) handleListStatuses(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statuses, err := s.board.Statuses(ctx)
	if err != nil {
		return errorResult("list statuses", err), nil
	}

	type statusOut struct {
		ID    string `json:"id"`
		Code  string `json:"code"`
		Label string `json:"label"`
	}
	out := make([]statusOut, len(statuses))
	for i, st := range statuses {
		out[i] = statusOut{ID: st.ID, Code: string(st.Code), Label: st.Label}
	}
	return jsonResult(out, "statuses")
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// resolveActor reads the actor argument. A non-nil result is the tool error
// to return.
func (s *Server) resolveActor(ctx context.Context, request mcp.CallToolRequest) (*models.Actor, *mcp.CallToolResult) {
	id := request.GetString("actor", "")
	actor, err := s.board.Actor(ctx, id)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("unknown actor: %s", id))
	}
	return actor, nil
}

// session returns the view session for an actor. Each actor gets one session
// for the lifetime of the server.
func (s *Server) session(actor *models.Actor) *session.Session {
	key := ""
	if actor != nil {
		key = actor.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = session.New(actor)
		s.sessions[key] = sess
	}
	return sess
}

func (s *Server) canView(ctx context.Context, id string, actor *models.Actor) bool {
	issue, err := s.board.GetIssue(ctx, id)
	return err == nil && access.CanView(issue, actor)
}

// findIssueID resolves a full id or a unique case-insensitive prefix.
func (s *Server) findIssueID(ctx context.Context, id string) (string, error) {
	if _, err := s.board.GetIssue(ctx, id); err == nil {
		return id, nil
	}

	issues, err := s.board.Store().ListIssues(ctx)
	if err != nil {
		return "", err
	}
	upper := strings.ToUpper(id)
	var matches []string
	for _, issue := range issues {
		if strings.HasPrefix(strings.ToUpper(issue.ID), upper) {
			matches = append(matches, issue.ID)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("issue not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous issue ID %s: matches %d issues", id, len(matches))
	}
}

// resolveStatus maps a status id or code to a status id.
func (s *Server) resolveStatus(ctx context.Context, ref string) (string, error) {
	statuses, err := s.board.Statuses(ctx)
	if err != nil {
		return "", err
	}
	for _, st := range statuses {
		if st.ID == ref || string(st.Code) == ref {
			return st.ID, nil
		}
	}
	return "", fmt.Errorf("unknown status: %s", ref)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
