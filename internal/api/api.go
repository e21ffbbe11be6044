package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hcl-hz/PMS-board/internal/access"
	"github.com/hcl-hz/PMS-board/internal/board"
	"github.com/hcl-hz/PMS-board/internal/models"
	"github.com/hcl-hz/PMS-board/internal/query"
	"github.com/hcl-hz/PMS-board/internal/session"
	"github.com/hcl-hz/PMS-board/internal/upload"
)

// Request headers identifying the caller.
const (
	HeaderActor   = "X-Actor-ID"
	HeaderSession = "X-Session-ID"
)

// DefaultCommentMaxLength caps comment length in characters.
const DefaultCommentMaxLength = 200

// Config tunes request handling.
type Config struct {
	PageSize         int
	CommentMaxLength int
	MaxSessions      int           // live viewer sessions kept, LRU beyond that
	SessionTTL       time.Duration // idle time before a viewer session expires
}

// Server provides the REST API handlers.
type Server struct {
	board    *board.Service
	sessions *session.Registry
	cfg      Config
}

// NewServer creates a new API server. Zero config values fall back to defaults.
func NewServer(svc *board.Service, cfg Config) *Server {
	if cfg.PageSize <= 0 {
		cfg.PageSize = query.DefaultPageSize
	}
	if cfg.CommentMaxLength <= 0 {
		cfg.CommentMaxLength = DefaultCommentMaxLength
	}
	return &Server{
		board:    svc,
		sessions: session.NewRegistry(cfg.MaxSessions, cfg.SessionTTL),
		cfg:      cfg,
	}
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/issues", s.listIssues)
	mux.HandleFunc("POST /api/v1/issues", s.createIssue)
	mux.HandleFunc("GET /api/v1/issues/{id}", s.getIssue)
	mux.HandleFunc("PUT /api/v1/issues/{id}/status", s.updateStatus)
	mux.HandleFunc("PUT /api/v1/issues/{id}/work-hours", s.updateWorkHours)

	mux.HandleFunc("POST /api/v1/issues/{id}/comments", s.addComment)
	mux.HandleFunc("PUT /api/v1/issues/{id}/comments/{commentID}", s.updateComment)
	mux.HandleFunc("DELETE /api/v1/issues/{id}/comments/{commentID}", s.deleteComment)

	mux.HandleFunc("GET /api/v1/tags", s.listTags)
	mux.HandleFunc("GET /api/v1/statuses", s.listStatuses)
	mux.HandleFunc("GET /api/v1/projects", s.listProjects)
	mux.HandleFunc("GET /api/v1/users", s.listUsers)

	mux.HandleFunc("GET /api/files/{id}", s.downloadFile)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+HeaderActor+", "+HeaderSession)
		w.Header().Set("Access-Control-Expose-Headers", HeaderSession)
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ValidationResponse is the body of a 422 response.
type ValidationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func writeValidation(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Error: "validation failed", Fields: fields})
}

// writeServiceError maps board errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *board.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr.Fields)
	case errors.Is(err, board.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, board.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, board.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// actor resolves the caller from the actor header. A missing header means an
// anonymous caller; an unknown id is rejected.
func (s *Server) actor(w http.ResponseWriter, r *http.Request) (*models.Actor, bool) {
	a, err := s.board.Actor(r.Context(), r.Header.Get(HeaderActor))
	if errors.Is(err, board.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "unknown actor")
		return nil, false
	}
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return a, true
}

// requireActor is actor for endpoints that refuse anonymous callers.
func (s *Server) requireActor(w http.ResponseWriter, r *http.Request) (*models.Actor, bool) {
	a, ok := s.actor(w, r)
	if !ok {
		return nil, false
	}
	if a == nil {
		writeError(w, http.StatusUnauthorized, board.ErrUnauthorized.Error())
		return nil, false
	}
	return a, true
}

// session returns the caller's viewer session, issuing one when the request
// carries none, and echoes its id in the response.
func (s *Server) session(w http.ResponseWriter, r *http.Request, actor *models.Actor) *session.Session {
	sess := s.sessions.Get(r.Header.Get(HeaderSession), actor)
	w.Header().Set(HeaderSession, sess.ID)
	return sess
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// redact strips comments the actor may not read.
func redact(issues []*models.Issue, actor *models.Actor) {
	for _, issue := range issues {
		issue.Comments = access.VisibleComments(issue.Comments, actor)
	}
}

// --- Issues ---

func parseFilter(r *http.Request) (query.Filter, error) {
	q := r.URL.Query()
	f := query.Filter{
		Status:         models.StatusCode(q.Get("status")),
		ProjectID:      q.Get("project"),
		OrganizationID: q.Get("org"),
		AuthorID:       q.Get("author"),
		DateFrom:       q.Get("from"),
		DateTo:         q.Get("to"),
	}
	if v := q.Get("secret"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid secret flag %q", v)
		}
		f.IsSecret = &b
	}
	return f, nil
}

func intParam(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func (s *Server) listIssues(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := intParam(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	size, err := intParam(r, "page_size", s.cfg.PageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	issues, err := s.board.VisibleIssues(r.Context(), actor, filter, r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	p := query.Paginate(issues, page, size)
	redact(p.Issues, actor)
	writeJSON(w, http.StatusOK, p)
}

// FileRequest describes one uploaded file in CreateIssueRequest.
type FileRequest struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// CreateIssueRequest is the body of POST /api/v1/issues.
type CreateIssueRequest struct {
	ProjectID string        `json:"project_id"`
	Title     string        `json:"title"`
	BodyHTML  string        `json:"body_html"`
	BodyText  string        `json:"body_text"`
	IsSecret  bool          `json:"is_secret"`
	TagIDs    []string      `json:"tag_ids"`
	Files     []FileRequest `json:"files"`
}

func (s *Server) createIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	var req CreateIssueRequest
	if !decode(w, r, &req) {
		return
	}

	draft := board.Draft{
		ProjectID: req.ProjectID,
		Title:     req.Title,
		BodyHTML:  req.BodyHTML,
		BodyText:  req.BodyText,
		IsSecret:  req.IsSecret,
		TagIDs:    req.TagIDs,
	}
	names := make([]string, len(req.Files))
	for i, f := range req.Files {
		names[i] = f.Name
	}
	if _, rejected, err := upload.Partition(names); err != nil {
		writeValidation(w, map[string]string{
			"files": fmt.Sprintf("%v (%d rejected; accepted: %s)", err, len(rejected), upload.Accept()),
		})
		return
	}
	for _, f := range req.Files {
		draft.Files = append(draft.Files, board.FileDescriptor{Name: f.Name, Size: f.Size, MimeType: f.MimeType})
	}

	id, err := s.board.CreateIssue(r.Context(), actor, draft)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	issue, err := s.board.ViewIssue(r.Context(), s.session(w, r, actor), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

// writeIssue responds with the current state of an issue as the actor sees it.
func (s *Server) writeIssue(w http.ResponseWriter, r *http.Request, actor *models.Actor, id string) {
	issue, err := s.board.GetIssue(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	redact([]*models.Issue{issue}, actor)
	writeJSON(w, http.StatusOK, issue)
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		StatusID string `json:"status_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	if err := s.board.UpdateStatus(r.Context(), actor, id, req.StatusID); err != nil {
		writeServiceError(w, err)
		return
	}
	s.writeIssue(w, r, actor, id)
}

func (s *Server) updateWorkHours(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.actor(w, r)
	if !ok {
		return
	}
	var req struct {
		Hours *float64 `json:"hours"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Hours == nil {
		writeValidation(w, map[string]string{"work_hours": "hours is required"})
		return
	}
	id := r.PathValue("id")
	if err := s.board.UpdateWorkHours(r.Context(), actor, id, *req.Hours); err != nil {
		writeServiceError(w, err)
		return
	}
	s.writeIssue(w, r, actor, id)
}

// --- Comments ---

// commentContent trims content and enforces the length limit.
func (s *Server) commentContent(w http.ResponseWriter, raw string) (string, bool) {
	content := strings.TrimSpace(raw)
	if content == "" {
		writeValidation(w, map[string]string{"content": "content is required"})
		return "", false
	}
	if n := utf8.RuneCountInString(content); n > s.cfg.CommentMaxLength {
		writeValidation(w, map[string]string{
			"content": fmt.Sprintf("content is %d characters; the limit is %d", n, s.cfg.CommentMaxLength),
		})
		return "", false
	}
	return content, true
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Content  string `json:"content"`
		Internal bool   `json:"internal"`
	}
	if !decode(w, r, &req) {
		return
	}
	content, ok := s.commentContent(w, req.Content)
	if !ok {
		return
	}
	if req.Internal && !actor.IsAdmin() {
		writeError(w, http.StatusForbidden, "only admins may post internal comments")
		return
	}

	id, err := s.board.AddComment(r.Context(), actor, r.PathValue("id"), content, req.Internal)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) updateComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if !decode(w, r, &req) {
		return
	}
	content, ok := s.commentContent(w, req.Content)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if err := s.board.UpdateComment(r.Context(), actor, id, r.PathValue("commentID"), content); err != nil {
		writeServiceError(w, err)
		return
	}
	s.writeIssue(w, r, actor, id)
}

func (s *Server) deleteComment(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.requireActor(w, r)
	if !ok {
		return
	}
	if err := s.board.DeleteComment(r.Context(), actor, r.PathValue("id"), r.PathValue("commentID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Reference data ---

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.board.Tags(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) listStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.board.Statuses(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.board.Projects(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	actors, err := s.board.Actors(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, actors)
}
