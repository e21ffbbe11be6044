// Package board implements the board's read and mutation operations on top of
// the entity store.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/hcl-hz/PMS-board/internal/access"
	"github.com/hcl-hz/PMS-board/internal/models"
	"github.com/hcl-hz/PMS-board/internal/query"
	"github.com/hcl-hz/PMS-board/internal/session"
	"github.com/hcl-hz/PMS-board/internal/store"
)

// Service is the board's query and mutation surface.
type Service struct {
	store  store.Store
	engine *query.Engine
	now    func() time.Time
	log    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source used for timestamps and ids.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the time zone date filters are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.engine = query.New(loc) }
}

// WithLogger sets the logger for mutation events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// NewService creates a Service over st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		engine: query.New(nil),
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying entity store.
func (s *Service) Store() store.Store { return s.store }

// --- Queries ---

// VisibleIssues returns the issues the actor may list, narrowed by f and
// text and ordered newest first.
func (s *Service) VisibleIssues(ctx context.Context, actor *models.Actor, f query.Filter, text string) ([]*models.Issue, error) {
	issues, err := s.store.ListIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return s.engine.Apply(access.Visible(issues, actor), f, text), nil
}

// GetIssue returns the issue with the given id, or ErrNotFound.
func (s *Service) GetIssue(ctx context.Context, id string) (*models.Issue, error) {
	return s.store.GetIssue(ctx, id)
}

// ViewIssue opens an issue detail for the session's actor. Secret issues are
// refused unless the actor is an admin or the author, internal comments the
// actor may not read are removed, and the view count grows at most once per
// issue per session. A nil session reads without counting.
func (s *Service) ViewIssue(ctx context.Context, sess *session.Session, id string) (*models.Issue, error) {
	var actor *models.Actor
	if sess != nil {
		actor = sess.Actor()
	}

	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanView(issue, actor) {
		if actor == nil {
			return nil, ErrUnauthorized
		}
		return nil, ErrForbidden
	}

	if sess != nil && sess.MarkViewed(id) {
		if issue, err = s.IncrementViewCount(ctx, id); err != nil {
			sess.Forget(id)
			return nil, err
		}
	}

	issue.Comments = access.VisibleComments(issue.Comments, actor)
	return issue, nil
}

// --- Mutations ---

// FileDescriptor describes an uploaded file as reported by the uploader.
type FileDescriptor struct {
	Name     string
	Size     int64
	MimeType string
}

// Draft holds the fields of a new issue.
type Draft struct {
	ProjectID string
	Title     string
	BodyHTML  string
	BodyText  string
	IsSecret  bool
	TagIDs    []string
	Files     []FileDescriptor
}

func (d Draft) validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(d.ProjectID) == "" {
		v.add("project", "project is required")
	}
	if strings.TrimSpace(d.Title) == "" {
		v.add("title", "title is required")
	}
	if strings.TrimSpace(d.BodyText) == "" {
		v.add("body", "body is required")
	}
	if len(d.TagIDs) == 0 {
		v.add("tags", "select at least one tag")
	}
	return v.orNil()
}

// CreateIssue validates the draft and inserts a new issue at the head of the
// board, returning its id. Unknown tag ids are dropped.
func (s *Service) CreateIssue(ctx context.Context, actor *models.Actor, d Draft) (string, error) {
	if actor == nil {
		return "", ErrUnauthorized
	}
	if err := d.validate(); err != nil {
		return "", err
	}
	if _, err := s.store.GetProject(ctx, d.ProjectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			v := &ValidationError{}
			v.add("project", "unknown project")
			return "", v
		}
		return "", fmt.Errorf("resolve project: %w", err)
	}

	status, err := s.store.StatusByCode(ctx, models.StatusReceived)
	if err != nil {
		return "", fmt.Errorf("default status: %w", err)
	}

	var tags []models.Tag
	for _, id := range d.TagIDs {
		tag, err := s.store.GetTag(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("resolve tag %s: %w", id, err)
		}
		tags = append(tags, *tag)
	}

	now := s.now()
	var attachments []models.Attachment
	for _, f := range d.Files {
		aid := newID(now)
		attachments = append(attachments, models.Attachment{
			ID:           aid,
			StoredName:   storedName(f.Name),
			OriginalName: f.Name,
			SizeBytes:    f.Size,
			MimeType:     f.MimeType,
			DownloadURL:  "/api/files/" + aid,
			UploadedAt:   now,
		})
	}

	hours := 0.0
	issue := &models.Issue{
		ID:             newID(now),
		Title:          strings.TrimSpace(d.Title),
		BodyHTML:       d.BodyHTML,
		BodyText:       d.BodyText,
		Author:         *actor,
		Status:         *status,
		Tags:           tags,
		IsSecret:       d.IsSecret,
		ProjectID:      d.ProjectID,
		OrganizationID: actor.OrganizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
		WorkHours:      &hours,
		Attachments:    attachments,
	}
	if err := s.store.InsertIssue(ctx, issue); err != nil {
		return "", fmt.Errorf("insert issue: %w", err)
	}

	s.log.Info("issue created", "id", issue.ID, "author", actor.ID, "project", d.ProjectID)
	return issue.ID, nil
}

// UpdateStatus moves an issue to another status. Admin only. An unknown
// status id is ignored.
func (s *Service) UpdateStatus(ctx context.Context, actor *models.Actor, issueID, statusID string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	status, err := s.store.GetStatus(ctx, statusID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve status: %w", err)
	}

	now := s.now()
	_, err = s.store.UpdateIssue(ctx, issueID, func(issue *models.Issue) error {
		issue.Status = *status
		issue.UpdatedAt = now
		return nil
	})
	return err
}

// UpdateWorkHours records the hours spent on an issue. Admin only. Any
// finite value is accepted, including negatives and fractions.
func (s *Service) UpdateWorkHours(ctx context.Context, actor *models.Actor, issueID string, hours float64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		v := &ValidationError{}
		v.add("work_hours", "must be a finite number")
		return v
	}

	_, err := s.store.UpdateIssue(ctx, issueID, func(issue *models.Issue) error {
		h := hours
		issue.WorkHours = &h
		return nil
	})
	return err
}

// AddComment appends a comment to the issue and returns its id. Content is
// stored as given. Without an actor nothing happens; an actor who cannot open
// the issue gets ErrForbidden.
func (s *Service) AddComment(ctx context.Context, actor *models.Actor, issueID, content string, internal bool) (string, error) {
	if actor == nil {
		return "", nil
	}

	now := s.now()
	c := models.Comment{
		ID:         newID(now),
		IssueID:    issueID,
		Content:    content,
		Author:     *actor,
		CreatedAt:  now,
		UpdatedAt:  now,
		IsInternal: internal,
		Mentions:   []string{},
	}
	_, err := s.store.UpdateIssue(ctx, issueID, func(issue *models.Issue) error {
		if !access.CanView(issue, actor) {
			return ErrForbidden
		}
		issue.Comments = append(issue.Comments, c)
		issue.UpdatedAt = now
		return nil
	})
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

// UpdateComment replaces a comment's content with the trimmed content.
// Admins and the comment's author may edit. Without an actor, or when the
// trimmed content is empty, nothing happens.
func (s *Service) UpdateComment(ctx context.Context, actor *models.Actor, issueID, commentID, content string) error {
	if actor == nil {
		return nil
	}
	next := strings.TrimSpace(content)
	if next == "" {
		return nil
	}

	now := s.now()
	_, err := s.store.UpdateIssue(ctx, issueID, func(issue *models.Issue) error {
		idx := issue.FindComment(commentID)
		if idx < 0 {
			return fmt.Errorf("comment %s: %w", commentID, ErrNotFound)
		}
		if !access.CanModerateComment(issue.Comments[idx], actor) {
			return ErrForbidden
		}
		issue.Comments[idx].Content = next
		issue.Comments[idx].UpdatedAt = now
		issue.UpdatedAt = now
		return nil
	})
	return err
}

// DeleteComment removes a comment. Admins and the comment's author may
// delete. Without an actor nothing happens.
func (s *Service) DeleteComment(ctx context.Context, actor *models.Actor, issueID, commentID string) error {
	if actor == nil {
		return nil
	}

	now := s.now()
	_, err := s.store.UpdateIssue(ctx, issueID, func(issue *models.Issue) error {
		idx := issue.FindComment(commentID)
		if idx < 0 {
			return fmt.Errorf("comment %s: %w", commentID, ErrNotFound)
		}
		if !access.CanModerateComment(issue.Comments[idx], actor) {
			return ErrForbidden
		}
		issue.Comments = append(issue.Comments[:idx], issue.Comments[idx+1:]...)
		issue.UpdatedAt = now
		return nil
	})
	return err
}

// IncrementViewCount adds one view to the issue. Callers de-duplicate.
func (s *Service) IncrementViewCount(ctx context.Context, issueID string) (*models.Issue, error) {
	return s.store.UpdateIssue(ctx, issueID, func(issue *models.Issue) error {
		issue.ViewCount++
		return nil
	})
}

func requireAdmin(actor *models.Actor) error {
	if actor == nil {
		return ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
