package store

import (
	"context"
	"errors"

	"github.com/hcl-hz/PMS-board/internal/models"
)

var (
	// ErrNotFound is returned when a referenced id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrLoad wraps failures to read the canonical source.
	ErrLoad = errors.New("load board")
)

// Dataset is a complete board: reference data plus the issue collection.
// Issues keep collection order; new issues are inserted at the head.
type Dataset struct {
	Organizations []*models.Organization
	Actors        []*models.Actor
	Projects      []*models.Project
	Tags          []*models.Tag
	Statuses      []*models.Status
	Attachments   []*models.Attachment // files known outside any issue
	Issues        []*models.Issue
}

// Source provides the canonical contents the store is loaded from.
type Source interface {
	Dataset(ctx context.Context) (*Dataset, error)
}

// Store defines the board's entity store.
type Store interface {
	// Lifecycle
	Load(ctx context.Context) error
	Snapshot(ctx context.Context) (*Dataset, error)

	// Issues
	ListIssues(ctx context.Context) ([]*models.Issue, error)
	GetIssue(ctx context.Context, id string) (*models.Issue, error)
	InsertIssue(ctx context.Context, issue *models.Issue) error
	UpdateIssue(ctx context.Context, id string, fn func(*models.Issue) error) (*models.Issue, error)
	GetAttachment(ctx context.Context, id string) (*models.Attachment, error)

	// Reference data
	ListActors(ctx context.Context) ([]*models.Actor, error)
	GetActor(ctx context.Context, id string) (*models.Actor, error)
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListTags(ctx context.Context) ([]*models.Tag, error)
	GetTag(ctx context.Context, id string) (*models.Tag, error)
	ListStatuses(ctx context.Context) ([]*models.Status, error)
	GetStatus(ctx context.Context, id string) (*models.Status, error)
	StatusByCode(ctx context.Context, code models.StatusCode) (*models.Status, error)
}
