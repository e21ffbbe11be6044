package board

import (
	"context"
	"errors"

	"github.com/hcl-hz/PMS-board/internal/models"
	"github.com/hcl-hz/PMS-board/internal/store"
)

// Actor resolves an actor id. An empty id resolves to nil, meaning anonymous.
func (s *Service) Actor(ctx context.Context, id string) (*models.Actor, error) {
	if id == "" {
		return nil, nil
	}
	return s.store.GetActor(ctx, id)
}

// Actors lists every known actor.
func (s *Service) Actors(ctx context.Context) ([]*models.Actor, error) {
	return s.store.ListActors(ctx)
}

// Organizations lists every organization.
func (s *Service) Organizations(ctx context.Context) ([]*models.Organization, error) {
	return s.store.ListOrganizations(ctx)
}

// Projects lists every project.
func (s *Service) Projects(ctx context.Context) ([]*models.Project, error) {
	return s.store.ListProjects(ctx)
}

// Tags lists every tag.
func (s *Service) Tags(ctx context.Context) ([]*models.Tag, error) {
	return s.store.ListTags(ctx)
}

// Statuses lists the status registry in display order.
func (s *Service) Statuses(ctx context.Context) ([]*models.Status, error) {
	return s.store.ListStatuses(ctx)
}

// Attachment looks up a stored file. The second result is false when the id
// is unknown.
func (s *Service) Attachment(ctx context.Context, id string) (*models.Attachment, bool, error) {
	a, err := s.store.GetAttachment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}
