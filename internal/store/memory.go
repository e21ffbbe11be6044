package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/hcl-hz/PMS-board/internal/models"
)

// MemoryStore implements Store with in-memory data structures.
// It is the single source of truth: reads return deep copies and every
// mutation is one locked read-copy-commit.
type MemoryStore struct {
	mu sync.RWMutex // Protects everything below

	source Source
	loaded bool

	issues map[string]*models.Issue // ID -> Issue
	order  []string                 // issue IDs, most recent first

	orgs        []*models.Organization
	actors      []*models.Actor
	projects    []*models.Project
	tags        []*models.Tag
	statuses    []*models.Status
	attachments []*models.Attachment
}

// NewMemoryStore creates a store that loads from src.
func NewMemoryStore(src Source) *MemoryStore {
	return &MemoryStore{
		source: src,
		issues: make(map[string]*models.Issue),
	}
}

// Load populates the store from its source. Once loaded, later calls are
// no-ops so committed mutations are never lost or duplicated.
func (m *MemoryStore) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return nil
	}
	return m.loadLocked(ctx)
}

func (m *MemoryStore) loadLocked(ctx context.Context) error {
	if m.source == nil {
		return fmt.Errorf("%w: no source configured", ErrLoad)
	}
	ds, err := m.source.Dataset(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}

	issues := make(map[string]*models.Issue, len(ds.Issues))
	order := make([]string, 0, len(ds.Issues))
	for _, issue := range ds.Issues {
		if issue == nil {
			continue
		}
		if _, dup := issues[issue.ID]; dup {
			continue
		}
		issues[issue.ID] = issue.Clone()
		order = append(order, issue.ID)
	}

	m.issues = issues
	m.order = order
	m.orgs = cloneAll(ds.Organizations)
	m.actors = cloneAll(ds.Actors)
	m.projects = cloneAll(ds.Projects)
	m.tags = cloneAll(ds.Tags)
	m.statuses = cloneAll(ds.Statuses)
	m.attachments = cloneAll(ds.Attachments)
	m.loaded = true
	return nil
}

// Snapshot returns a deep copy of the whole board.
func (m *MemoryStore) Snapshot(ctx context.Context) (*Dataset, error) {
	issues, err := m.ListIssues(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return &Dataset{
		Organizations: cloneAll(m.orgs),
		Actors:        cloneAll(m.actors),
		Projects:      cloneAll(m.projects),
		Tags:          cloneAll(m.tags),
		Statuses:      cloneAll(m.statuses),
		Attachments:   cloneAll(m.attachments),
		Issues:        issues,
	}, nil
}

// --- Issues ---

func (m *MemoryStore) ListIssues(_ context.Context) ([]*models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Issue, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.issues[id].Clone())
	}
	return out, nil
}

func (m *MemoryStore) GetIssue(_ context.Context, id string) (*models.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issue, ok := m.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}
	return issue.Clone(), nil
}

// InsertIssue adds a new issue at the head of the collection.
func (m *MemoryStore) InsertIssue(_ context.Context, issue *models.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if issue.ID == "" {
		return fmt.Errorf("insert issue: empty id")
	}
	if _, exists := m.issues[issue.ID]; exists {
		return fmt.Errorf("insert issue: duplicate id %s", issue.ID)
	}
	m.issues[issue.ID] = issue.Clone()
	m.order = slices.Insert(m.order, 0, issue.ID)
	return nil
}

// UpdateIssue applies fn to a copy of the issue and commits the copy only if
// fn succeeds.
func (m *MemoryStore) UpdateIssue(_ context.Context, id string, fn func(*models.Issue) error) (*models.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	m.issues[id] = next
	return next.Clone(), nil
}

// GetAttachment finds an attachment on any issue, then among loose files.
func (m *MemoryStore) GetAttachment(_ context.Context, id string) (*models.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, issueID := range m.order {
		for _, a := range m.issues[issueID].Attachments {
			if a.ID == id {
				att := a
				return &att, nil
			}
		}
	}
	for _, a := range m.attachments {
		if a.ID == id {
			att := *a
			return &att, nil
		}
	}
	return nil, fmt.Errorf("attachment %s: %w", id, ErrNotFound)
}

// --- Reference data ---

func (m *MemoryStore) ListActors(_ context.Context) ([]*models.Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.actors), nil
}

func (m *MemoryStore) GetActor(_ context.Context, id string) (*models.Actor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return find(m.actors, "actor", id, func(a *models.Actor) string { return a.ID })
}

func (m *MemoryStore) ListOrganizations(_ context.Context) ([]*models.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.orgs), nil
}

func (m *MemoryStore) ListProjects(_ context.Context) ([]*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.projects), nil
}

func (m *MemoryStore) GetProject(_ context.Context, id string) (*models.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return find(m.projects, "project", id, func(p *models.Project) string { return p.ID })
}

func (m *MemoryStore) ListTags(_ context.Context) ([]*models.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.tags), nil
}

func (m *MemoryStore) GetTag(_ context.Context, id string) (*models.Tag, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return find(m.tags, "tag", id, func(t *models.Tag) string { return t.ID })
}

func (m *MemoryStore) ListStatuses(_ context.Context) ([]*models.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneAll(m.statuses), nil
}

func (m *MemoryStore) GetStatus(_ context.Context, id string) (*models.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return find(m.statuses, "status", id, func(s *models.Status) string { return s.ID })
}

func (m *MemoryStore) StatusByCode(_ context.Context, code models.StatusCode) (*models.Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return find(m.statuses, "status code", string(code), func(s *models.Status) string { return string(s.Code) })
}

// find returns a copy of the first element whose key matches.
func find[T any](items []*T, kind, key string, keyOf func(*T) string) (*T, error) {
	for _, it := range items {
		if keyOf(it) == key {
			c := *it
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%s %s: %w", kind, key, ErrNotFound)
}

// cloneAll makes shallow copies of each element. Reference types here carry
// no nested slices except Actor.AssignedProjectIDs, which is copied too.
func cloneAll[T any](items []*T) []*T {
	out := make([]*T, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		c := *it
		if a, ok := any(&c).(*models.Actor); ok && a.AssignedProjectIDs != nil {
			a.AssignedProjectIDs = slices.Clone(a.AssignedProjectIDs)
		}
		out = append(out, &c)
	}
	return out
}
