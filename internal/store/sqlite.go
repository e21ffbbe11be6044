package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hcl-hz/PMS-board/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteSource reads and writes board snapshots using modernc.org/sqlite
// (pure Go, no CGO). It implements Source so a snapshot can seed a MemoryStore.
type SQLiteSource struct {
	db *sql.DB
}

// NewSQLiteSource opens (or creates) a SQLite database at the given path.
func NewSQLiteSource(dbPath string) (*SQLiteSource, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteSource{db: db}, nil
}

// boolToInt converts a bool to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteSource) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// WriteDataset replaces the database contents with ds in one transaction.
func (s *SQLiteSource) WriteDataset(ctx context.Context, ds *Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Children first (foreign keys)
	for _, table := range []string{"attachments", "comments", "issue_tags", "issues", "statuses", "tags", "projects", "actors", "organizations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, o := range ds.Organizations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO organizations (id, name, code) VALUES (?, ?, ?)`,
			o.ID, o.Name, o.Code); err != nil {
			return fmt.Errorf("insert organization: %w", err)
		}
	}

	for _, a := range ds.Actors {
		assigned, err := json.Marshal(a.AssignedProjectIDs)
		if err != nil {
			assigned = []byte("[]")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO actors (id, name, email, role, organization_id, avatar, assigned_project_ids)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Name, a.Email, string(a.Role), a.OrganizationID, a.Avatar, string(assigned)); err != nil {
			return fmt.Errorf("insert actor: %w", err)
		}
	}

	for _, p := range ds.Projects {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, name, code, organization_id, description) VALUES (?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Code, p.OrganizationID, p.Description); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
	}

	for _, t := range ds.Tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tags (id, name, code, color, project_id) VALUES (?, ?, ?, ?, ?)`,
			t.ID, t.Name, t.Code, t.Color, t.ProjectID); err != nil {
			return fmt.Errorf("insert tag: %w", err)
		}
	}

	for i, st := range ds.Statuses {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO statuses (id, name, code, color, label, position) VALUES (?, ?, ?, ?, ?, ?)`,
			st.ID, st.Name, string(st.Code), st.Color, st.Label, i); err != nil {
			return fmt.Errorf("insert status: %w", err)
		}
	}

	for i, a := range ds.Attachments {
		if err := insertAttachment(ctx, tx, nil, i, a); err != nil {
			return err
		}
	}

	for pos, issue := range ds.Issues {
		var hours sql.NullFloat64
		if issue.WorkHours != nil {
			hours = sql.NullFloat64{Float64: *issue.WorkHours, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO issues (id, position, title, body_html, body_text, author_id, status_id, is_secret, project_id, organization_id, view_count, work_hours, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			issue.ID, pos, issue.Title, issue.BodyHTML, issue.BodyText,
			issue.Author.ID, issue.Status.ID, boolToInt(issue.IsSecret),
			issue.ProjectID, issue.OrganizationID, issue.ViewCount, hours,
			issue.CreatedAt.UTC(), issue.UpdatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert issue %s: %w", issue.ID, err)
		}

		for i, t := range issue.Tags {
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO issue_tags (issue_id, tag_id, position) VALUES (?, ?, ?)",
				issue.ID, t.ID, i); err != nil {
				return fmt.Errorf("tag issue: %w", err)
			}
		}

		for i, c := range issue.Comments {
			mentions, err := json.Marshal(c.Mentions)
			if err != nil || c.Mentions == nil {
				mentions = []byte("[]")
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO comments (id, issue_id, position, content, author_id, is_internal, mentions, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, issue.ID, i, c.Content, c.Author.ID, boolToInt(c.IsInternal), string(mentions),
				c.CreatedAt.UTC(), c.UpdatedAt.UTC(),
			); err != nil {
				return fmt.Errorf("insert comment %s: %w", c.ID, err)
			}
		}

		for i := range issue.Attachments {
			id := issue.ID
			if err := insertAttachment(ctx, tx, &id, i, &issue.Attachments[i]); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertAttachment(ctx context.Context, tx *sql.Tx, issueID *string, pos int, a *models.Attachment) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO attachments (id, issue_id, position, stored_name, original_name, size_bytes, mime_type, download_url, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, issueID, pos, a.StoredName, a.OriginalName, a.SizeBytes, a.MimeType, a.DownloadURL, a.UploadedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert attachment %s: %w", a.ID, err)
	}
	return nil
}

// Dataset reads the full snapshot back.
func (s *SQLiteSource) Dataset(ctx context.Context) (*Dataset, error) {
	ds := &Dataset{}
	var err error

	if ds.Organizations, err = s.listOrganizations(ctx); err != nil {
		return nil, err
	}
	if ds.Actors, err = s.listActors(ctx); err != nil {
		return nil, err
	}
	if ds.Projects, err = s.listProjects(ctx); err != nil {
		return nil, err
	}
	if ds.Tags, err = s.listTags(ctx); err != nil {
		return nil, err
	}
	if ds.Statuses, err = s.listStatuses(ctx); err != nil {
		return nil, err
	}

	actors := make(map[string]models.Actor, len(ds.Actors))
	for _, a := range ds.Actors {
		actors[a.ID] = *a
	}
	statuses := make(map[string]models.Status, len(ds.Statuses))
	for _, st := range ds.Statuses {
		statuses[st.ID] = *st
	}

	attachments, err := s.listAttachments(ctx)
	if err != nil {
		return nil, err
	}
	ds.Attachments = attachments[""]

	issueTags, err := s.listIssueTags(ctx)
	if err != nil {
		return nil, err
	}
	comments, err := s.listComments(ctx, actors)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, body_html, body_text, author_id, status_id, is_secret, project_id, organization_id, view_count, work_hours, created_at, updated_at
		FROM issues ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		issue := &models.Issue{}
		var authorID, statusID string
		var hours sql.NullFloat64
		if err := rows.Scan(&issue.ID, &issue.Title, &issue.BodyHTML, &issue.BodyText,
			&authorID, &statusID, &issue.IsSecret, &issue.ProjectID, &issue.OrganizationID,
			&issue.ViewCount, &hours, &issue.CreatedAt, &issue.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issue.Author = actors[authorID]
		issue.Status = statuses[statusID]
		if hours.Valid {
			h := hours.Float64
			issue.WorkHours = &h
		}
		issue.Tags = issueTags[issue.ID]
		issue.Comments = comments[issue.ID]
		for _, a := range attachments[issue.ID] {
			issue.Attachments = append(issue.Attachments, *a)
		}
		ds.Issues = append(ds.Issues, issue)
	}
	return ds, rows.Err()
}

func (s *SQLiteSource) listOrganizations(ctx context.Context) ([]*models.Organization, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, code FROM organizations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orgs []*models.Organization
	for rows.Next() {
		o := &models.Organization{}
		if err := rows.Scan(&o.ID, &o.Name, &o.Code); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (s *SQLiteSource) listActors(ctx context.Context) ([]*models.Actor, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, role, organization_id, avatar, assigned_project_ids FROM actors ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var actors []*models.Actor
	for rows.Next() {
		a := &models.Actor{}
		var role, assigned string
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &role, &a.OrganizationID, &a.Avatar, &assigned); err != nil {
			return nil, fmt.Errorf("scan actor: %w", err)
		}
		a.Role = models.Role(role)
		if err := json.Unmarshal([]byte(assigned), &a.AssignedProjectIDs); err != nil {
			return nil, fmt.Errorf("decode assigned projects of actor %s: %w", a.ID, err)
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

func (s *SQLiteSource) listProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, code, organization_id, description FROM projects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*models.Project
	for rows.Next() {
		p := &models.Project{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Code, &p.OrganizationID, &p.Description); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *SQLiteSource) listTags(ctx context.Context) ([]*models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, code, color, project_id FROM tags ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tags []*models.Tag
	for rows.Next() {
		t := &models.Tag{}
		if err := rows.Scan(&t.ID, &t.Name, &t.Code, &t.Color, &t.ProjectID); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (s *SQLiteSource) listStatuses(ctx context.Context) ([]*models.Status, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, code, color, label FROM statuses ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var statuses []*models.Status
	for rows.Next() {
		st := &models.Status{}
		var code string
		if err := rows.Scan(&st.ID, &st.Name, &code, &st.Color, &st.Label); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		st.Code = models.StatusCode(code)
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// listIssueTags groups tags by issue id, in their original order.
func (s *SQLiteSource) listIssueTags(ctx context.Context) (map[string][]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT it.issue_id, t.id, t.name, t.code, t.color, t.project_id FROM tags t
		JOIN issue_tags it ON t.id = it.tag_id
		ORDER BY it.issue_id, it.position`)
	if err != nil {
		return nil, fmt.Errorf("get issue tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]models.Tag)
	for rows.Next() {
		var issueID string
		var t models.Tag
		if err := rows.Scan(&issueID, &t.ID, &t.Name, &t.Code, &t.Color, &t.ProjectID); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out[issueID] = append(out[issueID], t)
	}
	return out, rows.Err()
}

func (s *SQLiteSource) listComments(ctx context.Context, actors map[string]models.Actor) (map[string][]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, issue_id, content, author_id, is_internal, mentions, created_at, updated_at
		FROM comments ORDER BY issue_id, position`)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]models.Comment)
	for rows.Next() {
		var c models.Comment
		var authorID, mentions string
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Content, &authorID, &c.IsInternal, &mentions,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.Author = actors[authorID]
		if err := json.Unmarshal([]byte(mentions), &c.Mentions); err != nil {
			return nil, fmt.Errorf("decode mentions of comment %s: %w", c.ID, err)
		}
		out[c.IssueID] = append(out[c.IssueID], c)
	}
	return out, rows.Err()
}

// listAttachments groups attachments by issue id; loose files use the empty key.
func (s *SQLiteSource) listAttachments(ctx context.Context) (map[string][]*models.Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, COALESCE(issue_id, ''), stored_name, original_name, size_bytes, mime_type, download_url, uploaded_at
		FROM attachments ORDER BY issue_id, position`)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]*models.Attachment)
	for rows.Next() {
		a := &models.Attachment{}
		var issueID string
		if err := rows.Scan(&a.ID, &issueID, &a.StoredName, &a.OriginalName, &a.SizeBytes,
			&a.MimeType, &a.DownloadURL, &a.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out[issueID] = append(out[issueID], a)
	}
	return out, rows.Err()
}
