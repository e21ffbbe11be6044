package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteSource {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteSource(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteSource_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteSource(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestSQLiteSource_RoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	want, err := NewSeedSource(testBase, 40, time.UTC).Dataset(ctx)
	require.NoError(t, err)
	require.NoError(t, s.WriteDataset(ctx, want))

	got, err := s.Dataset(ctx)
	require.NoError(t, err)

	assert.Len(t, got.Organizations, len(want.Organizations))
	assert.Len(t, got.Actors, len(want.Actors))
	assert.Len(t, got.Projects, len(want.Projects))
	assert.Len(t, got.Tags, len(want.Tags))
	assert.Len(t, got.Attachments, len(want.Attachments))
	require.Len(t, got.Statuses, len(want.Statuses))
	for i := range want.Statuses {
		assert.Equal(t, want.Statuses[i].Code, got.Statuses[i].Code)
	}

	require.Len(t, got.Issues, len(want.Issues))
	for i, w := range want.Issues {
		g := got.Issues[i]
		assert.Equal(t, w.ID, g.ID, "collection order is preserved")
		assert.Equal(t, w.Title, g.Title)
		assert.Equal(t, w.BodyHTML, g.BodyHTML)
		assert.Equal(t, w.Author.ID, g.Author.ID)
		assert.Equal(t, w.Author.Name, g.Author.Name)
		assert.Equal(t, w.Status.Code, g.Status.Code)
		assert.Equal(t, w.IsSecret, g.IsSecret)
		assert.Equal(t, w.ViewCount, g.ViewCount)
		assert.True(t, w.CreatedAt.Equal(g.CreatedAt), "created_at for %s", w.ID)
		assert.Equal(t, len(w.Tags), len(g.Tags))
		assert.Equal(t, len(w.Comments), len(g.Comments))
		assert.Equal(t, len(w.Attachments), len(g.Attachments))
		if w.WorkHours == nil {
			assert.Nil(t, g.WorkHours)
		} else {
			require.NotNil(t, g.WorkHours)
			assert.Equal(t, *w.WorkHours, *g.WorkHours)
		}
	}

	notice := got.Issues[5]
	require.Equal(t, "board-1", notice.ID)
	require.Len(t, notice.Comments, 2)
	assert.Equal(t, "comment-1", notice.Comments[0].ID)
	assert.True(t, notice.Comments[1].IsInternal)
	assert.Equal(t, []string{"user-1"}, notice.Comments[1].Mentions)
	assert.Equal(t, "박담당자", notice.Comments[1].Author.Name)
}

func TestSQLiteSource_CorruptJSONColumns(t *testing.T) {
	ctx := context.Background()
	seed, err := NewSeedSource(testBase, 10, time.UTC).Dataset(ctx)
	require.NoError(t, err)

	t.Run("assigned projects", func(t *testing.T) {
		s := newTestSQLite(t)
		require.NoError(t, s.WriteDataset(ctx, seed))
		_, err := s.db.ExecContext(ctx, `UPDATE actors SET assigned_project_ids = '{bad' WHERE id = 'user-2'`)
		require.NoError(t, err)

		_, err = s.Dataset(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "actor user-2")
	})

	t.Run("mentions", func(t *testing.T) {
		s := newTestSQLite(t)
		require.NoError(t, s.WriteDataset(ctx, seed))
		_, err := s.db.ExecContext(ctx, `UPDATE comments SET mentions = 'not json' WHERE id = 'comment-1'`)
		require.NoError(t, err)

		_, err = s.Dataset(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "comment comment-1")
	})
}

func TestSQLiteSource_WriteReplaces(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	big, err := NewSeedSource(testBase, 20, time.UTC).Dataset(ctx)
	require.NoError(t, err)
	require.NoError(t, s.WriteDataset(ctx, big))

	small, err := NewSeedSource(testBase, 6, time.UTC).Dataset(ctx)
	require.NoError(t, err)
	require.NoError(t, s.WriteDataset(ctx, small))

	got, err := s.Dataset(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Issues, 6)
}

func TestSQLiteSource_FeedsMemoryStore(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	ds, err := NewSeedSource(testBase, 10, time.UTC).Dataset(ctx)
	require.NoError(t, err)
	require.NoError(t, s.WriteDataset(ctx, ds))

	mem := NewMemoryStore(s)
	require.NoError(t, mem.Load(ctx))
	issues, err := mem.ListIssues(ctx)
	require.NoError(t, err)
	assert.Len(t, issues, 10)
}
