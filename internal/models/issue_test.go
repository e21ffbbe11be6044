package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("Admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	r, err = ParseRole("manager")
	require.NoError(t, err)
	assert.Equal(t, RoleContributor, r)

	_, err = ParseRole("guest")
	assert.Error(t, err)
}

func TestActorIsAdmin(t *testing.T) {
	var nilActor *Actor
	assert.False(t, nilActor.IsAdmin())
	assert.True(t, (&Actor{Role: RoleAdmin}).IsAdmin())
	assert.False(t, (&Actor{Role: RoleContributor}).IsAdmin())
}

func TestIssueClone_DoesNotAlias(t *testing.T) {
	hours := 1.5
	orig := &Issue{
		ID:        "i1",
		Author:    Actor{ID: "u1", AssignedProjectIDs: []string{"p1"}},
		Tags:      []Tag{{ID: "t1"}},
		WorkHours: &hours,
		Comments: []Comment{
			{ID: "c1", Content: "first", Mentions: []string{"u2"}},
		},
		Attachments: []Attachment{{ID: "a1"}},
	}

	c := orig.Clone()
	c.Tags[0].ID = "changed"
	c.Comments[0].Content = "changed"
	c.Comments[0].Mentions[0] = "changed"
	c.Attachments[0].ID = "changed"
	c.Author.AssignedProjectIDs[0] = "changed"
	*c.WorkHours = 9

	assert.Equal(t, "t1", orig.Tags[0].ID)
	assert.Equal(t, "first", orig.Comments[0].Content)
	assert.Equal(t, "u2", orig.Comments[0].Mentions[0])
	assert.Equal(t, "a1", orig.Attachments[0].ID)
	assert.Equal(t, "p1", orig.Author.AssignedProjectIDs[0])
	assert.Equal(t, 1.5, *orig.WorkHours)
}

func TestFindComment(t *testing.T) {
	i := &Issue{Comments: []Comment{{ID: "c1"}, {ID: "c2"}}}
	assert.Equal(t, 1, i.FindComment("c2"))
	assert.Equal(t, -1, i.FindComment("missing"))
}
