package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hcl-hz/PMS-board/internal/models"
)

var (
	admin = &models.Actor{ID: "user-1", Role: models.RoleAdmin}
	u2    = &models.Actor{ID: "user-2", Role: models.RoleContributor}
	u3    = &models.Actor{ID: "user-4", Role: models.RoleContributor}

	notice   = models.Status{ID: "status-notice", Code: models.StatusNotice}
	received = models.Status{ID: "status-1", Code: models.StatusReceived}
)

func fixture() []*models.Issue {
	return []*models.Issue{
		{ID: "notice", Author: *admin, Status: notice},
		{ID: "secret-notice", Author: *admin, Status: notice, IsSecret: true},
		{ID: "u2-public", Author: *u2, Status: received},
		{ID: "u2-secret", Author: *u2, Status: received, IsSecret: true},
		{ID: "u3-public", Author: *u3, Status: received},
		{ID: "admin-secret", Author: *admin, Status: received, IsSecret: true},
	}
}

func ids(issues []*models.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.ID
	}
	return out
}

func TestVisible_Anonymous(t *testing.T) {
	got := Visible(fixture(), nil)
	assert.Equal(t, []string{"notice", "u2-public", "u3-public"}, ids(got))
}

func TestVisible_Admin(t *testing.T) {
	all := fixture()
	got := Visible(all, admin)
	assert.Equal(t, ids(all), ids(got))
}

func TestVisible_Contributor(t *testing.T) {
	got := Visible(fixture(), u2)
	assert.Equal(t, []string{"notice", "secret-notice", "u2-public", "u2-secret"}, ids(got))
}

func TestVisible_ContributorNeverSeesOthersSecrets(t *testing.T) {
	for _, actor := range []*models.Actor{u2, u3} {
		for _, issue := range Visible(fixture(), actor) {
			if issue.IsSecret && issue.Author.ID != actor.ID {
				assert.True(t, issue.Status.IsNotice(), "leaked %s to %s", issue.ID, actor.ID)
			}
		}
	}
}

func TestVisible_PureAndIdempotent(t *testing.T) {
	in := fixture()
	before := ids(in)
	first := Visible(in, u3)
	second := Visible(in, u3)
	assert.Equal(t, ids(first), ids(second))
	assert.Equal(t, before, ids(in))
}

func TestCanView(t *testing.T) {
	secret := &models.Issue{Author: *u2, IsSecret: true}
	public := &models.Issue{Author: *u2}

	assert.True(t, CanView(public, nil))
	assert.False(t, CanView(secret, nil))
	assert.True(t, CanView(secret, u2))
	assert.True(t, CanView(secret, admin))
	assert.False(t, CanView(secret, u3))
}

func TestVisibleComments(t *testing.T) {
	comments := []models.Comment{
		{ID: "c1", Author: *u2},
		{ID: "c2", Author: *u2, IsInternal: true},
		{ID: "c3", Author: *admin, IsInternal: true},
	}

	var got []string
	for _, c := range VisibleComments(comments, u2) {
		got = append(got, c.ID)
	}
	assert.Equal(t, []string{"c1", "c2"}, got)

	assert.Len(t, VisibleComments(comments, admin), 3)
	assert.Len(t, VisibleComments(comments, u3), 1)
	assert.Len(t, VisibleComments(comments, nil), 1)
}

func TestCanModerateComment(t *testing.T) {
	c := models.Comment{Author: *u2}
	assert.True(t, CanModerateComment(c, u2))
	assert.True(t, CanModerateComment(c, admin))
	assert.False(t, CanModerateComment(c, u3))
	assert.False(t, CanModerateComment(c, nil))
}
