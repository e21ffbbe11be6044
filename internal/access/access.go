// Package access decides which issues and comments an actor may see.
package access

import "github.com/hcl-hz/PMS-board/internal/models"

// Visible returns the issues the actor may list, preserving input order.
//
// Anonymous callers see only non-secret issues. Admins see everything.
// Contributors see their own issues plus notices, regardless of secrecy.
// The input slice is never modified.
func Visible(issues []*models.Issue, actor *models.Actor) []*models.Issue {
	out := make([]*models.Issue, 0, len(issues))
	for _, issue := range issues {
		if Listable(issue, actor) {
			out = append(out, issue)
		}
	}
	return out
}

// Listable reports whether a single issue passes the list visibility rule.
func Listable(issue *models.Issue, actor *models.Actor) bool {
	switch {
	case actor == nil:
		return !issue.IsSecret
	case actor.Role == models.RoleAdmin:
		return true
	default:
		return issue.Author.ID == actor.ID || issue.Status.IsNotice()
	}
}

// CanView reports whether the actor may open the issue detail.
// Admins and authors always can; anyone else, anonymous callers included,
// only when the issue is not secret.
func CanView(issue *models.Issue, actor *models.Actor) bool {
	if !issue.IsSecret {
		return true
	}
	if actor == nil {
		return false
	}
	return actor.Role == models.RoleAdmin || issue.Author.ID == actor.ID
}

// CanSeeComment reports whether the actor may read the comment.
func CanSeeComment(c models.Comment, actor *models.Actor) bool {
	if !c.IsInternal {
		return true
	}
	if actor == nil {
		return false
	}
	return actor.Role == models.RoleAdmin || c.Author.ID == actor.ID
}

// VisibleComments returns the comments the actor may read, in original order.
func VisibleComments(comments []models.Comment, actor *models.Actor) []models.Comment {
	out := make([]models.Comment, 0, len(comments))
	for _, c := range comments {
		if CanSeeComment(c, actor) {
			out = append(out, c)
		}
	}
	return out
}

// CanModerateComment reports whether the actor may edit or delete the comment.
func CanModerateComment(c models.Comment, actor *models.Actor) bool {
	if actor == nil {
		return false
	}
	return actor.Role == models.RoleAdmin || c.Author.ID == actor.ID
}
