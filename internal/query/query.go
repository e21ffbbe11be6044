// Package query narrows, searches and orders an already access-filtered
// issue list.
package query

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/hcl-hz/PMS-board/internal/models"
)

// DefaultPageSize matches the list view's incremental page size.
const DefaultPageSize = 10

// Open bounds used when a date filter cannot be parsed.
var (
	openFrom = time.UnixMilli(0)
	openTo   = time.UnixMilli(8640000000000000)
)

// Filter holds the secondary filters. Zero values are no-ops.
type Filter struct {
	Status         models.StatusCode
	ProjectID      string
	OrganizationID string
	AuthorID       string
	IsSecret       *bool
	DateFrom       string // YYYY-MM-DD, inclusive from local midnight
	DateTo         string // YYYY-MM-DD, inclusive through local 23:59:59.999
}

// IsZero reports whether no filter option is set.
func (f Filter) IsZero() bool {
	return f.Status == "" && f.ProjectID == "" && f.OrganizationID == "" &&
		f.AuthorID == "" && f.IsSecret == nil && f.DateFrom == "" && f.DateTo == ""
}

// Engine applies filters relative to a time zone.
type Engine struct {
	loc *time.Location
}

// New creates an Engine. A nil location means time.Local.
func New(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{loc: loc}
}

// Apply filters by f, keeps issues matching text, and sorts newest first.
// The input slice and the issues it points to are left untouched.
func (e *Engine) Apply(issues []*models.Issue, f Filter, text string) []*models.Issue {
	out := make([]*models.Issue, 0, len(issues))

	var from, to time.Time
	if f.DateFrom != "" {
		from = e.DayStart(f.DateFrom)
	}
	if f.DateTo != "" {
		to = e.DayEnd(f.DateTo)
	}

	needle := ""
	if strings.TrimSpace(text) != "" {
		needle = fold(text)
	}

	filtered := !f.IsZero()
	for _, issue := range issues {
		if filtered && !f.keep(issue, from, to) {
			continue
		}
		if needle != "" && !Matches(issue, needle) {
			continue
		}
		out = append(out, issue)
	}

	slices.SortStableFunc(out, func(a, b *models.Issue) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// keep reports whether the issue passes every set option. from and to are
// the resolved date bounds.
func (f Filter) keep(issue *models.Issue, from, to time.Time) bool {
	switch {
	case f.Status != "" && issue.Status.Code != f.Status:
		return false
	case f.ProjectID != "" && issue.ProjectID != f.ProjectID:
		return false
	case f.OrganizationID != "" && issue.OrganizationID != f.OrganizationID:
		return false
	case f.AuthorID != "" && issue.Author.ID != f.AuthorID:
		return false
	case f.IsSecret != nil && issue.IsSecret != *f.IsSecret:
		return false
	case f.DateFrom != "" && issue.CreatedAt.Before(from):
		return false
	case f.DateTo != "" && issue.CreatedAt.After(to):
		return false
	}
	return true
}

// DayStart parses a date and returns local midnight of that day.
// Unparseable input yields the epoch.
func (e *Engine) DayStart(s string) time.Time {
	d, ok := e.parseDay(s)
	if !ok {
		return openFrom
	}
	return d
}

// DayEnd parses a date and returns 23:59:59.999 local time of that day.
// Unparseable input yields the far future.
func (e *Engine) DayEnd(s string) time.Time {
	d, ok := e.parseDay(s)
	if !ok {
		return openTo
	}
	return d.Add(24*time.Hour - time.Millisecond)
}

func (e *Engine) parseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(time.DateOnly, s, e.loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.In(e.loc)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, e.loc), true
	}
	return time.Time{}, false
}

// Matches reports whether any searchable field of the issue contains the
// already folded needle. Body markup is searched raw.
func Matches(issue *models.Issue, needle string) bool {
	if contains(issue.Title, needle) ||
		contains(issue.BodyHTML, needle) ||
		contains(issue.Author.Name, needle) {
		return true
	}
	for _, t := range issue.Tags {
		if contains(t.Name, needle) {
			return true
		}
	}
	for _, c := range issue.Comments {
		if contains(c.Content, needle) || contains(c.Author.Name, needle) {
			return true
		}
	}
	return false
}

func contains(haystack, needle string) bool {
	return strings.Contains(fold(haystack), needle)
}

// fold normalizes to NFC and applies Unicode case folding.
// A Caser is stateful, so a fresh one is created per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// Page is one slice of a result list.
type Page struct {
	Issues     []*models.Issue
	TotalCount int
	Page       int
	PageSize   int
	HasMore    bool
}

// Paginate returns the 1-based page of issues. Out of range pages are empty.
func Paginate(issues []*models.Issue, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}
	total := len(issues)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := min(start+pageSize, total)
	return Page{
		Issues:     issues[start:end],
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    end < total,
	}
}
