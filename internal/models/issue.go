package models

import "time"

// Issue is a single board entry.
type Issue struct {
	ID             string
	Title          string
	BodyHTML       string // markup from the editor, stored and searched as-is
	BodyText       string // plain-text rendition used for validation
	Author         Actor
	Status         Status
	Tags           []Tag
	IsSecret       bool
	ProjectID      string
	OrganizationID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ViewCount      int
	WorkHours      *float64
	Comments       []Comment
	Attachments    []Attachment
}

// Comment is a reply on an issue. Internal comments are admin notes.
type Comment struct {
	ID         string
	IssueID    string
	Content    string
	Author     Actor
	CreatedAt  time.Time
	UpdatedAt  time.Time
	IsInternal bool
	Mentions   []string
}

// Attachment describes a file uploaded with an issue.
type Attachment struct {
	ID           string
	StoredName   string
	OriginalName string
	SizeBytes    int64
	MimeType     string
	DownloadURL  string
	UploadedAt   time.Time
}

// FindComment returns the index of the comment with the given id, or -1.
func (i *Issue) FindComment(id string) int {
	for idx := range i.Comments {
		if i.Comments[idx].ID == id {
			return idx
		}
	}
	return -1
}

// Clone returns a deep copy of the issue so callers cannot alias stored state.
func (i *Issue) Clone() *Issue {
	c := *i
	c.Author = i.Author.clone()
	if i.WorkHours != nil {
		h := *i.WorkHours
		c.WorkHours = &h
	}
	if i.Tags != nil {
		c.Tags = append([]Tag(nil), i.Tags...)
	}
	if i.Attachments != nil {
		c.Attachments = append([]Attachment(nil), i.Attachments...)
	}
	if i.Comments != nil {
		c.Comments = make([]Comment, len(i.Comments))
		for idx, cm := range i.Comments {
			cm.Author = cm.Author.clone()
			if cm.Mentions != nil {
				cm.Mentions = append([]string(nil), cm.Mentions...)
			}
			c.Comments[idx] = cm
		}
	}
	return &c
}

func (a Actor) clone() Actor {
	if a.AssignedProjectIDs != nil {
		a.AssignedProjectIDs = append([]string(nil), a.AssignedProjectIDs...)
	}
	return a
}
