package models

// Tag represents a label that can be applied to issues.
// ProjectID is informational; tag selection is not restricted by project.
type Tag struct {
	ID        string
	Name      string
	Code      string
	Color     string
	ProjectID string
}
