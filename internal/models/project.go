package models

// Project groups issues under an organization.
type Project struct {
	ID             string
	Name           string
	Code           string
	OrganizationID string
	Description    string
}
