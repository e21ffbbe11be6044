package models

// StatusCode identifies the state of an issue.
type StatusCode string

const (
	StatusReceived   StatusCode = "received"
	StatusConfirmed  StatusCode = "confirmed"
	StatusInProgress StatusCode = "in_progress"
	StatusCompleted  StatusCode = "completed"
	StatusHold       StatusCode = "hold"
	StatusCancelled  StatusCode = "cancelled"
	StatusNotice     StatusCode = "notice"
)

// Status is a registry entry describing an issue state and how it is displayed.
type Status struct {
	ID    string
	Name  string
	Code  StatusCode
	Color string
	Label string
}

// IsNotice reports whether the status marks a globally visible notice.
func (s Status) IsNotice() bool {
	return s.Code == StatusNotice
}
