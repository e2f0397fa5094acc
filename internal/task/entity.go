package task

import "time"

type Status string

const (
	StatusToDo     Status = "todo"
	StatusProgress Status = "progress"
	StatusReview   Status = "review"
	StatusDone     Status = "done"
	StatusCancel   Status = "cancel"
)

// ParseStatus maps the wire representation to a Status. Unknown values
// return ok == false; callers must reject them.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusToDo, StatusProgress, StatusReview, StatusDone, StatusCancel:
		return Status(s), true
	}
	return "", false
}

// Label returns the human-readable column name used in activity entries
// and user-facing messages.
func (s Status) Label() string {
	switch s {
	case StatusToDo:
		return "To Do"
	case StatusProgress:
		return "In Progress"
	case StatusReview:
		return "In Review"
	case StatusDone:
		return "Done"
	case StatusCancel:
		return "Cancelled"
	}
	return string(s)
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func ParsePriority(s string) (Priority, bool) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return Priority(s), true
	case "":
		return PriorityMedium, true
	}
	return "", false
}

type Task struct {
	ID                 string    `yaml:"id" json:"id"`
	BoardID            string    `yaml:"board_id" json:"board_id"`
	OwnerID            string    `yaml:"owner_id" json:"owner_id"`
	Title              string    `yaml:"title" json:"title"`
	Description        string    `yaml:"description" json:"description"`
	Priority           Priority  `yaml:"priority" json:"priority"`
	Status             Status    `yaml:"status" json:"status"`
	Requirements       []string  `yaml:"requirements" json:"requirements"`
	AcceptanceCriteria []string  `yaml:"acceptance_criteria" json:"acceptance_criteria"`
	AssignedAgentID    string    `yaml:"assigned_agent_id" json:"assigned_agent_id"`
	Repo               string    `yaml:"repo" json:"repo"`
	ProcessLog         []string  `yaml:"process_log" json:"process_log"`
	Progress           int       `yaml:"progress" json:"progress"`
	CreatedAt          time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt          time.Time `yaml:"updated_at" json:"updated_at"`
}
