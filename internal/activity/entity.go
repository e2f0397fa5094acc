package activity

import "time"

// Entry is one line of the audit trail written on every task move. It is
// observational only; nothing reads it back for control decisions.
type Entry struct {
	ID        string    `yaml:"id" json:"id"`
	BoardID   string    `yaml:"board_id" json:"board_id"`
	TaskID    string    `yaml:"task_id" json:"task_id"`
	TaskTitle string    `yaml:"task_title" json:"task_title"`
	AgentName string    `yaml:"agent_name" json:"agent_name"`
	Status    string    `yaml:"status" json:"status"`
	Priority  string    `yaml:"priority" json:"priority"`
	Repo      string    `yaml:"repo" json:"repo"`
	Percent   int       `yaml:"percent" json:"percent"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}
