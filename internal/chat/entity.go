package chat

import "time"

type Message struct {
	ID        string    `yaml:"id" json:"id"`
	BoardID   string    `yaml:"board_id" json:"board_id"`
	AuthorID  string    `yaml:"author_id" json:"author_id"`
	Body      string    `yaml:"body" json:"body"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}
