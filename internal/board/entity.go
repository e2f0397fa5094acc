package board

import "time"

type Type string

const (
	TypePersonal Type = "personal"
	TypeCollab   Type = "collab"
)

func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case TypePersonal, TypeCollab:
		return Type(s), true
	case "":
		return TypePersonal, true
	}
	return "", false
}

type Board struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Type      Type      `yaml:"type" json:"type"`
	OwnerID   string    `yaml:"owner_id" json:"owner_id"`
	Members   []string  `yaml:"members" json:"members"`
	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt time.Time `yaml:"updated_at" json:"updated_at"`
}
