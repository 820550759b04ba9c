package entities

import "github.com/google/uuid"

type Project struct {
	Id     uuid.UUID `json:"id"`
	UserId string    `json:"user_id"`
	Title  string    `json:"title"`
}

func (Project) TableName() string {
	return "projects"
}
