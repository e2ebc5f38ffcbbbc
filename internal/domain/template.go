package domain

import "time"

// Template is the rendering template a task's TemplateData is applied to
type Template struct {
	ID        string    `json:"id"`
	Data      string    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}
