package models

import "time"

type Question struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Options   []string  `json:"options"`
	Category  string    `json:"category,omitempty"`
	Position  int       `json:"position"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Lead struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// QuizResult is a submitted quiz. Scoring happens in the widget; the API only stores it.
type QuizResult struct {
	ID        string         `json:"id"`
	Score     int            `json:"score"`
	Answers   map[string]int `json:"answers"`
	LeadID    *string        `json:"leadId,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}
