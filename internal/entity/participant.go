package entity

import "time"

type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Mark     string    `json:"mark"`
	JoinedAt time.Time `json:"joined_at"`
}
