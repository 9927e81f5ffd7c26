package models

import "time"

// Connection is one direction of an acquaintance edge. connect stores both
// directions; a rating stores only rater -> rated.
type Connection struct {
	UserID      string    `json:"user_id" gorm:"primaryKey;type:varchar(128)"`
	ConnectedID string    `json:"connected_id" gorm:"primaryKey;type:varchar(128);index"`
	CreatedAt   time.Time `json:"created_at"`
}
