// internal/model/user.go
package model

import "time"

type User struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	ChannelAddress string    `db:"channel_address" json:"channel_address,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// ActivityEvent is one tracked user action; segments are evaluated against
// this table with an explicit reference time.
type ActivityEvent struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}
