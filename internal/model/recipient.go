// internal/model/recipient.go
package model

import "time"

// Recipient delivery statuses.
const (
	RecipientPending = "pending"
	RecipientSent    = "sent"
	RecipientFailed  = "failed"
)

// Recipient is one row of a campaign's frozen audience snapshot. Rows are
// created in a batch, all pending, when the campaign enters sending, and
// each row is written at most twice after that (pending -> sent|failed).
type Recipient struct {
	ID           int        `db:"id" json:"id"`
	CampaignID   int        `db:"campaign_id" json:"campaign_id"`
	UserID       int64      `db:"user_id" json:"user_id"`
	Status       string     `db:"status" json:"status"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	SentAt       *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
