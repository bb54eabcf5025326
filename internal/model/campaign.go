// internal/model/campaign.go
package model

import "time"

// Campaign lifecycle statuses.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusSending   = "sending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

type Campaign struct {
	ID    int    `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
	Body  string `db:"body" json:"body"`

	// Target specification: either an explicit list of user ids or a named
	// segment. Explicit ids win when both are set. Informational only once
	// the campaign is sending; the frozen audience lives in the recipients
	// table.
	Segment string  `db:"segment" json:"segment,omitempty"`
	UserIDs []int64 `db:"user_ids" json:"user_ids,omitempty"`

	Status      string     `db:"status" json:"status"`
	ScheduledAt *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`

	TotalRecipients int `db:"total_recipients" json:"total_recipients"`
	SentCount       int `db:"sent_count" json:"sent_count"`
	FailedCount     int `db:"failed_count" json:"failed_count"`

	CreatedBy string     `db:"created_by" json:"created_by"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	SentAt    *time.Time `db:"sent_at" json:"sent_at,omitempty"`
}

// Sendable reports whether a send may begin from the campaign's current
// status. The authoritative check is the conditional update in the
// repository; this is for surfacing friendly errors.
func (c *Campaign) Sendable() bool {
	return c.Status == StatusDraft || c.Status == StatusScheduled
}
