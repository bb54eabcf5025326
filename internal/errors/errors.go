// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is returned when a campaign id does not exist.
type ErrCampaignNotFound struct {
	CampaignID int
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign with ID %d not found", e.CampaignID)
}

func NewCampaignNotFound(id int) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrCampaignConflict is returned when a send is attempted against a
// campaign that is not in a sendable status. Exactly one of two concurrent
// send requests observes this; the loser performs no sends.
type ErrCampaignConflict struct {
	CampaignID int
	Status     string
}

func (e *ErrCampaignConflict) Error() string {
	return fmt.Sprintf("campaign %d cannot be sent in status %q", e.CampaignID, e.Status)
}

func NewCampaignConflict(id int, status string) error {
	return &ErrCampaignConflict{CampaignID: id, Status: status}
}

// ErrChannelUnavailable means the provider adapter could not be constructed
// or reached at all, as opposed to a single send failing. It aborts the
// whole campaign before any recipient row is written.
type ErrChannelUnavailable struct {
	Reason string
}

func (e *ErrChannelUnavailable) Error() string {
	return fmt.Sprintf("channel provider unavailable: %s", e.Reason)
}

func NewChannelUnavailable(reason string) error {
	return &ErrChannelUnavailable{Reason: reason}
}

// ErrUnknownSegment is returned when a campaign names a segment that is not
// in the registry.
type ErrUnknownSegment struct {
	Segment string
}

func (e *ErrUnknownSegment) Error() string {
	return fmt.Sprintf("unknown audience segment %q", e.Segment)
}

func NewUnknownSegment(name string) error {
	return &ErrUnknownSegment{Segment: name}
}
