package audience

import (
	"time"

	appErrors "github.com/campaignforge/broadcast-backend/internal/errors"
	"github.com/campaignforge/broadcast-backend/internal/model"
)

// Store is the slice of the user repository the resolver needs.
type Store interface {
	SegmentUserIDs(segment string, now time.Time) ([]int64, error)
}

// Resolver freezes a campaign's audience. Explicit user ids are returned
// verbatim (an id with no channel address fails later, at dispatch); a
// named segment is evaluated against current activity data; neither set
// defaults to the all segment.
type Resolver struct {
	Users Store
	Now   func() time.Time
}

func NewResolver(users Store) *Resolver {
	return &Resolver{Users: users, Now: time.Now}
}

func (r *Resolver) Resolve(c *model.Campaign) ([]int64, error) {
	if len(c.UserIDs) > 0 {
		return c.UserIDs, nil
	}

	segment := c.Segment
	if segment == "" {
		segment = SegmentAll
	}
	if !ValidSegment(segment) {
		return nil, appErrors.NewUnknownSegment(segment)
	}

	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	return r.Users.SegmentUserIDs(segment, now)
}
