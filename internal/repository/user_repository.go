package repository

import (
	"database/sql"
	"time"

	"github.com/campaignforge/broadcast-backend/internal/audience"
	appErrors "github.com/campaignforge/broadcast-backend/internal/errors"
	"github.com/campaignforge/broadcast-backend/internal/model"
)

type UserRepositoryInterface interface {
	GetByID(id int64) (*model.User, error)
	// ChannelAddress returns "" (no error) when the user is missing or has
	// no registered address; dispatch turns that into a local failure.
	ChannelAddress(userID int64) (string, error)
	SegmentUserIDs(segment string, now time.Time) ([]int64, error)
}

type UserRepository struct {
	DB *sql.DB
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	query := `SELECT id, name, COALESCE(channel_address, ''), created_at FROM users WHERE id=$1`
	var u model.User
	err := r.DB.QueryRow(query, id).Scan(&u.ID, &u.Name, &u.ChannelAddress, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ChannelAddress(userID int64) (string, error) {
	query := `SELECT COALESCE(channel_address, '') FROM users WHERE id=$1`
	var addr string
	err := r.DB.QueryRow(query, userID).Scan(&addr)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return addr, nil
}

// hasAddress is common to every segment: the provider can only deliver to
// users with a registered channel address.
const hasAddress = `channel_address IS NOT NULL AND channel_address <> ''`

// segmentQuery builds the SQL predicate for a named segment. Kept apart
// from the row scan so the predicate shape and its window bindings can be
// checked without a database.
func segmentQuery(segment string, w audience.Windows) (string, []interface{}, error) {
	var query string
	var args []interface{}

	switch segment {
	case audience.SegmentAll:
		query = `SELECT id FROM users WHERE ` + hasAddress + ` ORDER BY id`

	case audience.SegmentActive:
		query = `
            SELECT id FROM users
            WHERE ` + hasAddress + `
              AND EXISTS (
                SELECT 1 FROM activity_events e
                WHERE e.user_id = users.id AND e.occurred_at > $1
              )
            ORDER BY id`
		args = append(args, w.Recent)

	case audience.SegmentNewUsers:
		query = `SELECT id FROM users WHERE ` + hasAddress + ` AND created_at > $1 ORDER BY id`
		args = append(args, w.Recent)

	case audience.SegmentAtRisk:
		// Last activity strictly between 60 and 30 days ago.
		query = `
            SELECT id FROM users
            WHERE ` + hasAddress + `
              AND (SELECT MAX(e.occurred_at) FROM activity_events e WHERE e.user_id = users.id) > $1
              AND (SELECT MAX(e.occurred_at) FROM activity_events e WHERE e.user_id = users.id) < $2
            ORDER BY id`
		args = append(args, w.Stale, w.Recent)

	case audience.SegmentChurned:
		// No activity in the last 60 days, including users with no
		// activity at all.
		query = `
            SELECT id FROM users
            WHERE ` + hasAddress + `
              AND NOT EXISTS (
                SELECT 1 FROM activity_events e
                WHERE e.user_id = users.id AND e.occurred_at > $1
              )
            ORDER BY id`
		args = append(args, w.Stale)

	case audience.SegmentPowerUsers:
		query = `
            SELECT id FROM users
            WHERE ` + hasAddress + `
              AND (
                SELECT COUNT(*) FROM activity_events e
                WHERE e.user_id = users.id AND e.occurred_at > $1
              ) >= $2
            ORDER BY id`
		args = append(args, w.Recent, audience.PowerUserMinEvents)

	default:
		return "", nil, appErrors.NewUnknownSegment(segment)
	}
	return query, args, nil
}

// SegmentUserIDs evaluates a named segment predicate. All time windows are
// bound from the caller's reference instant, never NOW(), so two runs over
// identical data return identical sets.
func (r *UserRepository) SegmentUserIDs(segment string, now time.Time) ([]int64, error) {
	query, args, err := segmentQuery(segment, audience.WindowsAt(now))
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ UserRepositoryInterface = (*UserRepository)(nil)
