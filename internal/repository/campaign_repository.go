package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/campaignforge/broadcast-backend/internal/errors"
	"github.com/campaignforge/broadcast-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	// Campaign CRUD
	Create(c *model.Campaign) error
	GetByID(id int) (*model.Campaign, error)
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)

	// State machine. BeginSend is the double-dispatch guard: a single
	// conditional update, never a read-then-write.
	BeginSend(campaignID int) (*model.Campaign, error)
	Finalize(campaignID, total, sent, failed int) error
	Abort(campaignID, total, sent, failed int) error
	Resume(campaignID int) error
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, title, body, segment, user_ids, status, scheduled_at,
       total_recipients, sent_count, failed_count, created_by, created_at, sent_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
	c.CreatedAt = time.Now()
	if c.Status == "" {
		c.Status = model.StatusDraft
	}
	query := `
        INSERT INTO campaigns (title, body, segment, user_ids, status, scheduled_at, created_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		c.Title, c.Body, c.Segment, pq.Array(c.UserIDs),
		c.Status, c.ScheduledAt, c.CreatedBy, c.CreatedAt,
	).Scan(&c.ID)
}

func (r *CampaignRepository) GetByID(id int) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`
	c, err := scanCampaign(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	return c, nil
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// ====================== State machine ======================

// BeginSend atomically moves a campaign from draft/scheduled to sending.
// The status check and the write are one statement, so of two concurrent
// send requests exactly one sees rows-affected=1; the other gets a
// conflict and must not dispatch anything.
func (r *CampaignRepository) BeginSend(campaignID int) (*model.Campaign, error) {
	query := `
        UPDATE campaigns
        SET status=$1, sent_at=NOW()
        WHERE id=$2 AND status IN ($3, $4)
    `
	res, err := r.DB.Exec(query, model.StatusSending, campaignID, model.StatusDraft, model.StatusScheduled)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// Lost the race, or the campaign never existed. Look once to tell
		// the two apart.
		c, err := r.GetByID(campaignID)
		if err != nil {
			return nil, err
		}
		return nil, appErrors.NewCampaignConflict(campaignID, c.Status)
	}
	return r.GetByID(campaignID)
}

// Finalize moves sending -> completed and persists the rollup counters.
func (r *CampaignRepository) Finalize(campaignID, total, sent, failed int) error {
	query := `
        UPDATE campaigns
        SET status=$1, total_recipients=$2, sent_count=$3, failed_count=$4
        WHERE id=$5 AND status=$6
    `
	res, err := r.DB.Exec(query, model.StatusCompleted, total, sent, failed, campaignID, model.StatusSending)
	if err != nil {
		return err
	}
	return requireTransition(res, campaignID, model.StatusSending)
}

// Abort moves sending -> cancelled. Used when the channel provider is
// entirely unavailable (zero totals, no recipient rows exist yet), on an
// unrecoverable mid-dispatch error, and on operator cancel (totals reflect
// outcomes recorded so far; remaining rows stay pending).
func (r *CampaignRepository) Abort(campaignID, total, sent, failed int) error {
	query := `
        UPDATE campaigns
        SET status=$1, total_recipients=$2, sent_count=$3, failed_count=$4
        WHERE id=$5 AND status=$6
    `
	res, err := r.DB.Exec(query, model.StatusCancelled, total, sent, failed, campaignID, model.StatusSending)
	if err != nil {
		return err
	}
	return requireTransition(res, campaignID, model.StatusSending)
}

// Resume moves cancelled -> sending so a drain of the remaining pending
// recipients can settle the campaign again.
func (r *CampaignRepository) Resume(campaignID int) error {
	query := `UPDATE campaigns SET status=$1 WHERE id=$2 AND status=$3`
	res, err := r.DB.Exec(query, model.StatusSending, campaignID, model.StatusCancelled)
	if err != nil {
		return err
	}
	return requireTransition(res, campaignID, model.StatusCancelled)
}

func requireTransition(res sql.Result, campaignID int, want string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("campaign %d is not in status %q", campaignID, want)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner) (*model.Campaign, error) {
	var c model.Campaign
	var segment sql.NullString
	var ids pq.Int64Array
	err := row.Scan(
		&c.ID, &c.Title, &c.Body, &segment, &ids, &c.Status, &c.ScheduledAt,
		&c.TotalRecipients, &c.SentCount, &c.FailedCount,
		&c.CreatedBy, &c.CreatedAt, &c.SentAt,
	)
	if err != nil {
		return nil, err
	}
	c.Segment = segment.String
	c.UserIDs = []int64(ids)
	return &c, nil
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
