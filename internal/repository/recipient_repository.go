package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/campaignforge/broadcast-backend/internal/model"
)

type RecipientRepositoryInterface interface {
	// CreateSnapshot freezes the audience: one pending row per user id,
	// inserted as a batch. Later segment changes never touch these rows.
	CreateSnapshot(campaignID int, userIDs []int64) error

	// Write-through per-recipient outcomes. Each row is owned by exactly
	// one dispatch task, so no row locking is needed here.
	MarkSent(campaignID int, userID int64) error
	MarkFailed(campaignID int, userID int64, reason string) error

	CountByStatus(campaignID int) (map[string]int, error)
	ListByCampaign(campaignID, offset, limit int) ([]*model.Recipient, int, error)
	ListPendingUserIDs(campaignID int) ([]int64, error)
}

type RecipientRepository struct {
	DB *sql.DB
}

// snapshotChunk bounds the placeholder count of a single batch INSERT.
const snapshotChunk = 1000

func (r *RecipientRepository) CreateSnapshot(campaignID int, userIDs []int64) error {
	now := time.Now()
	for start := 0; start < len(userIDs); start += snapshotChunk {
		end := start + snapshotChunk
		if end > len(userIDs) {
			end = len(userIDs)
		}
		if err := r.insertBatch(campaignID, userIDs[start:end], now); err != nil {
			return err
		}
	}
	return nil
}

func (r *RecipientRepository) insertBatch(campaignID int, userIDs []int64, now time.Time) error {
	values := make([]string, 0, len(userIDs))
	args := []interface{}{campaignID, model.RecipientPending, now}
	argPos := 4
	for _, id := range userIDs {
		values = append(values, fmt.Sprintf("($1, $%d, $2, $3)", argPos))
		args = append(args, id)
		argPos++
	}

	// ON CONFLICT keeps a duplicate trigger from blowing up; the unique
	// (campaign_id, user_id) pair is the snapshot invariant.
	query := `
        INSERT INTO recipients (campaign_id, user_id, status, created_at)
        VALUES ` + strings.Join(values, ", ") + `
        ON CONFLICT (campaign_id, user_id) DO NOTHING
    `
	_, err := r.DB.Exec(query, args...)
	return err
}

func (r *RecipientRepository) MarkSent(campaignID int, userID int64) error {
	query := `
        UPDATE recipients
        SET status=$1, sent_at=NOW(), error_message=''
        WHERE campaign_id=$2 AND user_id=$3
    `
	_, err := r.DB.Exec(query, model.RecipientSent, campaignID, userID)
	return err
}

func (r *RecipientRepository) MarkFailed(campaignID int, userID int64, reason string) error {
	query := `
        UPDATE recipients
        SET status=$1, error_message=$2
        WHERE campaign_id=$3 AND user_id=$4
    `
	_, err := r.DB.Exec(query, model.RecipientFailed, reason, campaignID, userID)
	return err
}

func (r *RecipientRepository) CountByStatus(campaignID int) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM recipients WHERE campaign_id=$1 GROUP BY status`
	rows, err := r.DB.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		model.RecipientPending: 0,
		model.RecipientSent:    0,
		model.RecipientFailed:  0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func (r *RecipientRepository) ListByCampaign(campaignID, offset, limit int) ([]*model.Recipient, int, error) {
	query := `
        SELECT id, campaign_id, user_id, status, error_message, sent_at, created_at
        FROM recipients
        WHERE campaign_id=$1
        ORDER BY id ASC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.DB.Query(query, campaignID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	recipients := []*model.Recipient{}
	for rows.Next() {
		rec := &model.Recipient{}
		if err := rows.Scan(&rec.ID, &rec.CampaignID, &rec.UserID, &rec.Status, &rec.ErrorMessage, &rec.SentAt, &rec.CreatedAt); err != nil {
			return nil, 0, err
		}
		recipients = append(recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.DB.QueryRow(`SELECT COUNT(*) FROM recipients WHERE campaign_id=$1`, campaignID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return recipients, total, nil
}

// ListPendingUserIDs supports resuming an interrupted dispatch and the
// bridge's drain endpoint.
func (r *RecipientRepository) ListPendingUserIDs(campaignID int) ([]int64, error) {
	query := `SELECT user_id FROM recipients WHERE campaign_id=$1 AND status=$2 ORDER BY id ASC`
	rows, err := r.DB.Query(query, campaignID, model.RecipientPending)
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

var _ RecipientRepositoryInterface = (*RecipientRepository)(nil)
