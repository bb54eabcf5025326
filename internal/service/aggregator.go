package service

import (
	"github.com/campaignforge/broadcast-backend/internal/model"
	"github.com/campaignforge/broadcast-backend/internal/repository"
)

// StatusAggregator rolls per-recipient outcomes up into the campaign's
// counters and terminal state. The dispatch engine calls it exactly once
// per campaign, after the fan-out loop drains.
type StatusAggregator struct {
	Campaigns  repository.CampaignRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
}

// Finalize counts recipient rows and moves the campaign to completed.
func (a *StatusAggregator) Finalize(campaignID int) error {
	total, sent, failed, err := a.rollup(campaignID)
	if err != nil {
		return err
	}
	return a.Campaigns.Finalize(campaignID, total, sent, failed)
}

// Cancel counts recipient rows and moves the campaign to cancelled. Rows
// still pending are left untouched for a possible future resume.
func (a *StatusAggregator) Cancel(campaignID int) error {
	total, sent, failed, err := a.rollup(campaignID)
	if err != nil {
		return err
	}
	return a.Campaigns.Abort(campaignID, total, sent, failed)
}

func (a *StatusAggregator) rollup(campaignID int) (total, sent, failed int, err error) {
	stats, err := a.Recipients.CountByStatus(campaignID)
	if err != nil {
		return 0, 0, 0, err
	}
	sent = stats[model.RecipientSent]
	failed = stats[model.RecipientFailed]
	total = sent + failed + stats[model.RecipientPending]
	return total, sent, failed, nil
}
