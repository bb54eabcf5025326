// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/campaignforge/broadcast-backend/internal/audience"
	"github.com/campaignforge/broadcast-backend/internal/cache"
	"github.com/campaignforge/broadcast-backend/internal/model"
	"github.com/campaignforge/broadcast-backend/internal/queue"
	"github.com/campaignforge/broadcast-backend/internal/repository"
)

type CampaignService struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	UserRepo      repository.UserRepositoryInterface
	Resolver      *audience.Resolver
	Engine        *DispatchEngine
	Queue         queue.Queue
	Cache         cache.AudienceCache // optional
}

type CampaignDetails struct {
	*model.Campaign
	Stats map[string]int `json:"stats"`
}

type CreateCampaignInput struct {
	Title       string
	Body        string
	Segment     string
	UserIDs     []int64
	ScheduledAt *string
	CreatedBy   string
}

func (s *CampaignService) CreateCampaign(in CreateCampaignInput) (*model.Campaign, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("title cannot be empty")
	}
	if strings.TrimSpace(in.Body) == "" {
		return nil, fmt.Errorf("body cannot be empty")
	}
	if in.Segment != "" && !audience.ValidSegment(in.Segment) {
		return nil, fmt.Errorf("unknown segment: %s", in.Segment)
	}

	c := &model.Campaign{
		Title:     in.Title,
		Body:      in.Body,
		Segment:   in.Segment,
		UserIDs:   in.UserIDs,
		Status:    model.StatusDraft,
		CreatedBy: in.CreatedBy,
	}

	if in.ScheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *in.ScheduledAt)
		if err != nil {
			return nil, err
		}
		c.ScheduledAt = &t
		c.Status = model.StatusScheduled
	}

	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCampaigns fetches campaigns with pagination.
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}
	return campaigns, pagination, nil
}

func (s *CampaignService) GetCampaignDetails(id int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	stats, err := s.RecipientRepo.CountByStatus(id)
	if err != nil {
		return nil, err
	}
	stats["total"] = stats[model.RecipientPending] + stats[model.RecipientSent] + stats[model.RecipientFailed]

	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}

func (s *CampaignService) ListRecipients(campaignID, page, pageSize int) ([]*model.Recipient, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}
	offset := (page - 1) * pageSize

	recipients, total, err := s.RecipientRepo.ListByCampaign(campaignID, offset, pageSize)
	if err != nil {
		return nil, nil, err
	}

	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
	}
	return recipients, pagination, nil
}

// SendCampaign is the operator trigger. The conditional update in
// BeginSend decides the race: the winner gets the campaign in sending and
// a trigger job is published; the loser gets a conflict and nothing else
// happens.
func (s *CampaignService) SendCampaign(campaignID int) (*model.Campaign, error) {
	campaign, err := s.CampaignRepo.BeginSend(campaignID)
	if err != nil {
		return nil, err
	}

	if err := s.Queue.Publish(queue.TopicCampaignSends, campaignID); err != nil {
		// The campaign is already in sending; settle it rather than
		// leaving it stuck.
		log.Printf("⚠️ failed to enqueue campaign %d, aborting: %v", campaignID, err)
		if abortErr := s.CampaignRepo.Abort(campaignID, 0, 0, 0); abortErr != nil {
			log.Printf("⚠️ abort after enqueue failure also failed: %v", abortErr)
		}
		return nil, err
	}
	return campaign, nil
}

// RunCampaign resolves the audience and runs the dispatch engine. It is
// invoked by the trigger queue subscriber (in-process or cmd/worker),
// strictly after BeginSend succeeded.
func (s *CampaignService) RunCampaign(ctx context.Context, campaignID int) error {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return err
	}
	if campaign.Status != model.StatusSending {
		// Stale or duplicate trigger; the state machine already moved on.
		log.Printf("ignoring trigger for campaign %d in status %q", campaignID, campaign.Status)
		return nil
	}

	userIDs, err := s.Resolver.Resolve(campaign)
	if err != nil {
		log.Printf("campaign %d: audience resolution failed, aborting: %v", campaignID, err)
		if abortErr := s.CampaignRepo.Abort(campaignID, 0, 0, 0); abortErr != nil {
			log.Printf("campaign %d: abort failed: %v", campaignID, abortErr)
		}
		return err
	}

	return s.Engine.Dispatch(ctx, campaign, userIDs)
}

// CancelCampaign asks a running dispatch to stop after in-flight sends.
// The returned bool is false when the campaign exists but nothing is in
// flight for it; an unknown id is an error.
func (s *CampaignService) CancelCampaign(campaignID int) (bool, error) {
	if _, err := s.CampaignRepo.GetByID(campaignID); err != nil {
		return false, err
	}
	return s.Engine.Cancel(campaignID), nil
}

// SegmentPreview returns the current audience size for a segment, cached
// briefly when redis is configured.
func (s *CampaignService) SegmentPreview(ctx context.Context, segment string) (int, error) {
	if !audience.ValidSegment(segment) {
		return 0, fmt.Errorf("unknown segment: %s", segment)
	}

	if s.Cache != nil {
		if count, ok, err := s.Cache.GetPreview(ctx, segment); err != nil {
			log.Println("⚠️ preview cache read failed:", err)
		} else if ok {
			return count, nil
		}
	}

	ids, err := s.UserRepo.SegmentUserIDs(segment, time.Now())
	if err != nil {
		return 0, err
	}

	if s.Cache != nil {
		if err := s.Cache.StorePreview(ctx, segment, len(ids)); err != nil {
			log.Println("⚠️ preview cache write failed:", err)
		}
	}
	return len(ids), nil
}
