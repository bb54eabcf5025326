package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/campaignforge/broadcast-backend/internal/channel"
	appErrors "github.com/campaignforge/broadcast-backend/internal/errors"
	"github.com/campaignforge/broadcast-backend/internal/model"
)

// In-memory repositories mirroring the SQL semantics, shared by the
// service tests.

type memCampaignRepo struct {
	mu        sync.Mutex
	nextID    int
	campaigns map[int]*model.Campaign
}

func newMemCampaignRepo() *memCampaignRepo {
	return &memCampaignRepo{nextID: 1, campaigns: map[int]*model.Campaign{}}
}

func (r *memCampaignRepo) add(c *model.Campaign) *model.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.nextID
	r.nextID++
	r.campaigns[c.ID] = c
	return c
}

func (r *memCampaignRepo) Create(c *model.Campaign) error {
	if c.Status == "" {
		c.Status = model.StatusDraft
	}
	c.CreatedAt = time.Now()
	r.add(c)
	return nil
}

func (r *memCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r *memCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range r.campaigns {
		if status == "" || c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

// BeginSend mirrors the conditional update: check and transition under one
// lock, as the SQL does in one statement.
func (r *memCampaignRepo) BeginSend(id int) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	if c.Status != model.StatusDraft && c.Status != model.StatusScheduled {
		return nil, appErrors.NewCampaignConflict(id, c.Status)
	}
	c.Status = model.StatusSending
	now := time.Now()
	c.SentAt = &now
	cp := *c
	return &cp, nil
}

func (r *memCampaignRepo) Finalize(id, total, sent, failed int) error {
	return r.settle(id, model.StatusCompleted, total, sent, failed)
}

func (r *memCampaignRepo) Abort(id, total, sent, failed int) error {
	return r.settle(id, model.StatusCancelled, total, sent, failed)
}

func (r *memCampaignRepo) Resume(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	if c.Status != model.StatusCancelled {
		return appErrors.NewCampaignConflict(id, c.Status)
	}
	c.Status = model.StatusSending
	return nil
}

func (r *memCampaignRepo) settle(id int, status string, total, sent, failed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	if c.Status != model.StatusSending {
		return appErrors.NewCampaignConflict(id, c.Status)
	}
	c.Status = status
	c.TotalRecipients = total
	c.SentCount = sent
	c.FailedCount = failed
	return nil
}

type recKey struct {
	campaignID int
	userID     int64
}

type memRecipientRepo struct {
	mu    sync.Mutex
	rows  map[recKey]*model.Recipient
	order []recKey

	// Error injection for the storage-failure paths.
	markSentErr   error
	markFailedErr error
}

func newMemRecipientRepo() *memRecipientRepo {
	return &memRecipientRepo{rows: map[recKey]*model.Recipient{}}
}

func (r *memRecipientRepo) CreateSnapshot(campaignID int, userIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, uid := range userIDs {
		key := recKey{campaignID, uid}
		if _, ok := r.rows[key]; ok {
			continue
		}
		r.rows[key] = &model.Recipient{
			CampaignID: campaignID,
			UserID:     uid,
			Status:     model.RecipientPending,
			CreatedAt:  time.Now(),
		}
		r.order = append(r.order, key)
	}
	return nil
}

func (r *memRecipientRepo) MarkSent(campaignID int, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markSentErr != nil {
		return r.markSentErr
	}
	if row, ok := r.rows[recKey{campaignID, userID}]; ok {
		row.Status = model.RecipientSent
		now := time.Now()
		row.SentAt = &now
	}
	return nil
}

func (r *memRecipientRepo) MarkFailed(campaignID int, userID int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markFailedErr != nil {
		return r.markFailedErr
	}
	if row, ok := r.rows[recKey{campaignID, userID}]; ok {
		row.Status = model.RecipientFailed
		row.ErrorMessage = reason
	}
	return nil
}

func (r *memRecipientRepo) CountByStatus(campaignID int) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := map[string]int{
		model.RecipientPending: 0,
		model.RecipientSent:    0,
		model.RecipientFailed:  0,
	}
	for key, row := range r.rows {
		if key.campaignID == campaignID {
			stats[row.Status]++
		}
	}
	return stats, nil
}

func (r *memRecipientRepo) ListByCampaign(campaignID, offset, limit int) ([]*model.Recipient, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*model.Recipient{}
	for _, key := range r.order {
		if key.campaignID == campaignID {
			cp := *r.rows[key]
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (r *memRecipientRepo) ListPendingUserIDs(campaignID int) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, key := range r.order {
		if key.campaignID == campaignID && r.rows[key].Status == model.RecipientPending {
			ids = append(ids, key.userID)
		}
	}
	return ids, nil
}

func (r *memRecipientRepo) get(campaignID int, userID int64) *model.Recipient {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[recKey{campaignID, userID}]
	if !ok {
		return nil
	}
	cp := *row
	return &cp
}

func (r *memRecipientRepo) count(campaignID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key := range r.rows {
		if key.campaignID == campaignID {
			n++
		}
	}
	return n
}

type memUserRepo struct {
	addresses map[int64]string
	segments  map[string][]int64
}

func (r *memUserRepo) GetByID(id int64) (*model.User, error) {
	addr, ok := r.addresses[id]
	if !ok {
		return nil, nil
	}
	return &model.User{ID: id, ChannelAddress: addr}, nil
}

func (r *memUserRepo) ChannelAddress(userID int64) (string, error) {
	return r.addresses[userID], nil
}

func (r *memUserRepo) SegmentUserIDs(segment string, now time.Time) ([]int64, error) {
	return r.segments[segment], nil
}

// fakeClient records every address it was asked to deliver to.
type fakeClient struct {
	mu     sync.Mutex
	sent   []string
	sendFn func(address string) error
}

func (f *fakeClient) Send(ctx context.Context, address, body string) error {
	f.mu.Lock()
	f.sent = append(f.sent, address)
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(address)
	}
	return nil
}

func (f *fakeClient) sentAddresses() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.sent...)
}

func available(c channel.Client) channel.Factory {
	return channel.FactoryFunc(func() (channel.Client, error) { return c, nil })
}

func unavailable(reason string) channel.Factory {
	return channel.FactoryFunc(func() (channel.Client, error) {
		return nil, appErrors.NewChannelUnavailable(reason)
	})
}
