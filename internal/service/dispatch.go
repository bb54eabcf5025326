package service

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/campaignforge/broadcast-backend/internal/channel"
	appErrors "github.com/campaignforge/broadcast-backend/internal/errors"
	"github.com/campaignforge/broadcast-backend/internal/model"
	"github.com/campaignforge/broadcast-backend/internal/repository"
)

// errorMessageMax bounds the provider error text stored per recipient.
const errorMessageMax = 500

// reasonNoAddress marks the local, zero-network-cost failure for users
// without a registered channel address.
const reasonNoAddress = "no channel address"

// DispatchEngine fans a campaign out to its frozen recipient snapshot
// through a bounded worker pool. Every outcome is written through to the
// recipients table the moment it is determined, so mid-flight progress is
// observable and a crashed dispatch can be resumed from the pending rows.
type DispatchEngine struct {
	Campaigns  repository.CampaignRepositoryInterface
	Recipients repository.RecipientRepositoryInterface
	Users      repository.UserRepositoryInterface
	Channel    channel.Factory
	Aggregator *StatusAggregator

	Workers     int
	RatePerSec  int
	SendTimeout time.Duration

	mu      sync.Mutex
	cancels map[int]context.CancelFunc
}

// Dispatch runs one campaign end to end: snapshot, fan-out, rollup. The
// campaign must already be in sending (BeginSend won the guard).
//
// Channel availability is checked before the snapshot insert, so an
// aborted campaign leaves no orphaned pending rows.
func (e *DispatchEngine) Dispatch(ctx context.Context, campaign *model.Campaign, userIDs []int64) error {
	if len(userIDs) == 0 {
		// Empty audience is valid: straight to completed with zeros,
		// without ever touching the provider.
		return e.Aggregator.Finalize(campaign.ID)
	}

	client, err := e.Channel.Client()
	if err != nil {
		log.Printf("campaign %d: channel unavailable, aborting: %v", campaign.ID, err)
		if abortErr := e.Campaigns.Abort(campaign.ID, 0, 0, 0); abortErr != nil {
			return abortErr
		}
		return err
	}

	if err := e.Recipients.CreateSnapshot(campaign.ID, userIDs); err != nil {
		log.Printf("campaign %d: snapshot insert failed, aborting: %v", campaign.ID, err)
		if abortErr := e.Campaigns.Abort(campaign.ID, 0, 0, 0); abortErr != nil {
			log.Printf("campaign %d: abort failed: %v", campaign.ID, abortErr)
		}
		return err
	}

	return e.run(ctx, client, campaign, userIDs)
}

// DispatchPending drains a campaign's remaining pending recipients. This
// is the resume path after a crash (status still sending) and the bridge
// host's drain endpoint; a cancelled campaign is moved back to sending
// first so the rollup has a settle path. Completed and never-started
// campaigns are rejected before any send goes out.
func (e *DispatchEngine) DispatchPending(ctx context.Context, campaignID int) error {
	campaign, err := e.Campaigns.GetByID(campaignID)
	if err != nil {
		return err
	}
	switch campaign.Status {
	case model.StatusSending, model.StatusCancelled:
	default:
		return appErrors.NewCampaignConflict(campaignID, campaign.Status)
	}

	client, err := e.Channel.Client()
	if err != nil {
		log.Printf("campaign %d: channel unavailable, aborting resume: %v", campaignID, err)
		if campaign.Status == model.StatusSending {
			if cancelErr := e.Aggregator.Cancel(campaignID); cancelErr != nil {
				return cancelErr
			}
		}
		return err
	}

	if campaign.Status == model.StatusCancelled {
		if err := e.Campaigns.Resume(campaignID); err != nil {
			return err
		}
	}

	userIDs, err := e.Recipients.ListPendingUserIDs(campaignID)
	if err != nil {
		return err
	}
	return e.run(ctx, client, campaign, userIDs)
}

// Cancel stops a running dispatch cooperatively: sends already issued
// complete and are recorded, no new ones start. Returns false when no
// dispatch is in flight for the campaign.
func (e *DispatchEngine) Cancel(campaignID int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	cancel, ok := e.cancels[campaignID]
	if ok {
		cancel()
	}
	return ok
}

func (e *DispatchEngine) run(ctx context.Context, client channel.Client, campaign *model.Campaign, userIDs []int64) error {
	dctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.register(campaign.ID, cancel)
	defer e.unregister(campaign.ID)

	workers := e.Workers
	if workers <= 0 {
		workers = 4
	}
	rps := e.RatePerSec
	if rps <= 0 {
		rps = 10
	}
	limiter := rate.NewLimiter(rate.Limit(rps), rps)
	body := RenderBody(campaign)

	log.Printf("campaign %d: dispatching to %d recipients (%d workers, %d/s)", campaign.ID, len(userIDs), workers, rps)
	start := time.Now()

	jobs := make(chan int64)
	var wg sync.WaitGroup

	// First storage failure aborts the whole campaign; per-send failures
	// never do.
	var errMu sync.Mutex
	var storageErr error
	fail := func(err error) {
		errMu.Lock()
		if storageErr == nil {
			storageErr = err
			cancel()
		}
		errMu.Unlock()
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				// Cooperative cancel: drain the queue without sending.
				if dctx.Err() != nil {
					continue
				}
				if err := e.sendOne(dctx, client, limiter, campaign.ID, userID, body); err != nil {
					fail(err)
				}
			}
		}()
	}

	for _, id := range userIDs {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	errMu.Lock()
	err := storageErr
	errMu.Unlock()

	if err != nil {
		log.Printf("campaign %d: dispatch aborted after %s: %v", campaign.ID, time.Since(start), err)
		if cancelErr := e.Aggregator.Cancel(campaign.ID); cancelErr != nil {
			log.Printf("campaign %d: cancel rollup failed: %v", campaign.ID, cancelErr)
		}
		return err
	}

	if dctx.Err() != nil {
		// Cancelled (operator or shutdown): settle as cancelled, leave
		// the rest pending.
		log.Printf("campaign %d: dispatch cancelled after %s", campaign.ID, time.Since(start))
		return e.Aggregator.Cancel(campaign.ID)
	}

	log.Printf("campaign %d: dispatch finished in %s", campaign.ID, time.Since(start))
	return e.Aggregator.Finalize(campaign.ID)
}

// sendOne determines and persists the outcome for a single recipient. The
// returned error is a storage failure only; delivery failures are recorded
// on the row and swallowed.
func (e *DispatchEngine) sendOne(dctx context.Context, client channel.Client, limiter *rate.Limiter, campaignID int, userID int64, body string) error {
	addr, err := e.Users.ChannelAddress(userID)
	if err != nil {
		return err
	}
	if addr == "" {
		// Local failure: the provider is never invoked for this user.
		return e.Recipients.MarkFailed(campaignID, userID, reasonNoAddress)
	}

	if err := limiter.Wait(dctx); err != nil {
		// Cancelled while queued for a token; leave the row pending.
		return nil
	}

	// The send carries its own timeout and is detached from the cancel
	// context: an issued send runs to completion and is recorded.
	timeout := e.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sctx, done := context.WithTimeout(context.Background(), timeout)
	defer done()

	if err := client.Send(sctx, addr, body); err != nil {
		return e.Recipients.MarkFailed(campaignID, userID, truncate(err.Error(), errorMessageMax))
	}
	return e.Recipients.MarkSent(campaignID, userID)
}

func (e *DispatchEngine) register(campaignID int, cancel context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancels == nil {
		e.cancels = make(map[int]context.CancelFunc)
	}
	e.cancels[campaignID] = cancel
}

func (e *DispatchEngine) unregister(campaignID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cancels, campaignID)
}

// RenderBody builds the single outbound message: title and body, no
// per-recipient personalization.
func RenderBody(c *model.Campaign) string {
	if c.Title == "" {
		return c.Body
	}
	return c.Title + "\n\n" + c.Body
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
