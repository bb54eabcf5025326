package queue

import (
	"fmt"
	"log"
	"sync"
)

// TopicCampaignSends carries "run campaign N" trigger jobs from the API
// server to whichever process runs the dispatch engine.
const TopicCampaignSends = "campaign_sends"

// Queue is the trigger transport. It carries campaign ids only; it is not
// a durability layer, and a duplicate delivery is harmless because the
// BeginSend guard lets exactly one dispatch through.
type Queue interface {
	Publish(topic string, campaignID int) error
	Subscribe(topic string, handler func(campaignID int) error) error
}

// InMemoryQueue runs handlers in-process; used in single-binary mode and
// in tests.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(campaignID int) error
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(campaignID int) error),
	}
}

func (q *InMemoryQueue) Publish(topic string, campaignID int) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	for _, handler := range handlers {
		h := handler
		go func() {
			if err := h(campaignID); err != nil {
				log.Printf("⚠️ job on %s for campaign %d failed: %v", topic, campaignID, err)
			}
		}()
	}
	return nil
}

func (q *InMemoryQueue) Subscribe(topic string, handler func(campaignID int) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

var _ Queue = (*InMemoryQueue)(nil)
