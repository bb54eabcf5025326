package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	appErrors "github.com/campaignforge/broadcast-backend/internal/errors"
)

// WebhookClient posts sends to the provider's webhook endpoint.
type WebhookClient struct {
	url    string
	client *http.Client
}

func NewWebhookClient(url string) *WebhookClient {
	return &WebhookClient{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WebhookFactory fails closed when no webhook URL is configured, which the
// engine treats as whole-provider unavailability.
func WebhookFactory(url string) Factory {
	return FactoryFunc(func() (Client, error) {
		if url == "" {
			return nil, appErrors.NewChannelUnavailable("no provider webhook URL configured")
		}
		return NewWebhookClient(url), nil
	})
}

type sendRequest struct {
	Address string `json:"address"`
	Body    string `json:"body"`
}

func (c *WebhookClient) Send(ctx context.Context, address, body string) error {
	reqBody, err := json.Marshal(sendRequest{Address: address, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider rejected send: status %d body=%q", resp.StatusCode, string(respBody))
	}
	return nil
}

var _ Client = (*WebhookClient)(nil)
