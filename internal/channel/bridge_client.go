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

// SecretHeader authenticates requests between the console host and the
// bridge host that holds the provider credentials.
const SecretHeader = "X-Bridge-Secret"

// BridgeClient sends through the remote bridge instead of talking to the
// provider directly. It is just another Client; the fan-out loop never
// knows the difference.
type BridgeClient struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewBridgeClient(baseURL, secret string) *BridgeClient {
	return &BridgeClient{
		baseURL: baseURL,
		secret:  secret,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func BridgeFactory(baseURL, secret string) Factory {
	return FactoryFunc(func() (Client, error) {
		if baseURL == "" || secret == "" {
			return nil, appErrors.NewChannelUnavailable("bridge host or secret not configured")
		}
		return NewBridgeClient(baseURL, secret), nil
	})
}

func (c *BridgeClient) Send(ctx context.Context, address, body string) error {
	reqBody, err := json.Marshal(sendRequest{Address: address, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bridge/send", bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bridge rejected send: status %d body=%q", resp.StatusCode, string(respBody))
	}
	return nil
}

var _ Client = (*BridgeClient)(nil)
