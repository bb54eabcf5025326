package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/campaignforge/broadcast-backend/internal/channel"
	appErrors "github.com/campaignforge/broadcast-backend/internal/errors"
	"github.com/campaignforge/broadcast-backend/internal/handler"
)

type recordClient struct {
	mu   sync.Mutex
	sent []string
}

func (c *recordClient) Send(ctx context.Context, address, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, address)
	return nil
}

func newBridgeRouter(factory channel.Factory, secret string) http.Handler {
	h := &handler.BridgeHandler{Provider: factory, Secret: secret}
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(h.RequireSecret)
		r.Post("/bridge/send", h.SendHandler)
	})
	return r
}

func TestBridgeRejectsMissingSecret(t *testing.T) {
	client := &recordClient{}
	router := newBridgeRouter(channel.FactoryFunc(func() (channel.Client, error) { return client, nil }), "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/bridge/send", strings.NewReader(`{"address":"a","body":"b"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(client.sent) != 0 {
		t.Fatal("unauthenticated request must not send")
	}
}

func TestBridgeSendsWithValidSecret(t *testing.T) {
	client := &recordClient{}
	router := newBridgeRouter(channel.FactoryFunc(func() (channel.Client, error) { return client, nil }), "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/bridge/send", strings.NewReader(`{"address":"chan-5","body":"hi"}`))
	req.Header.Set(channel.SecretHeader, "s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(client.sent) != 1 || client.sent[0] != "chan-5" {
		t.Fatalf("expected one send to chan-5, got %v", client.sent)
	}
}

func TestBridgeReportsProviderUnavailable(t *testing.T) {
	factory := channel.FactoryFunc(func() (channel.Client, error) {
		return nil, appErrors.NewChannelUnavailable("no credentials")
	})
	router := newBridgeRouter(factory, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/bridge/send", strings.NewReader(`{"address":"a","body":"b"}`))
	req.Header.Set(channel.SecretHeader, "s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestBridgeRequiresAddress(t *testing.T) {
	client := &recordClient{}
	router := newBridgeRouter(channel.FactoryFunc(func() (channel.Client, error) { return client, nil }), "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/bridge/send", strings.NewReader(`{"body":"hi"}`))
	req.Header.Set(channel.SecretHeader, "s3cret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
