package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/campaignforge/broadcast-backend/internal/channel"
	"github.com/campaignforge/broadcast-backend/internal/service"
)

// BridgeHandler runs on the host that holds the provider credentials. The
// console side talks to it through channel.BridgeClient; both endpoints
// send on every call, de-duplication is the caller's job.
type BridgeHandler struct {
	Provider channel.Factory
	Engine   *service.DispatchEngine
	Secret   string
}

// RequireSecret rejects requests without the shared-secret header.
func (h *BridgeHandler) RequireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(channel.SecretHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			http.Error(w, "invalid bridge secret", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SendHandler delivers one message to one address.
func (h *BridgeHandler) SendHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Address string `json:"address"`
		Body    string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if payload.Address == "" {
		http.Error(w, "address is required", http.StatusBadRequest)
		return
	}

	client, err := h.Provider.Client()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := client.Send(ctx, payload.Address, payload.Body); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"delivered": true})
}

// DispatchPendingHandler drains a campaign's remaining pending recipients
// using this host's provider credentials. Runs in the background; the
// console polls campaign stats for progress.
func (h *BridgeHandler) DispatchPendingHandler(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	go func() {
		if err := h.Engine.DispatchPending(context.Background(), id); err != nil {
			log.Printf("⚠️ bridge dispatch for campaign %d failed: %v", id, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"campaign_id": id, "dispatching": true})
}
