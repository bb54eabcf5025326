// cmd/bridge/main.go
//
// The bridge host holds the provider credentials when the console process
// cannot. It exposes two authenticated endpoints: send one message, and
// drain a campaign's remaining pending recipients.
package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/campaignforge/broadcast-backend/internal/channel"
	"github.com/campaignforge/broadcast-backend/internal/config"
	"github.com/campaignforge/broadcast-backend/internal/db"
	"github.com/campaignforge/broadcast-backend/internal/handler"
	"github.com/campaignforge/broadcast-backend/internal/repository"
	"github.com/campaignforge/broadcast-backend/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Bridge.Secret == "" {
		log.Fatal("BRIDGE_SECRET is required for the bridge")
	}

	conn := db.Open(cfg.Database.PostgresURL)
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}
	userRepo := &repository.UserRepository{DB: conn}

	// The bridge always talks to the provider directly; that is the point
	// of hosting it here.
	factory := channel.WebhookFactory(cfg.Provider.WebhookURL)

	aggregator := &service.StatusAggregator{
		Campaigns:  campaignRepo,
		Recipients: recipientRepo,
	}
	engine := &service.DispatchEngine{
		Campaigns:   campaignRepo,
		Recipients:  recipientRepo,
		Users:       userRepo,
		Channel:     factory,
		Aggregator:  aggregator,
		Workers:     cfg.Dispatch.Workers,
		RatePerSec:  cfg.Dispatch.RatePerSec,
		SendTimeout: cfg.Dispatch.SendTimeout,
	}

	bridgeHandler := &handler.BridgeHandler{
		Provider: factory,
		Engine:   engine,
		Secret:   cfg.Bridge.Secret,
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(bridgeHandler.RequireSecret)
		r.Post("/bridge/send", bridgeHandler.SendHandler)
		r.Post("/bridge/campaigns/{id}/dispatch", bridgeHandler.DispatchPendingHandler)
	})

	log.Println("🚀 Bridge running on", cfg.Bridge.Address)
	log.Fatal(http.ListenAndServe(cfg.Bridge.Address, r))
}
