// cmd/worker/main.go
//
// Consumes campaign-send triggers from RabbitMQ and runs the dispatch
// engine. Deployed next to the server when dispatch should not share the
// API process.
package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/campaignforge/broadcast-backend/internal/audience"
	"github.com/campaignforge/broadcast-backend/internal/channel"
	"github.com/campaignforge/broadcast-backend/internal/config"
	"github.com/campaignforge/broadcast-backend/internal/db"
	"github.com/campaignforge/broadcast-backend/internal/queue"
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
	if cfg.Queue.AMQPURL == "" {
		log.Fatal("AMQP_URL is required for the worker")
	}

	conn := db.Open(cfg.Database.PostgresURL)
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}
	userRepo := &repository.UserRepository{DB: conn}

	var factory channel.Factory
	if cfg.Bridge.BaseURL != "" {
		factory = channel.BridgeFactory(cfg.Bridge.BaseURL, cfg.Bridge.Secret)
	} else {
		factory = channel.WebhookFactory(cfg.Provider.WebhookURL)
	}

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

	campaignService := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		UserRepo:      userRepo,
		Resolver:      audience.NewResolver(userRepo),
		Engine:        engine,
	}

	amqpQueue, err := queue.NewAMQPQueue(cfg.Queue.AMQPURL)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ:", err)
	}
	defer amqpQueue.Close()

	err = amqpQueue.Subscribe(queue.TopicCampaignSends, func(campaignID int) error {
		return campaignService.RunCampaign(context.Background(), campaignID)
	})
	if err != nil {
		log.Fatal("failed to subscribe:", err)
	}

	log.Println("Worker running, waiting for campaign triggers...")
	select {}
}
