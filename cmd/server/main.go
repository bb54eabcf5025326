// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/campaignforge/broadcast-backend/internal/audience"
	"github.com/campaignforge/broadcast-backend/internal/cache"
	"github.com/campaignforge/broadcast-backend/internal/channel"
	"github.com/campaignforge/broadcast-backend/internal/config"
	"github.com/campaignforge/broadcast-backend/internal/db"
	"github.com/campaignforge/broadcast-backend/internal/handler"
	"github.com/campaignforge/broadcast-backend/internal/queue"
	"github.com/campaignforge/broadcast-backend/internal/repository"
	"github.com/campaignforge/broadcast-backend/internal/service"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	conn := db.Open(cfg.Database.PostgresURL)
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	recipientRepo := &repository.RecipientRepository{DB: conn}
	userRepo := &repository.UserRepository{DB: conn}

	// Bridge takes precedence when configured: provider credentials live
	// on the bridge host, not here.
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

	var audienceCache cache.AudienceCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		audienceCache = cache.NewRedisCache(rdb, cfg.Redis.TTL)
		log.Println("✅ Redis audience cache enabled")
	}

	var q queue.Queue
	if cfg.Queue.AMQPURL != "" {
		amqpQueue, err := queue.NewAMQPQueue(cfg.Queue.AMQPURL)
		if err != nil {
			log.Fatal("failed to connect to RabbitMQ:", err)
		}
		defer amqpQueue.Close()
		q = amqpQueue
		log.Println("✅ Using RabbitMQ trigger queue (dispatch runs in cmd/worker)")
	} else {
		q = queue.NewInMemoryQueue()
	}

	campaignService := &service.CampaignService{
		CampaignRepo:  campaignRepo,
		RecipientRepo: recipientRepo,
		UserRepo:      userRepo,
		Resolver:      audience.NewResolver(userRepo),
		Engine:        engine,
		Queue:         q,
		Cache:         audienceCache,
	}

	// Single-binary mode: run dispatches in-process off the in-memory queue.
	if cfg.Queue.AMQPURL == "" {
		q.Subscribe(queue.TopicCampaignSends, func(campaignID int) error {
			return campaignService.RunCampaign(context.Background(), campaignID)
		})
	}

	campaignHandler := handler.NewCampaignHandler(campaignService)

	r := chi.NewRouter()

	// Campaign routes
	r.Post("/campaigns", campaignHandler.CreateCampaignHandler)
	r.Get("/campaigns", campaignHandler.ListCampaignsHandler)
	r.Get("/campaigns/{id}", campaignHandler.GetCampaignHandler)
	r.Post("/campaigns/{id}/send", campaignHandler.SendCampaignHandler)
	r.Post("/campaigns/{id}/cancel", campaignHandler.CancelCampaignHandler)
	r.Get("/campaigns/{id}/recipients", campaignHandler.ListRecipientsHandler)
	r.Get("/segments/{name}/preview", campaignHandler.SegmentPreviewHandler)

	log.Println("🚀 Server running on", cfg.Server.Address)
	log.Fatal(http.ListenAndServe(cfg.Server.Address, r))
}
