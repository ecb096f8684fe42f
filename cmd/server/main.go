// Package main is the entry point for the hearthd heating controller.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hearthd/hearthd/internal/api"
	"github.com/hearthd/hearthd/internal/config"
	"github.com/hearthd/hearthd/internal/database"
	"github.com/hearthd/hearthd/internal/database/models"
	"github.com/hearthd/hearthd/internal/database/repositories"
	"github.com/hearthd/hearthd/internal/services/poller"
	"github.com/hearthd/hearthd/internal/services/pubsub"
	"github.com/hearthd/hearthd/internal/services/schedule"
	"github.com/hearthd/hearthd/internal/services/transport"
	"github.com/hearthd/hearthd/internal/services/version"

	"gorm.io/gorm"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Print startup banner
	printBanner(cfg)

	// Connect to database
	db, err := database.Connect(database.Config{
		URL:         cfg.DatabaseURL,
		MaxIdleConn: cfg.DBMaxIdleConns,
		MaxOpenConn: cfg.DBMaxOpenConns,
		Debug:       cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	// Auto-migrate database schema
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migrations complete")

	// The gateway row owns the topic layout; the env vars seed it on
	// first run and stay the fallback.
	topicPrefix, err := resolvePublishTopic(db, cfg)
	if err != nil {
		log.Fatalf("Failed to resolve publish topic: %v", err)
	}

	// Connect the MQTT publisher; without a broker, value pushes are
	// recorded but go nowhere (useful in development)
	var publisher transport.Publisher
	if cfg.MQTTBroker != "" {
		real, err := transport.NewRealPublisher(cfg.MQTTBroker, cfg.MQTTClientID, topicPrefix)
		if err != nil {
			log.Fatalf("Failed to connect to MQTT broker: %v", err)
		}
		publisher = real
	} else {
		log.Println("No MQTT broker configured, sensor pushes are disabled")
		publisher = transport.NewFakePublisher()
	}
	defer func() { _ = publisher.Close() }()

	// Event fan-out for websocket clients
	events := pubsub.New()

	// Schedule engine
	scheduleService := schedule.NewService(db, schedule.Config{
		HeatingSensor:  cfg.HeatingSensor,
		HotWaterSensor: cfg.HotWaterSensor,
		ModeSensor:     cfg.ModeSensor,
	})

	// Start the poll loop
	pollLoop := poller.New(db, scheduleService, publisher, events, cfg.PollMaxInterval)
	pollLoop.Start()

	// HTTP API
	server := api.NewServer(db, cfg, scheduleService, publisher, events)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%s\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cleanup services in reverse order
	pollLoop.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  hearthd heating controller")
	fmt.Printf("  Version: %s\n", version.String())
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Port:        %s\n", cfg.Port)
	fmt.Printf("  Database:    %s\n", cfg.DatabaseURL)
	fmt.Printf("  MQTT:        %s\n", brokerLabel(cfg.MQTTBroker))
	fmt.Println("============================================")
}

func brokerLabel(broker string) string {
	if broker == "" {
		return "disabled"
	}
	return broker
}

// resolvePublishTopic returns the MQTT topic prefix from the gateway
// row, seeding one from the environment on first run. Editing the row
// survives restarts; the env value only applies while no row exists.
func resolvePublishTopic(db *gorm.DB, cfg *config.Config) (string, error) {
	gateways := repositories.NewGatewayRepository(db)

	rows, err := gateways.FindAll(context.Background())
	if err != nil {
		return "", fmt.Errorf("load gateways: %w", err)
	}
	if len(rows) == 0 {
		gw := models.Gateway{
			Name:         "default",
			BrokerHost:   cfg.MQTTBroker,
			ClientID:     cfg.MQTTClientID,
			PublishTopic: cfg.MQTTTopicPrefix,
		}
		if err := gateways.Create(context.Background(), &gw); err != nil {
			return "", fmt.Errorf("seed gateway: %w", err)
		}
		return gw.PublishTopic, nil
	}
	if rows[0].PublishTopic == "" {
		return cfg.MQTTTopicPrefix, nil
	}
	return rows[0].PublishTopic, nil
}
