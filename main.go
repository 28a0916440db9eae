package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"fitsense-backend/config"
	"fitsense-backend/models"
	"fitsense-backend/routes"
	"fitsense-backend/services"
	"fitsense-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load(os.Getenv("FITSENSE_CONFIG"))
	if err != nil {
		log.Fatalf("[CONFIG] %v", err)
	}
	gin.SetMode(cfg.Server.Mode)
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = utils.GenerateJWTSecret()
		log.Println("[CONFIG] jwt.secret not set, using a random secret; tokens will not survive a restart")
	}

	db, err := config.ConnectDB(cfg.Database)
	if err != nil {
		log.Fatalf("[DB] %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("[DB] migrate: %v", err)
	}

	var notifier services.Notifier = services.NopNotifier{}
	if cfg.Twilio.Enabled {
		notifier = services.NewTwilioNotifier(db, cfg.Twilio)
	}

	var publisher services.EventPublisher = services.NopPublisher{}
	if cfg.Events.Enabled {
		sqsPublisher, err := services.NewSQSPublisher(context.Background(), cfg.Events)
		if err != nil {
			log.Fatalf("[EVENTS] %v", err)
		}
		publisher = sqsPublisher
	}

	svc := routes.NewServices(db, cfg, notifier, publisher)

	if cfg.Scheduler.Enabled {
		scheduler := services.NewScheduler(svc.Reconciler, svc.Memberships)
		if err := scheduler.Start(cfg.Scheduler.ReconcileSpec, cfg.Scheduler.ExpirySpec); err != nil {
			log.Fatalf("[SCHEDULER] %v", err)
		}
		defer scheduler.Stop()
	}

	r := routes.SetupRouter(cfg, svc)
	printRoutes(r)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("[SERVER] %v", err)
	}
}

func printRoutes(r *gin.Engine) {
	for _, route := range r.Routes() {
		fmt.Printf("%-6s %s\n", route.Method, route.Path)
	}
}
