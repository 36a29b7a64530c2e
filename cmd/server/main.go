// cmd/server/main.go
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

	"github.com/sirupsen/logrus"

	"github.com/gotchaguardian/payment-server/internal/catalog"
	"github.com/gotchaguardian/payment-server/internal/config"
	"github.com/gotchaguardian/payment-server/internal/database"
	"github.com/gotchaguardian/payment-server/internal/router"
	"github.com/gotchaguardian/payment-server/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})
	if !cfg.IsProduction() {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// Load product catalog
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		log.Fatal("Failed to load product catalog:", err)
	}

	// Build services
	notifications := services.NewNotificationService(cfg, cat)
	notifications.Start()
	defer notifications.Stop()

	storage, err := services.NewStorageService(cfg)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}

	orders := services.NewOrderService(db, cat)
	keys := services.NewActivationService(db)
	downloads := services.NewDownloadService(db, cat, storage, cfg)
	cards := services.NewCardService(cfg, orders, keys, notifications)

	payments, err := services.NewPaymentService(cfg, cat, orders, keys, cards, notifications)
	if err != nil {
		log.Fatal("Failed to initialize payment service:", err)
	}
	if cfg.PayPal.ClientID != "" {
		if err := payments.Initialize(context.Background()); err != nil {
			if cfg.IsProduction() {
				log.Fatal("Failed to authenticate with PayPal:", err)
			}
			logrus.WithError(err).Warn("PayPal authentication failed, continuing in development")
		}
	}

	// Initialize router
	r := router.Initialize(router.Dependencies{
		Config:        cfg,
		DB:            db,
		Catalog:       cat,
		Orders:        orders,
		Payments:      payments,
		Cards:         cards,
		Downloads:     downloads,
		Notifications: notifications,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
