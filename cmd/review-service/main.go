package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/helixlabs/limsd/pkg/common/config"
	"github.com/helixlabs/limsd/pkg/common/database"
	kafkax "github.com/helixlabs/limsd/pkg/common/kafka"
	"github.com/helixlabs/limsd/pkg/common/logger"
	"github.com/helixlabs/limsd/pkg/orders"
	"github.com/helixlabs/limsd/pkg/refrange"
	"github.com/helixlabs/limsd/pkg/review"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	orderRepo := orders.NewRepository(db)
	if err := orderRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate order tables")
	}
	rangeRepo := refrange.NewRepository(db)
	if err := rangeRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate reference range tables")
	}

	redisClient := database.GetRedis()
	rangeService := refrange.NewService(rangeRepo, redisClient, cfg.RangeCacheTTL)

	seedCtx, seedCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := rangeService.SeedFromCatalog(seedCtx, cfg.RangeSeedPath); err != nil {
		logger.Log.WithError(err).Warn("reference range seed failed")
	}
	seedCancel()

	events := kafkax.NewProducer(cfg.ReviewEventsTopic)
	defer events.Close()

	svc := review.NewService(orderRepo, rangeService, events, redisClient, cfg.ReviewStatusTTL)
	handler := review.NewHandler(svc, rangeService)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, "8082"),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8082",
		}).Info("Review Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Review Service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Review Service stopped")
}
