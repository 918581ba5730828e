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
	"github.com/helixlabs/limsd/pkg/ingest"
	"github.com/helixlabs/limsd/pkg/orders"
	"github.com/helixlabs/limsd/pkg/refrange"
)

func main() {
	logger.Init()
	cfg := config.Load()

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to postgres")
	}

	ledger := ingest.NewLedger(db)
	if err := ledger.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate ledger tables")
	}
	orderRepo := orders.NewRepository(db)
	if err := orderRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate order tables")
	}
	rangeRepo := refrange.NewRepository(db)
	if err := rangeRepo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate reference range tables")
	}

	rangeService := refrange.NewService(rangeRepo, database.GetRedis(), cfg.RangeCacheTTL)

	validator := ingest.NewValidator(cfg.AllowedSources)
	svc := ingest.NewService(validator, ledger, orderRepo, rangeService, cfg.LedgerRetention)
	handler := ingest.NewHandler(svc, cfg.MaxRequestBody)

	var dlq *kafkax.Producer
	if cfg.ResultsDLQTopic != "" {
		dlq = kafkax.NewProducer(cfg.ResultsDLQTopic)
		defer dlq.Close()
	}

	consumer := kafkax.NewConsumer(cfg.ResultsTopic, cfg.KafkaGroupID)
	defer consumer.Close()
	feed := ingest.NewFeed(consumer, svc, dlq)

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
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, "8081"),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": "8081",
		}).Info("Ingestion Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	go func() {
		logger.Log.WithField("topic", cfg.ResultsTopic).Info("consuming instrument result feed")
		if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Log.WithError(err).Error("result feed consumer stopped")
		}
	}()

	go func() {
		ticker := time.NewTicker(12 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := svc.Cleanup(context.Background()); err != nil {
					logger.Log.WithError(err).Warn("ledger cleanup job failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Ingestion Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Ingestion Service stopped")
}
