package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/authcore-dev/authcore/params"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// startHealthCheckServer serves /livez and /readyz on
// params.HealthCheckServerAddr, separate from the API listener. Readiness
// requires both the MySQL pool and redis to answer a ping.
func startHealthCheckServer(rdb redis.UniversalClient, db *gorm.DB) {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReadiness(r.Context(), rdb, db); err != nil {
			slog.Debug("Readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := http.ListenAndServe(params.HealthCheckServerAddr, mux); err != nil {
		slog.Error("Health check server stopped", "error", err)
	}
}

func checkReadiness(ctx context.Context, rdb redis.UniversalClient, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}
