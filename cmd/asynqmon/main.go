package main

import (
	"net/http"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"

	"github.com/painel-dev/painel/internal/logger"
)

func main() {
	log := logger.New(os.Stdout, getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "json"))

	// Only the redis address is needed, so SECRET_KEY is not required here
	redisAddr := getEnv("REDIS_ADDRESS", "localhost:6379")

	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/asynqmon",
		RedisConnOpt: asynq.RedisClientOpt{Addr: redisAddr},
	})
	defer h.Close()

	port := getEnv("ASYNQMON_PORT", "8090")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("port", port).Str("redis", redisAddr).Msg("Starting Asynqmon")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Asynqmon server failed")
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
