// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/rechess/server/internal/auth"
	"github.com/rechess/server/internal/blob"
	"github.com/rechess/server/internal/events"
	"github.com/rechess/server/internal/handlers"
	"github.com/rechess/server/internal/middleware"
	"github.com/rechess/server/internal/review"
	"github.com/rechess/server/internal/store"
	"github.com/rechess/server/internal/triggers"
)

func main() {
	auth.Init()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	ctx := context.Background()

	st, err := store.ConnectPostgres(ctx)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	redisClient, err := review.ConnectRedis()
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	bus := events.NewBus(logger)
	defer bus.Close()
	st.OnEvent = bus.OnEvent

	if err := triggers.Register(ctx, bus, st, logger); err != nil {
		log.Fatalf("failed to register triggers: %v", err)
	}

	blobs := blob.NewRedis(redisClient, "")
	queue := review.NewRedisQueue(redisClient, "")

	srv := handlers.NewServer(st, bus, blobs, queue, logger)
	mux := srv.Routes()

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, middleware.LogMiddleware(logger)(mux)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
