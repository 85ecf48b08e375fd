package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/availability-service/internal/availability"
	"github.com/hackgods/availability-service/internal/config"
	"github.com/hackgods/availability-service/internal/db"
	"github.com/hackgods/availability-service/internal/feed"
	redisclient "github.com/hackgods/availability-service/internal/redis"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("projector starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running projector in env=%s stream=%s group=%s consumer=%s",
		cfg.Env, cfg.ChangeFeedStream, cfg.ConsumerGroup, cfg.ConsumerName)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	readModel := availability.NewPgReadModel(pgPool, cfg.ReadModelTable)
	projector := availability.NewProjector(readModel)
	consumer := feed.NewConsumer(rdb, cfg.ChangeFeedStream, cfg.ConsumerGroup, cfg.ConsumerName, projector)

	err = consumer.Run(rootCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("consumer error: %v", err)
	}

	log.Println("shutting down projector")
}
