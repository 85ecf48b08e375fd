package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/availability-service/internal/availability"
	"github.com/hackgods/availability-service/internal/config"
	"github.com/hackgods/availability-service/internal/db"
	"github.com/hackgods/availability-service/internal/feed"
	redisclient "github.com/hackgods/availability-service/internal/redis"
)

const (
	seedUsers        = 25
	maxSlotsPerUser  = 12
	appointmentRatio = 0.3
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer rdb.Close()

	gofakeit.Seed(time.Now().UnixNano())

	eventStore := availability.NewPgEventStore(pool, cfg.EventStoreTable)
	publisher := feed.NewRedisPublisher(rdb, cfg.ChangeFeedStream, cfg.EventStoreTable)
	handler := availability.NewCommandHandler(eventStore, publisher)

	if err := seedAvailability(ctx, handler); err != nil {
		log.Fatalf("seed availability: %v", err)
	}

	log.Println("seed complete")
}

// seedAvailability drives everything through the command handler so seeded
// data takes the same path as production writes: events first, read model
// via the projector.
func seedAvailability(ctx context.Context, handler *availability.CommandHandler) error {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, time.UTC)

	total := 0
	for u := 0; u < seedUsers; u++ {
		userID := gofakeit.Username()
		slots := gofakeit.Number(1, maxSlotsPerUser)

		for s := 0; s < slots; s++ {
			availableAt := dayStart.Add(time.Duration(gofakeit.Number(1, 24*7)) * time.Hour)

			cmd := availability.CreateAvailability{
				CorrelationID: uuid.NewString(),
				UserID:        userID,
				AvailableAt:   availableAt,
			}
			if gofakeit.Float64() < appointmentRatio {
				appointmentID := uuid.NewString()
				cmd.AppointmentID = &appointmentID
			}

			if _, err := handler.Create(ctx, cmd); err != nil {
				// Random hours collide now and then; that slot is simply taken.
				if errors.Is(err, availability.ErrAvailabilityExists) {
					continue
				}
				return err
			}
			total++
		}
	}

	log.Printf("seeded %d availability slots for %d users", total, seedUsers)
	return nil
}
