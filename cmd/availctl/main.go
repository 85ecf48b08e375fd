// availctl drives the availability service from the terminal.
//
// Usage:
//
//	availctl create-availability --user-id abc123 --available-at 2026-09-01T10:00:00Z [--appointment-id x]
//	availctl delete-availability --user-id abc123 --available-at 2026-09-01T10:00:00Z
//	availctl add-appointment     --user-id abc123 --available-at 2026-09-01T10:00:00Z --appointment-id x
//	availctl remove-appointment  --user-id abc123 --available-at 2026-09-01T10:00:00Z
//	availctl show-aggregate      --user-id abc123
//	availctl query               [--user-id abc123] [--start ...] [--end ...]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/availability-service/internal/availability"
	"github.com/hackgods/availability-service/internal/config"
	"github.com/hackgods/availability-service/internal/db"
	"github.com/hackgods/availability-service/internal/feed"
	redisclient "github.com/hackgods/availability-service/internal/redis"
)

type options struct {
	userID        string
	availableAt   string
	appointmentID string
	start         string
	end           string
}

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		log.Fatal("usage: availctl <create-availability|delete-availability|add-appointment|remove-appointment|show-aggregate|query> [flags]")
	}
	op := os.Args[1]

	fs := flag.NewFlagSet(op, flag.ExitOnError)
	var opts options
	fs.StringVar(&opts.userID, "user-id", "", "user the operation applies to")
	fs.StringVar(&opts.availableAt, "available-at", "", "slot timestamp, RFC 3339")
	fs.StringVar(&opts.appointmentID, "appointment-id", "", "appointment to bind")
	fs.StringVar(&opts.start, "start", "", "query window start, RFC 3339")
	fs.StringVar(&opts.end, "end", "", "query window end, RFC 3339")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
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

	eventStore := availability.NewPgEventStore(pool, cfg.EventStoreTable)
	readModel := availability.NewPgReadModel(pool, cfg.ReadModelTable)
	publisher := feed.NewRedisPublisher(rdb, cfg.ChangeFeedStream, cfg.EventStoreTable)
	handler := availability.NewCommandHandler(eventStore, publisher)
	queries := availability.NewQueryService(readModel, cfg.QueryWindowPast, cfg.QueryWindowFuture)

	if err := run(ctx, op, opts, handler, queries); err != nil {
		log.Fatalf("%s: %v", op, err)
	}
}

func run(ctx context.Context, op string, opts options, handler *availability.CommandHandler, queries *availability.QueryService) error {
	switch op {
	case "create-availability":
		availableAt, err := requireTime(opts.availableAt)
		if err != nil {
			return err
		}
		cmd := availability.CreateAvailability{
			CorrelationID: uuid.NewString(),
			UserID:        requireUser(opts.userID),
			AvailableAt:   availableAt,
		}
		if opts.appointmentID != "" {
			cmd.AppointmentID = &opts.appointmentID
		}
		agg, err := handler.Create(ctx, cmd)
		if err != nil {
			return err
		}
		return printAggregate(agg)

	case "delete-availability":
		availableAt, err := requireTime(opts.availableAt)
		if err != nil {
			return err
		}
		agg, err := handler.Delete(ctx, availability.DeleteAvailability{
			CorrelationID: uuid.NewString(),
			UserID:        requireUser(opts.userID),
			AvailableAt:   availableAt,
		})
		if err != nil {
			return err
		}
		return printAggregate(agg)

	case "add-appointment":
		availableAt, err := requireTime(opts.availableAt)
		if err != nil {
			return err
		}
		if opts.appointmentID == "" {
			return fmt.Errorf("--appointment-id is required")
		}
		agg, err := handler.AddAppointment(ctx, availability.AddAppointment{
			CorrelationID: uuid.NewString(),
			UserID:        requireUser(opts.userID),
			AvailableAt:   availableAt,
			AppointmentID: opts.appointmentID,
		})
		if err != nil {
			return err
		}
		return printAggregate(agg)

	case "remove-appointment":
		availableAt, err := requireTime(opts.availableAt)
		if err != nil {
			return err
		}
		agg, err := handler.RemoveAppointment(ctx, availability.RemoveAppointment{
			CorrelationID: uuid.NewString(),
			UserID:        requireUser(opts.userID),
			AvailableAt:   availableAt,
		})
		if err != nil {
			return err
		}
		return printAggregate(agg)

	case "show-aggregate":
		agg, err := handler.Load(ctx, requireUser(opts.userID))
		if err != nil {
			return err
		}
		return printAggregate(agg)

	case "query":
		var start, end time.Time
		var err error
		if opts.start != "" {
			if start, err = time.Parse(time.RFC3339, opts.start); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
		}
		if opts.end != "" {
			if end, err = time.Parse(time.RFC3339, opts.end); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
		}
		slots, err := queries.Fetch(ctx, opts.userID, start, end)
		if err != nil {
			return err
		}
		return printJSON(slots)

	default:
		return fmt.Errorf("unknown operation %q", op)
	}
}

func requireUser(userID string) string {
	if userID == "" {
		log.Fatal("--user-id is required")
	}
	return userID
}

func requireTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("--available-at is required")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("--available-at: %w", err)
	}
	return t, nil
}

func printAggregate(agg *availability.Aggregate) error {
	return printJSON(map[string]any{
		"user_id":      agg.UserID,
		"version":      agg.Version,
		"availability": agg.Slots(),
		"events":       agg.History(),
	})
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
