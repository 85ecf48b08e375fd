// simulate hammers the write side with concurrent units of work to observe
// optimistic concurrency behavior under contention: a small user pool, many
// workers, caller-side retry-with-refetch on version conflicts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/hackgods/availability-service/internal/availability"
	"github.com/hackgods/availability-service/internal/config"
	"github.com/hackgods/availability-service/internal/db"
	"github.com/hackgods/availability-service/internal/feed"
	redisclient "github.com/hackgods/availability-service/internal/redis"
)

type SimConfig struct {
	Duration   time.Duration
	Workers    int
	Users      int
	SlotHours  int
	MaxRetries int
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Rejected  int64 // domain errors: already exists / not found
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil:
		atomic.AddInt64(&om.Success, 1)
	case errors.Is(err, availability.ErrConcurrencyConflict):
		atomic.AddInt64(&om.Conflict, 1)
	case errors.Is(err, availability.ErrAvailabilityExists),
		errors.Is(err, availability.ErrAvailabilityNotFound):
		atomic.AddInt64(&om.Rejected, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)/2]
	p95 = latencies[len(latencies)*95/100]
	return avg, p50, p95
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	sim := SimConfig{}
	flag.DurationVar(&sim.Duration, "duration", 30*time.Second, "how long to run")
	flag.IntVar(&sim.Workers, "workers", 8, "concurrent workers")
	flag.IntVar(&sim.Users, "users", 3, "size of the contended user pool")
	flag.IntVar(&sim.SlotHours, "slot-hours", 24, "distinct slot hours per user")
	flag.IntVar(&sim.MaxRetries, "max-retries", 3, "refetch retries after a version conflict")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
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
	publisher := feed.NewRedisPublisher(rdb, cfg.ChangeFeedStream, cfg.EventStoreTable)
	handler := availability.NewCommandHandler(eventStore, publisher)

	gofakeit.Seed(time.Now().UnixNano())
	users := make([]string, sim.Users)
	for i := range users {
		users[i] = fmt.Sprintf("sim-%s", gofakeit.Username())
	}

	log.Printf("simulating workers=%d users=%d duration=%s", sim.Workers, sim.Users, sim.Duration)

	metrics := &OperationMetrics{}
	runCtx, cancel := context.WithTimeout(rootCtx, sim.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for w := 0; w < sim.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			worker(runCtx, rand.New(rand.NewSource(seed)), sim, users, handler, metrics)
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	report(metrics)
}

func worker(ctx context.Context, rng *rand.Rand, sim SimConfig, users []string, handler *availability.CommandHandler, metrics *OperationMetrics) {
	base := time.Now().UTC().Truncate(time.Hour)

	for ctx.Err() == nil {
		userID := users[rng.Intn(len(users))]
		availableAt := base.Add(time.Duration(rng.Intn(sim.SlotHours)) * time.Hour)

		start := time.Now()
		err := executeWithRetry(ctx, sim.MaxRetries, func() error {
			return randomCommand(ctx, rng, handler, userID, availableAt)
		})
		if ctx.Err() != nil {
			return
		}
		metrics.Record(time.Since(start), err)
	}
}

// executeWithRetry is the caller-side recovery the write side prescribes:
// on a version conflict, refetch (the handler replays on every execute)
// and try again a bounded number of times.
func executeWithRetry(ctx context.Context, maxRetries int, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if !errors.Is(err, availability.ErrConcurrencyConflict) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func randomCommand(ctx context.Context, rng *rand.Rand, handler *availability.CommandHandler, userID string, availableAt time.Time) error {
	correlationID := uuid.NewString()

	switch rng.Intn(4) {
	case 0:
		_, err := handler.Create(ctx, availability.CreateAvailability{
			CorrelationID: correlationID,
			UserID:        userID,
			AvailableAt:   availableAt,
		})
		return err
	case 1:
		_, err := handler.Delete(ctx, availability.DeleteAvailability{
			CorrelationID: correlationID,
			UserID:        userID,
			AvailableAt:   availableAt,
		})
		return err
	case 2:
		_, err := handler.AddAppointment(ctx, availability.AddAppointment{
			CorrelationID: correlationID,
			UserID:        userID,
			AvailableAt:   availableAt,
			AppointmentID: uuid.NewString(),
		})
		return err
	default:
		_, err := handler.RemoveAppointment(ctx, availability.RemoveAppointment{
			CorrelationID: correlationID,
			UserID:        userID,
			AvailableAt:   availableAt,
		})
		return err
	}
}

func report(metrics *OperationMetrics) {
	avg, p50, p95 := metrics.Stats()
	log.Printf("total=%d success=%d conflict=%d rejected=%d error=%d",
		atomic.LoadInt64(&metrics.Total),
		atomic.LoadInt64(&metrics.Success),
		atomic.LoadInt64(&metrics.Conflict),
		atomic.LoadInt64(&metrics.Rejected),
		atomic.LoadInt64(&metrics.Error),
	)
	log.Printf("latency avg=%s p50=%s p95=%s", avg, p50, p95)
}
