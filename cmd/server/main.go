package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/gridhall/bingo/internal/handlers/ws"
	eventRepo "github.com/gridhall/bingo/internal/repositories/event"
	playerRepo "github.com/gridhall/bingo/internal/repositories/player"
	queueRepo "github.com/gridhall/bingo/internal/repositories/queue"
	sessionRepo "github.com/gridhall/bingo/internal/repositories/session"
	"github.com/gridhall/bingo/internal/services/realtime"
	sessionService "github.com/gridhall/bingo/internal/services/session"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env file: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Initialize repositories
	sessions, err := sessionRepo.NewRedis(&sessionRepo.Config{
		RedisClient: redisClient,
	})
	if err != nil {
		log.Fatalf("Failed to create session repository: %v", err)
	}

	players, err := playerRepo.NewRedis(&playerRepo.Config{
		RedisClient: redisClient,
	})
	if err != nil {
		log.Fatalf("Failed to create player repository: %v", err)
	}

	queue, err := queueRepo.NewRedis(&queueRepo.Config{
		RedisClient: redisClient,
	})
	if err != nil {
		log.Fatalf("Failed to create queue repository: %v", err)
	}

	events, err := eventRepo.NewRedis(&eventRepo.Config{
		RedisClient: redisClient,
	})
	if err != nil {
		log.Fatalf("Failed to create event repository: %v", err)
	}

	// Initialize the broadcast hub
	broadcaster, err := realtime.NewService(&realtime.Config{})
	if err != nil {
		log.Fatalf("Failed to create broadcaster: %v", err)
	}

	queueTTL, err := time.ParseDuration(getEnv("QUEUE_TTL", "60s"))
	if err != nil {
		log.Fatalf("Failed to parse QUEUE_TTL: %v", err)
	}

	// Initialize session service
	sessionSvc, err := sessionService.New(&sessionService.Config{
		QueueTTL:    queueTTL,
		SessionRepo: sessions,
		PlayerRepo:  players,
		QueueRepo:   queue,
		EventRepo:   events,
		Broadcaster: broadcaster,
	})
	if err != nil {
		log.Fatalf("Failed to create session service: %v", err)
	}

	// Initialize websocket handler
	handler, err := ws.New(&ws.Config{
		SessionService: sessionSvc,
	})
	if err != nil {
		log.Fatalf("Failed to create websocket handler: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws/", handler)

	server := &http.Server{
		Addr:    getEnv("LISTEN_ADDR", ":8080"),
		Handler: mux,
	}

	// Sweep stale join requests across live sessions on a fixed cadence
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(queueTTL / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				active, err := sessions.GetActiveSessions(sweepCtx, &sessionRepo.GetActiveSessionsInput{})
				if err != nil {
					log.Printf("Failed to list sessions for queue sweep: %v", err)
					continue
				}
				for _, s := range active.Sessions {
					out, err := sessionSvc.ExpireStaleRequests(sweepCtx, &sessionService.ExpireStaleRequestsInput{
						SessionID: s.ID,
					})
					if err != nil {
						log.Printf("Failed to sweep queue for session %s: %v", s.ID, err)
						continue
					}
					if len(out.Expired) > 0 {
						log.Printf("Expired %d stale join requests for session %s", len(out.Expired), s.ID)
					}
				}
			case <-sweepCtx.Done():
				return
			}
		}
	}()

	go func() {
		log.Printf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	stopSweep()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}

	log.Println("Server has been shut down")
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
