// Package main is a traffic simulator for the Yakin realtime stack. It
// drives N simulated users through the full client layer: token issue,
// socket connect, general-room chat, and a synthetic GPS walk around a
// starting point. It is the smoke test for the client package against a
// real server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yakin/dating-app/client"
	"github.com/yakin/dating-app/internal/geo"
	"github.com/yakin/dating-app/internal/protocol"
	"github.com/yakin/dating-app/internal/token"
)

// walker produces a random GPS walk: each step moves up to stepMeters in a
// drifting direction from the start coordinates.
type walker struct {
	mu       sync.Mutex
	lat, lon float64
	heading  float64
	step     float64 // meters per sample
}

func newWalker(lat, lon, stepMeters float64) *walker {
	return &walker{lat: lat, lon: lon, heading: rand.Float64() * 2 * math.Pi, step: stepMeters}
}

// sample advances the walk one step and returns the new fix.
func (w *walker) sample() (geo.Sample, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.heading += (rand.Float64() - 0.5) * 0.5
	dLat := (w.step * math.Cos(w.heading)) / 111_000
	dLon := (w.step * math.Sin(w.heading)) / (111_000 * math.Cos(w.lat*math.Pi/180))
	w.lat += dLat
	w.lon += dLon

	return geo.Sample{
		Latitude:       w.lat,
		Longitude:      w.lon,
		AccuracyMeters: 5 + rand.Float64()*15,
		CapturedAt:     time.Now(),
	}, true
}

func main() {
	wsURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	apiURL := flag.String("api-url", "http://localhost:8080/api", "REST API base URL")
	redisAddr := flag.String("redis", "localhost:6379", "Redis address for token issuing")
	users := flag.Int("users", 10, "Number of simulated users")
	duration := flag.Duration("duration", time.Minute, "How long to run")
	msgInterval := flag.Duration("msg-interval", 5*time.Second, "Interval between chat messages per user")
	lat := flag.Float64("lat", 41.0082, "Walk start latitude")
	lon := flag.Float64("lon", 28.9784, "Walk start longitude")
	flag.Parse()

	fmt.Printf("Simulator: %d users on %s for %s (msg every %s)\n",
		*users, *wsURL, *duration, *msgInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tokens are issued directly against Redis, the same store the server
	// resolves them from.
	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	tokens := token.NewStore(rdb)

	var (
		sent     int64
		received int64
		statuses int64
	)

	var wg sync.WaitGroup
	managers := make([]*client.Manager, 0, *users)
	var mu sync.Mutex

	for i := 0; i < *users; i++ {
		userID := fmt.Sprintf("sim-%d", i+1)
		tok, err := tokens.Issue(ctx, userID)
		if err != nil {
			log.Fatalf("failed to issue token for %s: %v", userID, err)
		}

		wg.Add(1)
		go func(userID, tok string) {
			defer wg.Done()

			bus := client.NewBus()
			bus.On(protocol.TypeMessageReceived, func(interface{}) {
				atomic.AddInt64(&received, 1)
			})
			bus.On(client.TypeConnectionStatus, func(interface{}) {
				atomic.AddInt64(&statuses, 1)
			})

			cfg := client.DefaultConfig(*wsURL)
			cfg.Token = tok
			m := client.NewManager(cfg, bus)

			mu.Lock()
			managers = append(managers, m)
			mu.Unlock()

			rest := client.NewRESTClient(*apiURL, tok)
			chat := client.NewChat(m, rest, bus)
			rooms := client.NewRoomManager(m, bus, nil)
			m.OnConnected(rooms.ResendJoins)

			w := newWalker(*lat+rand.Float64()*0.01, *lon+rand.Float64()*0.01, 1.5)
			engine := client.NewLocationEngine(m, rest, w.sample)

			m.Connect()
			rooms.Join("general")
			engine.Start()
			defer engine.Stop()

			ticker := time.NewTicker(*msgInterval)
			defer ticker.Stop()
			deadline := time.After(*duration)

			for {
				select {
				case <-ctx.Done():
					return
				case <-deadline:
					return
				case <-ticker.C:
					body := fmt.Sprintf("selam from %s at %d", userID, time.Now().Unix())
					sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
					if err := chat.Send(sendCtx, "general", body); err != nil {
						log.Printf("[%s] send failed: %v", userID, err)
					} else {
						atomic.AddInt64(&sent, 1)
					}
					cancel()
				}
			}
		}(userID, tok)

		// Stagger connection attempts slightly.
		time.Sleep(50 * time.Millisecond)
	}

	wg.Wait()

	mu.Lock()
	for _, m := range managers {
		m.Disconnect()
	}
	mu.Unlock()
	rdb.Close()

	fmt.Println("\n--- Results ---")
	fmt.Printf("  messages sent:       %d\n", atomic.LoadInt64(&sent))
	fmt.Printf("  messages received:   %d\n", atomic.LoadInt64(&received))
	fmt.Printf("  status transitions:  %d\n", atomic.LoadInt64(&statuses))
}
